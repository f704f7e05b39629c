// Package briefs exposes the brief read API, the manual generation
// trigger, and administrative cleanup.
package briefs

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/civicbrief/civicbrief/internal/database"
	"github.com/civicbrief/civicbrief/internal/jobstore"
	"github.com/civicbrief/civicbrief/internal/pipeline"
	"github.com/civicbrief/civicbrief/internal/topics"
)

// ListBriefsHandler returns a user's briefs, newest first.
func ListBriefsHandler(repo *database.Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseUint(c.Query("user_id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
			return
		}

		limit := 20
		if raw := c.Query("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
				limit = parsed
			}
		}

		briefs, err := repo.BriefsForUser(c.Request.Context(), uint(userID), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list briefs"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"briefs": briefs})
	}
}

// GetBriefHandler returns a single brief by id.
func GetBriefHandler(repo *database.Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid brief id"})
			return
		}

		brief, err := repo.BriefByID(c.Request.Context(), uint(id))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "brief not found"})
			return
		}

		c.JSON(http.StatusOK, brief)
	}
}

// generateRequest is the body of the manual trigger endpoint.
type generateRequest struct {
	UserID          uint `json:"userId" binding:"required"`
	ForceRegenerate bool `json:"forceRegenerate"`
}

// GenerateBriefHandler enqueues a pipeline job for one user on demand.
func GenerateBriefHandler(repo *database.Repo, catalog *topics.Catalog, enqueuer pipeline.Enqueuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req generateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
			return
		}

		user, err := repo.UserByID(c.Request.Context(), req.UserID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}

		jobReq := pipeline.JobRequest{
			UserID:          user.ID,
			Email:           user.Email,
			Name:            user.Name,
			State:           user.State,
			District:        user.District,
			PolicyInterests: pipeline.ParseInterests(user.Interests, catalog.DefaultTopics),
			ForceRegenerate: req.ForceRegenerate,
			RequestedAt:     time.Now().UTC(),
		}

		if err := enqueuer.Enqueue(c.Request.Context(), pipeline.TaskOrchestrate, jobReq); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue brief generation"})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"status": "queued", "userId": user.ID})
	}
}

// CleanupHandler deletes briefs older than the requested age and purges
// leftover job-scoped store entries. Admin only.
func CleanupHandler(repo *database.Repo, store jobstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		days := 30
		if raw := c.Query("older_than_days"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "older_than_days must be a positive integer"})
				return
			}
			days = parsed
		}

		cutoff := time.Now().AddDate(0, 0, -days)

		deleted, err := repo.DeleteBriefsOlderThan(c.Request.Context(), cutoff)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete briefs"})
			return
		}

		// Leftover pipeline keys from abandoned jobs; the TTL would
		// reclaim them eventually, this just doesn't wait.
		purged, err := store.DeleteByPattern(c.Request.Context(), "job:*")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to purge job store"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"briefs_deleted": deleted,
			"keys_purged":    purged,
		})
	}
}

// JobStatusHandler reads a job's metadata record so operators can check
// where an in-flight brief stands. Admin only.
func JobStatusHandler(store jobstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		data, err := store.Get(ctx, jobstore.Key(jobID, jobstore.ArtifactMeta))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}

		c.Data(http.StatusOK, "application/json", data)
	}
}
