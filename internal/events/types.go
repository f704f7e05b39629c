package events

// Stream name constants
const (
	StreamBriefCompleted = "brief:completed"
	StreamBriefRequests  = "brief:requests"
)

// Consumer group constants
const (
	GroupPipelineWorkers = "pipeline-workers"
)

// Schema version constant
const (
	SchemaVersionV1 = "v1"
)

// BriefCompleted announces a finished brief to consumers outside the
// pipeline (the web application watches this stream).
type BriefCompleted struct {
	JobID    string `json:"job_id"`
	UserID   uint   `json:"user_id"`
	AudioURL string `json:"audio_url"`
}

// BriefRequest is an on-demand generation request published by the web
// application (e.g. the user pressed "regenerate").
type BriefRequest struct {
	UserID          uint `json:"user_id"`
	ForceRegenerate bool `json:"force_regenerate"`
}
