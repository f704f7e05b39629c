// Package tts provides the text-to-speech integration used by the
// audio-generation stage.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DialogueInput is one line of a dialogue request: the text to speak
// and the voice to speak it with.
type DialogueInput struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
}

// Client calls the hosted text-to-speech dialogue API. A whole script
// is synthesized in a single request; the API returns one audio stream
// covering every line.
type Client struct {
	baseURL    string
	apiKey     string
	modelID    string
	httpClient *http.Client
	stubMode   bool
}

// NewClient creates a new TTS client with the given configuration.
func NewClient(baseURL, apiKey, modelID string, stubMode bool) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		modelID: modelID,
		// Dialogue synthesis is slow; allow well beyond the usual
		// request budget before giving up.
		httpClient: &http.Client{Timeout: 4 * time.Minute},
		stubMode:   stubMode,
	}
}

// SynthesizeDialogue sends the full line set in one request and returns
// the raw audio bytes. A non-2xx response carries a JSON error body,
// which is surfaced in the returned error.
func (c *Client) SynthesizeDialogue(ctx context.Context, inputs []DialogueInput) ([]byte, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("dialogue has no lines")
	}

	if c.stubMode {
		// Small deterministic payload so downstream stages have bytes to move.
		return []byte("stub-audio"), nil
	}

	reqBody := map[string]interface{}{
		"inputs":   inputs,
		"model_id": c.modelID,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("TTS API returned status %d: %s", resp.StatusCode, string(body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio stream: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("TTS API returned empty audio stream")
	}

	return audio, nil
}
