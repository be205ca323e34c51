package stage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	stagemodel "github.com/nvoronin/sprachtrainer/backend/internal/model/stage"
)

// GenerationClient calls the external answer-generation service with a
// JSON payload of system prompt, windowed history and the new prompt.
type GenerationClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGenerationClient creates a generation stage client.
func NewGenerationClient(baseURL string, timeout time.Duration) *GenerationClient {
	return &GenerationClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Generate asks the remote model for the assistant's next answer.
func (c *GenerationClient) Generate(ctx context.Context, req *stagemodel.GenerationRequest) (*stagemodel.GenerationResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create generation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Stage: Generation, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &TransportError{Stage: Generation, Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)}
	}

	var result stagemodel.GenerationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &TransportError{Stage: Generation, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	return &result, nil
}
