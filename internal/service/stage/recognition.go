package stage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	stagemodel "github.com/nvoronin/sprachtrainer/backend/internal/model/stage"
)

// RecognitionClient calls the external recognition service: audio goes
// up as a multipart file, the transcript comes back as JSON.
type RecognitionClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRecognitionClient creates a recognition stage client.
func NewRecognitionClient(baseURL string, timeout time.Duration) *RecognitionClient {
	return &RecognitionClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Recognize submits one utterance and returns its transcript. An empty
// transcript is returned as-is; only transport failures are errors.
func (c *RecognitionClient) Recognize(ctx context.Context, req *stagemodel.RecognitionRequest) (*stagemodel.RecognitionResult, error) {
	format := req.Format
	if format == "" {
		format = "wav"
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "utterance."+format)
	if err != nil {
		return nil, fmt.Errorf("failed to build recognition form: %w", err)
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, fmt.Errorf("failed to write audio payload: %w", err)
	}
	if req.Language != "" {
		if err := writer.WriteField("language", req.Language); err != nil {
			return nil, fmt.Errorf("failed to write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize recognition form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create recognition request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Stage: Recognition, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(resp.Body)
		return nil, &TransportError{Stage: Recognition, Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, payload)}
	}

	var result stagemodel.RecognitionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &TransportError{Stage: Recognition, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	return &result, nil
}
