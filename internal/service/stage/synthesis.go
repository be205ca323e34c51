package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	stagemodel "github.com/nvoronin/sprachtrainer/backend/internal/model/stage"
)

// SynthesisClient calls the external text-to-speech service with a form
// payload and receives raw audio bytes back. The remote side may answer
// with its default voice when the requested one is unknown.
type SynthesisClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewSynthesisClient creates a synthesis stage client.
func NewSynthesisClient(baseURL string, timeout time.Duration) *SynthesisClient {
	return &SynthesisClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Synthesize renders text into speech audio.
func (c *SynthesisClient) Synthesize(ctx context.Context, req *stagemodel.SynthesisRequest) (*stagemodel.SynthesisResult, error) {
	form := url.Values{}
	form.Set("text", req.Text)
	if req.Voice != "" {
		form.Set("voice", req.Voice)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesis request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Stage: Synthesis, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &TransportError{Stage: Synthesis, Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)}
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)

	// The synthesis service reports voice problems as a JSON body on a
	// success status. That is a settled answer, not a transport fault.
	if strings.HasPrefix(mediaType, "application/json") {
		var remoteErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&remoteErr); err != nil {
			return nil, &TransportError{Stage: Synthesis, Err: fmt.Errorf("failed to decode response: %w", err)}
		}
		return nil, fmt.Errorf("synthesis rejected: %s", remoteErr.Error)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Stage: Synthesis, Err: fmt.Errorf("failed to read audio body: %w", err)}
	}

	format := "wav"
	if strings.HasPrefix(mediaType, "audio/") {
		format = strings.TrimPrefix(mediaType, "audio/")
	}

	return &stagemodel.SynthesisResult{Audio: audio, Format: format}, nil
}
