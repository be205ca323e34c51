package stage

import "github.com/nvoronin/sprachtrainer/backend/internal/model/dialogue"

// RecognitionRequest carries raw audio to the recognition stage.
type RecognitionRequest struct {
	SessionID string `json:"sessionId"`
	Audio     []byte `json:"-"`
	Format    string `json:"format"`   // wav, mp3, webm, etc.
	Language  string `json:"language"` // de, en, etc.
}

// GenerationRequest mirrors the generation service's wire contract:
// the scenario's system prompt, the windowed history and the new prompt.
type GenerationRequest struct {
	System  string          `json:"system"`
	History []dialogue.Turn `json:"history"`
	Prompt  string          `json:"prompt"`
}

// SynthesisRequest carries answer text to the synthesis stage.
type SynthesisRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}
