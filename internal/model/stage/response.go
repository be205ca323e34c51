package stage

// RecognitionResult is what the recognition stage returned for one
// utterance. An empty Text is a valid result, not an error.
type RecognitionResult struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// GenerationResult holds the assistant's answer text.
type GenerationResult struct {
	Answer string `json:"answer"`
}

// SynthesisResult holds the synthesized audio for one answer.
type SynthesisResult struct {
	Audio  []byte `json:"-"`
	Format string `json:"format"` // wav, mp3, etc.
}
