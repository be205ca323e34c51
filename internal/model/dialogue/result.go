package dialogue

// TurnRequest carries one recorded utterance into the pipeline.
type TurnRequest struct {
	SessionID  string `json:"sessionId"`
	ScenarioID string `json:"scenarioId"`
	Voice      string `json:"voice"`
	Language   string `json:"language"`
	Format     string `json:"format"` // wav, mp3, webm, etc.
	Audio      []byte `json:"-"`
}

// TurnResult is the composite outcome of one completed dialogue turn.
// It is produced fresh per call and never stored.
type TurnResult struct {
	SessionID      string `json:"sessionId"`
	RecognizedText string `json:"recognizedText"`
	AnswerText     string `json:"answerText"`
	VoiceID        string `json:"voiceId"`
	AudioData      []byte `json:"audioData"`
	Language       string `json:"language,omitempty"`
}

// SessionInfo is returned when a session is explicitly started.
type SessionInfo struct {
	SessionID     string `json:"sessionId"`
	ScenarioID    string `json:"scenarioId"`
	ScenarioTitle string `json:"scenarioTitle"`
}
