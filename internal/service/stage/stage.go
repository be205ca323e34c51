package stage

import (
	"context"

	stagemodel "github.com/nvoronin/sprachtrainer/backend/internal/model/stage"
)

// Recognizer converts captured audio into text.
type Recognizer interface {
	Recognize(ctx context.Context, req *stagemodel.RecognitionRequest) (*stagemodel.RecognitionResult, error)
}

// Generator produces the assistant's answer for one prompt plus history.
type Generator interface {
	Generate(ctx context.Context, req *stagemodel.GenerationRequest) (*stagemodel.GenerationResult, error)
}

// Synthesizer converts answer text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req *stagemodel.SynthesisRequest) (*stagemodel.SynthesisResult, error)
}
