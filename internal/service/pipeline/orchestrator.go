package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/nvoronin/sprachtrainer/backend/internal/model/dialogue"
	"github.com/nvoronin/sprachtrainer/backend/internal/model/scenario"
	stagemodel "github.com/nvoronin/sprachtrainer/backend/internal/model/stage"
	"github.com/nvoronin/sprachtrainer/backend/internal/service/session"
	"github.com/nvoronin/sprachtrainer/backend/internal/service/stage"
)

// ErrEmptyAudio rejects a turn request without an audio payload.
var ErrEmptyAudio = errors.New("audio payload is required")

// Options fixes the orchestrator's process-wide defaults.
type Options struct {
	DefaultVoice string
	Language     string
	MaxHistory   int
}

// Orchestrator drives one dialogue turn through recognition, generation
// and synthesis, and owns session start/end on top of the store.
type Orchestrator struct {
	sessions    *session.Store
	scenarios   scenario.Store
	recognizer  stage.Recognizer
	generator   stage.Generator
	synthesizer stage.Synthesizer
	retrier     stage.Retrier
	opts        Options
}

// New wires the orchestrator to its stages and stores.
func New(sessions *session.Store, scenarios scenario.Store, recognizer stage.Recognizer, generator stage.Generator, synthesizer stage.Synthesizer, retrier stage.Retrier, opts Options) *Orchestrator {
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = 8
	}

	return &Orchestrator{
		sessions:    sessions,
		scenarios:   scenarios,
		recognizer:  recognizer,
		generator:   generator,
		synthesizer: synthesizer,
		retrier:     retrier,
		opts:        opts,
	}
}

// StartSession explicitly provisions a session and reports the resolved
// scenario back to the caller.
func (o *Orchestrator) StartSession(ctx context.Context, sessionID, scenarioID string) (*dialogue.SessionInfo, error) {
	sess, err := o.sessions.Create(ctx, sessionID, scenarioID)
	if err != nil {
		return nil, err
	}

	scn, _ := o.scenarios.FindByID(sess.ScenarioID)
	return &dialogue.SessionInfo{
		SessionID:     sess.ID,
		ScenarioID:    sess.ScenarioID,
		ScenarioTitle: scn.Title,
	}, nil
}

// ListScenarios returns the configured scenarios in order.
func (o *Orchestrator) ListScenarios(_ context.Context) []scenario.Scenario {
	return o.scenarios.List()
}

// Session retrieves an existing session without creating one.
func (o *Orchestrator) Session(ctx context.Context, sessionID string) (*session.Session, error) {
	return o.sessions.Get(ctx, sessionID)
}

// RunTurn executes one dialogue turn. The session's turn lock is held
// across all three stage calls so concurrent turns on the same id
// serialize while other sessions keep moving. History is committed only
// after generation succeeds; a synthesis failure afterwards leaves the
// already valid text exchange in place.
func (o *Orchestrator) RunTurn(ctx context.Context, req *dialogue.TurnRequest) (*dialogue.TurnResult, error) {
	if req == nil || len(req.Audio) == 0 {
		return nil, ErrEmptyAudio
	}

	sess, err := o.sessions.GetOrCreate(ctx, req.SessionID, req.ScenarioID)
	if err != nil {
		return nil, err
	}

	release := sess.Acquire()
	defer release()

	language := req.Language
	if language == "" {
		language = o.opts.Language
	}

	recognized, err := stage.Execute(ctx, o.retrier, stage.Recognition, func(ctx context.Context) (*stagemodel.RecognitionResult, error) {
		return o.recognizer.Recognize(ctx, &stagemodel.RecognitionRequest{
			SessionID: sess.ID,
			Audio:     req.Audio,
			Format:    req.Format,
			Language:  language,
		})
	})
	if err != nil {
		return nil, err
	}
	// An empty transcript is still a valid turn; the assistant gets to
	// answer silence.

	scn, ok := o.scenarios.FindByID(sess.ScenarioID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", session.ErrUnknownScenario, sess.ScenarioID)
	}

	window := sess.Window(o.opts.MaxHistory)

	generated, err := stage.Execute(ctx, o.retrier, stage.Generation, func(ctx context.Context) (*stagemodel.GenerationResult, error) {
		return o.generator.Generate(ctx, &stagemodel.GenerationRequest{
			System:  scn.SystemPrompt,
			History: window,
			Prompt:  recognized.Text,
		})
	})
	if err != nil {
		return nil, err
	}

	sess.AppendExchange(recognized.Text, generated.Answer)

	voice := req.Voice
	if voice == "" {
		voice = o.opts.DefaultVoice
	}

	synthesized, err := stage.Execute(ctx, o.retrier, stage.Synthesis, func(ctx context.Context) (*stagemodel.SynthesisResult, error) {
		return o.synthesizer.Synthesize(ctx, &stagemodel.SynthesisRequest{
			Text:  generated.Answer,
			Voice: voice,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[pipeline] turn complete session=%s recognized=%d answer=%d audio=%d",
		sess.ID, len(recognized.Text), len(generated.Answer), len(synthesized.Audio))

	return &dialogue.TurnResult{
		SessionID:      sess.ID,
		RecognizedText: recognized.Text,
		AnswerText:     generated.Answer,
		VoiceID:        voice,
		AudioData:      synthesized.Audio,
		Language:       recognized.Language,
	}, nil
}

// EndSession renders the session's transcript and removes it from the
// store. A second end for the same id reports ErrSessionNotFound.
func (o *Orchestrator) EndSession(ctx context.Context, sessionID string) (string, error) {
	sess, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}

	// Wait for an in-flight turn before reading the final history.
	release := sess.Acquire()
	defer release()

	transcript := sess.Transcript()
	if err := o.sessions.Remove(ctx, sessionID); err != nil {
		return "", err
	}

	log.Printf("[pipeline] session ended id=%s turns=%d", sessionID, len(sess.History()))
	return transcript, nil
}
