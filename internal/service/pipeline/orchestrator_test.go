package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/nvoronin/sprachtrainer/backend/internal/model/dialogue"
	scenariomodel "github.com/nvoronin/sprachtrainer/backend/internal/model/scenario"
	stagemodel "github.com/nvoronin/sprachtrainer/backend/internal/model/stage"
	"github.com/nvoronin/sprachtrainer/backend/internal/service/pipeline"
	"github.com/nvoronin/sprachtrainer/backend/internal/service/session"
	"github.com/nvoronin/sprachtrainer/backend/internal/service/stage"
)

type fakeRecognizer struct {
	mu    sync.Mutex
	texts []string
	calls int
	fail  bool
}

func (f *fakeRecognizer) Recognize(_ context.Context, req *stagemodel.RecognitionRequest) (*stagemodel.RecognitionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, &stage.TransportError{Stage: stage.Recognition, Err: errors.New("asr down")}
	}
	text := ""
	if f.calls < len(f.texts) {
		text = f.texts[f.calls]
	}
	f.calls++
	return &stagemodel.RecognitionResult{Text: text, Language: req.Language}, nil
}

type fakeGenerator struct {
	mu       sync.Mutex
	answer   string
	fail     bool
	requests []*stagemodel.GenerationRequest
}

func (f *fakeGenerator) Generate(_ context.Context, req *stagemodel.GenerationRequest) (*stagemodel.GenerationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.fail {
		return nil, &stage.TransportError{Stage: stage.Generation, Err: errors.New("llm down")}
	}
	answer := f.answer
	if answer == "" {
		answer = "Echo: " + req.Prompt
	}
	return &stagemodel.GenerationResult{Answer: answer}, nil
}

type fakeSynthesizer struct {
	mu     sync.Mutex
	fail   bool
	voices []string
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, req *stagemodel.SynthesisRequest) (*stagemodel.SynthesisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, &stage.TransportError{Stage: stage.Synthesis, Err: errors.New("tts down")}
	}
	f.voices = append(f.voices, req.Voice)
	return &stagemodel.SynthesisResult{Audio: []byte("wav:" + req.Text), Format: "wav"}, nil
}

type fixture struct {
	orchestrator *pipeline.Orchestrator
	sessions     *session.Store
	recognizer   *fakeRecognizer
	generator    *fakeGenerator
	synthesizer  *fakeSynthesizer
}

func newFixture(opts pipeline.Options) *fixture {
	scenarios := scenariomodel.NewMemoryStore(scenariomodel.Seed())
	sessions := session.NewStore(scenarios, "restaurant")
	recognizer := &fakeRecognizer{}
	generator := &fakeGenerator{}
	synthesizer := &fakeSynthesizer{}

	if opts.DefaultVoice == "" {
		opts.DefaultVoice = "de_DE-thorsten-high"
	}
	if opts.MaxHistory == 0 {
		opts.MaxHistory = 8
	}

	orchestrator := pipeline.New(
		sessions, scenarios,
		recognizer, generator, synthesizer,
		stage.Retrier{Attempts: 2, Delay: 0},
		opts,
	)

	return &fixture{
		orchestrator: orchestrator,
		sessions:     sessions,
		recognizer:   recognizer,
		generator:    generator,
		synthesizer:  synthesizer,
	}
}

func TestRunTurnHappyPath(t *testing.T) {
	fx := newFixture(pipeline.Options{})
	fx.recognizer.texts = []string{"Ich möchte bestellen"}
	fx.generator.answer = "Was möchten Sie bestellen?"
	ctx := context.Background()

	result, err := fx.orchestrator.RunTurn(ctx, &dialogue.TurnRequest{
		SessionID: "S1",
		Audio:     []byte("riff"),
		Format:    "wav",
	})
	if err != nil {
		t.Fatalf("RunTurn err: %v", err)
	}

	if result.RecognizedText != "Ich möchte bestellen" {
		t.Fatalf("unexpected recognized text: %q", result.RecognizedText)
	}
	if result.AnswerText != "Was möchten Sie bestellen?" {
		t.Fatalf("unexpected answer: %q", result.AnswerText)
	}
	if result.VoiceID != "de_DE-thorsten-high" {
		t.Fatalf("expected default voice, got %q", result.VoiceID)
	}
	if string(result.AudioData) != "wav:Was möchten Sie bestellen?" {
		t.Fatalf("unexpected audio: %q", result.AudioData)
	}

	sess, err := fx.sessions.Get(ctx, "S1")
	if err != nil {
		t.Fatalf("session should exist after implicit creation: %v", err)
	}
	if got := len(sess.History()); got != 2 {
		t.Fatalf("expected 2 history turns, got %d", got)
	}
}

func TestRunTurnHistoryAlternates(t *testing.T) {
	fx := newFixture(pipeline.Options{})
	fx.recognizer.texts = []string{"eins", "zwei", "drei"}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := fx.orchestrator.RunTurn(ctx, &dialogue.TurnRequest{SessionID: "S1", Audio: []byte("riff")}); err != nil {
			t.Fatalf("RunTurn %d err: %v", i, err)
		}
	}

	sess, _ := fx.sessions.Get(ctx, "S1")
	history := sess.History()
	if len(history) != 6 {
		t.Fatalf("expected 6 turns after 3 successful calls, got %d", len(history))
	}
	for i, turn := range history {
		want := dialogue.RoleUser
		if i%2 == 1 {
			want = dialogue.RoleAssistant
		}
		if turn.Role != want {
			t.Fatalf("turn %d: expected %s, got %s", i, want, turn.Role)
		}
	}
	if history[4].Content != "drei" {
		t.Fatalf("unexpected final user turn: %q", history[4].Content)
	}
}

func TestRunTurnGenerationFailureLeavesHistoryUntouched(t *testing.T) {
	fx := newFixture(pipeline.Options{})
	fx.recognizer.texts = []string{"eins", "zwei"}
	ctx := context.Background()

	if _, err := fx.orchestrator.RunTurn(ctx, &dialogue.TurnRequest{SessionID: "S1", Audio: []byte("riff")}); err != nil {
		t.Fatalf("first RunTurn err: %v", err)
	}

	sess, _ := fx.sessions.Get(ctx, "S1")
	before := sess.History()

	fx.generator.fail = true
	_, err := fx.orchestrator.RunTurn(ctx, &dialogue.TurnRequest{SessionID: "S1", Audio: []byte("riff")})
	if !stage.IsUnavailable(err) {
		t.Fatalf("expected stage unavailable, got %v", err)
	}

	after := sess.History()
	if len(after) != len(before) {
		t.Fatalf("history changed on failed generation: %d -> %d turns", len(before), len(after))
	}
}

func TestRunTurnSynthesisFailureKeepsTextTurn(t *testing.T) {
	fx := newFixture(pipeline.Options{})
	fx.recognizer.texts = []string{"hallo"}
	fx.synthesizer.fail = true
	ctx := context.Background()

	_, err := fx.orchestrator.RunTurn(ctx, &dialogue.TurnRequest{SessionID: "S1", Audio: []byte("riff")})
	if !stage.IsUnavailable(err) {
		t.Fatalf("expected stage unavailable, got %v", err)
	}

	// The text exchange was already valid when synthesis failed.
	sess, _ := fx.sessions.Get(ctx, "S1")
	if got := len(sess.History()); got != 2 {
		t.Fatalf("expected committed text turn, got %d history entries", got)
	}
}

func TestRunTurnWindowsHistory(t *testing.T) {
	fx := newFixture(pipeline.Options{MaxHistory: 4})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		fx.recognizer.texts = append(fx.recognizer.texts, fmt.Sprintf("satz %d", i))
		if _, err := fx.orchestrator.RunTurn(ctx, &dialogue.TurnRequest{SessionID: "S1", Audio: []byte("riff")}); err != nil {
			t.Fatalf("RunTurn %d err: %v", i, err)
		}
	}

	last := fx.generator.requests[len(fx.generator.requests)-1]
	if len(last.History) != 4 {
		t.Fatalf("expected windowed history of 4 turns, got %d", len(last.History))
	}
	if last.History[0].Content != "satz 2" {
		t.Fatalf("window should start at the oldest retained turn, got %q", last.History[0].Content)
	}
	if last.System == "" {
		t.Fatal("generation request must carry the scenario system prompt")
	}
}

func TestRunTurnEmptyTranscriptStillAnswers(t *testing.T) {
	fx := newFixture(pipeline.Options{})
	fx.recognizer.texts = []string{""}
	ctx := context.Background()

	result, err := fx.orchestrator.RunTurn(ctx, &dialogue.TurnRequest{SessionID: "S1", Audio: []byte("riff")})
	if err != nil {
		t.Fatalf("RunTurn err: %v", err)
	}
	if result.RecognizedText != "" {
		t.Fatalf("expected empty transcript, got %q", result.RecognizedText)
	}

	sess, _ := fx.sessions.Get(ctx, "S1")
	history := sess.History()
	if len(history) != 2 || history[0].Content != "" {
		t.Fatalf("expected committed empty user turn, got %v", history)
	}
}

func TestRunTurnRejectsMissingAudio(t *testing.T) {
	fx := newFixture(pipeline.Options{})

	if _, err := fx.orchestrator.RunTurn(context.Background(), &dialogue.TurnRequest{SessionID: "S1"}); !errors.Is(err, pipeline.ErrEmptyAudio) {
		t.Fatalf("expected ErrEmptyAudio, got %v", err)
	}
	if fx.sessions.Len() != 0 {
		t.Fatal("invalid input must not create a session")
	}
}

func TestRunTurnUnknownScenario(t *testing.T) {
	fx := newFixture(pipeline.Options{})

	_, err := fx.orchestrator.RunTurn(context.Background(), &dialogue.TurnRequest{
		SessionID:  "S1",
		ScenarioID: "mondlandung",
		Audio:      []byte("riff"),
	})
	if !errors.Is(err, session.ErrUnknownScenario) {
		t.Fatalf("expected ErrUnknownScenario, got %v", err)
	}
}

func TestRunTurnVoiceOverride(t *testing.T) {
	fx := newFixture(pipeline.Options{})
	fx.recognizer.texts = []string{"hallo"}

	result, err := fx.orchestrator.RunTurn(context.Background(), &dialogue.TurnRequest{
		SessionID: "S1",
		Voice:     "de_DE-eva_k-x_low",
		Audio:     []byte("riff"),
	})
	if err != nil {
		t.Fatalf("RunTurn err: %v", err)
	}
	if result.VoiceID != "de_DE-eva_k-x_low" {
		t.Fatalf("expected requested voice, got %q", result.VoiceID)
	}
}

func TestConcurrentSessionsStayIsolated(t *testing.T) {
	fx := newFixture(pipeline.Options{})
	ctx := context.Background()

	const turns = 20
	var wg sync.WaitGroup
	for _, id := range []string{"A", "B"} {
		wg.Add(1)
		go func(sessionID string) {
			defer wg.Done()
			for i := 0; i < turns; i++ {
				if _, err := fx.orchestrator.RunTurn(ctx, &dialogue.TurnRequest{SessionID: sessionID, Audio: []byte("riff")}); err != nil {
					t.Errorf("session %s turn %d: %v", sessionID, i, err)
					return
				}
			}
		}(id)
	}
	wg.Wait()

	for _, id := range []string{"A", "B"} {
		sess, err := fx.sessions.Get(ctx, id)
		if err != nil {
			t.Fatalf("session %s missing: %v", id, err)
		}
		history := sess.History()
		if len(history) != 2*turns {
			t.Fatalf("session %s: expected %d turns, got %d", id, 2*turns, len(history))
		}
		for i, turn := range history {
			want := dialogue.RoleUser
			if i%2 == 1 {
				want = dialogue.RoleAssistant
			}
			if turn.Role != want {
				t.Fatalf("session %s turn %d: interleaved history", id, i)
			}
		}
	}
}

func TestEndSessionRendersTranscriptOnce(t *testing.T) {
	fx := newFixture(pipeline.Options{})
	fx.recognizer.texts = []string{"Ich möchte bestellen"}
	fx.generator.answer = "Was möchten Sie bestellen?"
	ctx := context.Background()

	if _, err := fx.orchestrator.RunTurn(ctx, &dialogue.TurnRequest{SessionID: "S1", Audio: []byte("riff")}); err != nil {
		t.Fatalf("RunTurn err: %v", err)
	}

	transcript, err := fx.orchestrator.EndSession(ctx, "S1")
	if err != nil {
		t.Fatalf("EndSession err: %v", err)
	}
	want := "user: Ich möchte bestellen\nassistant: Was möchten Sie bestellen?"
	if transcript != want {
		t.Fatalf("unexpected transcript:\n%s", transcript)
	}

	if _, err := fx.orchestrator.EndSession(ctx, "S1"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("second end must report ErrSessionNotFound, got %v", err)
	}
}

func TestStartSessionResolvesScenario(t *testing.T) {
	fx := newFixture(pipeline.Options{})
	ctx := context.Background()

	info, err := fx.orchestrator.StartSession(ctx, "", "bahnhof")
	if err != nil {
		t.Fatalf("StartSession err: %v", err)
	}
	if info.SessionID == "" {
		t.Fatal("expected generated session id")
	}
	if info.ScenarioID != "bahnhof" || info.ScenarioTitle != "Am Bahnhof" {
		t.Fatalf("unexpected scenario info: %+v", info)
	}

	if _, err := fx.orchestrator.StartSession(ctx, "", "mondlandung"); !errors.Is(err, session.ErrUnknownScenario) {
		t.Fatalf("expected ErrUnknownScenario, got %v", err)
	}
}
