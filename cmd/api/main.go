package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nvoronin/sprachtrainer/backend/internal/config"
	"github.com/nvoronin/sprachtrainer/backend/internal/handler"
	scenarioModel "github.com/nvoronin/sprachtrainer/backend/internal/model/scenario"
	"github.com/nvoronin/sprachtrainer/backend/internal/service/ai"
	"github.com/nvoronin/sprachtrainer/backend/internal/service/pipeline"
	"github.com/nvoronin/sprachtrainer/backend/internal/service/session"
	"github.com/nvoronin/sprachtrainer/backend/internal/service/stage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	scenarioStore := scenarioModel.NewMemoryStore(scenarioModel.Seed())
	sessionStore := session.NewStore(scenarioStore, cfg.Pipeline.DefaultScenario)

	recognizer := stage.NewRecognitionClient(cfg.Stages.RecognitionURL, cfg.Stages.Timeout)
	synthesizer := stage.NewSynthesisClient(cfg.Stages.SynthesisURL, cfg.Stages.Timeout)

	// Generation runs in-process when Ark credentials are configured,
	// otherwise against the remote generation service.
	var generator stage.Generator = stage.NewGenerationClient(cfg.Stages.GenerationURL, cfg.Stages.Timeout)
	if cfg.AI.Enabled() {
		arkGenerator, err := ai.NewGenerator(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize Ark generator: %v", err)
			log.Println("falling back to the remote generation service")
		} else {
			generator = arkGenerator
			log.Println("Ark generation model initialized successfully")
		}
	}

	orchestrator := pipeline.New(
		sessionStore,
		scenarioStore,
		recognizer,
		generator,
		synthesizer,
		stage.Retrier{Attempts: cfg.Pipeline.RetryAttempts, Delay: cfg.Pipeline.RetryDelay},
		pipeline.Options{
			DefaultVoice: cfg.Pipeline.DefaultVoice,
			Language:     cfg.Pipeline.Language,
			MaxHistory:   cfg.Pipeline.MaxHistory,
		},
	)

	router := handler.NewRouter(scenarioStore, orchestrator)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Sprachtrainer backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
