package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nvoronin/sprachtrainer/backend/internal/model/dialogue"
	"github.com/nvoronin/sprachtrainer/backend/internal/service/pipeline"
	"github.com/nvoronin/sprachtrainer/backend/internal/service/session"
	"github.com/nvoronin/sprachtrainer/backend/internal/service/stage"
	"github.com/nvoronin/sprachtrainer/backend/pkg/utils"
)

// DialogueService abstracts the pipeline for testing and replacement.
type DialogueService interface {
	StartSession(ctx context.Context, sessionID, scenarioID string) (*dialogue.SessionInfo, error)
	RunTurn(ctx context.Context, req *dialogue.TurnRequest) (*dialogue.TurnResult, error)
	EndSession(ctx context.Context, sessionID string) (string, error)
	Session(ctx context.Context, sessionID string) (*session.Session, error)
}

// Handler exposes the dialogue pipeline over HTTP.
type Handler struct {
	svc DialogueService
}

// New creates the dialogue handler.
func New(svc DialogueService) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes wires the session and dialogue endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleStartSession)
	r.Post("/session/{sessionID}/end", h.handleEndSession)
	r.Post("/dialogue", h.handleDialogue)

	wsHandler := NewWebSocketHandler(h.svc)
	wsHandler.RegisterWebSocketRoutes(r)
}

// handleStartSession explicitly creates a session. Both fields are
// optional; an empty body means "generated id, default scenario".
func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID  string `json:"sessionId"`
		ScenarioID string `json:"scenarioId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, "invalid_input", "invalid request body")
		return
	}

	info, err := h.svc.StartSession(r.Context(), payload.SessionID, payload.ScenarioID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, info)
}

// handleDialogue runs one full pipeline turn from an uploaded audio
// file. The session is created implicitly on first reference.
func (h *Handler) handleDialogue(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil { // 32MB max
		utils.RespondError(w, http.StatusBadRequest, "invalid_input", "failed to parse multipart form")
		return
	}

	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid_input", "audio file is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid_input", "failed to read audio payload")
		return
	}

	req := &dialogue.TurnRequest{
		SessionID:  r.FormValue("sessionId"),
		ScenarioID: r.FormValue("scenarioId"),
		Voice:      r.FormValue("voice"),
		Language:   r.FormValue("language"),
		Format:     inferAudioFormat(header.Filename),
		Audio:      audio,
	}

	result, err := h.svc.RunTurn(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}

// handleEndSession renders the transcript and disposes of the session.
func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "invalid_input", "sessionID is required")
		return
	}

	transcript, err := h.svc.EndSession(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"sessionId":  sessionID,
		"transcript": transcript,
	})
}

// respondServiceError maps pipeline errors onto the stable error kinds
// of the HTTP contract.
func respondServiceError(w http.ResponseWriter, err error) {
	var unavailable *stage.UnavailableError

	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "session_not_found", "session not found")
	case errors.Is(err, session.ErrUnknownScenario):
		utils.RespondError(w, http.StatusBadRequest, "unknown_scenario", "unknown scenario")
	case errors.Is(err, pipeline.ErrEmptyAudio):
		utils.RespondError(w, http.StatusBadRequest, "invalid_input", "audio payload is required")
	case errors.As(err, &unavailable):
		utils.RespondError(w, http.StatusBadGateway, "stage_unavailable",
			string(unavailable.Stage)+" stage unavailable")
	default:
		log.Printf("[dialogue] unexpected error: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// inferAudioFormat guesses the audio container from the filename.
func inferAudioFormat(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".mp3":
		return "mp3"
	case ".wav":
		return "wav"
	case ".webm":
		return "webm"
	case ".m4a":
		return "m4a"
	case ".ogg":
		return "ogg"
	default:
		return "wav"
	}
}
