package scenario

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nvoronin/sprachtrainer/backend/internal/model/scenario"
	"github.com/nvoronin/sprachtrainer/backend/pkg/utils"
)

// Handler exposes the configured scenarios over HTTP.
type Handler struct {
	scenarios scenario.Store
}

// New creates the scenario handler.
func New(scenarios scenario.Store) *Handler {
	return &Handler{scenarios: scenarios}
}

// RegisterRoutes wires the scenario listing endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/scenarios", h.handleListScenarios)
}

type summary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// handleListScenarios lists scenario ids and titles in seed order.
func (h *Handler) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	items := h.scenarios.List()
	summaries := make([]summary, 0, len(items))
	for _, item := range items {
		summaries = append(summaries, summary{ID: item.ID, Title: item.Title})
	}

	utils.RespondJSON(w, http.StatusOK, summaries)
}
