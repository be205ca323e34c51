package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	dialogueHandler "github.com/nvoronin/sprachtrainer/backend/internal/handler/dialogue"
	scenarioHandler "github.com/nvoronin/sprachtrainer/backend/internal/handler/scenario"
	middlewarePkg "github.com/nvoronin/sprachtrainer/backend/internal/middleware"
	scenarioModel "github.com/nvoronin/sprachtrainer/backend/internal/model/scenario"
	"github.com/nvoronin/sprachtrainer/backend/pkg/utils"
)

// NewRouter wires HTTP routes to the dialogue pipeline.
func NewRouter(scenarios scenarioModel.Store, svc dialogueHandler.DialogueService) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Route("/api", func(api chi.Router) {
		scenarioHandler.New(scenarios).RegisterRoutes(api)
		dialogueHandler.New(svc).RegisterRoutes(api)

		api.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{
				"status":  "healthy",
				"service": "sprachtrainer",
			})
		})
	})

	return r
}
