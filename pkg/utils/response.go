package utils

import (
	"encoding/json"
	"log"
	"net/http"
)

// ErrorPayload is the body of every error response: a stable kind for
// programmatic handling plus a human-readable message.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// RespondError writes a structured error response.
func RespondError(w http.ResponseWriter, status int, kind, message string) {
	RespondJSON(w, status, map[string]ErrorPayload{
		"error": {Kind: kind, Message: message},
	})
}
