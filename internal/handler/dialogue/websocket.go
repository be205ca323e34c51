package dialogue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/nvoronin/sprachtrainer/backend/internal/model/dialogue"
	"github.com/nvoronin/sprachtrainer/backend/internal/service/session"
	"github.com/nvoronin/sprachtrainer/backend/internal/service/stage"
)

// WebSocketHandler serves the realtime variant of the dialogue
// endpoint: audio chunks in, recognized/answer/audio events out.
type WebSocketHandler struct {
	svc      DialogueService
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates the websocket dialogue handler.
func NewWebSocketHandler(svc DialogueService) *WebSocketHandler {
	return &WebSocketHandler{
		svc: svc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterWebSocketRoutes wires the websocket route.
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/dialogue/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// AudioMessage carries one chunk of recorded audio from the client.
type AudioMessage struct {
	AudioData []byte `json:"audioData"`
	Format    string `json:"format"`
	Language  string `json:"language"`
	IsFinal   bool   `json:"isFinal"`
}

// ConfigMessage adjusts per-connection synthesis settings.
type ConfigMessage struct {
	Voice    string `json:"voice"`
	Language string `json:"language"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type connectionState struct {
	sessionID   string
	voice       string
	language    string
	audioFormat string
	buffer      bytes.Buffer
}

// handleWebSocket upgrades the connection and loops over inbound
// messages. The session must already exist; the websocket path never
// creates one implicitly.
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "sessionID is required", http.StatusBadRequest)
		return
	}

	if _, err := h.svc.Session(r.Context(), sessionID); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, "session lookup failed", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[websocket] new connection for session: %s", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	go h.pingLoop(ctx, conn)

	state := &connectionState{sessionID: sessionID}

	h.sendEvent(conn, sessionID, "connected", map[string]any{
		"sessionId": sessionID,
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var msg inboundMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("[websocket] read error: %v", err)
				}
				return
			}

			conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			if msg.SessionID != "" && msg.SessionID != sessionID {
				h.sendError(conn, "session mismatch")
				continue
			}

			h.handleMessage(ctx, conn, state, &msg)
		}
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, conn *websocket.Conn, state *connectionState, msg *inboundMessage) {
	switch msg.Type {
	case "audio":
		h.handleAudioMessage(ctx, conn, state, msg.Data)
	case "config":
		h.handleConfigMessage(conn, state, msg.Data)
	default:
		h.sendError(conn, "unsupported message type: "+msg.Type)
	}
}

func (h *WebSocketHandler) handleAudioMessage(ctx context.Context, conn *websocket.Conn, state *connectionState, raw json.RawMessage) {
	var audio AudioMessage
	if err := json.Unmarshal(raw, &audio); err != nil {
		h.sendError(conn, "invalid audio payload")
		return
	}

	if len(audio.AudioData) > 0 {
		written, _ := state.buffer.Write(audio.AudioData)
		log.Printf("[websocket] buffered audio chunk session=%s size=%d total=%d", state.sessionID, written, state.buffer.Len())
	}
	if audio.Format != "" {
		state.audioFormat = audio.Format
	}
	if audio.Language != "" {
		state.language = audio.Language
	}

	if audio.IsFinal {
		h.runBufferedTurn(ctx, conn, state)
	}
}

// runBufferedTurn hands the accumulated audio to the pipeline and
// relays each part of the result as its own event.
func (h *WebSocketHandler) runBufferedTurn(ctx context.Context, conn *websocket.Conn, state *connectionState) {
	audioBytes := append([]byte(nil), state.buffer.Bytes()...)
	state.buffer.Reset()

	if len(audioBytes) == 0 {
		return
	}

	format := state.audioFormat
	if format == "" {
		format = "wav"
	}

	log.Printf("[websocket] running turn session=%s format=%s bytes=%d", state.sessionID, format, len(audioBytes))

	result, err := h.svc.RunTurn(ctx, &dialogue.TurnRequest{
		SessionID: state.sessionID,
		Voice:     state.voice,
		Language:  state.language,
		Format:    format,
		Audio:     audioBytes,
	})
	if err != nil {
		var unavailable *stage.UnavailableError
		if errors.As(err, &unavailable) {
			h.sendError(conn, string(unavailable.Stage)+" stage unavailable")
		} else {
			h.sendError(conn, "turn failed")
			log.Printf("[websocket] turn failed session=%s: %v", state.sessionID, err)
		}
		return
	}

	h.sendEvent(conn, state.sessionID, "recognized", map[string]any{
		"text":     result.RecognizedText,
		"language": result.Language,
	})
	h.sendEvent(conn, state.sessionID, "answer", map[string]any{
		"text": result.AnswerText,
	})
	h.sendEvent(conn, state.sessionID, "audio", map[string]any{
		"audioData": result.AudioData, // base64 on the wire
		"voice":     result.VoiceID,
	})
}

func (h *WebSocketHandler) handleConfigMessage(conn *websocket.Conn, state *connectionState, raw json.RawMessage) {
	var cfg ConfigMessage
	if err := json.Unmarshal(raw, &cfg); err != nil {
		h.sendError(conn, "invalid config payload")
		return
	}

	if cfg.Voice != "" {
		state.voice = cfg.Voice
	}
	if cfg.Language != "" {
		state.language = cfg.Language
	}

	h.sendEvent(conn, state.sessionID, "config", map[string]any{
		"voice":    state.voice,
		"language": state.language,
	})
}

func (h *WebSocketHandler) sendEvent(conn *websocket.Conn, sessionID, event string, data map[string]any) {
	data["event"] = event
	msg := outgoingMessage{
		Type:      "result",
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[websocket] write event failed: %v", err)
	}
}

func (h *WebSocketHandler) sendError(conn *websocket.Conn, message string) {
	msg := outgoingMessage{
		Type:      "error",
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().Unix(),
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[websocket] write error failed: %v", err)
	}
}

// pingLoop keeps the connection alive between turns.
func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
