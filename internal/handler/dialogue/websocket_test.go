package dialogue_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nvoronin/sprachtrainer/backend/internal/model/dialogue"
	"github.com/nvoronin/sprachtrainer/backend/internal/service/session"
)

type wsEvent struct {
	Type      string         `json:"type"`
	SessionID string         `json:"sessionId"`
	Data      map[string]any `json:"data"`
}

func dialWebSocket(t *testing.T, server *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/dialogue/ws/" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) wsEvent {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var event wsEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read websocket event: %v", err)
	}
	return event
}

func TestWebSocketRejectsUnknownSession(t *testing.T) {
	svc := &fakeService{sessionErr: session.ErrSessionNotFound}
	server := httptest.NewServer(newTestRouter(svc))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/dialogue/ws/gone"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected handshake failure for unknown session")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before upgrade, got %+v", resp)
	}
}

func TestWebSocketTurnRoundTrip(t *testing.T) {
	svc := &fakeService{
		session: &session.Session{ID: "S1", ScenarioID: "restaurant"},
		turnResult: &dialogue.TurnResult{
			SessionID:      "S1",
			RecognizedText: "Ich hätte gern die Karte",
			AnswerText:     "Natürlich, einen Moment bitte.",
			VoiceID:        "de_DE-thorsten-high",
			AudioData:      []byte("wav-bytes"),
			Language:       "de",
		},
	}
	server := httptest.NewServer(newTestRouter(svc))
	defer server.Close()

	conn := dialWebSocket(t, server, "S1")
	defer conn.Close()

	if event := readEvent(t, conn); event.Data["event"] != "connected" {
		t.Fatalf("expected connected event first, got %+v", event)
	}

	audio, _ := json.Marshal(map[string]any{
		"audioData": []byte("opus"),
		"format":    "webm",
		"isFinal":   true,
	})
	if err := conn.WriteJSON(map[string]any{
		"type":      "audio",
		"sessionId": "S1",
		"data":      json.RawMessage(audio),
	}); err != nil {
		t.Fatalf("write audio message: %v", err)
	}

	recognized := readEvent(t, conn)
	if recognized.Data["event"] != "recognized" || recognized.Data["text"] != "Ich hätte gern die Karte" {
		t.Fatalf("unexpected recognized event: %+v", recognized)
	}

	answer := readEvent(t, conn)
	if answer.Data["event"] != "answer" || answer.Data["text"] != "Natürlich, einen Moment bitte." {
		t.Fatalf("unexpected answer event: %+v", answer)
	}

	audioEvent := readEvent(t, conn)
	if audioEvent.Data["event"] != "audio" || audioEvent.Data["voice"] != "de_DE-thorsten-high" {
		t.Fatalf("unexpected audio event: %+v", audioEvent)
	}

	if svc.turnReq == nil {
		t.Fatal("service never saw the buffered turn")
	}
	if svc.turnReq.Format != "webm" || string(svc.turnReq.Audio) != "opus" {
		t.Fatalf("unexpected turn request: %+v", svc.turnReq)
	}
}

func TestWebSocketSessionMismatch(t *testing.T) {
	svc := &fakeService{session: &session.Session{ID: "S1"}}
	server := httptest.NewServer(newTestRouter(svc))
	defer server.Close()

	conn := dialWebSocket(t, server, "S1")
	defer conn.Close()

	readEvent(t, conn) // connected

	if err := conn.WriteJSON(map[string]any{
		"type":      "audio",
		"sessionId": "S2",
		"data":      json.RawMessage(`{"isFinal":true}`),
	}); err != nil {
		t.Fatalf("write message: %v", err)
	}

	event := readEvent(t, conn)
	if event.Type != "error" || event.Data["message"] != "session mismatch" {
		t.Fatalf("expected session mismatch error, got %+v", event)
	}
}
