package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// dialogtester exercises a running backend end to end: start a session,
// send one recorded utterance through the pipeline, save the reply
// audio and print the final transcript.
func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	server := flag.String("server", "http://localhost:8080", "backend base URL")
	audioPath := flag.String("audio", "", "path of the wav/mp3 file to send")
	scenarioID := flag.String("scenario", "", "scenario id, empty for the server default")
	voice := flag.String("voice", "", "synthesis voice id, empty for the server default")
	sessionID := flag.String("session", "", "custom session id, empty to let the server generate one")
	outPath := flag.String("out", "", "output path for the reply audio (default next to the input)")
	keep := flag.Bool("keep", false, "keep the session open instead of ending it")
	timeout := flag.Duration("timeout", 90*time.Second, "request timeout")

	flag.Parse()

	if *audioPath == "" {
		flag.Usage()
		log.Fatal("an input audio file is required via -audio")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := &http.Client{}

	sid, title, err := startSession(ctx, client, *server, *sessionID, *scenarioID)
	if err != nil {
		log.Fatalf("start session failed: %v", err)
	}
	log.Printf("session started id=%s scenario=%q", sid, title)

	result, err := runTurn(ctx, client, *server, sid, *voice, *audioPath)
	if err != nil {
		log.Fatalf("dialogue turn failed: %v", err)
	}

	log.Printf("recognized: %s", result.RecognizedText)
	log.Printf("answer:     %s", result.AnswerText)

	out := *outPath
	if out == "" {
		base := filepath.Base(*audioPath)
		out = filepath.Join(filepath.Dir(*audioPath), "reply-"+base)
	}
	if err := os.WriteFile(out, result.AudioData, 0o644); err != nil {
		log.Fatalf("failed to write reply audio: %v", err)
	}
	log.Printf("reply audio written to %s (%d bytes, voice=%s)", out, len(result.AudioData), result.VoiceID)

	if *keep {
		log.Printf("session %s left open", sid)
		return
	}

	transcript, err := endSession(ctx, client, *server, sid)
	if err != nil {
		log.Fatalf("end session failed: %v", err)
	}
	fmt.Println("--- transcript ---")
	fmt.Println(transcript)
}

type turnResult struct {
	SessionID      string `json:"sessionId"`
	RecognizedText string `json:"recognizedText"`
	AnswerText     string `json:"answerText"`
	VoiceID        string `json:"voiceId"`
	AudioData      []byte `json:"audioData"`
}

func startSession(ctx context.Context, client *http.Client, server, sessionID, scenarioID string) (string, string, error) {
	payload, err := json.Marshal(map[string]string{
		"sessionId":  sessionID,
		"scenarioId": scenarioID,
	})
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+"/api/session", bytes.NewReader(payload))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	var info struct {
		SessionID     string `json:"sessionId"`
		ScenarioTitle string `json:"scenarioTitle"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", "", err
	}
	return info.SessionID, info.ScenarioTitle, nil
}

func runTurn(ctx context.Context, client *http.Client, server, sessionID, voice, audioPath string) (*turnResult, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, err
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("audio", filepath.Base(audioPath))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, err
	}
	if err := writer.WriteField("sessionId", sessionID); err != nil {
		return nil, err
	}
	if voice != "" {
		if err := writer.WriteField("voice", voice); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+"/api/dialogue", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, payload)
	}

	var result turnResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func endSession(ctx context.Context, client *http.Client, server, sessionID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+"/api/session/"+sessionID+"/end", nil)
	if err != nil {
		return "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Transcript string `json:"transcript"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	return payload.Transcript, nil
}
