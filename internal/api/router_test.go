package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"voicedesk/agent/internal/booking"
	"voicedesk/agent/internal/classify"
	"voicedesk/agent/internal/config"
	"voicedesk/agent/internal/scheduling"
	"voicedesk/agent/internal/session"
	"voicedesk/agent/internal/store"
)

type mockClassifier struct{}

func (m *mockClassifier) Classify(_ context.Context, _ string, _ booking.Snapshot) (classify.Result, error) {
	return classify.Result{Intent: booking.IntentHours, Confidence: 0.9}, nil
}

type mockScheduler struct{}

func (m *mockScheduler) CreateAppointment(_ context.Context, _ booking.AppointmentDraft) (scheduling.Appointment, error) {
	return scheduling.Appointment{ID: "apt-1", Status: "scheduled"}, nil
}
func (m *mockScheduler) ScheduleCallback(_ context.Context, _ booking.CallbackDraft) (string, error) {
	return "cb-1", nil
}
func (m *mockScheduler) IsAvailable(_ context.Context, _ booking.AppointmentDraft) (bool, error) {
	return true, nil
}

func newTestServer(t *testing.T) (*httptest.Server, config.Config) {
	t.Helper()
	var cfg config.Config
	cfg.Intent.MinConfidence = 0.5
	cfg.Booking.ConfirmThreshold = 3
	cfg.Booking.RetryCeiling = 5
	cfg.Booking.DigressionCap = 5
	cfg.Booking.TurnTimeoutMs = 1500
	cfg.Org.Name = "Glow Salon"
	cfg.Org.Services = "Hair Styling"
	cfg.Org.Hours = "9am to 5pm"
	cfg.Org.Greeting = "Thanks for calling Glow Salon."
	cfg.Gateway.TokenSecret = "test-secret"
	cfg.Gateway.TokenTTLMin = 30

	st := store.New()
	mgr := session.NewManager(cfg, st, &mockClassifier{}, &mockScheduler{})
	srv := httptest.NewServer(NewRouter(NewHandlers(cfg, st, mgr)))
	t.Cleanup(srv.Close)
	return srv, cfg
}

func TestUnknownSession404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/sessions/unknown/turns", "application/json", bytes.NewBufferString(`{"transcript":"hi"}`))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("turns: expected 404, got %d", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/sessions/unknown/end", "application/json", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("end: expected 404, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/sessions/unknown/events")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("events: expected 404, got %d", resp.StatusCode)
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/sessions", "application/json", bytes.NewBufferString(`{"call_id":"c-1"}`))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create: expected 200, got %d", resp.StatusCode)
	}
	var created struct {
		SessionID string `json:"session_id"`
		Greeting  string `json:"greeting"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	resp.Body.Close()
	if created.SessionID == "" {
		t.Fatalf("no session id")
	}
	if created.Greeting != "Thanks for calling Glow Salon." {
		t.Fatalf("greeting = %q", created.Greeting)
	}

	resp, err = http.Post(srv.URL+"/sessions/"+created.SessionID+"/turns", "application/json",
		bytes.NewBufferString(`{"transcript":"what are your hours","turn_index":0}`))
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("turn: expected 200, got %d", resp.StatusCode)
	}
	var turn session.TurnOutput
	if err := json.NewDecoder(resp.Body).Decode(&turn); err != nil {
		t.Fatalf("decode turn: %v", err)
	}
	resp.Body.Close()
	if turn.Response == "" {
		t.Fatalf("empty turn response")
	}

	resp, err = http.Get(srv.URL + "/sessions/" + created.SessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err = http.Post(srv.URL+"/sessions/"+created.SessionID+"/end", "application/json", nil)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("end: expected 200, got %d", resp.StatusCode)
	}
	var ended struct {
		OK        bool `json:"ok"`
		Telemetry struct {
			TurnCount int    `json:"turn_count"`
			Outcome   string `json:"outcome"`
		} `json:"telemetry"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ended); err != nil {
		t.Fatalf("decode end: %v", err)
	}
	resp.Body.Close()
	if !ended.OK || ended.Telemetry.TurnCount != 1 {
		t.Fatalf("end response = %+v", ended)
	}
}

func TestMintGatewayToken(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := http.Post(srv.URL+"/sessions", "application/json", nil)
	var created struct {
		SessionID string `json:"session_id"`
	}
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()

	resp, err := http.Post(srv.URL+"/sessions/"+created.SessionID+"/gateway-token", "application/json", nil)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mint: expected 200, got %d", resp.StatusCode)
	}
	var minted struct {
		Token   string `json:"token"`
		Expires int64  `json:"expires"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&minted); err != nil {
		t.Fatalf("decode mint: %v", err)
	}
	resp.Body.Close()
	if minted.Token == "" || minted.Expires == 0 {
		t.Fatalf("mint response = %+v", minted)
	}
}

func TestTurnRejectsEmptyTranscript(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := http.Post(srv.URL+"/sessions", "application/json", nil)
	var created struct {
		SessionID string `json:"session_id"`
	}
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()

	resp, err := http.Post(srv.URL+"/sessions/"+created.SessionID+"/turns", "application/json",
		bytes.NewBufferString(`{"transcript":""}`))
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
