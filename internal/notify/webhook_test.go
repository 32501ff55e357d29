package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/barrdunn/dutywatch-backend/internal/core"
)

func testAttempt(t *testing.T) (core.PairingKey, core.Attempt) {
	t.Helper()
	report, err := core.ParseTime("2024-01-10T06:00:00Z")
	if err != nil {
		t.Fatalf("ParseTime: %v", err)
	}
	at := report.Add(-2 * time.Hour)
	return core.PairingKey{PairingID: "W3086", ReportTime: report}, core.Attempt{
		ID:    core.AttemptID(core.AttemptCall, at),
		Kind:  core.AttemptCall,
		At:    at,
		Label: "call escalation (2 rings)",
		Rings: 2,
	}
}

func TestWebhookDispatch_PostsAttempt(t *testing.T) {
	var got webhookPayload
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
	}))
	defer ts.Close()

	key, attempt := testAttempt(t)
	hook := NewWebhook(ts.URL, time.Second)
	if err := hook.Dispatch(context.Background(), key, attempt); err != nil {
		t.Fatalf("Dispatch() unexpected error: %v", err)
	}
	if got.PairingID != "W3086" || got.Kind != "call" || got.Rings != 2 {
		t.Errorf("payload = %+v", got)
	}
	if got.AttemptID != attempt.ID {
		t.Errorf("attempt_id = %q, want %q", got.AttemptID, attempt.ID)
	}
}

func TestWebhookDispatch_Non2xxFails(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	key, attempt := testAttempt(t)
	hook := NewWebhook(ts.URL, time.Second)
	if err := hook.Dispatch(context.Background(), key, attempt); err == nil {
		t.Fatal("Dispatch() expected error for 500 response")
	}
}

func TestSimulatorDispatch_CanceledContext(t *testing.T) {
	key, attempt := testAttempt(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sim := NewSimulator(nil)
	if err := sim.Dispatch(ctx, key, attempt); err == nil {
		t.Fatal("Dispatch() expected context error for canceled call")
	}
}

func TestSimulatorDispatch_Push(t *testing.T) {
	key, _ := testAttempt(t)
	push := core.Attempt{
		ID:    core.AttemptID(core.AttemptPush, key.ReportTime.Add(-12*time.Hour)),
		Kind:  core.AttemptPush,
		At:    key.ReportTime.Add(-12 * time.Hour),
		Label: "window opened",
	}

	sim := NewSimulator(nil)
	if err := sim.Dispatch(context.Background(), key, push); err != nil {
		t.Fatalf("Dispatch() unexpected error: %v", err)
	}
}
