package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCompleteHabitSendsKeyAndClientTime(t *testing.T) {
	var gotKey, gotAuth, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"current_progress":2,"goal_value":3,"streak":4,"cash_micros":120000000}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	at := time.Date(2025, 3, 4, 9, 30, 0, 0, time.UTC)
	out, err := c.CompleteHabit(context.Background(), "tok", "h-1", at, "idem-1")
	if err != nil {
		t.Fatalf("CompleteHabit: %v", err)
	}
	if gotPath != "/v1/habits/h-1/complete" {
		t.Fatalf("path = %s", gotPath)
	}
	if gotKey != "idem-1" || gotAuth != "Bearer tok" {
		t.Fatalf("headers key=%q auth=%q", gotKey, gotAuth)
	}
	if gotBody["client_time"] != "2025-03-04T09:30:00Z" {
		t.Fatalf("client_time = %v", gotBody["client_time"])
	}
	if out.CurrentProgress != 2 || out.Streak != 4 || out.CashMicros != 120_000_000 {
		t.Fatalf("unexpected result %+v", out)
	}
}

func TestAPIErrorIsNotOffline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"goal already completed for this period"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).UndoHabit(context.Background(), "tok", "h-1", "k")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusConflict || apiErr.Message != "goal already completed for this period" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
	if IsOffline(err) {
		t.Fatalf("api errors must not be treated as offline")
	}
}

func TestTransportErrorIsOffline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Habits(context.Background(), "tok")
	if err == nil || !IsOffline(err) {
		t.Fatalf("expected offline error, got %v", err)
	}
	if IsOffline(nil) {
		t.Fatalf("nil error is not offline")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	t.Setenv("TYC_HOME", t.TempDir())
	if _, err := LoadSession(); err == nil {
		t.Fatalf("expected error before login")
	}
	want := Session{AccessToken: "a", RefreshToken: "r", Email: "e@x.io", UserID: "u", Timezone: "Europe/Berlin"}
	if err := SaveSession(want); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	got, err := LoadSession()
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
	if err := ClearSession(); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}
	if _, err := LoadSession(); err == nil {
		t.Fatalf("expected error after logout")
	}
}
