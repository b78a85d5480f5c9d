package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/morningshift/internal/logging"
	"github.com/marcus/morningshift/internal/manager"
	"github.com/marcus/morningshift/internal/metrics"
	"github.com/marcus/morningshift/internal/presets"
	"github.com/marcus/morningshift/internal/timer"
	"github.com/marcus/morningshift/internal/workout"
)

func newTestManager(t *testing.T) *manager.Manager {
	t.Helper()
	m := manager.New(manager.WithLogger(logging.Nop()), manager.WithTickInterval(10*time.Millisecond))
	require.NoError(t, m.Load(presets.Static{
		{ID: "classic_20_5", Name: "Classic workout", WorkDuration: 1200, BreakDuration: 300, Cycles: 4,
			Exercises: []workout.Exercise{{Name: "Squats", Description: "Back straight"}}},
		{ID: "express_10_2", Name: "Express workout", WorkDuration: 600, BreakDuration: 120, Cycles: 3},
		{ID: "quick_test", Name: "Quick test", WorkDuration: 10, BreakDuration: 5, Cycles: 2},
	}))
	t.Cleanup(func() { _ = m.StopCurrent() })
	return m
}

func post(t *testing.T, h http.Handler, body string) Response {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/voice", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "1.0", resp.Version)
	assert.False(t, resp.Response.EndSession)
	return resp
}

func command(cmd string) string {
	b, _ := json.Marshal(map[string]any{
		"request": map[string]any{"command": cmd},
		"session": map[string]any{"state": map[string]any{"step": 2}},
	})
	return string(b)
}

func TestAnswer_Intents(t *testing.T) {
	h := NewHandler(newTestManager(t), nil)

	tests := []struct {
		cmd    string
		intent string
		text   string
	}{
		{"", IntentWelcome, "Welcome"},
		{"Menu", IntentMenu, "1. Classic workout (20 min work, 5 min rest)"},
		{"menu", IntentMenu, "3. Quick test (10 sec work, 5 sec rest)"},
		{"status", IntentStatus, "No workout is running"},
		{"stop", IntentStop, "Nothing is running"},
		{"pause", IntentPause, "No workout is running"},
		{"sing a song", IntentUnknown, "Say \"menu\""},
	}
	for _, tt := range tests {
		t.Run(tt.intent, func(t *testing.T) {
			intent, text := h.Answer(tt.cmd)
			assert.Equal(t, tt.intent, intent)
			assert.Contains(t, text, tt.text)
		})
	}
}

func TestAnswer_StartStatusStop(t *testing.T) {
	m := newTestManager(t)
	h := NewHandler(m, nil)

	intent, text := h.Answer("Start the classic")
	require.Equal(t, IntentStart, intent)
	assert.Contains(t, text, "Starting Classic workout")
	assert.Contains(t, text, "Exercise 1: Squats")
	assert.Contains(t, text, "20 min")
	assert.Contains(t, text, "Cycles: 4")

	_, text = h.Answer("express_10_2")
	assert.Contains(t, text, "already running")

	intent, text = h.Answer("how long is left")
	assert.Equal(t, IntentStatus, intent)
	assert.Contains(t, text, "Classic workout: work phase, cycle 1 of 4")
	assert.Contains(t, text, "Current exercise: Squats")

	_, text = h.Answer("pause")
	assert.Contains(t, text, "Paused")
	_, text = h.Answer("pause")
	assert.Contains(t, text, "not running")
	_, text = h.Answer("continue")
	assert.Contains(t, text, "Resumed")

	intent, text = h.Answer("done")
	assert.Equal(t, IntentStop, intent)
	assert.Contains(t, text, "stopped")
	_, err := m.Status()
	assert.ErrorIs(t, err, manager.ErrNoActiveTimer)
}

func TestServeHTTP_EchoesSessionState(t *testing.T) {
	h := NewHandler(newTestManager(t), nil)
	resp := post(t, h, command("menu"))
	assert.Equal(t, map[string]any{"step": float64(2)}, resp.SessionState)
	assert.Contains(t, resp.Response.Text, "Express workout")
}

func TestServeHTTP_BadBodyStillAnswers(t *testing.T) {
	h := NewHandler(newTestManager(t), nil)
	resp := post(t, h, "{not json")
	assert.True(t, strings.HasPrefix(resp.Response.Text, "Error:"))
}

func TestServeHTTP_MethodNotAllowed(t *testing.T) {
	h := NewHandler(newTestManager(t), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/voice", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestMenu_NoPresets(t *testing.T) {
	m := manager.New(manager.WithLogger(logging.Nop()))
	h := NewHandler(m, nil)
	_, text := h.Answer("menu")
	assert.Contains(t, text, "No workouts")
	_, text = h.Answer("classic")
	assert.Contains(t, text, "didn't get that")
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "X is complete. Great job!", Describe(timer.Snapshot{Name: "X", State: timer.StateCompleted}))
	assert.Equal(t, "X was stopped.", Describe(timer.Snapshot{Name: "X", State: timer.StateStopped}))

	text := Describe(timer.Snapshot{
		Name: "X", State: timer.StatePaused, PhaseKind: workout.Break,
		Cycle: 2, TotalCycles: 3, Remaining: 45 * time.Second,
		Exercise: &workout.Exercise{Name: "ignored on breaks"},
	})
	assert.Equal(t, "X: break phase, cycle 2 of 3, 45 sec left. Paused.", text)
}

func TestServer_RoutesAndShutdown(t *testing.T) {
	met := metrics.New()
	srv := NewServer("127.0.0.1:0", newTestManager(t), met)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	base := "http://" + ln.Addr().String()

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(base+"/voice", "application/json", bytes.NewBufferString(command("menu")))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	resp.Body.Close()
	assert.Contains(t, buf.String(), `morningshift_voice_requests_total{intent="menu"} 1`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
