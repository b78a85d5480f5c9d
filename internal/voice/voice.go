// Package voice answers voice assistant webhooks by driving the workout
// manager. Every reply is a 200 with spoken text, failures included, so the
// assistant never drops the session.
package voice

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/marcus/morningshift/internal/logging"
	"github.com/marcus/morningshift/internal/manager"
	"github.com/marcus/morningshift/internal/metrics"
	"github.com/marcus/morningshift/internal/presets"
	"github.com/marcus/morningshift/internal/timer"
	"github.com/marcus/morningshift/internal/workout"
)

const (
	protocolVersion = "1.0"
	maxBodyBytes    = 64 << 10
)

// Intents recognized in a command.
const (
	IntentWelcome = "welcome"
	IntentMenu    = "menu"
	IntentStart   = "start"
	IntentStop    = "stop"
	IntentStatus  = "status"
	IntentPause   = "pause"
	IntentResume  = "resume"
	IntentUnknown = "unknown"
	IntentError   = "error"
)

// Request is the subset of the webhook payload that is read.
type Request struct {
	Request struct {
		Command           string `json:"command"`
		OriginalUtterance string `json:"original_utterance,omitempty"`
	} `json:"request"`
	Session struct {
		SessionID string         `json:"session_id,omitempty"`
		State     map[string]any `json:"state,omitempty"`
	} `json:"session"`
	Version string `json:"version,omitempty"`
}

// Response is the webhook reply.
type Response struct {
	Version      string         `json:"version"`
	SessionState map[string]any `json:"session_state,omitempty"`
	Response     Reply          `json:"response"`
}

// Reply carries the text to speak.
type Reply struct {
	Text       string `json:"text"`
	EndSession bool   `json:"end_session"`
}

// Workouts is the part of the manager the handler drives.
type Workouts interface {
	Presets() []presets.Preset
	StartByID(id string, extra ...timer.Reporter) (*timer.Engine, error)
	StopCurrent() error
	Status() (timer.Snapshot, error)
	Pause() error
	Resume() error
}

// Handler serves the webhook.
type Handler struct {
	workouts Workouts
	metrics  *metrics.Metrics
	log      *logging.Logger
}

// NewHandler returns a webhook handler. m may be nil.
func NewHandler(w Workouts, m *metrics.Metrics) *Handler {
	return &Handler{
		workouts: w,
		metrics:  m,
		log:      logging.Component("voice"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.log.Warnf("decode webhook: %v", err)
		h.metrics.IncVoiceRequest(IntentError)
		writeJSON(w, Response{
			Version:  protocolVersion,
			Response: Reply{Text: "Error: could not read the request."},
		})
		return
	}

	intent, text := h.Answer(req.Request.Command)
	h.metrics.IncVoiceRequest(intent)
	h.log.DebugCtx("webhook", map[string]any{
		"command": req.Request.Command,
		"intent":  intent,
	})

	writeJSON(w, Response{
		Version:      protocolVersion,
		SessionState: req.Session.State,
		Response:     Reply{Text: text},
	})
}

// Answer resolves a command to an intent and the text to speak.
func (h *Handler) Answer(command string) (intent, text string) {
	cmd := strings.ToLower(strings.TrimSpace(command))

	switch {
	case cmd == "":
		return IntentWelcome, "Welcome to morning exercise! Say \"menu\" to pick a workout."
	case containsAny(cmd, "menu", "list", "workouts"):
		return IntentMenu, h.menu()
	case containsAny(cmd, "stop", "done", "finish"):
		return IntentStop, h.stop()
	case containsAny(cmd, "status", "how long", "left"):
		return IntentStatus, h.status()
	case containsAny(cmd, "resume", "continue"):
		return IntentResume, h.control(h.workouts.Resume, "Resumed.")
	case containsAny(cmd, "pause", "wait"):
		return IntentPause, h.control(h.workouts.Pause, "Paused. Say \"resume\" to continue.")
	}

	if p, ok := matchPreset(h.workouts.Presets(), cmd); ok {
		return IntentStart, h.start(p)
	}
	return IntentUnknown, "Sorry, I didn't get that. Say \"menu\"."
}

func (h *Handler) menu() string {
	list := h.workouts.Presets()
	if len(list) == 0 {
		return "No workouts are configured yet."
	}
	var b strings.Builder
	b.WriteString("Choose a workout:")
	for i, p := range list {
		fmt.Fprintf(&b, "\n%d. %s (%s work, %s rest)", i+1, p.Name,
			workout.FormatDuration(p.Work()), workout.FormatDuration(p.Break()))
	}
	return b.String()
}

func (h *Handler) start(p presets.Preset) string {
	e, err := h.workouts.StartByID(p.ID, h.metrics.Reporter(p.ID))
	switch {
	case errors.Is(err, manager.ErrAlreadyRunning):
		return "A workout is already running. Say \"stop\" first."
	case err != nil:
		h.log.Errorf("start %s: %v", p.ID, err)
		return fmt.Sprintf("Error: %v", err)
	}

	snap := e.Status()
	ex := workout.FallbackExercise
	if snap.Exercise != nil {
		ex = *snap.Exercise
	}
	return fmt.Sprintf("Starting %s!\nExercise 1: %s\n%s\nTime: %s\nCycles: %d\nSay \"done\" when you finish.",
		p.Name, ex.Name, ex.Description, workout.FormatDuration(p.Work()), p.Cycles)
}

func (h *Handler) stop() string {
	err := h.workouts.StopCurrent()
	switch {
	case errors.Is(err, manager.ErrNoActiveTimer):
		return "Nothing is running right now."
	case err != nil:
		return fmt.Sprintf("Error: %v", err)
	}
	return "Workout stopped. Well done!"
}

func (h *Handler) status() string {
	snap, err := h.workouts.Status()
	if errors.Is(err, manager.ErrNoActiveTimer) {
		return "No workout is running. Say \"menu\" to pick one."
	}
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return Describe(snap)
}

func (h *Handler) control(op func() error, ok string) string {
	err := op()
	switch {
	case errors.Is(err, manager.ErrNoActiveTimer):
		return "No workout is running."
	case errors.Is(err, timer.ErrNotRunning):
		return "The workout is not running."
	case errors.Is(err, timer.ErrNotPaused):
		return "The workout is not paused."
	case err != nil:
		return fmt.Sprintf("Error: %v", err)
	}
	return ok
}

// Describe renders a snapshot as a sentence.
func Describe(s timer.Snapshot) string {
	switch s.State {
	case timer.StateCompleted:
		return fmt.Sprintf("%s is complete. Great job!", s.Name)
	case timer.StateStopped:
		return fmt.Sprintf("%s was stopped.", s.Name)
	case timer.StateIdle:
		return fmt.Sprintf("%s has not started.", s.Name)
	}

	text := fmt.Sprintf("%s: %s phase, cycle %d of %d, %s left.",
		s.Name, s.PhaseKind, s.Cycle, s.TotalCycles, workout.FormatDuration(s.Remaining))
	if s.PhaseKind == workout.Work && s.Exercise != nil {
		text += " Current exercise: " + s.Exercise.Name + "."
	}
	if s.State == timer.StatePaused {
		text += " Paused."
	}
	return text
}

// matchPreset finds the preset named in cmd by id, full name, or the first
// word of its name.
func matchPreset(list []presets.Preset, cmd string) (presets.Preset, bool) {
	for _, p := range list {
		if cmd == strings.ToLower(p.ID) {
			return p, true
		}
	}
	for _, p := range list {
		name := strings.ToLower(p.Name)
		if name != "" && strings.Contains(cmd, name) {
			return p, true
		}
	}
	for _, p := range list {
		fields := strings.Fields(strings.ToLower(p.Name))
		if len(fields) > 0 && containsWord(cmd, fields[0]) {
			return p, true
		}
	}
	return presets.Preset{}, false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func containsWord(s, word string) bool {
	for _, f := range strings.Fields(s) {
		if f == word {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(payload)
}
