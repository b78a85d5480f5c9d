package timer

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/morningshift/internal/logging"
	"github.com/marcus/morningshift/internal/workout"
)

func TestMultiReporter_FansOutInOrder(t *testing.T) {
	var got []string
	a := NewHandlerReporter(func(ev Event) { got = append(got, "a:"+ev.Type.String()) })
	b := NewHandlerReporter(func(ev Event) { got = append(got, "b:"+ev.Type.String()) })

	m := Reporters(a, nil, b)
	require.Len(t, m, 2)

	m.OnPhaseStart(workout.Work, time.Second, nil)
	m.OnTick(time.Second, 0.5)
	m.OnCompleted()

	assert.Equal(t, []string{
		"a:phase_start", "b:phase_start",
		"a:tick", "b:tick",
		"a:completed", "b:completed",
	}, got)
}

func TestHandlerReporter_EventPayload(t *testing.T) {
	var events []Event
	r := NewHandlerReporter(func(ev Event) { events = append(events, ev) })
	ex := &workout.Exercise{Name: "Squats"}

	r.OnPhaseStart(workout.Break, 5*time.Second, ex)
	r.OnTick(2*time.Second, 0.6)
	r.OnPhaseComplete(workout.Break)
	r.OnPaused()
	r.OnResumed()
	r.OnStopped()

	require.Len(t, events, 6)
	assert.Equal(t, workout.Break, events[0].Kind)
	assert.Equal(t, 5*time.Second, events[0].Duration)
	assert.Same(t, ex, events[0].Exercise)
	assert.Equal(t, 2*time.Second, events[1].Remaining)
	assert.InDelta(t, 0.6, events[1].Progress, 1e-9)
	assert.Equal(t, EventPhaseComplete, events[2].Type)
	assert.Equal(t, EventStopped, events[5].Type)
	for _, ev := range events {
		assert.False(t, ev.Time.IsZero())
	}

	// A nil handler is tolerated.
	NewHandlerReporter(nil).OnCompleted()
}

func TestLogReporter(t *testing.T) {
	var buf bytes.Buffer
	log, err := logging.New(logging.Config{Level: "info", Format: "json", Output: &buf})
	require.NoError(t, err)

	r := NewLogReporter(log)
	r.OnPhaseStart(workout.Work, 20*time.Second, &workout.Exercise{Name: "Plank"})
	r.OnTick(10*time.Second, 0.5)
	r.OnPhaseComplete(workout.Work)
	r.OnCompleted()

	out := buf.String()
	assert.Contains(t, out, `"exercise":"Plank"`)
	assert.Contains(t, out, "phase complete")
	assert.Contains(t, out, "workout completed")
	assert.NotContains(t, out, `"message":"tick"`, "ticks are debug level")
	assert.Equal(t, 3, strings.Count(out, "\n"))

	NewLogReporter(nil).OnStopped()
}
