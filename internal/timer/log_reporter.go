package timer

import (
	"time"

	"github.com/marcus/morningshift/internal/logging"
	"github.com/marcus/morningshift/internal/workout"
)

// LogReporter writes engine events to a structured logger. Ticks go to the
// debug level, transitions to info.
type LogReporter struct {
	log *logging.Logger
}

// NewLogReporter returns a Reporter logging to log.
func NewLogReporter(log *logging.Logger) *LogReporter {
	if log == nil {
		log = logging.Nop()
	}
	return &LogReporter{log: log}
}

func (l *LogReporter) OnPhaseStart(kind workout.PhaseKind, d time.Duration, ex *workout.Exercise) {
	fields := map[string]any{
		"phase":    kind.String(),
		"duration": d.String(),
	}
	if ex != nil {
		fields["exercise"] = ex.Name
	}
	l.log.InfoCtx("phase start", fields)
}

func (l *LogReporter) OnTick(remaining time.Duration, progress float64) {
	l.log.DebugCtx("tick", map[string]any{
		"remaining": remaining.String(),
		"progress":  progress,
	})
}

func (l *LogReporter) OnPhaseComplete(kind workout.PhaseKind) {
	l.log.InfoCtx("phase complete", map[string]any{"phase": kind.String()})
}

func (l *LogReporter) OnCompleted() { l.log.Info("workout completed") }
func (l *LogReporter) OnStopped()   { l.log.Info("workout stopped") }
func (l *LogReporter) OnPaused()    { l.log.Info("workout paused") }
func (l *LogReporter) OnResumed()   { l.log.Info("workout resumed") }
