// Package workout builds the phase sequence of an interval workout and picks
// the exercise shown during each work phase.
package workout

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned when a plan cannot be built from the given
// durations or cycle count.
var ErrInvalidConfig = errors.New("invalid workout config")

// Limits on a single plan.
const (
	MaxCycles        = 1000
	MaxPhaseDuration = 24 * time.Hour
)

// PhaseKind classifies a phase.
type PhaseKind int

const (
	Work PhaseKind = iota
	Break
)

func (k PhaseKind) String() string {
	switch k {
	case Work:
		return "work"
	case Break:
		return "break"
	default:
		return "unknown"
	}
}

// Phase is a single timed segment of a plan.
type Phase struct {
	Kind     PhaseKind
	Duration time.Duration
}

// Plan is the ordered, immutable phase sequence of one workout.
type Plan struct {
	phases []Phase
	cycles int
}

// BuildPlan interleaves cycles work phases with cycles-1 break phases.
// There is no break after the final work phase.
func BuildPlan(work, brk time.Duration, cycles int) (*Plan, error) {
	if cycles < 1 || cycles > MaxCycles {
		return nil, fmt.Errorf("%w: cycles must be between 1 and %d, got %d", ErrInvalidConfig, MaxCycles, cycles)
	}
	if work <= 0 || work > MaxPhaseDuration {
		return nil, fmt.Errorf("%w: work duration must be positive and at most %s, got %s", ErrInvalidConfig, MaxPhaseDuration, work)
	}
	if brk < 0 || brk > MaxPhaseDuration {
		return nil, fmt.Errorf("%w: break duration must be between 0 and %s, got %s", ErrInvalidConfig, MaxPhaseDuration, brk)
	}

	phases := make([]Phase, 0, 2*cycles-1)
	for c := 0; c < cycles; c++ {
		phases = append(phases, Phase{Kind: Work, Duration: work})
		if c < cycles-1 {
			phases = append(phases, Phase{Kind: Break, Duration: brk})
		}
	}
	return &Plan{phases: phases, cycles: cycles}, nil
}

// Len returns the number of phases.
func (p *Plan) Len() int {
	return len(p.phases)
}

// Cycles returns the configured cycle count.
func (p *Plan) Cycles() int {
	return p.cycles
}

// Phase returns the phase at index i. It panics when i is out of range.
func (p *Plan) Phase(i int) Phase {
	return p.phases[i]
}

// Phases returns a copy of the phase sequence.
func (p *Plan) Phases() []Phase {
	out := make([]Phase, len(p.phases))
	copy(out, p.phases)
	return out
}

// CycleOf returns the 1-based cycle number the phase at index i belongs to.
// A break belongs to the cycle of the work phase before it.
func (p *Plan) CycleOf(i int) int {
	return i/2 + 1
}

// TotalDuration sums every phase.
func (p *Plan) TotalDuration() time.Duration {
	var total time.Duration
	for _, ph := range p.phases {
		total += ph.Duration
	}
	return total
}
