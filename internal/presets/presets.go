// Package presets loads named workout configurations from files, a SQLite
// library, or the built-in defaults.
package presets

import (
	"errors"
	"fmt"
	"time"

	"github.com/marcus/morningshift/internal/workout"
)

// Errors returned while loading presets.
var (
	ErrMalformed   = errors.New("malformed presets")
	ErrDuplicateID = errors.New("duplicate preset id")
)

// QuickTestID is the preset meant for trying the timer out.
const QuickTestID = "quick_test"

// maxSeconds bounds workDuration and breakDuration so the conversion to
// time.Duration cannot wrap.
const maxSeconds = int(workout.MaxPhaseDuration / time.Second)

// Preset is a named workout configuration. Durations are in seconds, as in
// the presets file.
type Preset struct {
	ID            string             `json:"id" yaml:"id"`
	Name          string             `json:"name" yaml:"name"`
	Description   string             `json:"description" yaml:"description"`
	WorkDuration  int                `json:"workDuration" yaml:"workDuration"`
	BreakDuration int                `json:"breakDuration" yaml:"breakDuration"`
	Cycles        int                `json:"cycles" yaml:"cycles"`
	Exercises     []workout.Exercise `json:"exercises,omitempty" yaml:"exercises,omitempty"`
}

// Work returns the work phase length.
func (p Preset) Work() time.Duration {
	return time.Duration(p.WorkDuration) * time.Second
}

// Break returns the break phase length.
func (p Preset) Break() time.Duration {
	return time.Duration(p.BreakDuration) * time.Second
}

// Plan builds the phase plan for the preset.
func (p Preset) Plan() (*workout.Plan, error) {
	if err := p.checkDurations(); err != nil {
		return nil, fmt.Errorf("preset %s: %w", p.ID, err)
	}
	plan, err := workout.BuildPlan(p.Work(), p.Break(), p.Cycles)
	if err != nil {
		return nil, fmt.Errorf("preset %s: %w", p.ID, err)
	}
	return plan, nil
}

// IsQuickTest reports whether this is the short test preset.
func (p Preset) IsQuickTest() bool {
	return p.ID == QuickTestID
}

// Source supplies a preset set.
type Source interface {
	Load() ([]Preset, error)
}

// Static is an in-memory Source.
type Static []Preset

// Load returns a copy of the presets.
func (s Static) Load() ([]Preset, error) {
	if err := validate(s); err != nil {
		return nil, err
	}
	return append([]Preset(nil), s...), nil
}

func (p Preset) checkDurations() error {
	if p.WorkDuration > maxSeconds || p.BreakDuration > maxSeconds {
		return fmt.Errorf("%w: durations must be at most %d seconds", workout.ErrInvalidConfig, maxSeconds)
	}
	return nil
}

// validate checks that every preset has a unique, non-empty id and
// durations that fit a plan. The rest is checked when a plan is built.
func validate(list []Preset) error {
	seen := make(map[string]bool, len(list))
	for i, p := range list {
		if p.ID == "" {
			return fmt.Errorf("%w: preset %d has no id", ErrMalformed, i)
		}
		if err := p.checkDurations(); err != nil {
			return fmt.Errorf("%w: preset %s: %v", ErrMalformed, p.ID, err)
		}
		if seen[p.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

// Defaults returns the built-in presets.
func Defaults() []Preset {
	warmup := []workout.Exercise{
		{Name: "Joint warm-up", Description: "Rotate head, shoulders, elbows and wrists"},
		{Name: "Squats", Description: "Feet shoulder-width apart, keep your back straight"},
		{Name: "Push-ups", Description: "From the floor or knees, lower slowly"},
		{Name: "Plank", Description: "Hold a straight line from head to heels"},
		{Name: "Lunges", Description: "Alternate legs, knee above the ankle"},
		{Name: "Stretching", Description: "Reach up, then fold forward and hold"},
	}
	return []Preset{
		{
			ID:            "classic_20_5",
			Name:          "Classic workout",
			Description:   "Full morning session with a short rest between rounds",
			WorkDuration:  20 * 60,
			BreakDuration: 5 * 60,
			Cycles:        4,
			Exercises:     warmup,
		},
		{
			ID:            "express_10_2",
			Name:          "Express workout",
			Description:   "Quick energizing routine",
			WorkDuration:  10 * 60,
			BreakDuration: 2 * 60,
			Cycles:        3,
			Exercises:     warmup[:4],
		},
		{
			ID:            "beginner_5_5",
			Name:          "Beginner workout",
			Description:   "Gentle start with equal work and rest",
			WorkDuration:  5 * 60,
			BreakDuration: 5 * 60,
			Cycles:        3,
			Exercises:     []workout.Exercise{warmup[0], warmup[5]},
		},
		{
			ID:            QuickTestID,
			Name:          "Quick test",
			Description:   "Ten second rounds for checking the timer",
			WorkDuration:  10,
			BreakDuration: 5,
			Cycles:        2,
		},
	}
}
