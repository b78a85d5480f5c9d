package workout

import (
	"math/rand"
	"sync"
	"time"
)

// Exercise is display metadata for a work phase. It does not affect timing.
type Exercise struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// FallbackExercise is shown when a preset has no exercises.
var FallbackExercise = Exercise{
	Name:        "Exercise",
	Description: "Perform your routine",
}

// Picker selects the exercise for each work phase.
type Picker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewPicker returns a Picker drawing from src. A nil src seeds from the clock.
func NewPicker(src rand.Source) *Picker {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Picker{rng: rand.New(src)}
}

// Pick returns a uniformly random member of exercises, or FallbackExercise
// when the list is empty.
func (p *Picker) Pick(exercises []Exercise) Exercise {
	if len(exercises) == 0 {
		return FallbackExercise
	}
	p.mu.Lock()
	i := p.rng.Intn(len(exercises))
	p.mu.Unlock()
	return exercises[i]
}
