// Package roulette implements weighted random selection over a configured
// wheel, with server-computed animation parameters so every connected client
// replays the identical spin.
package roulette

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/mugummy/chzzkbot/internal/domain"
	apperrors "github.com/mugummy/chzzkbot/internal/errors"
)

const (
	maxHistory = 10

	// Animation: 5 to 7 base rotations, landing uniformly inside the middle
	// 60% of the winning segment so the stop is visually unambiguous.
	minRotations   = 5
	rotationSpread = 2
	segmentMargin  = 0.2
	baseDurationMs = 4000
	perRotationMs  = 600
)

// Wheel owns one channel's roulette configuration and bounded spin history.
// Not safe for concurrent use; the channel coordinator serializes access.
type Wheel struct {
	state     domain.RouletteState
	randFloat func() float64
}

func NewWheel(state domain.RouletteState) *Wheel {
	return &Wheel{state: state, randFloat: rand.Float64}
}

// NewWheelWithRand builds a wheel with a fixed random source for tests.
func NewWheelWithRand(state domain.RouletteState, randFloat func() float64) *Wheel {
	return &Wheel{state: state, randFloat: randFloat}
}

// Configure replaces the item list. Every weight must be at least 1.
func (w *Wheel) Configure(items []domain.RouletteItem) error {
	if len(items) == 0 {
		return apperrors.ValidationError("roulette needs at least one item")
	}
	for _, item := range items {
		if item.Weight < 1 {
			return apperrors.ValidationError("roulette weights must be at least 1")
		}
	}
	w.state.ID = uuid.NewString()
	w.state.Items = append([]domain.RouletteItem(nil), items...)
	return nil
}

// Spin selects an item proportionally to its weight and derives the
// animation angle and duration from the same draw. The result must be pushed
// to clients verbatim, never recomputed client-side.
func (w *Wheel) Spin(now time.Time) (*domain.RouletteResult, error) {
	result, err := spin(w.state.Items, w.randFloat)
	if err != nil {
		return nil, err
	}
	result.SpunAt = now

	w.state.LastResult = result
	w.state.History = append(w.state.History, *result)
	if len(w.state.History) > maxHistory {
		w.state.History = w.state.History[len(w.state.History)-maxHistory:]
	}
	return result, nil
}

// spin is the stateless selection core: cumulative-weight walk over the item
// list, falling back to the last item to absorb float rounding.
func spin(items []domain.RouletteItem, randFloat func() float64) (*domain.RouletteResult, error) {
	total := 0
	for _, item := range items {
		total += item.Weight
	}
	if total <= 0 {
		return nil, apperrors.ValidationError("roulette weight sum must be positive")
	}

	r := randFloat() * float64(total)
	idx := len(items) - 1
	acc := 0.0
	for i, item := range items {
		acc += float64(item.Weight)
		if r <= acc {
			idx = i
			break
		}
	}

	// Angular segment of the winning item, in degrees.
	before := 0
	for _, item := range items[:idx] {
		before += item.Weight
	}
	segStart := float64(before) / float64(total) * 360
	segSize := float64(items[idx].Weight) / float64(total) * 360

	rotations := minRotations + int(randFloat()*float64(rotationSpread+1))
	if rotations > minRotations+rotationSpread {
		rotations = minRotations + rotationSpread
	}
	within := segmentMargin + randFloat()*(1-2*segmentMargin)
	angle := float64(rotations)*360 + segStart + segSize*within

	return &domain.RouletteResult{
		Item:       items[idx],
		Angle:      angle,
		DurationMs: baseDurationMs + rotations*perRotationMs,
	}, nil
}

// Reset clears the wheel configuration and history.
func (w *Wheel) Reset() {
	w.state = domain.RouletteState{}
}

// State returns a deep copy safe for persistence and broadcast.
func (w *Wheel) State() domain.RouletteState {
	cp := w.state
	cp.Items = append([]domain.RouletteItem(nil), w.state.Items...)
	cp.History = append([]domain.RouletteResult(nil), w.state.History...)
	if w.state.LastResult != nil {
		last := *w.state.LastResult
		cp.LastResult = &last
	}
	return cp
}
