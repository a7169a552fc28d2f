// Package greet implements the first-message greeting tracker with two
// policies: greet a viewer once ever, or once per calendar day.
package greet

import (
	"time"

	"github.com/mugummy/chzzkbot/internal/domain"
)

// DateFormat is the stored last-greeted date layout.
const DateFormat = "2006-01-02"

// Tracker owns one channel's greeting state. Not safe for concurrent use;
// the channel coordinator serializes all access, which is what closes the
// check-then-act race between two chat events of the same viewer.
type Tracker struct {
	state domain.GreetState
}

func NewTracker(state domain.GreetState) *Tracker {
	if state.Policy == "" {
		state.Policy = domain.GreetDaily
	}
	if state.LastGreeted == nil {
		state.LastGreeted = make(map[string]string)
	}
	return &Tracker{state: state}
}

// ShouldGreet answers the policy question without recording.
func (t *Tracker) ShouldGreet(viewerID string, today time.Time) bool {
	if !t.state.Enabled {
		return false
	}
	last, exists := t.state.LastGreeted[viewerID]
	switch t.state.Policy {
	case domain.GreetOnce:
		return !exists
	case domain.GreetDaily:
		return !exists || last != today.Format(DateFormat)
	default:
		return false
	}
}

// RecordGreeted stores today's date for the viewer.
func (t *Tracker) RecordGreeted(viewerID string, today time.Time) {
	t.state.LastGreeted[viewerID] = today.Format(DateFormat)
}

// CheckAndRecord combines the decision and the record in one step; callers
// on the event path use this so a burst of messages cannot double-greet.
func (t *Tracker) CheckAndRecord(viewerID string, today time.Time) bool {
	if !t.ShouldGreet(viewerID, today) {
		return false
	}
	t.RecordGreeted(viewerID, today)
	return true
}

// Message returns the greeting template.
func (t *Tracker) Message() string {
	return t.state.Message
}

// UpdateSettings replaces policy, template, and enablement. History is kept.
func (t *Tracker) UpdateSettings(enabled bool, policy domain.GreetPolicy, message string) {
	t.state.Enabled = enabled
	t.state.Policy = policy
	t.state.Message = message
}

// ClearHistory forgets every recorded greeting.
func (t *Tracker) ClearHistory() {
	t.state.LastGreeted = make(map[string]string)
}

// State returns a deep copy safe for persistence and broadcast.
func (t *Tracker) State() domain.GreetState {
	cp := t.state
	cp.LastGreeted = make(map[string]string, len(t.state.LastGreeted))
	for id, d := range t.state.LastGreeted {
		cp.LastGreeted[id] = d
	}
	return cp
}
