// Package participation implements the viewer participation queue: a FIFO
// waiting line gated by an open flag, promotable to a bounded active roster.
package participation

import (
	"time"

	"github.com/mugummy/chzzkbot/internal/domain"
	apperrors "github.com/mugummy/chzzkbot/internal/errors"
)

// Queue owns one channel's participation state. Not safe for concurrent
// use; the channel coordinator serializes all access.
type Queue struct {
	state domain.ParticipationState
}

func NewQueue(state domain.ParticipationState) *Queue {
	if state.JoinCounts == nil {
		state.JoinCounts = make(map[string]int)
	}
	if state.MaxActive <= 0 {
		state.MaxActive = 4
	}
	return &Queue{state: state}
}

// Open starts accepting join attempts.
func (q *Queue) Open() {
	q.state.Open = true
}

// Close stops accepting join attempts. Existing entries are kept.
func (q *Queue) Close() {
	q.state.Open = false
}

// HandleJoinAttempt appends the viewer to the waiting queue. Rejections are
// typed so the coordinator can pick a short chat reply.
func (q *Queue) HandleJoinAttempt(viewerID, nickname string, now time.Time) error {
	if !q.state.Open {
		return apperrors.ValidationError("participation queue is closed")
	}
	if q.contains(viewerID) {
		return apperrors.ConflictError("already in the queue")
	}
	if len(q.state.Active) >= q.state.MaxActive {
		return apperrors.ConflictError("participation roster is full")
	}
	q.state.Waiting = append(q.state.Waiting, domain.Participant{
		ViewerID: viewerID,
		Nickname: nickname,
		JoinedAt: now,
	})
	q.state.JoinCounts[viewerID]++
	return nil
}

// Promote moves a waiting viewer to the active roster. No-op when the
// viewer is not waiting; fails when the roster is full.
func (q *Queue) Promote(viewerID string) error {
	for i, p := range q.state.Waiting {
		if p.ViewerID != viewerID {
			continue
		}
		if len(q.state.Active) >= q.state.MaxActive {
			return apperrors.ConflictError("participation roster is full")
		}
		q.state.Waiting = append(q.state.Waiting[:i:i], q.state.Waiting[i+1:]...)
		q.state.Active = append(q.state.Active, p)
		return nil
	}
	return nil
}

// PromoteNext promotes the head of the waiting queue, if any.
func (q *Queue) PromoteNext() error {
	if len(q.state.Waiting) == 0 {
		return nil
	}
	return q.Promote(q.state.Waiting[0].ViewerID)
}

// Remove deletes the viewer from both the queue and the roster.
func (q *Queue) Remove(viewerID string) {
	q.state.Waiting = without(q.state.Waiting, viewerID)
	q.state.Active = without(q.state.Active, viewerID)
}

// SetMaxActive resizes the roster capacity. Current members above the new
// limit stay until removed.
func (q *Queue) SetMaxActive(n int) error {
	if n <= 0 {
		return apperrors.ValidationError("roster capacity must be positive")
	}
	q.state.MaxActive = n
	return nil
}

// IsOpen reports whether joins are accepted.
func (q *Queue) IsOpen() bool {
	return q.state.Open
}

// WaitingLen returns the number of queued viewers.
func (q *Queue) WaitingLen() int {
	return len(q.state.Waiting)
}

func (q *Queue) contains(viewerID string) bool {
	for _, p := range q.state.Waiting {
		if p.ViewerID == viewerID {
			return true
		}
	}
	for _, p := range q.state.Active {
		if p.ViewerID == viewerID {
			return true
		}
	}
	return false
}

func without(list []domain.Participant, viewerID string) []domain.Participant {
	for i, p := range list {
		if p.ViewerID == viewerID {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

// State returns a deep copy safe for persistence and broadcast.
func (q *Queue) State() domain.ParticipationState {
	cp := q.state
	cp.Waiting = append([]domain.Participant(nil), q.state.Waiting...)
	cp.Active = append([]domain.Participant(nil), q.state.Active...)
	cp.JoinCounts = make(map[string]int, len(q.state.JoinCounts))
	for id, n := range q.state.JoinCounts {
		cp.JoinCounts[id] = n
	}
	return cp
}
