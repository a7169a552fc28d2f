// Package songs implements the cooldown-gated song request queue. Metadata
// resolution is asynchronous; the queue itself only handles ordering,
// capacity, and admission policy.
package songs

import (
	"time"

	apperrors "github.com/mugummy/chzzkbot/internal/errors"

	"github.com/mugummy/chzzkbot/internal/domain"
)

// Queue owns one channel's song request state. Not safe for concurrent use;
// the channel coordinator serializes all access.
type Queue struct {
	state domain.SongState
}

func NewQueue(state domain.SongState) *Queue {
	return &Queue{state: state}
}

func DefaultSettings() domain.SongSettings {
	return domain.SongSettings{
		Enabled:         true,
		MaxQueue:        20,
		CooldownMs:      180_000,
		BypassMinAmount: 1_000,
	}
}

// Admissible checks the policy gates that do not involve the per-viewer
// cooldown: feature enabled and queue capacity.
func (q *Queue) Admissible() error {
	if !q.state.Settings.Enabled {
		return apperrors.ValidationError("song requests are disabled")
	}
	if q.state.Settings.MaxQueue > 0 && len(q.state.Queue) >= q.state.Settings.MaxQueue {
		return apperrors.ConflictError("song queue is full")
	}
	return nil
}

// Cooldown returns the configured per-viewer request cooldown window.
func (q *Queue) Cooldown() time.Duration {
	return time.Duration(q.state.Settings.CooldownMs) * time.Millisecond
}

// BypassesCooldown reports whether a donation of the given amount skips the
// request cooldown. Policy: minimum-or-more, not exact match.
func (q *Queue) BypassesCooldown(amount int) bool {
	min := q.state.Settings.BypassMinAmount
	return min > 0 && amount >= min
}

// Enqueue appends a resolved song, re-checking capacity since resolution
// happens out-of-band and the queue may have filled meanwhile.
func (q *Queue) Enqueue(song domain.Song) error {
	if err := q.Admissible(); err != nil {
		return err
	}
	q.state.Queue = append(q.state.Queue, song)
	return nil
}

// Advance dequeues the next song as current. The dequeued song leaves the
// queue; it is never duplicated. Returns nil when the queue is empty, which
// also clears the current song.
func (q *Queue) Advance() *domain.Song {
	if len(q.state.Queue) == 0 {
		q.state.Current = nil
		return nil
	}
	next := q.state.Queue[0]
	q.state.Queue = append([]domain.Song(nil), q.state.Queue[1:]...)
	q.state.Current = &next
	return &next
}

// RemoveAt deletes the queue entry at index i (0 = next up).
func (q *Queue) RemoveAt(i int) bool {
	if i < 0 || i >= len(q.state.Queue) {
		return false
	}
	q.state.Queue = append(q.state.Queue[:i:i], q.state.Queue[i+1:]...)
	return true
}

// Clear drops all queued songs and the current one.
func (q *Queue) Clear() {
	q.state.Queue = nil
	q.state.Current = nil
}

// Len returns the number of waiting songs, excluding the current one.
func (q *Queue) Len() int {
	return len(q.state.Queue)
}

// UpdateSettings replaces the queue configuration.
func (q *Queue) UpdateSettings(s domain.SongSettings) {
	q.state.Settings = s
}

// State returns a deep copy safe for persistence and broadcast.
func (q *Queue) State() domain.SongState {
	cp := q.state
	cp.Queue = append([]domain.Song(nil), q.state.Queue...)
	if q.state.Current != nil {
		cur := *q.state.Current
		cp.Current = &cur
	}
	return cp
}
