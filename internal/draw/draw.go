// Package draw implements the two-phase prize draw: keyword collection into
// a unique candidate pool, then uniform winner selection via an in-place
// Fisher–Yates shuffle.
package draw

import (
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mugummy/chzzkbot/internal/domain"
	apperrors "github.com/mugummy/chzzkbot/internal/errors"
)

// Session owns one channel's draw state, including the durable
// previous-winners set that survives resets. Not safe for concurrent use;
// the channel coordinator serializes all access.
type Session struct {
	state    domain.DrawState
	seen     map[string]bool
	randIntN func(n int) int
}

func NewSession(state domain.DrawState) *Session {
	if state.Status == "" {
		state.Status = domain.DrawIdle
	}
	if state.PreviousWinners == nil {
		state.PreviousWinners = make(map[string]bool)
	}
	s := &Session{state: state, randIntN: rand.IntN}
	s.reindex()
	return s
}

// NewSessionWithRand builds a session with a fixed random source for tests.
func NewSessionWithRand(state domain.DrawState, randIntN func(n int) int) *Session {
	s := NewSession(state)
	s.randIntN = randIntN
	return s
}

func (s *Session) reindex() {
	s.seen = make(map[string]bool, len(s.state.Participants))
	for _, p := range s.state.Participants {
		s.seen[p.ViewerID] = true
	}
}

// StartCollecting clears participants and winners and opens collection.
// Refused while a collection is already running.
func (s *Session) StartCollecting(keyword string, settings domain.DrawSettings, now time.Time) error {
	if s.state.Status == domain.DrawCollecting {
		return apperrors.ConflictError("draw is already collecting")
	}
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return apperrors.ValidationError("draw keyword must not be empty")
	}
	s.state.ID = uuid.NewString()
	s.state.Status = domain.DrawCollecting
	s.state.Keyword = keyword
	s.state.Settings = settings
	s.state.Participants = nil
	s.state.Winners = nil
	s.state.CreatedAt = now
	s.state.EndedAt = time.Time{}
	s.reindex()
	return nil
}

// HandleChatCandidate admits a viewer whose message equals the keyword,
// subject to the session's eligibility rules. Returns whether the pool
// changed.
func (s *Session) HandleChatCandidate(viewerID, nickname, message string, subscriber bool) bool {
	if s.state.Status != domain.DrawCollecting {
		return false
	}
	if strings.TrimSpace(message) != s.state.Keyword {
		return false
	}
	if s.seen[viewerID] {
		return false
	}
	if s.state.Settings.SubscriberOnly && !subscriber {
		return false
	}
	if s.state.Settings.ExcludeWinners && s.state.PreviousWinners[viewerID] {
		return false
	}
	if max := s.state.Settings.MaxParticipants; max > 0 && len(s.state.Participants) >= max {
		return false
	}
	s.state.Participants = append(s.state.Participants, domain.DrawParticipant{ViewerID: viewerID, Nickname: nickname})
	s.seen[viewerID] = true
	return true
}

// StopCollecting closes the candidate pool.
func (s *Session) StopCollecting() error {
	if s.state.Status != domain.DrawCollecting {
		return apperrors.ConflictError("draw is not collecting")
	}
	s.state.Status = domain.DrawClosed
	return nil
}

// Draw picks min(count, pool size) distinct winners by an in-place
// Fisher–Yates shuffle of the participant list, which yields uniform
// selection without replacement. Transitions closed→picking; Reveal finishes
// the session after the client-side animation delay.
func (s *Session) Draw(count int) ([]domain.DrawParticipant, error) {
	if s.state.Status != domain.DrawClosed {
		return nil, apperrors.ConflictError("draw pool is not closed")
	}
	if len(s.state.Participants) == 0 {
		return nil, apperrors.ValidationError("draw has no participants")
	}
	if count <= 0 {
		count = s.state.Settings.WinnerCount
	}
	if count <= 0 {
		count = 1
	}
	if count > len(s.state.Participants) {
		count = len(s.state.Participants)
	}

	pool := s.state.Participants
	for i := len(pool) - 1; i > 0; i-- {
		j := s.randIntN(i + 1)
		pool[i], pool[j] = pool[j], pool[i]
	}

	s.state.Winners = append([]domain.DrawParticipant(nil), pool[:count]...)
	if s.state.Settings.ExcludeWinners {
		for _, w := range s.state.Winners {
			s.state.PreviousWinners[w.ViewerID] = true
		}
	}
	s.state.Status = domain.DrawPicking
	return append([]domain.DrawParticipant(nil), s.state.Winners...), nil
}

// Reveal ends the session once the winner announcement has played out.
func (s *Session) Reveal(now time.Time) error {
	if s.state.Status != domain.DrawPicking {
		return apperrors.ConflictError("no draw result to reveal")
	}
	s.state.Status = domain.DrawEnded
	s.state.EndedAt = now
	return nil
}

// Reset returns to idle from any state. The previous-winners set is kept;
// use ClearPreviousWinners to drop it.
func (s *Session) Reset() {
	prev := s.state.PreviousWinners
	s.state = domain.DrawState{Status: domain.DrawIdle, PreviousWinners: prev}
	s.reindex()
}

// ClearPreviousWinners empties the durable exclusion set.
func (s *Session) ClearPreviousWinners() {
	s.state.PreviousWinners = make(map[string]bool)
}

// Status returns the current lifecycle phase.
func (s *Session) Status() domain.DrawStatus {
	return s.state.Status
}

// Collecting reports whether chat candidates are currently admitted.
func (s *Session) Collecting() bool {
	return s.state.Status == domain.DrawCollecting
}

// PickDelay returns the configured reveal delay.
func (s *Session) PickDelay() time.Duration {
	return time.Duration(s.state.Settings.PickDelaySeconds) * time.Second
}

// State returns a deep copy safe for persistence and broadcast.
func (s *Session) State() domain.DrawState {
	cp := s.state
	cp.Participants = append([]domain.DrawParticipant(nil), s.state.Participants...)
	cp.Winners = append([]domain.DrawParticipant(nil), s.state.Winners...)
	cp.PreviousWinners = make(map[string]bool, len(s.state.PreviousWinners))
	for id := range s.state.PreviousWinners {
		cp.PreviousWinners[id] = true
	}
	return cp
}
