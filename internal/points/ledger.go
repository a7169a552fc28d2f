// Package points implements the per-viewer point ledger with chat-cooldown
// gated awarding and leaderboard queries.
package points

import (
	"sort"

	"github.com/mugummy/chzzkbot/internal/domain"
)

// Ledger owns one channel's point state. It is not safe for concurrent use;
// the channel coordinator serializes all access.
type Ledger struct {
	state domain.PointsState
}

func NewLedger(state domain.PointsState) *Ledger {
	if state.Entries == nil {
		state.Entries = make(map[string]*domain.PointEntry)
	}
	return &Ledger{state: state}
}

func DefaultSettings() domain.PointSettings {
	return domain.PointSettings{Enabled: true, AmountPerMsg: 10, CooldownMs: 60_000}
}

// Award grants the configured amount to the viewer if their cooldown window
// has elapsed. A first-seen viewer always gets an entry. Returns whether
// points were granted, which callers use to decide on signaling.
func (l *Ledger) Award(viewerID, nickname string, nowMs int64) bool {
	if !l.state.Settings.Enabled {
		return false
	}

	entry, ok := l.state.Entries[viewerID]
	if !ok {
		l.state.NextSeq++
		l.state.Entries[viewerID] = &domain.PointEntry{
			ViewerID:    viewerID,
			Nickname:    nickname,
			Points:      l.state.Settings.AmountPerMsg,
			LastAwardMs: nowMs,
			Seq:         l.state.NextSeq,
		}
		return true
	}

	if nowMs-entry.LastAwardMs < l.state.Settings.CooldownMs {
		return false
	}
	entry.Points += l.state.Settings.AmountPerMsg
	entry.LastAwardMs = nowMs
	entry.Nickname = nickname
	return true
}

// Adjust adds (or subtracts) points directly, clamping at zero. Used by the
// control interface for manual corrections. Returns the resulting balance.
func (l *Ledger) Adjust(viewerID, nickname string, delta int) int {
	entry, ok := l.state.Entries[viewerID]
	if !ok {
		l.state.NextSeq++
		entry = &domain.PointEntry{ViewerID: viewerID, Nickname: nickname, Seq: l.state.NextSeq}
		l.state.Entries[viewerID] = entry
	}
	entry.Points += delta
	if entry.Points < 0 {
		entry.Points = 0
	}
	if nickname != "" {
		entry.Nickname = nickname
	}
	return entry.Points
}

// Balance returns the viewer's current points.
func (l *Ledger) Balance(viewerID string) int {
	if entry, ok := l.state.Entries[viewerID]; ok {
		return entry.Points
	}
	return 0
}

// Leaderboard returns up to limit entries sorted by points descending, ties
// broken by first-seen order. limit <= 0 returns everything.
func (l *Ledger) Leaderboard(limit int) []domain.PointEntry {
	entries := make([]domain.PointEntry, 0, len(l.state.Entries))
	for _, e := range l.state.Entries {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		return entries[i].Seq < entries[j].Seq
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// UpdateSettings replaces the award configuration.
func (l *Ledger) UpdateSettings(s domain.PointSettings) {
	l.state.Settings = s
}

// State returns a deep copy safe to hand to the persistence and broadcast
// paths.
func (l *Ledger) State() domain.PointsState {
	cp := l.state
	cp.Entries = make(map[string]*domain.PointEntry, len(l.state.Entries))
	for id, e := range l.state.Entries {
		dup := *e
		cp.Entries[id] = &dup
	}
	return cp
}
