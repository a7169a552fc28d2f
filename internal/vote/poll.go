// Package vote implements the timed poll engine: one active poll per
// channel, chat ballots limited to one per viewer, optional donation-weighted
// ballots, and bounded result history.
package vote

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/mugummy/chzzkbot/internal/domain"
	apperrors "github.com/mugummy/chzzkbot/internal/errors"
)

const maxHistory = 20

// Poll owns one channel's vote state. Not safe for concurrent use; the
// channel coordinator serializes all access. Auto-end timers are scheduled
// by the coordinator, which owns all cancellable timers.
type Poll struct {
	archive domain.VoteArchive
}

func NewPoll(archive domain.VoteArchive) *Poll {
	return &Poll{archive: archive}
}

// Create initializes a new poll with zero tallies. Refused while a poll is
// active; otherwise it replaces any previous instance.
func (p *Poll) Create(question string, options []string, settings domain.VoteSettings) error {
	if cur := p.archive.Current; cur != nil && cur.Active {
		return apperrors.ConflictError("a vote is already active")
	}
	if question == "" || len(options) < 2 {
		return apperrors.ValidationError("a vote needs a question and at least two options")
	}
	if settings.AllowDonation && settings.DonationWeight <= 0 {
		return apperrors.ValidationError("donation weight must be positive")
	}

	opts := make([]domain.VoteOption, len(options))
	for i, label := range options {
		opts[i] = domain.VoteOption{Label: label}
	}
	p.archive.Current = &domain.VoteState{
		ID:       uuid.NewString(),
		Question: question,
		Options:  opts,
		Settings: settings,
		Voters:   make(map[string]bool),
	}
	return nil
}

// Start transitions the created poll to active. The returned duration is
// zero when no auto-end is configured.
func (p *Poll) Start(now time.Time) (time.Duration, error) {
	cur := p.archive.Current
	if cur == nil || cur.Ended {
		return 0, apperrors.NotFoundError("no vote to start")
	}
	if cur.Active {
		return 0, apperrors.ConflictError("vote already started")
	}
	cur.Active = true
	cur.StartedAt = now
	return time.Duration(cur.Settings.DurationSec) * time.Second, nil
}

// CastBallot processes one chat ballot. Out-of-policy ballots (inactive
// poll, ineligible viewer, duplicate, unparseable token) are silently
// dropped. Returns whether a tally changed.
func (p *Poll) CastBallot(viewerID, message string, subscriber bool) bool {
	cur := p.archive.Current
	if cur == nil || !cur.Active {
		return false
	}
	if cur.Settings.SubscriberOnly && !subscriber {
		return false
	}
	if cur.Voters[viewerID] {
		return false
	}
	idx, ok := extractOption(message, cur.Settings.Mode)
	if !ok || idx < 1 || idx > len(cur.Options) {
		return false
	}
	cur.Options[idx-1].Count++
	cur.Voters[viewerID] = true
	return true
}

// CastDonationBallot processes a donation as a weighted ballot. Weight is
// amount divided by the configured divisor, floored, and must be at least 1.
// Donation ballots neither consume nor respect the one-ballot-per-viewer
// restriction and may repeat.
func (p *Poll) CastDonationBallot(d domain.DonationEvent) bool {
	cur := p.archive.Current
	if cur == nil || !cur.Active || !cur.Settings.AllowDonation {
		return false
	}
	weight := d.Amount / cur.Settings.DonationWeight
	if weight < 1 {
		return false
	}
	// Donation messages are free-form regardless of the poll's chat mode.
	idx, ok := extractOption(d.Message, domain.VoteModeFree)
	if !ok || idx < 1 || idx > len(cur.Options) {
		return false
	}
	cur.Options[idx-1].Count += weight
	return true
}

// End transitions the active poll to ended and archives the result.
func (p *Poll) End(now time.Time) (*domain.VoteRecord, error) {
	cur := p.archive.Current
	if cur == nil || !cur.Active {
		return nil, apperrors.NotFoundError("no active vote to end")
	}
	cur.Active = false
	cur.Ended = true

	total := 0
	for _, o := range cur.Options {
		total += o.Count
	}
	record := domain.VoteRecord{
		ID:       cur.ID,
		Question: cur.Question,
		Options:  append([]domain.VoteOption(nil), cur.Options...),
		Total:    total,
		EndedAt:  now,
	}
	p.archive.History = append(p.archive.History, record)
	if len(p.archive.History) > maxHistory {
		p.archive.History = p.archive.History[len(p.archive.History)-maxHistory:]
	}
	return &record, nil
}

// Reset discards the current poll instance entirely. History is kept.
func (p *Poll) Reset() {
	p.archive.Current = nil
}

// Leaders returns the options with the highest tally. More than one entry
// means a tie, which is surfaced as such, never auto-broken.
func (p *Poll) Leaders() []domain.VoteOption {
	cur := p.archive.Current
	if cur == nil {
		return nil
	}
	best := -1
	var leaders []domain.VoteOption
	for _, o := range cur.Options {
		switch {
		case o.Count > best:
			best = o.Count
			leaders = leaders[:0]
			leaders = append(leaders, o)
		case o.Count == best:
			leaders = append(leaders, o)
		}
	}
	return leaders
}

// Active reports whether ballots are currently accepted.
func (p *Poll) Active() bool {
	return p.archive.Current != nil && p.archive.Current.Active
}

// CurrentID returns the live poll's id, or "" when none exists.
func (p *Poll) CurrentID() string {
	if p.archive.Current == nil {
		return ""
	}
	return p.archive.Current.ID
}

// State returns a deep copy safe for persistence and broadcast.
func (p *Poll) State() domain.VoteArchive {
	cp := domain.VoteArchive{
		History: append([]domain.VoteRecord(nil), p.archive.History...),
	}
	if cur := p.archive.Current; cur != nil {
		dup := *cur
		dup.Options = append([]domain.VoteOption(nil), cur.Options...)
		dup.Voters = make(map[string]bool, len(cur.Voters))
		for id := range cur.Voters {
			dup.Voters[id] = true
		}
		cp.Current = &dup
	}
	return cp
}

// extractOption pulls the chosen 1-based option number out of a message.
// Free mode takes the first run of digits anywhere; command mode requires a
// standalone "!<n>" token.
func extractOption(message string, mode domain.VoteMode) (int, bool) {
	if mode == domain.VoteModeCommand {
		for _, tok := range strings.Fields(message) {
			rest, ok := strings.CutPrefix(tok, "!")
			if !ok || rest == "" {
				continue
			}
			if n, ok := parseDigits(rest); ok {
				return n, true
			}
		}
		return 0, false
	}

	start := -1
	for i, r := range message {
		if unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			n, ok := parseDigits(message[start:i])
			return n, ok
		}
	}
	if start >= 0 {
		return parseDigits(message[start:])
	}
	return 0, false
}

// parseDigits converts an all-ASCII-digit string, guarding overflow by
// rejecting absurd lengths.
func parseDigits(s string) (int, bool) {
	if s == "" || len(s) > 6 {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}
