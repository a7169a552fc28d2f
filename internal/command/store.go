// Package command manages the channel's command, counter, and macro rules
// and resolves chat messages against them through the trigger index.
package command

import (
	"strings"

	"github.com/google/uuid"

	"github.com/mugummy/chzzkbot/internal/domain"
	apperrors "github.com/mugummy/chzzkbot/internal/errors"
	"github.com/mugummy/chzzkbot/internal/trigger"
)

// Store owns one channel's rule sets. Not safe for concurrent use; the
// channel coordinator serializes all access. The trigger index is rebuilt on
// every rule change.
type Store struct {
	commands []*domain.CommandRule
	counters []*domain.CommandRule
	macros   []domain.MacroRule
	index    *trigger.Index
}

func NewStore(state domain.CommandState) *Store {
	s := &Store{index: trigger.New()}
	for i := range state.Commands {
		rule := state.Commands[i]
		s.commands = append(s.commands, &rule)
	}
	for i := range state.Counters {
		rule := state.Counters[i]
		s.counters = append(s.counters, &rule)
	}
	s.macros = append(s.macros, state.Macros...)
	s.rebuild()
	return s
}

func (s *Store) rebuild() {
	merged := make([]*domain.CommandRule, 0, len(s.commands)+len(s.counters))
	merged = append(merged, s.commands...)
	merged = append(merged, s.counters...)
	s.index.Rebuild(merged)
}

// Add registers a new rule of the given kind. Triggers must be non-empty
// and unique across enabled rules of the same kind.
func (s *Store) Add(kind domain.RuleKind, triggers []string, response string) (*domain.CommandRule, error) {
	cleaned := cleanTriggers(triggers)
	if len(cleaned) == 0 {
		return nil, apperrors.ValidationError("rule needs at least one trigger")
	}
	if response == "" {
		return nil, apperrors.ValidationError("rule needs a response")
	}
	if dup := s.findDuplicate(kind, cleaned, ""); dup != "" {
		return nil, apperrors.ConflictError("trigger already in use: " + dup)
	}

	rule := &domain.CommandRule{
		ID:       uuid.NewString(),
		Kind:     kind,
		Triggers: cleaned,
		Response: response,
		Enabled:  true,
	}
	if kind == domain.KindCounter {
		rule.ViewerCounts = make(map[string]int)
		s.counters = append(s.counters, rule)
	} else {
		s.commands = append(s.commands, rule)
	}
	s.rebuild()
	return rule, nil
}

// Update rewrites a rule's triggers and response.
func (s *Store) Update(id string, triggers []string, response string, enabled bool) error {
	rule := s.find(id)
	if rule == nil {
		return apperrors.NotFoundError("rule not found")
	}
	cleaned := cleanTriggers(triggers)
	if len(cleaned) == 0 {
		return apperrors.ValidationError("rule needs at least one trigger")
	}
	if dup := s.findDuplicate(rule.Kind, cleaned, id); dup != "" {
		return apperrors.ConflictError("trigger already in use: " + dup)
	}
	rule.Triggers = cleaned
	rule.Response = response
	rule.Enabled = enabled
	s.rebuild()
	return nil
}

// Remove deletes a rule by id.
func (s *Store) Remove(id string) error {
	for i, rule := range s.commands {
		if rule.ID == id {
			s.commands = append(s.commands[:i:i], s.commands[i+1:]...)
			s.rebuild()
			return nil
		}
	}
	for i, rule := range s.counters {
		if rule.ID == id {
			s.counters = append(s.counters[:i:i], s.counters[i+1:]...)
			s.rebuild()
			return nil
		}
	}
	return apperrors.NotFoundError("rule not found")
}

// SetNote updates a counter rule's free-text slot.
func (s *Store) SetNote(id, note string) error {
	rule := s.find(id)
	if rule == nil {
		return apperrors.NotFoundError("rule not found")
	}
	rule.Note = note
	return nil
}

// Resolve matches a chat message against the enabled rules.
func (s *Store) Resolve(message string) (*domain.CommandRule, bool) {
	return s.index.Resolve(message)
}

// RecordUse bumps the usage counters of a matched rule and returns the new
// totals (rule-wide, per-viewer).
func (s *Store) RecordUse(rule *domain.CommandRule, viewerID string) (int, int) {
	rule.Count++
	if rule.ViewerCounts == nil {
		rule.ViewerCounts = make(map[string]int)
	}
	rule.ViewerCounts[viewerID]++
	return rule.Count, rule.ViewerCounts[viewerID]
}

// --- Macros ---

// AddMacro registers a recurring timed message. The interval must be at
// least 10 seconds to keep macros from flooding chat.
func (s *Store) AddMacro(message string, intervalSec int) (*domain.MacroRule, error) {
	if message == "" {
		return nil, apperrors.ValidationError("macro needs a message")
	}
	if intervalSec < 10 {
		return nil, apperrors.ValidationError("macro interval must be at least 10 seconds")
	}
	macro := domain.MacroRule{ID: uuid.NewString(), Message: message, IntervalSec: intervalSec, Enabled: true}
	s.macros = append(s.macros, macro)
	return &macro, nil
}

// RemoveMacro deletes a macro by id.
func (s *Store) RemoveMacro(id string) error {
	for i, m := range s.macros {
		if m.ID == id {
			s.macros = append(s.macros[:i:i], s.macros[i+1:]...)
			return nil
		}
	}
	return apperrors.NotFoundError("macro not found")
}

// Macros lists the registered macros.
func (s *Store) Macros() []domain.MacroRule {
	return append([]domain.MacroRule(nil), s.macros...)
}

func (s *Store) find(id string) *domain.CommandRule {
	for _, rule := range s.commands {
		if rule.ID == id {
			return rule
		}
	}
	for _, rule := range s.counters {
		if rule.ID == id {
			return rule
		}
	}
	return nil
}

func (s *Store) findDuplicate(kind domain.RuleKind, triggers []string, skipID string) string {
	pool := s.commands
	if kind == domain.KindCounter {
		pool = s.counters
	}
	for _, rule := range pool {
		if rule.ID == skipID || !rule.Enabled {
			continue
		}
		for _, existing := range rule.Triggers {
			for _, t := range triggers {
				if strings.EqualFold(existing, t) {
					return t
				}
			}
		}
	}
	return ""
}

func cleanTriggers(triggers []string) []string {
	out := make([]string, 0, len(triggers))
	for _, t := range triggers {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// State returns a deep copy safe for persistence and broadcast.
func (s *Store) State() domain.CommandState {
	cp := domain.CommandState{Macros: append([]domain.MacroRule(nil), s.macros...)}
	for _, rule := range s.commands {
		cp.Commands = append(cp.Commands, copyRule(rule))
	}
	for _, rule := range s.counters {
		cp.Counters = append(cp.Counters, copyRule(rule))
	}
	return cp
}

func copyRule(rule *domain.CommandRule) domain.CommandRule {
	dup := *rule
	dup.Triggers = append([]string(nil), rule.Triggers...)
	if rule.ViewerCounts != nil {
		dup.ViewerCounts = make(map[string]int, len(rule.ViewerCounts))
		for id, n := range rule.ViewerCounts {
			dup.ViewerCounts[id] = n
		}
	}
	return dup
}
