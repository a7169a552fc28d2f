// Package trigger maintains a fast lookup structure over command and counter
// triggers. Exact triggers match the first whitespace-delimited token of a
// message; "{any}"-suffixed triggers match as a substring prefix anywhere in
// the message. Matching is case-insensitive.
package trigger

import (
	"strings"

	"github.com/mugummy/chzzkbot/internal/domain"
)

// WildcardSuffix marks a trigger as a substring match on everything before
// the marker.
const WildcardSuffix = "{any}"

type exactEntry struct {
	rule *domain.CommandRule
	pos  int
}

type wildcardEntry struct {
	prefix string
	rule   *domain.CommandRule
	pos    int
}

// Index answers "does this message fire a rule" without scanning every
// registered rule. It is a pure lookup structure: callers update rule usage
// state themselves and must Rebuild after any rule change.
type Index struct {
	exact     map[string]exactEntry
	wildcards []wildcardEntry
}

func New() *Index {
	return &Index{exact: make(map[string]exactEntry)}
}

// Rebuild replaces the index contents from the enabled rules, preserving
// registration order for resolution precedence. Disabled rules are skipped.
func (ix *Index) Rebuild(rules []*domain.CommandRule) {
	ix.exact = make(map[string]exactEntry, len(rules))
	ix.wildcards = ix.wildcards[:0]

	pos := 0
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		for _, t := range rule.Triggers {
			folded := strings.ToLower(strings.TrimSpace(t))
			if folded == "" {
				continue
			}
			if prefix, ok := strings.CutSuffix(folded, WildcardSuffix); ok {
				if prefix != "" {
					ix.wildcards = append(ix.wildcards, wildcardEntry{prefix: prefix, rule: rule, pos: pos})
				}
			} else if _, dup := ix.exact[folded]; !dup {
				ix.exact[folded] = exactEntry{rule: rule, pos: pos}
			}
			pos++
		}
	}
}

// Matches reports whether any enabled rule fires for the message.
func (ix *Index) Matches(message string) bool {
	_, ok := ix.Resolve(message)
	return ok
}

// Resolve returns the first rule, in registration order, whose trigger
// matches the message. Empty or whitespace-only messages never match.
func (ix *Index) Resolve(message string) (*domain.CommandRule, bool) {
	folded := strings.ToLower(strings.TrimSpace(message))
	if folded == "" {
		return nil, false
	}

	best, bestPos := (*domain.CommandRule)(nil), -1

	token := folded
	if i := strings.IndexAny(folded, " \t"); i >= 0 {
		token = folded[:i]
	}
	if e, ok := ix.exact[token]; ok {
		best, bestPos = e.rule, e.pos
	}

	for _, w := range ix.wildcards {
		if bestPos >= 0 && w.pos > bestPos {
			break
		}
		if strings.Contains(folded, w.prefix) {
			best, bestPos = w.rule, w.pos
			break
		}
	}
	return best, best != nil
}
