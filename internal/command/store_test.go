package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mugummy/chzzkbot/internal/domain"
)

func TestAddAndResolve(t *testing.T) {
	s := NewStore(domain.CommandState{})
	_, err := s.Add(domain.KindCommand, []string{"!discord"}, "join: example.com")
	require.NoError(t, err)

	rule, ok := s.Resolve("!discord")
	require.True(t, ok)
	assert.Equal(t, "join: example.com", rule.Response)

	_, ok = s.Resolve("!unknown")
	assert.False(t, ok)
}

func TestAddValidation(t *testing.T) {
	s := NewStore(domain.CommandState{})
	_, err := s.Add(domain.KindCommand, nil, "r")
	assert.Error(t, err)
	_, err = s.Add(domain.KindCommand, []string{"  "}, "r")
	assert.Error(t, err)
	_, err = s.Add(domain.KindCommand, []string{"!x"}, "")
	assert.Error(t, err)
}

func TestTriggerUniquenessPerKind(t *testing.T) {
	s := NewStore(domain.CommandState{})
	_, err := s.Add(domain.KindCommand, []string{"!hi"}, "a")
	require.NoError(t, err)

	// Same trigger, same kind: conflict (case-insensitive).
	_, err = s.Add(domain.KindCommand, []string{"!HI"}, "b")
	assert.Error(t, err)

	// Same trigger, other kind: allowed.
	_, err = s.Add(domain.KindCounter, []string{"!hi"}, "c {count}")
	assert.NoError(t, err)
}

func TestUpdateAndDisable(t *testing.T) {
	s := NewStore(domain.CommandState{})
	rule, err := s.Add(domain.KindCommand, []string{"!a"}, "old")
	require.NoError(t, err)

	require.NoError(t, s.Update(rule.ID, []string{"!b"}, "new", true))
	_, ok := s.Resolve("!a")
	assert.False(t, ok)
	got, ok := s.Resolve("!b")
	require.True(t, ok)
	assert.Equal(t, "new", got.Response)

	require.NoError(t, s.Update(rule.ID, []string{"!b"}, "new", false))
	_, ok = s.Resolve("!b")
	assert.False(t, ok)

	assert.Error(t, s.Update("missing", []string{"!x"}, "r", true))
}

func TestRemoveRebuildsIndex(t *testing.T) {
	s := NewStore(domain.CommandState{})
	rule, err := s.Add(domain.KindCounter, []string{"!deaths"}, "deaths: {count}")
	require.NoError(t, err)

	require.NoError(t, s.Remove(rule.ID))
	_, ok := s.Resolve("!deaths")
	assert.False(t, ok)
	assert.Error(t, s.Remove(rule.ID))
}

func TestRecordUse(t *testing.T) {
	s := NewStore(domain.CommandState{})
	rule, err := s.Add(domain.KindCounter, []string{"!deaths"}, "deaths: {count}")
	require.NoError(t, err)

	total, viewer := s.RecordUse(rule, "v1")
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, viewer)
	total, viewer = s.RecordUse(rule, "v1")
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, viewer)
	_, viewer = s.RecordUse(rule, "v2")
	assert.Equal(t, 1, viewer)

	st := s.State()
	require.Len(t, st.Counters, 1)
	assert.Equal(t, 3, st.Counters[0].Count)
}

func TestSetNote(t *testing.T) {
	s := NewStore(domain.CommandState{})
	rule, err := s.Add(domain.KindCounter, []string{"!boss"}, "attempts: {count} ({note})")
	require.NoError(t, err)
	require.NoError(t, s.SetNote(rule.ID, "phase 3"))
	assert.Equal(t, "phase 3", s.State().Counters[0].Note)
}

func TestMacros(t *testing.T) {
	s := NewStore(domain.CommandState{})
	_, err := s.AddMacro("", 60)
	assert.Error(t, err)
	_, err = s.AddMacro("follow me", 5)
	assert.Error(t, err)

	m, err := s.AddMacro("follow me", 600)
	require.NoError(t, err)
	assert.Len(t, s.Macros(), 1)

	require.NoError(t, s.RemoveMacro(m.ID))
	assert.Empty(t, s.Macros())
	assert.Error(t, s.RemoveMacro(m.ID))
}

func TestStateRoundTrip(t *testing.T) {
	s := NewStore(domain.CommandState{})
	rule, err := s.Add(domain.KindCounter, []string{"!c"}, "{count}")
	require.NoError(t, err)
	s.RecordUse(rule, "v1")

	restored := NewStore(s.State())
	got, ok := restored.Resolve("!c")
	require.True(t, ok)
	assert.Equal(t, 1, got.Count)
	assert.Equal(t, 1, got.ViewerCounts["v1"])
}
