package draw

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mugummy/chzzkbot/internal/domain"
)

func collecting(t *testing.T, settings domain.DrawSettings) *Session {
	t.Helper()
	s := NewSession(domain.DrawState{})
	require.NoError(t, s.StartCollecting("!join", settings, time.Now()))
	return s
}

func TestCollectionRules(t *testing.T) {
	s := collecting(t, domain.DrawSettings{MaxParticipants: 2})

	assert.True(t, s.HandleChatCandidate("v1", "a", "!join", false))
	assert.True(t, s.HandleChatCandidate("v2", "b", "  !join  ", false))

	// Duplicate, wrong keyword, capacity.
	assert.False(t, s.HandleChatCandidate("v1", "a", "!join", false))
	assert.False(t, s.HandleChatCandidate("v3", "c", "!other", false))
	assert.False(t, s.HandleChatCandidate("v3", "c", "!join", false))

	assert.Len(t, s.State().Participants, 2)
}

func TestSubscriberOnlyCollection(t *testing.T) {
	s := collecting(t, domain.DrawSettings{SubscriberOnly: true})
	assert.False(t, s.HandleChatCandidate("v1", "a", "!join", false))
	assert.True(t, s.HandleChatCandidate("v1", "a", "!join", true))
}

func TestDrawPicksDistinctWinnersFromPool(t *testing.T) {
	s := collecting(t, domain.DrawSettings{MaxParticipants: 2})
	s.HandleChatCandidate("v1", "a", "!join", false)
	s.HandleChatCandidate("v2", "b", "!join", false)
	s.HandleChatCandidate("v3", "c", "!join", false) // over capacity
	require.NoError(t, s.StopCollecting())

	winners, err := s.Draw(1)
	require.NoError(t, err)
	require.Len(t, winners, 1)
	assert.Contains(t, []string{"v1", "v2"}, winners[0].ViewerID)

	require.NoError(t, s.Reveal(time.Now()))
	assert.Equal(t, domain.DrawEnded, s.Status())
}

func TestDrawRequiresClosedPool(t *testing.T) {
	s := collecting(t, domain.DrawSettings{})
	s.HandleChatCandidate("v1", "a", "!join", false)

	_, err := s.Draw(1)
	assert.Error(t, err)

	require.NoError(t, s.StopCollecting())
	_, err = s.Draw(1)
	assert.NoError(t, err)
}

func TestDrawEmptyPool(t *testing.T) {
	s := collecting(t, domain.DrawSettings{})
	require.NoError(t, s.StopCollecting())
	_, err := s.Draw(1)
	assert.Error(t, err)
}

func TestDrawCountClamped(t *testing.T) {
	s := collecting(t, domain.DrawSettings{})
	for i := 0; i < 3; i++ {
		s.HandleChatCandidate(fmt.Sprintf("v%d", i), "n", "!join", false)
	}
	require.NoError(t, s.StopCollecting())

	winners, err := s.Draw(10)
	require.NoError(t, err)
	assert.Len(t, winners, 3)

	ids := map[string]bool{}
	for _, w := range winners {
		ids[w.ViewerID] = true
	}
	assert.Len(t, ids, 3, "winners must be distinct")
}

func TestPreviousWinnersExclusion(t *testing.T) {
	s := collecting(t, domain.DrawSettings{ExcludeWinners: true})
	s.HandleChatCandidate("v1", "a", "!join", false)
	require.NoError(t, s.StopCollecting())
	_, err := s.Draw(1)
	require.NoError(t, err)
	require.NoError(t, s.Reveal(time.Now()))

	// New session: the previous winner is locked out.
	require.NoError(t, s.StartCollecting("!join", domain.DrawSettings{ExcludeWinners: true}, time.Now()))
	assert.False(t, s.HandleChatCandidate("v1", "a", "!join", false))
	assert.True(t, s.HandleChatCandidate("v2", "b", "!join", false))

	// Reset keeps the exclusion set; explicit clear drops it.
	s.Reset()
	require.NoError(t, s.StartCollecting("!join", domain.DrawSettings{ExcludeWinners: true}, time.Now()))
	assert.False(t, s.HandleChatCandidate("v1", "a", "!join", false))

	s.Reset()
	s.ClearPreviousWinners()
	require.NoError(t, s.StartCollecting("!join", domain.DrawSettings{ExcludeWinners: true}, time.Now()))
	assert.True(t, s.HandleChatCandidate("v1", "a", "!join", false))
}

func TestStartCollectingWhileCollectingRefused(t *testing.T) {
	s := collecting(t, domain.DrawSettings{})
	assert.Error(t, s.StartCollecting("!again", domain.DrawSettings{}, time.Now()))
}

func TestDrawUniformity(t *testing.T) {
	const (
		pool   = 5
		trials = 20000
	)
	counts := make(map[string]int, pool)

	for trial := 0; trial < trials; trial++ {
		s := NewSession(domain.DrawState{})
		require.NoError(t, s.StartCollecting("!join", domain.DrawSettings{}, time.Now()))
		for i := 0; i < pool; i++ {
			s.HandleChatCandidate(fmt.Sprintf("v%d", i), "n", "!join", false)
		}
		require.NoError(t, s.StopCollecting())
		winners, err := s.Draw(1)
		require.NoError(t, err)
		counts[winners[0].ViewerID]++
	}

	expected := float64(trials) / pool
	for id, c := range counts {
		assert.InDelta(t, expected, float64(c), expected*0.12, "participant %s", id)
	}
}
