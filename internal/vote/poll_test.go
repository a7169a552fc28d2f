package vote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mugummy/chzzkbot/internal/domain"
)

func freeSettings() domain.VoteSettings {
	return domain.VoteSettings{Mode: domain.VoteModeFree, DurationSec: 60}
}

func startedPoll(t *testing.T, settings domain.VoteSettings, options ...string) *Poll {
	t.Helper()
	if len(options) == 0 {
		options = []string{"A", "B"}
	}
	p := NewPoll(domain.VoteArchive{})
	require.NoError(t, p.Create("Q", options, settings))
	_, err := p.Start(time.Now())
	require.NoError(t, err)
	return p
}

func tallies(p *Poll) []int {
	st := p.State()
	out := make([]int, len(st.Current.Options))
	for i, o := range st.Current.Options {
		out[i] = o.Count
	}
	return out
}

func TestOneBallotPerViewer(t *testing.T) {
	p := startedPoll(t, freeSettings())

	assert.True(t, p.CastBallot("v1", "1", false))
	assert.Equal(t, []int{1, 0}, tallies(p))

	// Same viewer cannot change any tally again.
	assert.False(t, p.CastBallot("v1", "2", false))
	assert.Equal(t, []int{1, 0}, tallies(p))

	assert.True(t, p.CastBallot("v2", "2", false))
	assert.Equal(t, []int{1, 1}, tallies(p))
}

func TestBallotRejections(t *testing.T) {
	p := NewPoll(domain.VoteArchive{})
	require.NoError(t, p.Create("Q", []string{"A", "B"}, freeSettings()))

	// Not started yet.
	assert.False(t, p.CastBallot("v1", "1", false))

	_, err := p.Start(time.Now())
	require.NoError(t, err)

	assert.False(t, p.CastBallot("v1", "no number here", false))
	assert.False(t, p.CastBallot("v1", "0", false))
	assert.False(t, p.CastBallot("v1", "3", false))

	_, err = p.End(time.Now())
	require.NoError(t, err)
	assert.False(t, p.CastBallot("v1", "1", false))
}

func TestSubscriberOnly(t *testing.T) {
	s := freeSettings()
	s.SubscriberOnly = true
	p := startedPoll(t, s)

	assert.False(t, p.CastBallot("v1", "1", false))
	assert.True(t, p.CastBallot("v1", "1", true))
}

func TestCommandModeParsing(t *testing.T) {
	s := domain.VoteSettings{Mode: domain.VoteModeCommand}
	p := startedPoll(t, s)

	assert.False(t, p.CastBallot("v1", "1", false))
	assert.False(t, p.CastBallot("v1", "vote 2", false))
	assert.True(t, p.CastBallot("v1", "!2", false))
	assert.Equal(t, []int{0, 1}, tallies(p))
	assert.True(t, p.CastBallot("v2", "i pick !1 today", false))
	assert.Equal(t, []int{1, 1}, tallies(p))
}

func TestFreeModeParsesFirstInteger(t *testing.T) {
	p := startedPoll(t, freeSettings())
	assert.True(t, p.CastBallot("v1", "going with 2 for sure", false))
	assert.Equal(t, []int{0, 1}, tallies(p))
}

func TestDonationBallots(t *testing.T) {
	s := freeSettings()
	s.AllowDonation = true
	s.DonationWeight = 1000
	p := startedPoll(t, s)

	// Chat ballot first; donation from the same viewer still counts.
	assert.True(t, p.CastBallot("v1", "1", false))
	assert.True(t, p.CastDonationBallot(domain.DonationEvent{ViewerID: "v1", Amount: 3500, Message: "2"}))
	assert.Equal(t, []int{1, 3}, tallies(p))

	// Below one weight unit: dropped.
	assert.False(t, p.CastDonationBallot(domain.DonationEvent{ViewerID: "v2", Amount: 999, Message: "1"}))

	// Donation ballots may repeat.
	assert.True(t, p.CastDonationBallot(domain.DonationEvent{ViewerID: "v1", Amount: 1000, Message: "2"}))
	assert.Equal(t, []int{1, 4}, tallies(p))

	// Donation ballot does not consume the chat ballot right.
	assert.True(t, p.CastDonationBallot(domain.DonationEvent{ViewerID: "v3", Amount: 1000, Message: "1"}))
	assert.True(t, p.CastBallot("v3", "1", false))
}

func TestDonationDisallowedByDefault(t *testing.T) {
	p := startedPoll(t, freeSettings())
	assert.False(t, p.CastDonationBallot(domain.DonationEvent{ViewerID: "v1", Amount: 100000, Message: "1"}))
}

func TestCreateWhileActiveRefused(t *testing.T) {
	p := startedPoll(t, freeSettings())
	assert.Error(t, p.Create("Q2", []string{"X", "Y"}, freeSettings()))

	_, err := p.End(time.Now())
	require.NoError(t, err)
	assert.NoError(t, p.Create("Q2", []string{"X", "Y"}, freeSettings()))
}

func TestEndArchivesRecord(t *testing.T) {
	p := startedPoll(t, freeSettings())
	p.CastBallot("v1", "1", false)
	p.CastBallot("v2", "1", false)
	p.CastBallot("v3", "2", false)

	ended := time.Now()
	record, err := p.End(ended)
	require.NoError(t, err)
	assert.Equal(t, 3, record.Total)
	assert.Equal(t, ended, record.EndedAt)

	st := p.State()
	require.Len(t, st.History, 1)
	assert.Equal(t, record.ID, st.History[0].ID)

	// Ending again fails.
	_, err = p.End(time.Now())
	assert.Error(t, err)
}

func TestLeadersSurfaceTies(t *testing.T) {
	p := startedPoll(t, freeSettings(), "A", "B", "C")
	p.CastBallot("v1", "1", false)
	p.CastBallot("v2", "2", false)

	leaders := p.Leaders()
	require.Len(t, leaders, 2)
	assert.Equal(t, "A", leaders[0].Label)
	assert.Equal(t, "B", leaders[1].Label)
}

func TestResetDiscardsInstanceKeepsHistory(t *testing.T) {
	p := startedPoll(t, freeSettings())
	p.CastBallot("v1", "1", false)
	_, err := p.End(time.Now())
	require.NoError(t, err)

	p.Reset()
	st := p.State()
	assert.Nil(t, st.Current)
	assert.Len(t, st.History, 1)
}

func TestStateDeepCopy(t *testing.T) {
	p := startedPoll(t, freeSettings())
	st := p.State()
	st.Current.Options[0].Count = 99
	st.Current.Voters["ghost"] = true

	assert.Equal(t, []int{0, 0}, tallies(p))
	assert.True(t, p.CastBallot("ghost", "1", false))
}
