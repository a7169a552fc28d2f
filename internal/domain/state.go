package domain

import "time"

// --- Commands / counters / macros ---

// RuleKind distinguishes command rules (static response) from counter rules
// (response with a mutable invocation count and free-text slot).
type RuleKind string

const (
	KindCommand RuleKind = "command"
	KindCounter RuleKind = "counter"
)

// CommandRule is one trigger→response rule. Triggers are exact tokens or
// "{any}"-suffixed substring prefixes. Triggers must be unique across
// enabled rules of the same kind within a channel.
type CommandRule struct {
	ID           string         `json:"id"`
	Kind         RuleKind       `json:"kind"`
	Triggers     []string       `json:"triggers"`
	Response     string         `json:"response"`
	Enabled      bool           `json:"enabled"`
	Count        int            `json:"count"`
	ViewerCounts map[string]int `json:"viewerCounts,omitempty"`
	Note         string         `json:"note,omitempty"`
}

// MacroRule is a recurring timed chat message.
type MacroRule struct {
	ID          string `json:"id"`
	Message     string `json:"message"`
	IntervalSec int    `json:"intervalSec"`
	Enabled     bool   `json:"enabled"`
}

// CommandState bundles all rule sets of a channel.
type CommandState struct {
	Commands []CommandRule `json:"commands"`
	Counters []CommandRule `json:"counters"`
	Macros   []MacroRule   `json:"macros"`
}

// --- Points ---

// PointEntry is one viewer's ledger row. Seq preserves insertion order for
// stable leaderboard tie-breaking.
type PointEntry struct {
	ViewerID    string `json:"viewerId"`
	Nickname    string `json:"nickname"`
	Points      int    `json:"points"`
	LastAwardMs int64  `json:"lastAwardMs"`
	Seq         int64  `json:"seq"`
}

// PointSettings controls chat point awarding.
type PointSettings struct {
	Enabled      bool  `json:"enabled"`
	AmountPerMsg int   `json:"amountPerMsg"`
	CooldownMs   int64 `json:"cooldownMs"`
}

// PointsState is the serializable point ledger.
type PointsState struct {
	Settings PointSettings          `json:"settings"`
	Entries  map[string]*PointEntry `json:"entries"`
	NextSeq  int64                  `json:"nextSeq"`
}

// --- Songs ---

// Song is one queued request.
type Song struct {
	VideoID     string    `json:"videoId"`
	Title       string    `json:"title"`
	Thumbnail   string    `json:"thumbnail"`
	Requester   string    `json:"requester"`
	RequestedAt time.Time `json:"requestedAt"`
}

// SongSettings controls the request queue.
type SongSettings struct {
	Enabled         bool  `json:"enabled"`
	MaxQueue        int   `json:"maxQueue"`
	CooldownMs      int64 `json:"cooldownMs"`
	BypassMinAmount int   `json:"bypassMinAmount"`
}

// SongState is the serializable song queue. Current is the dequeued playing
// song; it never also appears in Queue.
type SongState struct {
	Settings SongSettings `json:"settings"`
	Queue    []Song       `json:"queue"`
	Current  *Song        `json:"current,omitempty"`
}

// --- Vote ---

// VoteMode selects how ballots are parsed from chat.
type VoteMode string

const (
	// VoteModeFree extracts the first integer substring from the message.
	VoteModeFree VoteMode = "free"
	// VoteModeCommand requires a "!<n>" token.
	VoteModeCommand VoteMode = "command"
)

// VoteOption is one option and its running tally.
type VoteOption struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// VoteSettings is the configuration fixed at vote creation.
type VoteSettings struct {
	Mode           VoteMode `json:"mode"`
	DurationSec    int      `json:"durationSec"`
	SubscriberOnly bool     `json:"subscriberOnly"`
	AllowDonation  bool     `json:"allowDonation"`
	DonationWeight int      `json:"donationWeight"`
}

// VoteState is one poll instance.
type VoteState struct {
	ID        string          `json:"id"`
	Question  string          `json:"question"`
	Options   []VoteOption    `json:"options"`
	Settings  VoteSettings    `json:"settings"`
	Voters    map[string]bool `json:"voters"`
	Active    bool            `json:"active"`
	Ended     bool            `json:"ended"`
	StartedAt time.Time       `json:"startedAt,omitempty"`
}

// VoteRecord is the historical result of an ended vote.
type VoteRecord struct {
	ID       string       `json:"id"`
	Question string       `json:"question"`
	Options  []VoteOption `json:"options"`
	Total    int          `json:"total"`
	EndedAt  time.Time    `json:"endedAt"`
}

// VoteArchive bundles the live vote with bounded history.
type VoteArchive struct {
	Current *VoteState   `json:"current,omitempty"`
	History []VoteRecord `json:"history,omitempty"`
}

// --- Draw ---

// DrawStatus is the draw session lifecycle phase.
type DrawStatus string

const (
	DrawIdle       DrawStatus = "idle"
	DrawCollecting DrawStatus = "collecting"
	DrawClosed     DrawStatus = "closed"
	DrawPicking    DrawStatus = "picking"
	DrawEnded      DrawStatus = "ended"
)

// DrawSettings fixes the eligibility rules for one draw session.
type DrawSettings struct {
	SubscriberOnly   bool `json:"subscriberOnly"`
	ExcludeWinners   bool `json:"excludeWinners"`
	MaxParticipants  int  `json:"maxParticipants"`
	WinnerCount      int  `json:"winnerCount"`
	PickDelaySeconds int  `json:"pickDelaySeconds"`
}

// DrawParticipant identifies one entrant.
type DrawParticipant struct {
	ViewerID string `json:"viewerId"`
	Nickname string `json:"nickname"`
}

// DrawState is the draw session plus the durable previous-winners set,
// which survives reset when exclusion is enabled.
type DrawState struct {
	ID           string            `json:"id"`
	Status       DrawStatus        `json:"status"`
	Keyword      string            `json:"keyword"`
	Settings     DrawSettings      `json:"settings"`
	Participants []DrawParticipant `json:"participants"`
	Winners      []DrawParticipant `json:"winners"`
	CreatedAt    time.Time         `json:"createdAt,omitempty"`
	EndedAt      time.Time         `json:"endedAt,omitempty"`

	PreviousWinners map[string]bool `json:"previousWinners,omitempty"`
}

// --- Roulette ---

// RouletteItem is one weighted wheel segment.
type RouletteItem struct {
	Text   string `json:"text"`
	Weight int    `json:"weight"`
	Color  string `json:"color"`
}

// RouletteResult carries the selected item plus the presentation parameters
// clients replay verbatim so every viewer sees the same stop.
type RouletteResult struct {
	Item       RouletteItem `json:"item"`
	Angle      float64      `json:"angle"`
	DurationMs int          `json:"durationMs"`
	SpunAt     time.Time    `json:"spunAt"`
}

// RouletteState is the configured wheel and bounded spin history.
type RouletteState struct {
	ID         string           `json:"id"`
	Items      []RouletteItem   `json:"items"`
	LastResult *RouletteResult  `json:"lastResult,omitempty"`
	History    []RouletteResult `json:"history,omitempty"`
}

// --- Participation ---

// Participant is one viewer in the participation queue or roster.
type Participant struct {
	ViewerID string    `json:"viewerId"`
	Nickname string    `json:"nickname"`
	JoinedAt time.Time `json:"joinedAt"`
}

// ParticipationState is the admission queue plus active roster.
type ParticipationState struct {
	Open       bool           `json:"open"`
	MaxActive  int            `json:"maxActive"`
	Waiting    []Participant  `json:"waiting"`
	Active     []Participant  `json:"active"`
	JoinCounts map[string]int `json:"joinCounts,omitempty"`
}

// --- Greet ---

// GreetPolicy selects how often a viewer is greeted.
type GreetPolicy string

const (
	GreetOnce  GreetPolicy = "once"
	GreetDaily GreetPolicy = "daily"
)

// GreetState holds greeting settings and the per-viewer last-greeted dates
// (formatted 2006-01-02).
type GreetState struct {
	Enabled     bool              `json:"enabled"`
	Policy      GreetPolicy       `json:"policy"`
	Message     string            `json:"message"`
	LastGreeted map[string]string `json:"lastGreeted,omitempty"`
}

// --- Snapshot ---

// ChannelSnapshot is the union of all serializable feature state for one
// channel. The persistence coordinator only ever sees deep copies produced
// inside the channel's coordinator goroutine.
type ChannelSnapshot struct {
	Commands      CommandState       `json:"commands"`
	Points        PointsState        `json:"points"`
	Songs         SongState          `json:"songs"`
	Vote          VoteArchive        `json:"vote"`
	Draw          DrawState          `json:"draw"`
	Roulette      RouletteState      `json:"roulette"`
	Participation ParticipationState `json:"participation"`
	Greet         GreetState         `json:"greet"`
}
