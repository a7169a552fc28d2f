// Package session hosts the per-channel coordinator. One goroutine owns all
// feature engines of a channel and processes its ordered event stream, so
// check-then-act sequences (greet-once, one ballot, draw capacity) need no
// locks. Slow work such as song metadata lookup runs off the goroutine and
// feeds results back through the same command channel.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/mugummy/chzzkbot/internal/command"
	"github.com/mugummy/chzzkbot/internal/domain"
	"github.com/mugummy/chzzkbot/internal/draw"
	apperrors "github.com/mugummy/chzzkbot/internal/errors"
	"github.com/mugummy/chzzkbot/internal/greet"
	"github.com/mugummy/chzzkbot/internal/metrics"
	"github.com/mugummy/chzzkbot/internal/participation"
	"github.com/mugummy/chzzkbot/internal/points"
	"github.com/mugummy/chzzkbot/internal/roulette"
	"github.com/mugummy/chzzkbot/internal/songs"
	"github.com/mugummy/chzzkbot/internal/template"
	"github.com/mugummy/chzzkbot/internal/vote"
)

const (
	sendTimeout         = 5 * time.Second
	resolveTimeout      = 10 * time.Second
	liveRefreshInterval = time.Minute
)

// Persister receives the latest snapshot after each state change. The
// persistence coordinator debounces the actual writes.
type Persister interface {
	MarkDirty(channelID string, snap *domain.ChannelSnapshot)
}

// Deps bundles the collaborators a session needs. SongResolver, LiveSource,
// and SongGate are optional; the matching features degrade gracefully
// without them.
type Deps struct {
	Clock        clockwork.Clock
	Logger       *slog.Logger
	Sender       domain.ChatSender
	Broadcaster  domain.Broadcaster
	Persister    Persister
	SongResolver domain.SongResolver
	LiveSource   domain.LiveStatusSource
	SongGate     domain.CooldownGate

	// PointsSignalInterval caps how often point changes are broadcast.
	// Awards themselves are never delayed, only the signal.
	PointsSignalInterval time.Duration
}

// --- Command types ---

type sessionCmd interface{ sessionCmd() }

type cmdChat struct{ ev domain.ChatEvent }

func (cmdChat) sessionCmd() {}

type cmdDonation struct{ ev domain.DonationEvent }

func (cmdDonation) sessionCmd() {}

// cmdExec runs a control operation on the session goroutine. Results travel
// through variables captured by the closure.
type cmdExec struct {
	fn    func() error
	errCh chan error
}

func (cmdExec) sessionCmd() {}

type cmdVoteExpired struct{ voteID string }

func (cmdVoteExpired) sessionCmd() {}

type cmdDrawReveal struct{ drawID string }

func (cmdDrawReveal) sessionCmd() {}

type cmdMacroFire struct{ macroID string }

func (cmdMacroFire) sessionCmd() {}

type cmdPointsFlush struct{}

func (cmdPointsFlush) sessionCmd() {}

type cmdSongResolved struct {
	song *domain.Song
	err  error
}

func (cmdSongResolved) sessionCmd() {}

type cmdLiveStatus struct{ status *domain.LiveStatus }

func (cmdLiveStatus) sessionCmd() {}

type cmdStop struct{ done chan struct{} }

func (cmdStop) sessionCmd() {}

// --- Session ---

// Session coordinates every feature engine of one channel. All engine access
// happens on the run goroutine.
type Session struct {
	channelID string
	cmdCh     chan sessionCmd
	stopCh    chan struct{}
	clock     clockwork.Clock
	logger    *slog.Logger
	deps      Deps

	commands *command.Store
	ledger   *points.Ledger
	songs    *songs.Queue
	poll     *vote.Poll
	draw     *draw.Session
	wheel    *roulette.Wheel
	queue    *participation.Queue
	greeter  *greet.Tracker
	renderer *template.Renderer

	live *domain.LiveStatus

	voteTimer   clockwork.Timer
	drawTimer   clockwork.Timer
	liveTimer   clockwork.Timer
	macroTimers map[string]clockwork.Timer

	pointsLimiter *rate.Limiter
	pointsTimer   clockwork.Timer
	pointsDirty   bool
}

// New builds a session from a loaded snapshot and starts its goroutine.
// A nil snapshot starts the channel fresh with default settings.
func New(channelID string, snap *domain.ChannelSnapshot, deps Deps) *Session {
	if snap == nil {
		snap = &domain.ChannelSnapshot{
			Points: domain.PointsState{Settings: points.DefaultSettings()},
			Songs:  domain.SongState{Settings: songs.DefaultSettings()},
		}
	}
	if deps.PointsSignalInterval <= 0 {
		deps.PointsSignalInterval = 3 * time.Second
	}

	s := &Session{
		channelID:     channelID,
		cmdCh:         make(chan sessionCmd, 256),
		stopCh:        make(chan struct{}),
		clock:         deps.Clock,
		logger:        deps.Logger.With("channel_id", channelID),
		deps:          deps,
		commands:      command.NewStore(snap.Commands),
		ledger:        points.NewLedger(snap.Points),
		songs:         songs.NewQueue(snap.Songs),
		poll:          vote.NewPoll(snap.Vote),
		draw:          draw.NewSession(snap.Draw),
		wheel:         roulette.NewWheel(snap.Roulette),
		queue:         participation.NewQueue(snap.Participation),
		greeter:       greet.NewTracker(snap.Greet),
		renderer:      template.New(),
		macroTimers:   make(map[string]clockwork.Timer),
		pointsLimiter: rate.NewLimiter(rate.Every(deps.PointsSignalInterval), 1),
	}

	go s.run()
	s.post(cmdExec{fn: func() error { s.bootstrap(); return nil }, errCh: make(chan error, 1)})
	return s
}

func (s *Session) ChannelID() string {
	return s.channelID
}

// post delivers a command unless the session has stopped.
func (s *Session) post(cmd sessionCmd) bool {
	select {
	case s.cmdCh <- cmd:
		return true
	case <-s.stopCh:
		return false
	}
}

// do runs fn on the session goroutine and waits for its result.
func (s *Session) do(fn func() error) error {
	errCh := make(chan error, 1)
	if !s.post(cmdExec{fn: fn, errCh: errCh}) {
		return apperrors.ConflictError("channel session is shut down")
	}
	select {
	case err := <-errCh:
		return err
	case <-s.stopCh:
		return apperrors.ConflictError("channel session is shut down")
	}
}

// HandleChat enqueues a chat event. Ordering is preserved by the single
// command channel.
func (s *Session) HandleChat(ev domain.ChatEvent) {
	s.post(cmdChat{ev: ev})
}

// HandleDonation enqueues a donation event.
func (s *Session) HandleDonation(ev domain.DonationEvent) {
	s.post(cmdDonation{ev: ev})
}

// Stop cancels all timers and ends the run goroutine. Pending persistence
// writes are flushed by the persistence coordinator, not here.
func (s *Session) Stop() {
	done := make(chan struct{})
	if s.post(cmdStop{done: done}) {
		<-done
	}
}

func (s *Session) run() {
	for cmd := range s.cmdCh {
		switch c := cmd.(type) {
		case cmdChat:
			s.handleChat(c.ev)
		case cmdDonation:
			s.handleDonation(c.ev)
		case cmdExec:
			c.errCh <- s.guarded(c.fn)
		case cmdVoteExpired:
			s.handleVoteExpired(c.voteID)
		case cmdDrawReveal:
			s.handleDrawReveal(c.drawID)
		case cmdMacroFire:
			s.handleMacroFire(c.macroID)
		case cmdPointsFlush:
			s.pointsTimer = nil
			s.flushPoints()
		case cmdSongResolved:
			s.handleSongResolved(c)
		case cmdLiveStatus:
			s.live = c.status
			s.armLiveRefresh()
		case cmdStop:
			s.shutdown()
			close(c.done)
			return
		}
	}
}

// guarded recovers panics from control closures so one bad operation cannot
// kill the channel goroutine.
func (s *Session) guarded(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("control operation panicked", "panic", r)
			err = apperrors.InternalError("internal error", nil)
		}
	}()
	return fn()
}

// bootstrap arms the timers implied by restored state. Runs as the first
// command on the session goroutine.
func (s *Session) bootstrap() {
	for _, m := range s.commands.Macros() {
		if m.Enabled {
			s.armMacro(m.ID, time.Duration(m.IntervalSec)*time.Second)
		}
	}
	if s.deps.LiveSource != nil {
		s.refreshLiveStatus()
	}
	// A restored active vote lost its timer with the old process; end it on
	// its original schedule if any time remains, otherwise right away.
	if cur := s.poll.State().Current; cur != nil && cur.Active {
		d := cur.Settings.DurationSec
		if d > 0 {
			remaining := time.Duration(d)*time.Second - s.clock.Since(cur.StartedAt)
			if remaining < 0 {
				remaining = 0
			}
			s.armVoteTimer(cur.ID, remaining)
		}
	}
	// A draw restored mid-pick lost its reveal timer the same way; reveal on
	// the configured delay, or immediately when there is none.
	if st := s.draw.State(); st.Status == domain.DrawPicking {
		if delay := s.draw.PickDelay(); delay > 0 {
			s.armDrawReveal(st.ID, delay)
		} else {
			s.handleDrawReveal(st.ID)
		}
	}
}

func (s *Session) shutdown() {
	s.stopTimer(&s.voteTimer)
	s.stopTimer(&s.drawTimer)
	s.stopTimer(&s.liveTimer)
	s.stopTimer(&s.pointsTimer)
	for id, t := range s.macroTimers {
		t.Stop()
		delete(s.macroTimers, id)
	}
	close(s.stopCh)
}

func (s *Session) stopTimer(t *clockwork.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// --- Event dispatch ---

func (s *Session) handleChat(ev domain.ChatEvent) {
	if ev.Hidden {
		return
	}
	metrics.EventsDispatchedTotal.WithLabelValues("chat").Inc()

	s.runFeature("greet", func() error { return s.dispatchGreet(ev) })
	s.runFeature("points", func() error { return s.dispatchPoints(ev) })
	s.runFeature("draw", func() error { return s.dispatchDrawCandidate(ev) })
	s.runFeature("vote", func() error { return s.dispatchBallot(ev) })
	s.runFeature("commands", func() error { return s.dispatchTrigger(ev) })
}

func (s *Session) handleDonation(ev domain.DonationEvent) {
	metrics.EventsDispatchedTotal.WithLabelValues("donation").Inc()

	s.runFeature("vote", func() error { return s.dispatchDonationBallot(ev) })
	s.runFeature("songs", func() error { return s.dispatchSongRequest(ev) })
}

// runFeature isolates one feature. A failure is logged and counted; the
// remaining features still see the event.
func (s *Session) runFeature(name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.FeatureErrorsTotal.WithLabelValues(name).Inc()
			s.logger.Error("feature panicked", "feature", name, "panic", r)
		}
	}()
	if err := fn(); err != nil {
		metrics.FeatureErrorsTotal.WithLabelValues(name).Inc()
		s.logger.Error("feature dispatch failed", "feature", name, "error", err)
	}
}

func (s *Session) dispatchGreet(ev domain.ChatEvent) error {
	if !s.greeter.CheckAndRecord(ev.ViewerID, s.clock.Now()) {
		return nil
	}
	msg := s.renderer.Render(s.greeter.Message(), s.templateContext(ev.Nickname, 0))
	s.sendChat(msg)
	s.stateChanged(domain.FeatureGreet, s.greeter.State())
	return nil
}

func (s *Session) dispatchPoints(ev domain.ChatEvent) error {
	if !s.ledger.Award(ev.ViewerID, ev.Nickname, ev.Timestamp.UnixMilli()) {
		return nil
	}
	s.pointsDirty = true
	if s.pointsLimiter.Allow() {
		s.flushPoints()
		return nil
	}
	if s.pointsTimer == nil {
		s.pointsTimer = s.clock.AfterFunc(s.deps.PointsSignalInterval, func() {
			s.post(cmdPointsFlush{})
		})
	}
	return nil
}

// flushPoints emits one coalesced points signal covering every award since
// the last one.
func (s *Session) flushPoints() {
	if !s.pointsDirty {
		return
	}
	s.pointsDirty = false
	s.stateChanged(domain.FeaturePoints, s.ledger.State())
}

func (s *Session) dispatchDrawCandidate(ev domain.ChatEvent) error {
	if !s.draw.Collecting() {
		return nil
	}
	if s.draw.HandleChatCandidate(ev.ViewerID, ev.Nickname, ev.Message, ev.Subscriber) {
		s.stateChanged(domain.FeatureDraw, s.draw.State())
	}
	return nil
}

func (s *Session) dispatchBallot(ev domain.ChatEvent) error {
	if !s.poll.Active() {
		return nil
	}
	if s.poll.CastBallot(ev.ViewerID, ev.Message, ev.Subscriber) {
		s.stateChanged(domain.FeatureVote, s.poll.State())
	}
	return nil
}

func (s *Session) dispatchTrigger(ev domain.ChatEvent) error {
	rule, ok := s.commands.Resolve(ev.Message)
	if !ok {
		return nil
	}
	total, _ := s.commands.RecordUse(rule, ev.ViewerID)
	reply := s.renderer.Render(rule.Response, s.templateContext(ev.Nickname, total))
	s.sendChat(reply)
	s.stateChanged(domain.FeatureCommands, s.commands.State())
	return nil
}

func (s *Session) dispatchDonationBallot(ev domain.DonationEvent) error {
	if !s.poll.Active() {
		return nil
	}
	if s.poll.CastDonationBallot(ev) {
		s.stateChanged(domain.FeatureVote, s.poll.State())
	}
	return nil
}

// dispatchSongRequest treats a donation message as a song query. The
// cooldown check and metadata lookup run off the session goroutine; the
// resolved song comes back through cmdSongResolved.
func (s *Session) dispatchSongRequest(ev domain.DonationEvent) error {
	if s.deps.SongResolver == nil || ev.Message == "" {
		return nil
	}
	if err := s.songs.Admissible(); err != nil {
		s.replyIfActionable(err)
		return nil
	}

	window := s.songs.Cooldown()
	if s.songs.BypassesCooldown(ev.Amount) {
		window = 0
	}

	query := ev.Message
	requester := ev.Nickname
	viewerID := ev.ViewerID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
		defer cancel()

		if window > 0 && s.deps.SongGate != nil {
			allowed, err := s.deps.SongGate.Allow(ctx, s.channelID, viewerID, window)
			if err != nil {
				// Fail open: a broken gate should not silently eat requests.
				s.logger.Error("song cooldown check failed", "error", err)
			} else if !allowed {
				s.sendChatAsync(requester + ", your song request is still on cooldown.")
				return
			}
		}

		song, err := s.deps.SongResolver.Resolve(ctx, query)
		if err == nil && song != nil {
			song.Requester = requester
			song.RequestedAt = s.clock.Now()
		}
		s.post(cmdSongResolved{song: song, err: err})
	}()
	return nil
}

func (s *Session) handleSongResolved(c cmdSongResolved) {
	if c.err != nil {
		metrics.FeatureErrorsTotal.WithLabelValues("songs").Inc()
		s.logger.Error("song lookup failed", "error", c.err)
		return
	}
	if c.song == nil {
		return
	}
	// Capacity may have filled while the lookup ran.
	if err := s.songs.Enqueue(*c.song); err != nil {
		s.replyIfActionable(err)
		return
	}
	s.sendChat(fmt.Sprintf("%s queued: %s (#%d in line)", c.song.Requester, c.song.Title, s.songs.Len()))
	s.stateChanged(domain.FeatureSongs, s.songs.State())
}

// --- Timers ---

func (s *Session) armVoteTimer(voteID string, d time.Duration) {
	s.stopTimer(&s.voteTimer)
	s.voteTimer = s.clock.AfterFunc(d, func() {
		s.post(cmdVoteExpired{voteID: voteID})
	})
}

func (s *Session) handleVoteExpired(voteID string) {
	s.voteTimer = nil
	// Ignore stale timers from a vote that was already ended or reset.
	if !s.poll.Active() || s.poll.CurrentID() != voteID {
		return
	}
	record, err := s.poll.End(s.clock.Now())
	if err != nil {
		s.logger.Error("failed to auto-end vote", "error", err)
		return
	}
	s.announceVoteResult(record)
	s.stateChanged(domain.FeatureVote, s.poll.State())
}

// announceVoteResult posts the closed result to chat. Ties are reported as
// such, never auto-broken.
func (s *Session) announceVoteResult(record *domain.VoteRecord) {
	best := -1
	var leaders []domain.VoteOption
	for _, o := range record.Options {
		switch {
		case o.Count > best:
			best = o.Count
			leaders = append(leaders[:0], o)
		case o.Count == best:
			leaders = append(leaders, o)
		}
	}
	switch {
	case record.Total == 0:
		s.sendChat(fmt.Sprintf("Vote %q ended with no ballots.", record.Question))
	case len(leaders) == 1:
		s.sendChat(fmt.Sprintf("Vote %q ended: %s (%d/%d)", record.Question, leaders[0].Label, leaders[0].Count, record.Total))
	default:
		s.sendChat(fmt.Sprintf("Vote %q ended in a tie with %d ballots.", record.Question, record.Total))
	}
}

func (s *Session) armDrawReveal(drawID string, d time.Duration) {
	s.stopTimer(&s.drawTimer)
	s.drawTimer = s.clock.AfterFunc(d, func() {
		s.post(cmdDrawReveal{drawID: drawID})
	})
}

func (s *Session) handleDrawReveal(drawID string) {
	s.drawTimer = nil
	state := s.draw.State()
	if state.ID != drawID || state.Status != domain.DrawPicking {
		return
	}
	if err := s.draw.Reveal(s.clock.Now()); err != nil {
		s.logger.Error("failed to reveal draw result", "error", err)
		return
	}
	for _, w := range s.draw.State().Winners {
		s.sendChat("Winner: " + w.Nickname)
	}
	s.stateChanged(domain.FeatureDraw, s.draw.State())
}

func (s *Session) armMacro(macroID string, interval time.Duration) {
	if t, exists := s.macroTimers[macroID]; exists {
		t.Stop()
	}
	s.macroTimers[macroID] = s.clock.AfterFunc(interval, func() {
		s.post(cmdMacroFire{macroID: macroID})
	})
}

func (s *Session) handleMacroFire(macroID string) {
	delete(s.macroTimers, macroID)
	for _, m := range s.commands.Macros() {
		if m.ID != macroID || !m.Enabled {
			continue
		}
		s.sendChat(m.Message)
		s.armMacro(m.ID, time.Duration(m.IntervalSec)*time.Second)
		return
	}
}

func (s *Session) armLiveRefresh() {
	s.stopTimer(&s.liveTimer)
	s.liveTimer = s.clock.AfterFunc(liveRefreshInterval, func() {
		s.do(func() error { s.refreshLiveStatus(); return nil })
	})
}

// refreshLiveStatus fetches stream metadata off the session goroutine and
// posts the result back.
func (s *Session) refreshLiveStatus() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		status, err := s.deps.LiveSource.Status(ctx, s.channelID)
		if err != nil {
			s.logger.Warn("live status lookup failed", "error", err)
			status = nil
		}
		s.post(cmdLiveStatus{status: status})
	}()
}

// --- Shared helpers ---

func (s *Session) templateContext(nickname string, count int) template.Context {
	ctx := template.Context{
		Nickname: nickname,
		Count:    count,
		Live:     s.live,
		Now:      s.clock.Now(),
	}
	if s.live != nil {
		ctx.ViewerCount = s.live.ViewerCount
	}
	return ctx
}

// sendChat delivers fire-and-forget from the session goroutine.
func (s *Session) sendChat(message string) {
	if message == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := s.deps.Sender.SendChat(ctx, s.channelID, message); err != nil {
		s.logger.Warn("chat send failed", "error", err)
		return
	}
	metrics.ChatRepliesTotal.Inc()
}

// sendChatAsync is for goroutines outside the session goroutine.
func (s *Session) sendChatAsync(message string) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := s.deps.Sender.SendChat(ctx, s.channelID, message); err != nil {
		s.logger.Warn("chat send failed", "error", err)
		return
	}
	metrics.ChatRepliesTotal.Inc()
}

// replyIfActionable sends a short chat explanation for rejections the viewer
// can act on; anything else stays operator-only.
func (s *Session) replyIfActionable(err error) {
	structured := apperrors.AsStructured(err)
	if structured.UserActionable() {
		s.sendChat(structured.Message)
	}
}

// stateChanged is the single signal path: broadcast the feature payload and
// stage the full snapshot for a debounced write.
func (s *Session) stateChanged(feature domain.FeatureTag, payload any) {
	s.deps.Broadcaster.Broadcast(s.channelID, feature, payload)
	s.deps.Persister.MarkDirty(s.channelID, s.snapshot())
}

// snapshot assembles the full channel state from the engines' deep copies.
func (s *Session) snapshot() *domain.ChannelSnapshot {
	return &domain.ChannelSnapshot{
		Commands:      s.commands.State(),
		Points:        s.ledger.State(),
		Songs:         s.songs.State(),
		Vote:          s.poll.State(),
		Draw:          s.draw.State(),
		Roulette:      s.wheel.State(),
		Participation: s.queue.State(),
		Greet:         s.greeter.State(),
	}
}

// Snapshot returns the current full state, serialized through the session
// goroutine.
func (s *Session) Snapshot() (*domain.ChannelSnapshot, error) {
	var snap *domain.ChannelSnapshot
	err := s.do(func() error {
		snap = s.snapshot()
		return nil
	})
	return snap, err
}

// FeatureStates returns every feature payload keyed by tag, used for the
// full-state resync pushed to (re)connecting dashboard clients.
func (s *Session) FeatureStates() (map[domain.FeatureTag]any, error) {
	var states map[domain.FeatureTag]any
	err := s.do(func() error {
		states = map[domain.FeatureTag]any{
			domain.FeatureSongs:         s.songs.State(),
			domain.FeatureVote:          s.poll.State(),
			domain.FeatureDraw:          s.draw.State(),
			domain.FeatureRoulette:      s.wheel.State(),
			domain.FeatureParticipation: s.queue.State(),
			domain.FeaturePoints:        s.ledger.State(),
			domain.FeatureCommands:      s.commands.State(),
			domain.FeatureGreet:         s.greeter.State(),
		}
		return nil
	})
	return states, err
}
