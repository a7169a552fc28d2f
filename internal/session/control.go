package session

import (
	"time"

	"github.com/mugummy/chzzkbot/internal/domain"
)

// Control operations accepted from the dashboard API. Each runs on the
// session goroutine via do, so they serialize with event dispatch.

// --- Vote ---

func (s *Session) CreateVote(question string, options []string, settings domain.VoteSettings) error {
	return s.do(func() error {
		if err := s.poll.Create(question, options, settings); err != nil {
			return err
		}
		s.stateChanged(domain.FeatureVote, s.poll.State())
		return nil
	})
}

func (s *Session) StartVote() error {
	return s.do(func() error {
		duration, err := s.poll.Start(s.clock.Now())
		if err != nil {
			return err
		}
		if duration > 0 {
			s.armVoteTimer(s.poll.CurrentID(), duration)
		}
		s.stateChanged(domain.FeatureVote, s.poll.State())
		return nil
	})
}

func (s *Session) EndVote() (*domain.VoteRecord, error) {
	var record *domain.VoteRecord
	err := s.do(func() error {
		var err error
		record, err = s.poll.End(s.clock.Now())
		if err != nil {
			return err
		}
		s.stopTimer(&s.voteTimer)
		s.announceVoteResult(record)
		s.stateChanged(domain.FeatureVote, s.poll.State())
		return nil
	})
	return record, err
}

func (s *Session) ResetVote() error {
	return s.do(func() error {
		s.poll.Reset()
		s.stopTimer(&s.voteTimer)
		s.stateChanged(domain.FeatureVote, s.poll.State())
		return nil
	})
}

// --- Draw ---

func (s *Session) StartDrawCollecting(keyword string, settings domain.DrawSettings) error {
	return s.do(func() error {
		if err := s.draw.StartCollecting(keyword, settings, s.clock.Now()); err != nil {
			return err
		}
		s.stateChanged(domain.FeatureDraw, s.draw.State())
		return nil
	})
}

func (s *Session) StopDrawCollecting() error {
	return s.do(func() error {
		if err := s.draw.StopCollecting(); err != nil {
			return err
		}
		s.stateChanged(domain.FeatureDraw, s.draw.State())
		return nil
	})
}

// RunDraw picks the winners and schedules the reveal after the configured
// animation delay. With no delay the reveal happens immediately.
func (s *Session) RunDraw(count int) error {
	return s.do(func() error {
		if _, err := s.draw.Draw(count); err != nil {
			return err
		}
		s.stateChanged(domain.FeatureDraw, s.draw.State())
		if delay := s.draw.PickDelay(); delay > 0 {
			s.armDrawReveal(s.draw.State().ID, delay)
			return nil
		}
		s.handleDrawReveal(s.draw.State().ID)
		return nil
	})
}

func (s *Session) ResetDraw() error {
	return s.do(func() error {
		s.draw.Reset()
		s.stopTimer(&s.drawTimer)
		s.stateChanged(domain.FeatureDraw, s.draw.State())
		return nil
	})
}

func (s *Session) ClearPreviousWinners() error {
	return s.do(func() error {
		s.draw.ClearPreviousWinners()
		s.stateChanged(domain.FeatureDraw, s.draw.State())
		return nil
	})
}

// --- Roulette ---

func (s *Session) ConfigureRoulette(items []domain.RouletteItem) error {
	return s.do(func() error {
		if err := s.wheel.Configure(items); err != nil {
			return err
		}
		s.stateChanged(domain.FeatureRoulette, s.wheel.State())
		return nil
	})
}

func (s *Session) SpinRoulette() (*domain.RouletteResult, error) {
	var result *domain.RouletteResult
	err := s.do(func() error {
		var err error
		result, err = s.wheel.Spin(s.clock.Now())
		if err != nil {
			return err
		}
		s.stateChanged(domain.FeatureRoulette, s.wheel.State())
		return nil
	})
	return result, err
}

func (s *Session) ResetRoulette() error {
	return s.do(func() error {
		s.wheel.Reset()
		s.stateChanged(domain.FeatureRoulette, s.wheel.State())
		return nil
	})
}

// --- Participation ---

func (s *Session) OpenParticipation() error {
	return s.do(func() error {
		s.queue.Open()
		s.stateChanged(domain.FeatureParticipation, s.queue.State())
		return nil
	})
}

func (s *Session) CloseParticipation() error {
	return s.do(func() error {
		s.queue.Close()
		s.stateChanged(domain.FeatureParticipation, s.queue.State())
		return nil
	})
}

// JoinParticipation is the chat-command entry, also exposed for the control
// API. Rejections the viewer can act on get a chat reply.
func (s *Session) JoinParticipation(viewerID, nickname string) error {
	return s.do(func() error {
		if err := s.queue.HandleJoinAttempt(viewerID, nickname, s.clock.Now()); err != nil {
			s.replyIfActionable(err)
			return err
		}
		s.stateChanged(domain.FeatureParticipation, s.queue.State())
		return nil
	})
}

func (s *Session) PromoteParticipant(viewerID string) error {
	return s.do(func() error {
		if err := s.queue.Promote(viewerID); err != nil {
			return err
		}
		s.stateChanged(domain.FeatureParticipation, s.queue.State())
		return nil
	})
}

func (s *Session) PromoteNextParticipant() error {
	return s.do(func() error {
		if err := s.queue.PromoteNext(); err != nil {
			return err
		}
		s.stateChanged(domain.FeatureParticipation, s.queue.State())
		return nil
	})
}

func (s *Session) RemoveParticipant(viewerID string) error {
	return s.do(func() error {
		s.queue.Remove(viewerID)
		s.stateChanged(domain.FeatureParticipation, s.queue.State())
		return nil
	})
}

func (s *Session) SetParticipationCapacity(n int) error {
	return s.do(func() error {
		if err := s.queue.SetMaxActive(n); err != nil {
			return err
		}
		s.stateChanged(domain.FeatureParticipation, s.queue.State())
		return nil
	})
}

// --- Commands / counters / macros ---

func (s *Session) AddRule(kind domain.RuleKind, triggers []string, response string) (*domain.CommandRule, error) {
	var rule *domain.CommandRule
	err := s.do(func() error {
		var err error
		rule, err = s.commands.Add(kind, triggers, response)
		if err != nil {
			return err
		}
		s.stateChanged(domain.FeatureCommands, s.commands.State())
		return nil
	})
	return rule, err
}

func (s *Session) UpdateRule(id string, triggers []string, response string, enabled bool) error {
	return s.do(func() error {
		if err := s.commands.Update(id, triggers, response, enabled); err != nil {
			return err
		}
		s.stateChanged(domain.FeatureCommands, s.commands.State())
		return nil
	})
}

func (s *Session) RemoveRule(id string) error {
	return s.do(func() error {
		if err := s.commands.Remove(id); err != nil {
			return err
		}
		s.stateChanged(domain.FeatureCommands, s.commands.State())
		return nil
	})
}

func (s *Session) SetRuleNote(id, note string) error {
	return s.do(func() error {
		if err := s.commands.SetNote(id, note); err != nil {
			return err
		}
		s.stateChanged(domain.FeatureCommands, s.commands.State())
		return nil
	})
}

func (s *Session) AddMacro(message string, intervalSec int) (*domain.MacroRule, error) {
	var macro *domain.MacroRule
	err := s.do(func() error {
		var err error
		macro, err = s.commands.AddMacro(message, intervalSec)
		if err != nil {
			return err
		}
		s.armMacro(macro.ID, time.Duration(macro.IntervalSec)*time.Second)
		s.stateChanged(domain.FeatureCommands, s.commands.State())
		return nil
	})
	return macro, err
}

func (s *Session) RemoveMacro(id string) error {
	return s.do(func() error {
		if err := s.commands.RemoveMacro(id); err != nil {
			return err
		}
		if t, exists := s.macroTimers[id]; exists {
			t.Stop()
			delete(s.macroTimers, id)
		}
		s.stateChanged(domain.FeatureCommands, s.commands.State())
		return nil
	})
}

// --- Songs ---

func (s *Session) AdvanceSong() (*domain.Song, error) {
	var next *domain.Song
	err := s.do(func() error {
		next = s.songs.Advance()
		s.stateChanged(domain.FeatureSongs, s.songs.State())
		return nil
	})
	return next, err
}

func (s *Session) RemoveSongAt(i int) error {
	return s.do(func() error {
		if !s.songs.RemoveAt(i) {
			return nil
		}
		s.stateChanged(domain.FeatureSongs, s.songs.State())
		return nil
	})
}

func (s *Session) ClearSongs() error {
	return s.do(func() error {
		s.songs.Clear()
		s.stateChanged(domain.FeatureSongs, s.songs.State())
		return nil
	})
}

// --- Settings ---

func (s *Session) UpdatePointSettings(settings domain.PointSettings) error {
	return s.do(func() error {
		s.ledger.UpdateSettings(settings)
		s.stateChanged(domain.FeaturePoints, s.ledger.State())
		return nil
	})
}

func (s *Session) AdjustPoints(viewerID, nickname string, delta int) (int, error) {
	var balance int
	err := s.do(func() error {
		balance = s.ledger.Adjust(viewerID, nickname, delta)
		s.stateChanged(domain.FeaturePoints, s.ledger.State())
		return nil
	})
	return balance, err
}

func (s *Session) PointBalance(viewerID string) (int, error) {
	var balance int
	err := s.do(func() error {
		balance = s.ledger.Balance(viewerID)
		return nil
	})
	return balance, err
}

func (s *Session) Leaderboard(limit int) ([]domain.PointEntry, error) {
	var entries []domain.PointEntry
	err := s.do(func() error {
		entries = s.ledger.Leaderboard(limit)
		return nil
	})
	return entries, err
}

func (s *Session) UpdateSongSettings(settings domain.SongSettings) error {
	return s.do(func() error {
		s.songs.UpdateSettings(settings)
		s.stateChanged(domain.FeatureSongs, s.songs.State())
		return nil
	})
}

func (s *Session) UpdateGreetSettings(enabled bool, policy domain.GreetPolicy, message string) error {
	return s.do(func() error {
		s.greeter.UpdateSettings(enabled, policy, message)
		s.stateChanged(domain.FeatureGreet, s.greeter.State())
		return nil
	})
}

func (s *Session) ClearGreetHistory() error {
	return s.do(func() error {
		s.greeter.ClearHistory()
		s.stateChanged(domain.FeatureGreet, s.greeter.State())
		return nil
	})
}
