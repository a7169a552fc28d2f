package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mugummy/chzzkbot/internal/domain"
	apperrors "github.com/mugummy/chzzkbot/internal/errors"
	"github.com/mugummy/chzzkbot/internal/session"
)

// channelSession resolves the :channelID parameter to a live session,
// activating it on first use.
func (s *Server) channelSession(c echo.Context) (*session.Session, error) {
	channelID := c.Param("channelID")
	if channelID == "" {
		return nil, apperrors.ValidationError("missing channel id")
	}
	return s.registry.Activate(c.Request().Context(), channelID)
}

// handleTeardownChannel stops the session and deletes the stored snapshot.
// It deliberately avoids channelSession: tearing down a channel must not
// activate it first.
func (s *Server) handleTeardownChannel(c echo.Context) error {
	channelID := c.Param("channelID")
	if channelID == "" {
		return apperrors.ValidationError("missing channel id")
	}
	if err := s.registry.Teardown(c.Request().Context(), channelID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleGetState(c echo.Context) error {
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	snap, err := sess.Snapshot()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snap)
}

// --- votes ---

type createVoteRequest struct {
	Question string              `json:"question"`
	Options  []string            `json:"options"`
	Settings domain.VoteSettings `json:"settings"`
}

func (s *Server) handleCreateVote(c echo.Context) error {
	var req createVoteRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("malformed vote request")
	}
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	if err := sess.CreateVote(req.Question, req.Options, req.Settings); err != nil {
		return err
	}
	return c.NoContent(http.StatusCreated)
}

func (s *Server) handleStartVote(c echo.Context) error {
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	if err := sess.StartVote(); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleEndVote(c echo.Context) error {
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	record, err := sess.EndVote()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, record)
}

func (s *Server) handleResetVote(c echo.Context) error {
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	if err := sess.ResetVote(); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// --- draw ---

type startDrawRequest struct {
	Keyword  string              `json:"keyword"`
	Settings domain.DrawSettings `json:"settings"`
}

func (s *Server) handleStartDrawCollecting(c echo.Context) error {
	var req startDrawRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("malformed draw request")
	}
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	if err := sess.StartDrawCollecting(req.Keyword, req.Settings); err != nil {
		return err
	}
	return c.NoContent(http.StatusCreated)
}

func (s *Server) handleStopDrawCollecting(c echo.Context) error {
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	if err := sess.StopDrawCollecting(); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

type runDrawRequest struct {
	Count int `json:"count"`
}

func (s *Server) handleRunDraw(c echo.Context) error {
	var req runDrawRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("malformed draw request")
	}
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	if err := sess.RunDraw(req.Count); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleResetDraw(c echo.Context) error {
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	if err := sess.ResetDraw(); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleClearPreviousWinners(c echo.Context) error {
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	if err := sess.ClearPreviousWinners(); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// --- roulette ---

type configureRouletteRequest struct {
	Items []domain.RouletteItem `json:"items"`
}

func (s *Server) handleConfigureRoulette(c echo.Context) error {
	var req configureRouletteRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("malformed roulette request")
	}
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	if err := sess.ConfigureRoulette(req.Items); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleSpinRoulette(c echo.Context) error {
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	result, err := sess.SpinRoulette()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleResetRoulette(c echo.Context) error {
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	if err := sess.ResetRoulette(); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// --- participation ---

func (s *Server) handleOpenParticipation(c echo.Context) error {
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	if err := sess.OpenParticipation(); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleCloseParticipation(c echo.Context) error {
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	if err := sess.CloseParticipation(); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

type joinParticipationRequest struct {
	ViewerID string `json:"viewerId"`
	Nickname string `json:"nickname"`
}

func (s *Server) handleJoinParticipation(c echo.Context) error {
	var req joinParticipationRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("malformed participation request")
	}
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	if err := sess.JoinParticipation(req.ViewerID, req.Nickname); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

type promoteRequest struct {
	ViewerID string `json:"viewerId"`
}

// handlePromoteParticipant promotes the named viewer, or the head of the
// waiting queue when no viewer is given.
func (s *Server) handlePromoteParticipant(c echo.Context) error {
	var req promoteRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("malformed participation request")
	}
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	if req.ViewerID == "" {
		err = sess.PromoteNextParticipant()
	} else {
		err = sess.PromoteParticipant(req.ViewerID)
	}
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleRemoveParticipant(c echo.Context) error {
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	if err := sess.RemoveParticipant(c.Param("viewerID")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type capacityRequest struct {
	Capacity int `json:"capacity"`
}

func (s *Server) handleSetParticipationCapacity(c echo.Context) error {
	var req capacityRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("malformed capacity request")
	}
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	if err := sess.SetParticipationCapacity(req.Capacity); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

// --- rules and macros ---

type addRuleRequest struct {
	Kind     domain.RuleKind `json:"kind"`
	Triggers []string        `json:"triggers"`
	Response string          `json:"response"`
}

func (s *Server) handleAddRule(c echo.Context) error {
	var req addRuleRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("malformed rule request")
	}
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	rule, err := sess.AddRule(req.Kind, req.Triggers, req.Response)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, rule)
}

type updateRuleRequest struct {
	Triggers []string `json:"triggers"`
	Response string   `json:"response"`
	Enabled  bool     `json:"enabled"`
}

func (s *Server) handleUpdateRule(c echo.Context) error {
	var req updateRuleRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("malformed rule request")
	}
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	if err := sess.UpdateRule(c.Param("ruleID"), req.Triggers, req.Response, req.Enabled); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

type ruleNoteRequest struct {
	Note string `json:"note"`
}

func (s *Server) handleSetRuleNote(c echo.Context) error {
	var req ruleNoteRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("malformed rule request")
	}
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	if err := sess.SetRuleNote(c.Param("ruleID"), req.Note); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleRemoveRule(c echo.Context) error {
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	if err := sess.RemoveRule(c.Param("ruleID")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type addMacroRequest struct {
	Message     string `json:"message"`
	IntervalSec int    `json:"intervalSec"`
}

func (s *Server) handleAddMacro(c echo.Context) error {
	var req addMacroRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("malformed macro request")
	}
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	macro, err := sess.AddMacro(req.Message, req.IntervalSec)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, macro)
}

func (s *Server) handleRemoveMacro(c echo.Context) error {
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	if err := sess.RemoveMacro(c.Param("macroID")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// --- songs ---

func (s *Server) handleAdvanceSong(c echo.Context) error {
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	song, err := sess.AdvanceSong()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, song)
}

func (s *Server) handleUpdateSongSettings(c echo.Context) error {
	var settings domain.SongSettings
	if err := c.Bind(&settings); err != nil {
		return apperrors.ValidationError("malformed song settings")
	}
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	if err := sess.UpdateSongSettings(settings); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleRemoveSongAt(c echo.Context) error {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return apperrors.ValidationError("song index must be a number")
	}
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	if err := sess.RemoveSongAt(index); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleClearSongs(c echo.Context) error {
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	if err := sess.ClearSongs(); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// --- points ---

func (s *Server) handleUpdatePointSettings(c echo.Context) error {
	var settings domain.PointSettings
	if err := c.Bind(&settings); err != nil {
		return apperrors.ValidationError("malformed point settings")
	}
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	if err := sess.UpdatePointSettings(settings); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

type adjustPointsRequest struct {
	ViewerID string `json:"viewerId"`
	Nickname string `json:"nickname"`
	Delta    int    `json:"delta"`
}

func (s *Server) handleAdjustPoints(c echo.Context) error {
	var req adjustPointsRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("malformed points request")
	}
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	balance, err := sess.AdjustPoints(req.ViewerID, req.Nickname, req.Delta)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int{"balance": balance})
}

func (s *Server) handleGetPointBalance(c echo.Context) error {
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	balance, err := sess.PointBalance(c.Param("viewerID"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int{"balance": balance})
}

func (s *Server) handleLeaderboard(c echo.Context) error {
	limit := 10
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return apperrors.ValidationError("limit must be a positive number")
		}
		limit = parsed
	}
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	entries, err := sess.Leaderboard(limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}

// --- greet ---

type greetSettingsRequest struct {
	Enabled bool               `json:"enabled"`
	Policy  domain.GreetPolicy `json:"policy"`
	Message string             `json:"message"`
}

func (s *Server) handleUpdateGreetSettings(c echo.Context) error {
	var req greetSettingsRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("malformed greet settings")
	}
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	if err := sess.UpdateGreetSettings(req.Enabled, req.Policy, req.Message); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleClearGreetHistory(c echo.Context) error {
	sess, err := s.channelSession(c)
	if err != nil {
		return err
	}
	if err := sess.ClearGreetHistory(); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
