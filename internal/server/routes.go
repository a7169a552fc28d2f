package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/version", s.handleVersion)

	// Event ingest (chat relay posts here)
	s.echo.POST("/events/chat", s.handleChatEvent)
	s.echo.POST("/events/donation", s.handleDonationEvent)

	// Dashboard websocket
	s.echo.GET("/ws/dashboard/:channelID", s.handleDashboardSocket)

	api := s.echo.Group("/api/channels/:channelID")

	api.GET("/state", s.handleGetState)
	api.DELETE("", s.handleTeardownChannel)

	api.POST("/votes", s.handleCreateVote)
	api.POST("/votes/start", s.handleStartVote)
	api.POST("/votes/end", s.handleEndVote)
	api.DELETE("/votes", s.handleResetVote)

	api.POST("/draw/collect", s.handleStartDrawCollecting)
	api.POST("/draw/close", s.handleStopDrawCollecting)
	api.POST("/draw/run", s.handleRunDraw)
	api.DELETE("/draw", s.handleResetDraw)
	api.DELETE("/draw/winners", s.handleClearPreviousWinners)

	api.PUT("/roulette", s.handleConfigureRoulette)
	api.POST("/roulette/spin", s.handleSpinRoulette)
	api.DELETE("/roulette", s.handleResetRoulette)

	api.POST("/participation/open", s.handleOpenParticipation)
	api.POST("/participation/close", s.handleCloseParticipation)
	api.POST("/participation/join", s.handleJoinParticipation)
	api.POST("/participation/promote", s.handlePromoteParticipant)
	api.PUT("/participation/capacity", s.handleSetParticipationCapacity)
	api.DELETE("/participation/:viewerID", s.handleRemoveParticipant)

	api.POST("/rules", s.handleAddRule)
	api.PUT("/rules/:ruleID", s.handleUpdateRule)
	api.PUT("/rules/:ruleID/note", s.handleSetRuleNote)
	api.DELETE("/rules/:ruleID", s.handleRemoveRule)

	api.POST("/macros", s.handleAddMacro)
	api.DELETE("/macros/:macroID", s.handleRemoveMacro)

	api.POST("/songs/advance", s.handleAdvanceSong)
	api.PUT("/songs/settings", s.handleUpdateSongSettings)
	api.DELETE("/songs/:index", s.handleRemoveSongAt)
	api.DELETE("/songs", s.handleClearSongs)

	api.PUT("/points/settings", s.handleUpdatePointSettings)
	api.POST("/points/adjust", s.handleAdjustPoints)
	api.GET("/points/leaderboard", s.handleLeaderboard)
	api.GET("/points/:viewerID", s.handleGetPointBalance)

	api.PUT("/greet/settings", s.handleUpdateGreetSettings)
	api.DELETE("/greet/history", s.handleClearGreetHistory)
}
