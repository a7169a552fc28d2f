// Package gateway holds the outbound chzzk collaborators: the chat send
// API, the live-detail lookup backing template variables, and the song
// metadata resolver. Inbound event decoding lives with whatever feeds
// events into the session registry and is not part of this package.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mugummy/chzzkbot/internal/domain"
	apperrors "github.com/mugummy/chzzkbot/internal/errors"
	"github.com/mugummy/chzzkbot/internal/retry"
)

const openDateFormat = "2006-01-02 15:04:05"

var defaultPolicy = retry.Policy{
	MaxAttempts:      3,
	InitialBackoff:   200 * time.Millisecond,
	RateLimitBackoff: 2 * time.Second,
}

// Client talks to the chzzk APIs. It implements domain.ChatSender and
// domain.LiveStatusSource.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
	logger      *slog.Logger
	policy      retry.Policy
}

func NewClient(baseURL, accessToken string, logger *slog.Logger) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		baseURL:     baseURL,
		accessToken: accessToken,
		logger:      logger,
		policy:      defaultPolicy,
	}
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

// classify retries server errors, backs off longer on rate limits, and
// gives up on anything else.
func classify(err error) retry.Action {
	var se *statusError
	if errors.As(err, &se) {
		switch {
		case se.code == http.StatusTooManyRequests:
			return retry.After
		case se.code >= 500:
			return retry.Again
		default:
			return retry.Stop
		}
	}
	return retry.Again
}

// SendChat posts a chat message as the bot account. Callers treat failures
// as fire-and-forget; this only retries within its own budget.
func (c *Client) SendChat(ctx context.Context, channelID, message string) error {
	payload, err := json.Marshal(map[string]string{
		"channelId": channelID,
		"message":   message,
	})
	if err != nil {
		return fmt.Errorf("failed to encode chat payload: %w", err)
	}

	err = retry.DoVoid(ctx, c.policy, classify, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/open/v1/chats/send", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.accessToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &statusError{code: resp.StatusCode, body: string(body)}
		}
		return nil
	})
	if err != nil {
		return apperrors.ExternalError("failed to send chat message", err).
			WithContext("channel_id", channelID)
	}
	return nil
}

type liveDetailResponse struct {
	Content struct {
		Status              string `json:"status"`
		LiveTitle           string `json:"liveTitle"`
		LiveCategoryValue   string `json:"liveCategoryValue"`
		ConcurrentUserCount int    `json:"concurrentUserCount"`
		OpenDate            string `json:"openDate"`
	} `json:"content"`
}

// Status fetches the channel's live-detail snapshot. A channel that is not
// live returns a zero-valued status, not an error.
func (c *Client) Status(ctx context.Context, channelID string) (*domain.LiveStatus, error) {
	detail, err := retry.Do(ctx, c.policy, classify, func() (*liveDetailResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			c.baseURL+"/service/v2/channels/"+channelID+"/live-detail", nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, &statusError{code: resp.StatusCode, body: string(body)}
		}

		var detail liveDetailResponse
		if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
			return nil, fmt.Errorf("failed to decode live detail: %w", err)
		}
		return &detail, nil
	})
	if err != nil {
		return nil, apperrors.ExternalError("failed to fetch live detail", err).
			WithContext("channel_id", channelID)
	}

	status := &domain.LiveStatus{
		Live:        detail.Content.Status == "OPEN",
		Title:       detail.Content.LiveTitle,
		Category:    detail.Content.LiveCategoryValue,
		ViewerCount: detail.Content.ConcurrentUserCount,
	}
	if detail.Content.OpenDate != "" {
		if startedAt, err := time.ParseInLocation(openDateFormat, detail.Content.OpenDate, time.Local); err == nil {
			status.StartedAt = startedAt
		} else {
			c.logger.Warn("unparseable live open date", "open_date", detail.Content.OpenDate)
		}
	}
	return status, nil
}
