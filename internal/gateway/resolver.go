package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/mugummy/chzzkbot/internal/errors"

	"github.com/mugummy/chzzkbot/internal/domain"
)

const defaultOEmbedEndpoint = "https://www.youtube.com/oembed"

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// OEmbedResolver resolves song request queries to YouTube video metadata
// through the keyless oEmbed endpoint. Queries must carry a video URL or a
// bare 11-character video ID; free-text search needs an API key and is not
// supported here.
type OEmbedResolver struct {
	httpClient *http.Client
	endpoint   string
}

func NewOEmbedResolver() *OEmbedResolver {
	return &OEmbedResolver{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		endpoint:   defaultOEmbedEndpoint,
	}
}

type oEmbedResponse struct {
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail_url"`
}

func (r *OEmbedResolver) Resolve(ctx context.Context, query string) (*domain.Song, error) {
	videoID, err := extractVideoID(strings.TrimSpace(query))
	if err != nil {
		return nil, err
	}

	watchURL := "https://www.youtube.com/watch?v=" + videoID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		r.endpoint+"?format=json&url="+url.QueryEscape(watchURL), nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch video metadata: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusBadRequest, http.StatusUnauthorized:
		// oEmbed answers 400/401 for unlisted-metadata and deleted videos.
		return nil, apperrors.NotFoundError("video not found: " + videoID)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &statusError{code: resp.StatusCode, body: string(body)}
	}

	var meta oEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode video metadata: %w", err)
	}

	return &domain.Song{
		VideoID:   videoID,
		Title:     meta.Title,
		Thumbnail: meta.ThumbnailURL,
	}, nil
}

// extractVideoID accepts watch URLs, youtu.be short links, shorts links and
// bare video IDs.
func extractVideoID(query string) (string, error) {
	if videoIDPattern.MatchString(query) {
		return query, nil
	}

	u, err := url.Parse(query)
	if err != nil || u.Host == "" {
		return "", apperrors.ValidationError("song requests need a video link or id")
	}

	var candidate string
	switch {
	case strings.HasSuffix(u.Host, "youtu.be"):
		candidate = strings.Trim(u.Path, "/")
	case strings.Contains(u.Path, "/shorts/"):
		candidate = strings.Trim(strings.TrimPrefix(u.Path, "/shorts/"), "/")
	default:
		candidate = u.Query().Get("v")
	}

	if !videoIDPattern.MatchString(candidate) {
		return "", apperrors.ValidationError("unrecognized video link: " + query)
	}
	return candidate, nil
}
