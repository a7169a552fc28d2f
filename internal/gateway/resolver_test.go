package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/mugummy/chzzkbot/internal/errors"
)

func testResolver(t *testing.T, handler http.HandlerFunc) *OEmbedResolver {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	r := NewOEmbedResolver()
	r.endpoint = server.URL
	return r
}

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    string
		wantErr bool
	}{
		{name: "bare id", query: "dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{name: "watch url", query: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{name: "watch url with extras", query: "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", want: "dQw4w9WgXcQ"},
		{name: "short link", query: "https://youtu.be/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{name: "shorts link", query: "https://www.youtube.com/shorts/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{name: "free text", query: "never gonna give you up", wantErr: true},
		{name: "wrong host path", query: "https://example.com/videos/123", wantErr: true},
		{name: "empty", query: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractVideoID(tt.query)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperrors.TypeValidation, apperrors.AsStructured(err).Type)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOEmbedResolverResolve(t *testing.T) {
	r := testResolver(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Contains(t, req.URL.Query().Get("url"), "dQw4w9WgXcQ")
		json.NewEncoder(w).Encode(map[string]string{
			"title":         "Rick Astley - Never Gonna Give You Up",
			"thumbnail_url": "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg",
		})
	})

	song, err := r.Resolve(context.Background(), "https://youtu.be/dQw4w9WgXcQ")

	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", song.VideoID)
	assert.Equal(t, "Rick Astley - Never Gonna Give You Up", song.Title)
	assert.Equal(t, "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg", song.Thumbnail)
}

func TestOEmbedResolverVideoMissing(t *testing.T) {
	r := testResolver(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := r.Resolve(context.Background(), "dQw4w9WgXcQ")

	require.Error(t, err)
	assert.Equal(t, apperrors.TypeNotFound, apperrors.AsStructured(err).Type)
}
