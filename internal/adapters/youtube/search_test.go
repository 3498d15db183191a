package youtube

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/jose-valero/kodari-bot/internal/domain"
)

func newTestSearcher(t *testing.T, h http.HandlerFunc) *Searcher {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	s, err := NewSearcher(context.Background(), nil,
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"),
	)
	require.NoError(t, err)
	return s
}

func TestSearchRankedWithDurations(t *testing.T) {
	s := newTestSearcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/search"):
			assert.Equal(t, "artist song", r.URL.Query().Get("q"))
			assert.Equal(t, "2", r.URL.Query().Get("maxResults"))
			_, _ = w.Write([]byte(`{"items":[
				{"id":{"kind":"youtube#video","videoId":"v1"},"snippet":{"title":"Song &amp; Co","channelTitle":"ArtistVEVO","thumbnails":{"high":{"url":"https://i/v1.jpg"}}}},
				{"id":{"kind":"youtube#video","videoId":"v2"},"snippet":{"title":"Song (live)","channelTitle":"Fan"}}
			]}`))
		case strings.HasSuffix(r.URL.Path, "/videos"):
			_, _ = w.Write([]byte(`{"items":[
				{"id":"v2","contentDetails":{"duration":"PT1H2S"}},
				{"id":"v1","contentDetails":{"duration":"PT3M33S"}}
			]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	got, err := s.Search(context.Background(), "artist song", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.TrackMetadata{
		ID:         "v1",
		Title:      "Song & Co",
		Artists:    []string{"ArtistVEVO"},
		Duration:   3*time.Minute + 33*time.Second,
		ArtworkURL: "https://i/v1.jpg",
		URL:        "https://www.youtube.com/watch?v=v1",
	}, got[0])
	assert.Equal(t, "v2", got[1].ID)
	assert.Equal(t, time.Hour+2*time.Second, got[1].Duration)
}

func TestSearchNoResults(t *testing.T) {
	s := newTestSearcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/search"), "videos.list not called without ids")
		_, _ = w.Write([]byte(`{"items":[]}`))
	})
	got, err := s.Search(context.Background(), "zzz", 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchServerErrorIsConnectivity(t *testing.T) {
	s := newTestSearcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":503,"message":"backend"}}`))
	})
	_, err := s.Search(context.Background(), "x", 1)
	require.ErrorIs(t, err, domain.ErrConnectivity)
}

func TestSearchQuotaIsNotConnectivity(t *testing.T) {
	s := newTestSearcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"quotaExceeded"}}`))
	})
	_, err := s.Search(context.Background(), "x", 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrConnectivity)
}
