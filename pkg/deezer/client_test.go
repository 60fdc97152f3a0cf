package deezer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-research/tracklist-cli/internal/resilience"
)

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("q"), `track:"Weightless"`)
		assert.Contains(t, r.URL.Query().Get("q"), `artist:"Marconi Union"`)
		w.Write([]byte(`{
			"data": [
				{"id": 42, "title": "Weightless", "link": "https://www.deezer.com/track/42",
				 "duration": 480, "artist": {"name": "Marconi Union"}, "album": {"title": "Weightless"}},
				{"id": 43, "title": "Weightless (Part 2)", "duration": 470,
				 "artist": {"name": "Marconi Union"}, "album": {"title": "Weightless"}}
			]
		}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	tracks, err := client.Search(context.Background(), "Weightless", "Marconi Union")
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, int64(42), tracks[0].ID)
	assert.Equal(t, "Marconi Union", tracks[0].Artist.Name)
	assert.Equal(t, "https://www.deezer.com/track/42", tracks[0].Link)
}

func TestGetTrack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/track/42", r.URL.Path)
		w.Write([]byte(`{"id": 42, "title": "Weightless", "bpm": 65.5, "gain": -9.3, "duration": 480,
			"artist": {"name": "Marconi Union"}}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	track, err := client.GetTrack(context.Background(), 42)
	require.NoError(t, err)
	assert.InDelta(t, 65.5, track.BPM, 1e-9)
	assert.InDelta(t, -9.3, track.Gain, 1e-9)
	assert.Equal(t, 480, track.Duration)
}

func TestInBandErrors(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		wantTransient bool
		wantPermanent bool
	}{
		{
			name:          "quota exceeded is transient",
			body:          `{"error": {"type": "Exception", "message": "Quota limit exceeded", "code": 4}}`,
			wantTransient: true,
		},
		{
			name:          "no data is permanent",
			body:          `{"error": {"type": "DataException", "message": "no data", "code": 800}}`,
			wantPermanent: true,
		},
		{
			name: "other api error is plain",
			body: `{"error": {"type": "ParameterException", "message": "bad param", "code": 500}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient(WithBaseURL(srv.URL))
			_, err := client.GetTrack(context.Background(), 42)
			require.Error(t, err)
			assert.Equal(t, tt.wantTransient, resilience.IsTransient(err))
			assert.Equal(t, tt.wantPermanent, resilience.IsPermanent(err))
		})
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantTransient bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusServiceUnavailable, true},
		{"client error", http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client := NewClient(WithBaseURL(srv.URL))
			_, err := client.Search(context.Background(), "t", "a")
			require.Error(t, err)
			assert.Equal(t, tt.wantTransient, resilience.IsTransient(err))
		})
	}
}

func TestRateLimitOptionHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	// With a very slow limiter, a cancelled context aborts the wait.
	client := NewClient(WithBaseURL(srv.URL), WithRateLimit(0.0001))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Search(ctx, "t", "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
}
