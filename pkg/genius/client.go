// Package genius is a minimal client for the Genius API and its public
// lyrics pages.
package genius

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/halcyon-research/tracklist-cli/internal/resilience"
)

const defaultBaseURL = "https://api.genius.com"

// Client searches songs and retrieves lyrics.
type Client interface {
	SearchSong(ctx context.Context, title, artist string) ([]Song, error)
	Lyrics(ctx context.Context, pageURL string) (string, error)
}

// Song is one search hit.
type Song struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	PrimaryArtist struct {
		Name string `json:"name"`
	} `json:"primary_artist"`
}

type searchResponse struct {
	Response struct {
		Hits []struct {
			Result Song `json:"result"`
		} `json:"hits"`
	} `json:"response"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Genius API client.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) SearchSong(ctx context.Context, title, artist string) ([]Song, error) {
	q := url.QueryEscape(title + " " + artist)
	body, err := c.get(ctx, c.baseURL+"/search?q="+q, true)
	if err != nil {
		return nil, err
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "genius: unmarshal search response")
	}

	songs := make([]Song, 0, len(result.Response.Hits))
	for _, hit := range result.Response.Hits {
		songs = append(songs, hit.Result)
	}
	return songs, nil
}

// Lyrics fetches a song page and extracts the lyric text. Returns an empty
// string when the page carries no lyrics containers.
func (c *httpClient) Lyrics(ctx context.Context, pageURL string) (string, error) {
	body, err := c.get(ctx, pageURL, false)
	if err != nil {
		return "", err
	}
	return extractLyrics(string(body)), nil
}

func (c *httpClient) get(ctx context.Context, rawURL string, authed bool) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "genius: rate limit wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "genius: create request")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(err, "genius: GET %s", rawURL), 0)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "genius: read response"), resp.StatusCode)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, resilience.NewPermanentError(eris.Errorf("genius: not found: %s", rawURL), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("genius: unexpected status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}
	return body, nil
}
