// Package deezer is a minimal client for the public Deezer API, covering
// track search and per-track audio features.
package deezer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/halcyon-research/tracklist-cli/internal/resilience"
)

const defaultBaseURL = "https://api.deezer.com"

// Client searches the Deezer catalog and fetches track details.
type Client interface {
	Search(ctx context.Context, title, artist string) ([]Track, error)
	GetTrack(ctx context.Context, id int64) (*Track, error)
}

// Track is a Deezer track. Search results omit the audio features; GetTrack
// fills them in.
type Track struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Duration int    `json:"duration"`
	Artist   struct {
		Name string `json:"name"`
	} `json:"artist"`
	Album struct {
		Title string `json:"title"`
	} `json:"album"`

	// Audio features, only present on GET /track/{id}.
	BPM  float64 `json:"bpm"`
	Gain float64 `json:"gain"`
}

type searchResponse struct {
	Data []Track `json:"data"`
}

// apiError is Deezer's in-band error envelope, returned with HTTP 200.
type apiError struct {
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Deezer error codes.
const (
	codeQuotaExceeded = 4
	codeDataNotFound  = 800
)

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
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Deezer API client. The public API needs no key.
func NewClient(opts ...Option) Client {
	c := &httpClient{
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

func (c *httpClient) Search(ctx context.Context, title, artist string) ([]Track, error) {
	q := fmt.Sprintf(`track:%q artist:%q`, title, artist)
	var result searchResponse
	if err := c.get(ctx, "/search?q="+url.QueryEscape(q), &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

func (c *httpClient) GetTrack(ctx context.Context, id int64) (*Track, error) {
	var track Track
	if err := c.get(ctx, fmt.Sprintf("/track/%d", id), &track); err != nil {
		return nil, err
	}
	return &track, nil
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "deezer: rate limit wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "deezer: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return resilience.NewTransientError(eris.Wrap(err, "deezer: send request"), 0)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resilience.NewTransientError(eris.Wrap(err, "deezer: read response"), resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("deezer: unexpected status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}

	// Deezer reports errors in-band with HTTP 200.
	var envelope apiError
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		apiErr := eris.Errorf("deezer: api error %d (%s): %s",
			envelope.Error.Code, envelope.Error.Type, envelope.Error.Message)
		switch envelope.Error.Code {
		case codeQuotaExceeded:
			return resilience.NewTransientError(apiErr, http.StatusTooManyRequests)
		case codeDataNotFound:
			return resilience.NewPermanentError(apiErr, http.StatusNotFound)
		default:
			return apiErr
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "deezer: unmarshal response")
	}
	return nil
}
