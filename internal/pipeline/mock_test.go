package pipeline

import (
	"context"
	"sync"

	"github.com/halcyon-research/tracklist-cli/pkg/anthropic"
	"github.com/halcyon-research/tracklist-cli/pkg/deezer"
	"github.com/halcyon-research/tracklist-cli/pkg/genius"
)

// mockDeezer serves canned search results and tracks, counting calls.
type mockDeezer struct {
	mu          sync.Mutex
	searches    map[string][]deezer.Track // keyed by title
	tracks      map[int64]*deezer.Track
	searchErr   error
	trackErr    error
	searchCalls int
	trackCalls  int
}

func (m *mockDeezer) Search(ctx context.Context, title, artist string) ([]deezer.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls++
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.searches[title], nil
}

func (m *mockDeezer) GetTrack(ctx context.Context, id int64) (*deezer.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackCalls++
	if m.trackErr != nil {
		return nil, m.trackErr
	}
	if t, ok := m.tracks[id]; ok {
		return t, nil
	}
	return &deezer.Track{ID: id}, nil
}

// mockGenius serves canned hits and lyrics.
type mockGenius struct {
	mu        sync.Mutex
	hits      map[string][]genius.Song // keyed by title
	lyrics    map[string]string        // keyed by page URL
	searchErr error
	lyricsErr error
}

func (m *mockGenius) SearchSong(ctx context.Context, title, artist string) ([]genius.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.hits[title], nil
}

func (m *mockGenius) Lyrics(ctx context.Context, pageURL string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lyricsErr != nil {
		return "", m.lyricsErr
	}
	return m.lyrics[pageURL], nil
}

// mockLLM returns a fixed completion.
type mockLLM struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (m *mockLLM) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &anthropic.MessageResponse{ID: "msg_test", Text: m.text}, nil
}
