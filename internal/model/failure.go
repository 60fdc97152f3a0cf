package model

import "time"

// FailureReason is the closed set of per-stage failure causes.
type FailureReason string

const (
	ReasonNoMatch         FailureReason = "no_match"
	ReasonAmbiguousMatch  FailureReason = "ambiguous_match"
	ReasonFetchError      FailureReason = "fetch_error"
	ReasonRateLimited     FailureReason = "rate_limited"
	ReasonTextUnavailable FailureReason = "text_unavailable"
)

// Retryable reports whether a later run should attempt the record again for
// the failing stage.
func (r FailureReason) Retryable() bool {
	switch r {
	case ReasonFetchError, ReasonRateLimited:
		return true
	default:
		return false
	}
}

// Failure is one append-only failure log entry. Entries are keyed by song
// and stage; a successful reprocess clears prior entries for that pair.
type Failure struct {
	ID        int64         `json:"id,omitempty"`
	SongID    string        `json:"song_id"`
	Stage     Stage         `json:"stage"`
	Reason    FailureReason `json:"reason"`
	Detail    string        `json:"detail,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}
