package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})
	fail := func(ctx context.Context) (int, error) { return 0, eris.New("boom") }

	for i := 0; i < 3; i++ {
		_, err := Exec(context.Background(), b, fail)
		require.Error(t, err)
	}
	assert.Equal(t, BreakerOpen, b.State())

	_, err := Exec(context.Background(), b, fail)
	assert.ErrorIs(t, err, ErrBreakerOpen)
}

func TestBreaker_SuccessResetsCounter(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	_, _ = Exec(context.Background(), b, func(ctx context.Context) (int, error) { return 0, eris.New("boom") })
	_, _ = Exec(context.Background(), b, func(ctx context.Context) (int, error) { return 0, eris.New("boom") })
	_, err := Exec(context.Background(), b, func(ctx context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)

	_, _ = Exec(context.Background(), b, func(ctx context.Context) (int, error) { return 0, eris.New("boom") })
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_HalfOpenAfterReset(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Millisecond})
	now := time.Now()
	b.nowFunc = func() time.Time { return now }

	_, _ = Exec(context.Background(), b, func(ctx context.Context) (int, error) { return 0, eris.New("boom") })
	assert.Equal(t, BreakerOpen, b.State())

	now = now.Add(20 * time.Millisecond)
	assert.Equal(t, BreakerHalfOpen, b.State())

	// Successful probe closes the circuit.
	_, err := Exec(context.Background(), b, func(ctx context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Millisecond})
	now := time.Now()
	b.nowFunc = func() time.Time { return now }

	_, _ = Exec(context.Background(), b, func(ctx context.Context) (int, error) { return 0, eris.New("boom") })
	now = now.Add(20 * time.Millisecond)

	_, err := Exec(context.Background(), b, func(ctx context.Context) (int, error) { return 0, eris.New("still down") })
	require.Error(t, err)
	assert.Equal(t, BreakerOpen, b.State())
}

func TestBreaker_ShouldTripFilter(t *testing.T) {
	b := NewBreaker(BreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		ShouldTrip:       IsTransient,
	})

	// Permanent errors do not trip the breaker.
	_, _ = Exec(context.Background(), b, func(ctx context.Context) (int, error) {
		return 0, NewPermanentError(eris.New("bad id"), 404)
	})
	assert.Equal(t, BreakerClosed, b.State())

	_, _ = Exec(context.Background(), b, func(ctx context.Context) (int, error) {
		return 0, NewTransientError(eris.New("503"), 503)
	})
	assert.Equal(t, BreakerOpen, b.State())
}

func TestProviderBreakers_PerProvider(t *testing.T) {
	pb := NewProviderBreakers(BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})

	deezer := pb.Get("deezer")
	genius := pb.Get("genius")
	assert.NotSame(t, deezer, genius)
	assert.Same(t, deezer, pb.Get("deezer"))

	_, _ = Exec(context.Background(), deezer, func(ctx context.Context) (int, error) { return 0, eris.New("boom") })
	assert.Equal(t, BreakerOpen, deezer.State())
	assert.Equal(t, BreakerClosed, genius.State())
}
