package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formalci/formalci/internal/bot"
)

func newTestPolicy(cfg Config) *Policy {
	p := WithConfig(cfg)
	p.sleep = func(time.Duration) {}
	p.rand = func() float64 { return 0.5 }
	return p
}

func TestExecuteSucceedsFirstAttempt(t *testing.T) {
	p := newTestPolicy(DefaultConfig())
	calls := 0
	err := p.Execute(func() error {
		calls++
		return nil
	}, IsRetryable)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestExecuteSucceedsAfterFailures(t *testing.T) {
	p := newTestPolicy(DefaultConfig())
	calls := 0
	err := p.Execute(func() error {
		calls++
		if calls < 3 {
			return bot.New(bot.KindHTTP, "boom")
		}
		return nil
	}, IsRetryable)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecuteExhausted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRetries = 3
	p := newTestPolicy(cfg)
	calls := 0
	err := p.Execute(func() error {
		calls++
		return bot.New(bot.KindHTTP, "boom")
	}, IsRetryable)
	require.Error(t, err)
	assert.Equal(t, 4, calls) // initial + 3 retries
}

func TestExecuteNonRetryable(t *testing.T) {
	p := newTestPolicy(DefaultConfig())
	calls := 0
	err := p.Execute(func() error {
		calls++
		return bot.New(bot.KindInvalidInput, "bad input")
	}, IsRetryable)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsRetryableClassification(t *testing.T) {
	assert.True(t, IsRetryable(bot.New(bot.KindHTTP, "dial tcp: timeout")))
	assert.True(t, IsRetryable(bot.New(bot.KindVerifier, "503 Service Unavailable")))
	assert.True(t, IsRetryable(bot.New(bot.KindVerifier, "rate limit exceeded")))
	assert.True(t, IsRetryable(bot.New(bot.KindStore, "connection reset")))

	assert.False(t, IsRetryable(bot.New(bot.KindInvalidInput, "bad")))
	assert.False(t, IsRetryable(bot.New(bot.KindConfig, "bad config")))
	assert.False(t, IsRetryable(bot.New(bot.KindVerifier, "malformed response")))
	assert.False(t, IsRetryable(nil))
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	cfg := Config{
		MaxRetries:     5,
		InitialBackoff: time.Second,
		MaxBackoff:     4 * time.Second,
		Multiplier:     2.0,
		Jitter:         false,
	}
	p := newTestPolicy(cfg)
	var delays []time.Duration
	p.sleep = func(d time.Duration) { delays = append(delays, d) }

	calls := 0
	_ = p.Execute(func() error {
		calls++
		return bot.New(bot.KindHTTP, "boom")
	}, IsRetryable)

	require.Len(t, delays, 5)
	assert.Equal(t, time.Second, delays[0])
	assert.Equal(t, 2*time.Second, delays[1])
	assert.Equal(t, 4*time.Second, delays[2])
	assert.Equal(t, 4*time.Second, delays[3]) // capped
	assert.Equal(t, 4*time.Second, delays[4])
}
