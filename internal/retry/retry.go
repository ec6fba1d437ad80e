// Package retry implements bounded retries with exponential backoff and
// jitter over a pluggable transient/terminal error classifier. Defaults:
// initial backoff 1s, multiplier 2.0, max backoff 60s, jitter factor
// uniform in [0.5, 1.0), 3 retries.
package retry

import (
	"math/rand"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/formalci/formalci/internal/bot"
)

// Config holds the tunable parameters of a Policy.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	Jitter         bool
}

// DefaultConfig is the production retry schedule.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: time.Second,
		MaxBackoff:     60 * time.Second,
		Multiplier:     2.0,
		Jitter:         true,
	}
}

// Policy executes an operation with bounded retries.
type Policy struct {
	cfg Config
	// sleep is overridable in tests so the backoff schedule doesn't
	// actually block for real wall-clock seconds.
	sleep func(time.Duration)
	rand  func() float64
}

// New builds a Policy with the default configuration.
func New() *Policy {
	return WithConfig(DefaultConfig())
}

// WithConfig builds a Policy with a custom configuration.
func WithConfig(cfg Config) *Policy {
	return &Policy{cfg: cfg, sleep: time.Sleep, rand: rand.Float64}
}

// IsRetryable is the default classifier: network errors always retry,
// verifier and store errors retry only when the message suggests a
// transient condition, everything else is terminal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch bot.KindOf(err) {
	case bot.KindHTTP:
		return true
	case bot.KindVerifier:
		return containsAny(err.Error(), "timeout", "unavailable", "rate limit", "temporary", "503", "504")
	case bot.KindStore:
		return containsAny(err.Error(), "connection", "timeout", "deadlock")
	case bot.KindConfig, bot.KindInvalidInput, bot.KindInternal:
		return false
	default:
		return false
	}
}

func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

// Execute calls op; on success it returns immediately. On failure it
// consults isRetryable: if false, the error is returned unchanged;
// otherwise it sleeps the current (jittered) backoff, grows the backoff
// by Multiplier capped at MaxBackoff, and retries. After MaxRetries
// retries the last error is returned.
func (p *Policy) Execute(op func() error, isRetryable func(error) bool) error {
	backoff := p.cfg.InitialBackoff
	var lastErr error
	for attempt := 0; ; attempt++ {
		err := op()
		if err == nil {
			if attempt > 0 {
				logrus.WithField("attempts", attempt+1).Debug("retry: operation succeeded after retries")
			}
			return nil
		}
		lastErr = err

		if attempt >= p.cfg.MaxRetries {
			logrus.WithError(err).WithField("attempts", attempt+1).Warn("retry: attempts exhausted")
			return lastErr
		}
		if !isRetryable(err) {
			logrus.WithError(err).Warn("retry: non-retryable error")
			return lastErr
		}

		delay := backoff
		if p.cfg.Jitter {
			factor := 0.5 + p.rand()*0.5
			delay = time.Duration(float64(backoff) * factor)
		}
		logrus.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"max":     p.cfg.MaxRetries,
			"delay":   delay,
		}).Warn("retry: operation failed, retrying")

		p.sleep(delay)

		next := time.Duration(float64(backoff) * p.cfg.Multiplier)
		if next > p.cfg.MaxBackoff {
			next = p.cfg.MaxBackoff
		}
		backoff = next
	}
}

// ExecuteAuto runs op with the default transient-error classifier.
func (p *Policy) ExecuteAuto(op func() error) error {
	return p.Execute(op, IsRetryable)
}
