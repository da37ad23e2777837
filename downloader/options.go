package downloader

import (
	"errors"
	"time"

	"github.com/pithecene-io/stainfetch/types"
)

// Default scheduling parameters. The retry ceiling counts attempts,
// not retries: a task is offered to the backend at most RetryCeiling
// times. Going far above the default pool size overloads the image
// servers.
const (
	DefaultPoolSize     = 4
	DefaultRetryCeiling = 5
	DefaultBackoffBase  = 1 * time.Second
	DefaultBackoffCap   = 30 * time.Second
)

// URLResolver maps a task that failed with permanent-not-found to an
// alternate source URL. Returns false when no alternate is known.
// Used to consult the atlas catalog for images that moved off the
// standard path.
type URLResolver func(task *types.ChannelTask) (string, bool)

// Options is the immutable configuration for one orchestrator run.
type Options struct {
	// PoolSize bounds concurrent fetches. 1 degenerates to strictly
	// sequential processing with identical outcomes.
	PoolSize int
	// SkipExisting short-circuits tasks whose destination already
	// holds a non-zero-size file.
	SkipExisting bool
	// SkipFailed records individual failures without failing the run
	// as a whole.
	SkipFailed bool
	// FakeImages fetches one real file per channel and duplicates its
	// bytes for all other tasks of that channel. A testing shortcut
	// that trades fidelity for speed.
	FakeImages bool
	// RetryCeiling is the maximum number of fetch attempts per task.
	RetryCeiling int
	// BackoffBase is the first retry delay; each subsequent retry
	// doubles it up to BackoffCap.
	BackoffBase time.Duration
	// BackoffCap bounds the retry delay.
	BackoffCap time.Duration
	// Fallback resolves alternate URLs for remote tasks that failed
	// with permanent-not-found. Optional.
	Fallback URLResolver
}

// DefaultOptions returns the default scheduling configuration.
func DefaultOptions() Options {
	return Options{
		PoolSize:     DefaultPoolSize,
		RetryCeiling: DefaultRetryCeiling,
		BackoffBase:  DefaultBackoffBase,
		BackoffCap:   DefaultBackoffCap,
	}
}

// validate checks option invariants.
func (o *Options) validate() error {
	if o.PoolSize < 1 {
		return errors.New("pool size must be positive")
	}
	if o.RetryCeiling < 1 {
		return errors.New("retry ceiling must be positive")
	}
	if o.BackoffBase < 0 || o.BackoffCap < 0 {
		return errors.New("backoff durations must not be negative")
	}
	return nil
}

// backoff returns the delay before the given retry. attempt is the
// attempt number that just failed, starting at 1.
func (o *Options) backoff(attempt int) time.Duration {
	d := o.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= o.BackoffCap {
			return o.BackoffCap
		}
	}
	if o.BackoffCap > 0 && d > o.BackoffCap {
		return o.BackoffCap
	}
	return d
}
