// Package metrics provides per-run fetch metrics collection.
//
// The Collector accumulates counters during a single run. It is a leaf
// package with no internal dependencies. Counts per outcome status are
// owned by the outcome ledger; the collector tracks backend-level
// activity (attempts, retries, bytes) that the ledger cannot see.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of run metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Fetch activity
	FetchAttempts  int64 `json:"fetch_attempts"`
	FetchRetries   int64 `json:"fetch_retries"`
	FetchSuccesses int64 `json:"fetch_successes"`
	FetchFailures  int64 `json:"fetch_failures"`

	// Short-circuits
	SkippedExisting int64 `json:"skipped_existing"`
	Synthesized     int64 `json:"synthesized"`

	// Bytes written to the destination filesystem.
	BytesWritten int64 `json:"bytes_written"`

	// Dimensions (informational, set at construction)
	Backend  string `json:"backend"`
	PoolSize int    `json:"pool_size"`
	RunID    string `json:"run_id"`
}

// Collector accumulates metrics during a single run.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe
// so callers that run without metrics need no guards.
type Collector struct {
	mu sync.Mutex

	fetchAttempts  int64
	fetchRetries   int64
	fetchSuccesses int64
	fetchFailures  int64

	skippedExisting int64
	synthesized     int64

	bytesWritten int64

	backend  string
	poolSize int
	runID    string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(backend string, poolSize int, runID string) *Collector {
	return &Collector{
		backend:  backend,
		poolSize: poolSize,
		runID:    runID,
	}
}

// IncFetchAttempt records one backend invocation.
func (c *Collector) IncFetchAttempt() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.fetchAttempts++
	c.mu.Unlock()
}

// IncFetchRetry records one retry of a transient failure.
func (c *Collector) IncFetchRetry() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.fetchRetries++
	c.mu.Unlock()
}

// IncFetchSuccess records one task settling as fetched.
func (c *Collector) IncFetchSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.fetchSuccesses++
	c.mu.Unlock()
}

// IncFetchFailure records one task settling as failed.
func (c *Collector) IncFetchFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.fetchFailures++
	c.mu.Unlock()
}

// IncSkippedExisting records one existence short-circuit.
func (c *Collector) IncSkippedExisting() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.skippedExisting++
	c.mu.Unlock()
}

// IncSynthesized records one fake-image synthesis copy.
func (c *Collector) IncSynthesized() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.synthesized++
	c.mu.Unlock()
}

// AddBytesWritten records bytes written to the destination filesystem.
func (c *Collector) AddBytesWritten(n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.bytesWritten += n
	c.mu.Unlock()
}

// Snapshot returns an immutable view of the current counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		FetchAttempts:   c.fetchAttempts,
		FetchRetries:    c.fetchRetries,
		FetchSuccesses:  c.fetchSuccesses,
		FetchFailures:   c.fetchFailures,
		SkippedExisting: c.skippedExisting,
		Synthesized:     c.synthesized,
		BytesWritten:    c.bytesWritten,
		Backend:         c.backend,
		PoolSize:        c.poolSize,
		RunID:           c.runID,
	}
}
