// Package downloader schedules channel tasks over a bounded worker
// pool, applies retry and skip policies, and aggregates outcomes into
// an outcome ledger.
//
// The orchestrator never lets a per-task failure escape: every task
// settles into exactly one TaskOutcome, and only configuration errors
// abort a run before scheduling. Completion order is unconstrained;
// the ledger reorders results deterministically at finalize time.
package downloader

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pithecene-io/stainfetch/fetch"
	"github.com/pithecene-io/stainfetch/ledger"
	"github.com/pithecene-io/stainfetch/log"
	"github.com/pithecene-io/stainfetch/metrics"
	"github.com/pithecene-io/stainfetch/types"
)

// Orchestrator drains a task set through a fetch backend.
// Create with New; Run may be called once per Orchestrator.
type Orchestrator struct {
	backend   fetch.Backend
	synth     *fetch.LocalBackend
	opts      Options
	logger    *log.Logger
	collector *metrics.Collector

	settled atomic.Int64
	total   atomic.Int64
}

// New creates an orchestrator. Returns an error for invalid options.
// collector may be nil; logger must not be.
func New(backend fetch.Backend, opts Options, logger *log.Logger, collector *metrics.Collector) (*Orchestrator, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{
		backend:   backend,
		synth:     fetch.NewLocalBackend(),
		opts:      opts,
		logger:    logger,
		collector: collector,
	}, nil
}

// Progress returns the monotonically increasing count of settled tasks
// (success + skip + fail) out of the total. Safe to poll from another
// goroutine; reads never block the worker pool.
func (o *Orchestrator) Progress() (settled, total int64) {
	return o.settled.Load(), o.total.Load()
}

// realResult is the settlement of a channel's designated real task in
// fake-image mode. Each synthesizable task blocks only on its one
// channel dependency, never on unrelated channels or samples.
type realResult struct {
	path string
	ok   bool
}

// Run drains the task set and returns the finalized summary.
//
// Scheduling phases:
//  1. Skip-existing short-circuit, checked synchronously before any
//     worker is spawned.
//  2. Fake-image partitioning: one real task per channel (first in
//     input order), the rest deferred to synthesis.
//  3. Bounded worker pool over the fetchable subset, with retry and
//     exponential backoff for transient failures.
//  4. Synthesis copies, each gated on its channel's real settlement.
//
// Failures never cancel sibling tasks; the full set is drained even
// when the run will be reported as a hard failure. After ctx is
// canceled no new task is dispatched, but in-flight fetches finish
// naturally and their outcomes remain valid.
func (o *Orchestrator) Run(ctx context.Context, taskSet []types.ChannelTask) (*ledger.Summary, error) {
	led := ledger.New(o.opts.SkipFailed)
	o.total.Store(int64(len(taskSet)))
	o.settled.Store(0)

	o.logger.Info("starting download run", map[string]any{
		"tasks":     len(taskSet),
		"pool_size": o.opts.PoolSize,
		"backend":   o.backend.Name(),
	})

	// Phase 1: existence short-circuit. Cheap synchronous stats, no
	// concurrency needed, and no race with in-flight fetches since no
	// worker exists yet. A pre-existing file also serves as the
	// synthesis source for its channel.
	remainder := make([]*types.ChannelTask, 0, len(taskSet))
	existingByChannel := make(map[types.Channel]string)
	for i := range taskSet {
		task := &taskSet[i]
		if o.opts.SkipExisting {
			if ok, size := fetch.DestExists(task); ok {
				o.collector.IncSkippedExisting()
				o.record(led, types.TaskOutcome{
					Key:      task.Key,
					Channel:  task.Channel,
					DestPath: task.DestPath,
					Status:   types.StatusSkippedExisting,
					Bytes:    size,
				})
				if _, seen := existingByChannel[task.Channel]; !seen {
					existingByChannel[task.Channel] = task.DestPath
				}
				continue
			}
		}
		remainder = append(remainder, task)
	}

	// Phase 2: fake-image partitioning, also before any worker spawns.
	fetchable := remainder
	synthByChannel := make(map[types.Channel][]*types.ChannelTask)
	realTask := make(map[*types.ChannelTask]types.Channel)
	if o.opts.FakeImages {
		fetchable = make([]*types.ChannelTask, 0, len(remainder))
		realSeen := make(map[types.Channel]bool)
		for _, task := range remainder {
			switch {
			case !task.Synthesizable:
				fetchable = append(fetchable, task)
			case existingByChannel[task.Channel] != "":
				synthByChannel[task.Channel] = append(synthByChannel[task.Channel], task)
			case !realSeen[task.Channel]:
				realSeen[task.Channel] = true
				realTask[task] = task.Channel
				fetchable = append(fetchable, task)
			default:
				synthByChannel[task.Channel] = append(synthByChannel[task.Channel], task)
			}
		}
	}

	// One buffered settlement channel per channel that has synthesis
	// work. Channels whose source pre-exists settle immediately.
	realDone := make(map[types.Channel]chan realResult)
	for channel := range synthByChannel {
		realDone[channel] = make(chan realResult, 1)
		if path := existingByChannel[channel]; path != "" {
			realDone[channel] <- realResult{path: path, ok: true}
		}
	}

	// Phase 3: bounded worker pool.
	queue := make(chan *types.ChannelTask, len(fetchable))
	for _, task := range fetchable {
		queue <- task
	}
	close(queue)

	var wg sync.WaitGroup
	for i := 0; i < o.opts.PoolSize; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range queue {
				if ctx.Err() != nil {
					// Stop signal: already-queued tasks settle as
					// failed without reaching the backend.
					o.record(led, failedOutcome(task, 0, 0, types.FailureValidation,
						"run stopped before task was dispatched"))
					o.notifyReal(realDone, realTask, task, false)
					continue
				}
				outcome := o.fetchOne(ctx, task)
				o.record(led, outcome)
				o.notifyReal(realDone, realTask, task, outcome.Status == types.StatusSuccess)
			}
		}()
	}

	// Phase 4: synthesis, one goroutine per channel, each gated on its
	// channel's real settlement only.
	var synthWG sync.WaitGroup
	for channel, deferred := range synthByChannel {
		synthWG.Add(1)
		go func(channel types.Channel, deferred []*types.ChannelTask) {
			defer synthWG.Done()
			res := <-realDone[channel]
			for _, task := range deferred {
				o.record(led, o.synthesize(ctx, task, res))
			}
		}(channel, deferred)
	}

	wg.Wait()
	synthWG.Wait()

	summary := led.Finalize()
	o.logger.Info("download run finished", map[string]any{
		"succeeded":        summary.Succeeded,
		"skipped_existing": summary.SkippedExisting,
		"synthesized":      summary.Synthesized,
		"failed":           summary.Failed,
		"bytes":            summary.Bytes,
		"hard_failure":     summary.HasHardFailure,
	})
	return summary, nil
}

// record appends an outcome and bumps the progress counter.
func (o *Orchestrator) record(led *ledger.Ledger, outcome types.TaskOutcome) {
	if err := led.Record(outcome); err != nil {
		// Append-once violation is a programming error, not a run
		// failure; surface it loudly and keep draining.
		o.logger.Error("dropping duplicate outcome", map[string]any{
			"dest":  outcome.DestPath,
			"error": err.Error(),
		})
		return
	}
	o.settled.Add(1)
}

// notifyReal settles a channel's synthesis gate when task is that
// channel's designated real task.
func (o *Orchestrator) notifyReal(realDone map[types.Channel]chan realResult, realTask map[*types.ChannelTask]types.Channel, task *types.ChannelTask, ok bool) {
	channel, isReal := realTask[task]
	if !isReal {
		return
	}
	if done, exists := realDone[channel]; exists {
		done <- realResult{path: task.DestPath, ok: ok}
	}
}

// fetchOne drives a single task to settlement: attempts, retries with
// exponential backoff for transient failures, and one alternate-URL
// consultation for remote tasks missing from the standard path.
func (o *Orchestrator) fetchOne(ctx context.Context, task *types.ChannelTask) types.TaskOutcome {
	start := time.Now()
	var lastErr error
	attempts := 0
	triedFallback := false
	ceiling := o.opts.RetryCeiling

	for attempts < ceiling {
		attempts++
		o.collector.IncFetchAttempt()

		n, err := o.backend.Fetch(ctx, task)
		if err == nil {
			o.collector.IncFetchSuccess()
			o.collector.AddBytesWritten(n)
			return types.TaskOutcome{
				Key:      task.Key,
				Channel:  task.Channel,
				DestPath: task.DestPath,
				Status:   types.StatusSuccess,
				Bytes:    n,
				Elapsed:  time.Since(start),
				Attempts: attempts,
			}
		}
		lastErr = err

		if !fetch.Retryable(err) {
			// Permanent. The atlas catalog may know an alternate URL
			// for images that moved off the standard path; consult it
			// once, then give up.
			if !triedFallback && o.opts.Fallback != nil && task.SourceURL != "" &&
				fetch.Classify(err) == types.FailureNotFound {
				if alt, ok := o.opts.Fallback(task); ok && alt != task.SourceURL {
					triedFallback = true
					// The alternate does not count against the retry
					// ceiling; it must be attempted even when the
					// original URL spent the whole budget.
					ceiling++
					o.logger.Debug("retrying with alternate source", map[string]any{
						"task": task.Key.String(),
						"url":  alt,
					})
					task.SourceURL = alt
					continue
				}
			}
			break
		}

		if attempts == ceiling {
			break
		}
		o.collector.IncFetchRetry()
		select {
		case <-time.After(o.opts.backoff(attempts)):
		case <-ctx.Done():
			// Stop requested during backoff: settle with the last
			// transient error rather than sleeping out the schedule.
			o.collector.IncFetchFailure()
			return failedOutcome(task, time.Since(start), attempts,
				fetch.Classify(lastErr), lastErr.Error())
		}
	}

	o.collector.IncFetchFailure()
	return failedOutcome(task, time.Since(start), attempts,
		fetch.Classify(lastErr), lastErr.Error())
}

// synthesize fills a deferred task by copying its channel's real bytes.
func (o *Orchestrator) synthesize(ctx context.Context, task *types.ChannelTask, res realResult) types.TaskOutcome {
	start := time.Now()

	if !res.ok {
		return failedOutcome(task, time.Since(start), 0, types.FailureValidation,
			"fake-image source for channel "+string(task.Channel)+" failed")
	}
	if ctx.Err() != nil {
		return failedOutcome(task, time.Since(start), 0, types.FailureValidation,
			"run stopped before synthesis")
	}

	copyTask := *task
	copyTask.SourceURL = ""
	copyTask.SourcePath = res.path
	n, err := o.synth.Fetch(ctx, &copyTask)
	if err != nil {
		return failedOutcome(task, time.Since(start), 0, fetch.Classify(err), err.Error())
	}

	o.collector.IncSynthesized()
	o.collector.AddBytesWritten(n)
	return types.TaskOutcome{
		Key:      task.Key,
		Channel:  task.Channel,
		DestPath: task.DestPath,
		Status:   types.StatusSkippedSynthesized,
		Bytes:    n,
		Elapsed:  time.Since(start),
	}
}

func failedOutcome(task *types.ChannelTask, elapsed time.Duration, attempts int, class types.FailureClass, message string) types.TaskOutcome {
	return types.TaskOutcome{
		Key:      task.Key,
		Channel:  task.Channel,
		DestPath: task.DestPath,
		Status:   types.StatusFailed,
		Elapsed:  elapsed,
		Attempts: attempts,
		Failure:  class,
		Error:    message,
	}
}
