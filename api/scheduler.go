/*
scheduler.go - Built-in job scheduler

PURPOSE:
  Runs the three recurring jobs (collections, performance-fees,
  deadline-reminders) on a ticker for deployments without an external cron.
  Each pass invokes the same job functions the /api/cron endpoints expose,
  including their job_runs audit rows, so manual and scheduled runs look
  identical to operators.

DESIGN:
  - Background goroutine with a configurable check interval
  - One pass on start, then one per tick
  - Overlapping runs are harmless: the dunning counter and the
    performance-fee unique index arbitrate at the store

CONFIGURATION:
  - CheckInterval: How often to run (default: 1 hour)
  - Enabled: Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewJobScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - cron.go: the job implementations
  - cmd/server/main.go: lifecycle wiring
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"
)

// JobScheduler periodically runs the billing and monitoring jobs.
type JobScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewJobScheduler creates a scheduler over the handler's job functions.
func NewJobScheduler(h *Handler) *JobScheduler {
	return &JobScheduler{
		Handler:       h,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (js *JobScheduler) Start() {
	js.mu.Lock()
	defer js.mu.Unlock()

	if !js.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	js.ticker = time.NewTicker(js.CheckInterval)
	js.wg.Add(1)

	go js.run()

	log.Printf("[Scheduler] Started with check interval: %v", js.CheckInterval)
}

// Stop stops the scheduler and waits for an in-flight pass to finish.
func (js *JobScheduler) Stop() {
	js.mu.Lock()
	defer js.mu.Unlock()

	if js.ticker != nil {
		js.ticker.Stop()
		close(js.stop)
		js.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (js *JobScheduler) run() {
	defer js.wg.Done()

	// Run immediately on start
	js.runAll()

	for {
		select {
		case <-js.ticker.C:
			js.runAll()
		case <-js.stop:
			return
		}
	}
}

func (js *JobScheduler) runAll() {
	ctx := context.Background()
	h := js.Handler

	jobs := []struct {
		name string
		fn   func(ctx context.Context, now time.Time) (RunSummary, error)
	}{
		{JobCollections, h.RunCollections},
		{JobPerformanceFees, h.RunPerformanceFees},
		{JobDeadlineReminders, h.RunDeadlineReminders},
	}

	for _, job := range jobs {
		summary, err := h.recordedRun(ctx, job.name, h.now(), job.fn)
		if err != nil {
			log.Printf("[Scheduler] %s failed: %v", job.name, err)
			continue
		}
		if summary.Processed > 0 {
			log.Printf("[Scheduler] %s: %d processed, %d succeeded, %d skipped, %d errored",
				job.name, summary.Processed, summary.Succeeded, summary.Skipped, summary.Errored)
		}
	}
}

// RunNow triggers an immediate pass (for testing/admin).
func (js *JobScheduler) RunNow() {
	js.runAll()
}
