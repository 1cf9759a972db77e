package pipeline

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"shelfward/internal/logging"
	"shelfward/internal/queue"
	"shelfward/internal/services"
)

// Outcome is the per-item verdict of a batch run.
type Outcome struct {
	ID      string
	Title   string
	Path    string
	Skipped bool
	Err     error
}

// Summary aggregates a finished batch. Skipped items count as succeeded;
// they ended up shelved, just without new work.
type Summary struct {
	Succeeded int
	Failed    int
	Skipped   int
	Elapsed   time.Duration
	Outcomes  []Outcome
	Stats     *queue.Statistics
}

// Run fans the requests out across the configured number of download
// workers. A failed item never aborts its siblings; the summary carries
// every per-item error.
func (p *Pipeline) Run(ctx context.Context, requests []Request) (*Summary, error) {
	if len(requests) == 0 {
		return &Summary{}, nil
	}
	start := time.Now()

	// Enqueue everything up front so the batch exists with its expected
	// size before the first worker finishes, then pin the expectation.
	for _, req := range requests {
		title := req.Title
		if title == "" {
			title = req.ID
		}
		if _, err := p.store.Enqueue(ctx, req.ID, title, queue.Update{}); err != nil {
			return nil, services.Wrap(nil, "pipeline", "enqueue", req.ID, err)
		}
	}
	if err := p.store.SetExpectedItems(ctx, len(requests)); err != nil {
		return nil, services.Wrap(nil, "pipeline", "batch", "record expected items", err)
	}

	if err := p.notify.NotifyBatchStarted(ctx, len(requests)); err != nil {
		p.logger.Warn("batch notification failed", logging.Error(err))
	}

	sem := semaphore.NewWeighted(int64(p.downloadSlots()))
	outcomes := make([]Outcome, len(requests))
	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req Request) {
			defer wg.Done()
			outcome := Outcome{ID: req.ID, Title: req.Title}
			if err := sem.Acquire(ctx, 1); err != nil {
				outcome.Err = services.Wrap(services.ErrTimeout, "pipeline", "batch", "", err)
				outcomes[i] = outcome
				return
			}
			defer sem.Release(1)

			res, err := p.Download(ctx, req)
			if err != nil {
				outcome.Err = err
				if nerr := p.notify.NotifyItemFailed(ctx, req.Title, err); nerr != nil {
					p.logger.Warn("item notification failed", logging.Error(nerr))
				}
			} else {
				outcome.Path = res.Path
				outcome.Skipped = res.Skipped
				if nerr := p.notify.NotifyItemCompleted(ctx, req.Title, res.Path); nerr != nil {
					p.logger.Warn("item notification failed", logging.Error(nerr))
				}
			}
			outcomes[i] = outcome
		}(i, req)
	}
	wg.Wait()

	summary := &Summary{Elapsed: time.Since(start), Outcomes: outcomes}
	for _, outcome := range outcomes {
		switch {
		case outcome.Err != nil:
			summary.Failed++
		case outcome.Skipped:
			summary.Succeeded++
			summary.Skipped++
		default:
			summary.Succeeded++
		}
	}

	// Statistics also flips the batch complete once nothing is left
	// queued or active.
	stats, err := p.store.Statistics(ctx)
	if err != nil {
		p.logger.Warn("batch statistics unavailable", logging.Error(err))
	} else {
		summary.Stats = stats
	}

	if err := p.notify.NotifyBatchCompleted(ctx, summary.Succeeded, summary.Failed, summary.Elapsed); err != nil {
		p.logger.Warn("batch notification failed", logging.Error(err))
	}
	return summary, nil
}

func (p *Pipeline) downloadSlots() int {
	if p.cfg.Download.Concurrency < 1 {
		return 1
	}
	return p.cfg.Download.Concurrency
}
