package tasks

import (
	"context"
	"sync"

	"github.com/desertthunder/adpacks/internal/models"
	"golang.org/x/time/rate"
)

// RefreshAllOpts configures [PackRefresher.RefreshAll].
type RefreshAllOpts struct {
	NumWorkers int     // Concurrent workers (default: 3)
	RateLimit  float64 // Refreshes started per second (default: 2)
	All        bool    // Refresh every pack, not only auto_refresh ones
}

// RefreshAllResult summarizes a bulk refresh.
type RefreshAllResult struct {
	Total     int
	Succeeded int
	Paused    int
	Skipped   int
	Failed    int
	Results   []PackRefreshResult
}

// RefreshAll refreshes packs concurrently with rate limiting and progress tracking.
//
// Packs already updating are counted as skipped. Individual failures do not stop the run.
func (r *PackRefresher) RefreshAll(ctx context.Context, progress chan<- ProgressUpdate, opts RefreshAllOpts) (*RefreshAllResult, error) {
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 3
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2.0
	}

	var packs []models.Pack
	for _, p := range r.store.Snapshot().Packs {
		if opts.All || p.AutoRefresh {
			packs = append(packs, p)
		}
	}

	result := &RefreshAllResult{
		Total:   len(packs),
		Results: make([]PackRefreshResult, 0, len(packs)),
	}
	if len(packs) == 0 {
		return result, nil
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan models.Pack, len(packs))
	results := make(chan PackRefreshResult, len(packs))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go r.refreshWorker(ctx, &wg, jobs, results)
	}

	go func() {
		defer close(jobs)
		for i, p := range packs {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			sendProgress(progress, refreshingUpdate(i+1, len(packs), p.Name))
			jobs <- p
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		switch {
		case IsBusy(res.Error):
			result.Skipped++
			sendProgress(progress, refreshFailedUpdate(completed, len(packs), res))
		case res.Error != nil:
			result.Failed++
			sendProgress(progress, refreshFailedUpdate(completed, len(packs), res))
		case res.Paused:
			result.Paused++
			sendProgress(progress, refreshCompletedUpdate(completed, len(packs), res))
		default:
			result.Succeeded++
			sendProgress(progress, refreshCompletedUpdate(completed, len(packs), res))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// refreshWorker refreshes packs from the jobs channel.
func (r *PackRefresher) refreshWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan models.Pack, results chan<- PackRefreshResult) {
	defer wg.Done()

	for p := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := r.Refresh(ctx, p.ID)
		if res == nil {
			res = &PackRefreshResult{PackID: p.ID, PackName: p.Name}
		}
		res.Error = err
		results <- *res
	}
}
