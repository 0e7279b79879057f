package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"orgaudit/internal/protection"

	"github.com/google/go-github/v81/github"
)

// InspectFunc produces the protection report of one repository.
type InspectFunc func(ctx context.Context, repo *github.Repository) protection.Report

// Scheduler inspects repositories with bounded concurrency.
type Scheduler struct {
	inspect     InspectFunc
	concurrency int
}

func NewScheduler(inspect InspectFunc, concurrency int) (*Scheduler, error) {
	if inspect == nil {
		return nil, errors.New("inspect func is nil")
	}
	if concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be >= 1, got %d", concurrency)
	}
	return &Scheduler{inspect: inspect, concurrency: concurrency}, nil
}

// Execute streams one report per repository in input order, whatever order
// the inspections complete in.
//
// Channel semantics:
//   - In the normal (non-canceled) case, exactly one report is sent per repo.
//   - On context cancellation, the scheduler stops promptly; it may emit fewer reports.
//   - The results channel and error channel are both closed reliably.
//   - The error channel only carries the cancellation cause, if any.
func (s *Scheduler) Execute(ctx context.Context, repos []*github.Repository) (<-chan protection.Report, <-chan error) {
	resultsCh := make(chan protection.Report)
	errCh := make(chan error, 1)

	go func() {
		defer close(resultsCh)
		defer close(errCh)

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		// One buffered slot per repo so workers never wait on the emitter.
		slots := make([]chan protection.Report, len(repos))
		for i := range slots {
			slots[i] = make(chan protection.Report, 1)
		}

		launched := make(chan struct{})
		go func() {
			defer close(launched)
			sem := make(chan struct{}, s.concurrency)
			var wg sync.WaitGroup
		launchLoop:
			for i, repo := range repos {
				if runCtx.Err() != nil {
					break
				}
				select {
				case sem <- struct{}{}:
				case <-runCtx.Done():
					break launchLoop
				}
				wg.Add(1)
				go func(slot chan<- protection.Report, repo *github.Repository) {
					defer wg.Done()
					defer func() { <-sem }()
					slot <- s.inspect(runCtx, repo)
				}(slots[i], repo)
			}
			wg.Wait()
		}()

	emitLoop:
		for _, slot := range slots {
			if runCtx.Err() != nil {
				break
			}
			select {
			case report := <-slot:
				select {
				case resultsCh <- report:
				case <-runCtx.Done():
					break emitLoop
				}
			case <-runCtx.Done():
				break emitLoop
			}
		}

		cancel()
		<-launched
		if err := ctx.Err(); err != nil {
			errCh <- err
		}
	}()

	return resultsCh, errCh
}
