package client

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/keboola/go-minireq/pkg/request"
)

// RunGroupConcurrencyLimit is the default number of calls sent at the same time by a RunGroup.
const RunGroupConcurrencyLimit = 32

// RunGroup collects calls by the Add method, nothing is sent before the RunAndWait method.
// The first failure cancels the group ctx, so the remaining calls are aborted.
// See WaitGroup for immediate sending which collects all failures.
type RunGroup struct {
	ctx     context.Context
	sender  Sender
	limiter *semaphore.Weighted
	group   *errgroup.Group
	started chan struct{}
}

func NewRunGroup(ctx context.Context, sender Sender) *RunGroup {
	return RunGroupWithLimit(ctx, sender, RunGroupConcurrencyLimit)
}

func RunGroupWithLimit(ctx context.Context, sender Sender, limit int64) *RunGroup {
	g := &RunGroup{sender: sender, limiter: semaphore.NewWeighted(limit), started: make(chan struct{})}
	g.group, g.ctx = errgroup.WithContext(ctx)
	return g
}

// Add schedules the call, onSuccess may be nil.
// It can be called also during RunAndWait, for example from an onSuccess callback.
func (g *RunGroup) Add(call request.CallConfig, onSuccess OnSuccess) {
	g.group.Go(func() error {
		select {
		case <-g.started:
		case <-g.ctx.Done():
			return g.ctx.Err()
		}
		if err := g.limiter.Acquire(g.ctx, 1); err != nil {
			return err
		}
		defer g.limiter.Release(1)
		return doCall(g.ctx, g.sender, call, onSuccess)
	})
}

// RunAndWait sends all scheduled calls and returns the first failure.
func (g *RunGroup) RunAndWait() error {
	close(g.started)
	return g.group.Wait()
}
