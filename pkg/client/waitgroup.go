package client

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/semaphore"

	"github.com/keboola/go-minireq/pkg/request"
)

// WaitGroupConcurrencyLimit is the default number of calls sent at the same time by a WaitGroup.
const WaitGroupConcurrencyLimit = 8

// Sender sends a call and waits for the outcome, it is implemented by the Client.
type Sender interface {
	Do(ctx context.Context, call request.CallConfig) (*request.Response, error)
}

// OnSuccess is invoked with the response of a successful call.
// A returned error is reported as the error of the call.
type OnSuccess func(res *request.Response) error

// WaitGroup sends each call as soon as it is passed to the Send method.
// A failed call doesn't stop the others, the Wait method reports all failures.
// See RunGroup for deferred sending which stops at the first failure.
type WaitGroup struct {
	ctx     context.Context
	sender  Sender
	limiter *semaphore.Weighted
	pending sync.WaitGroup

	errsLock sync.Mutex
	errs     *multierror.Error
}

func NewWaitGroup(ctx context.Context, sender Sender) *WaitGroup {
	return NewWaitGroupWithLimit(ctx, sender, WaitGroupConcurrencyLimit)
}

func NewWaitGroupWithLimit(ctx context.Context, sender Sender, limit int64) *WaitGroup {
	return &WaitGroup{ctx: ctx, sender: sender, limiter: semaphore.NewWeighted(limit)}
}

// Send starts the call in a new goroutine, onSuccess may be nil.
// It can be called from an onSuccess callback of another call.
func (g *WaitGroup) Send(call request.CallConfig, onSuccess OnSuccess) {
	g.pending.Add(1)
	go func() {
		defer g.pending.Done()
		if err := g.limiter.Acquire(g.ctx, 1); err != nil {
			// The ctx is done, the call is skipped
			return
		}
		defer g.limiter.Release(1)
		if err := doCall(g.ctx, g.sender, call, onSuccess); err != nil {
			g.addError(err)
		}
	}()
}

// Wait blocks until all calls are finished.
// A single failure is returned as is, multiple failures are combined into a *multierror.Error.
func (g *WaitGroup) Wait() error {
	g.pending.Wait()

	g.errsLock.Lock()
	defer g.errsLock.Unlock()
	if err := g.errs.ErrorOrNil(); err != nil {
		if len(g.errs.Errors) == 1 {
			return g.errs.Errors[0]
		}
		return err
	}
	return nil
}

func (g *WaitGroup) addError(err error) {
	g.errsLock.Lock()
	defer g.errsLock.Unlock()
	g.errs = multierror.Append(g.errs, err)
}

func doCall(ctx context.Context, sender Sender, call request.CallConfig, onSuccess OnSuccess) error {
	res, err := sender.Do(ctx, call)
	switch {
	case err != nil:
		return err
	case onSuccess == nil:
		return nil
	default:
		return onSuccess(res)
	}
}
