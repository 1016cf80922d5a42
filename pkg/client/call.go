package client

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/keboola/go-minireq/pkg/request"
	"github.com/keboola/go-minireq/pkg/transport"
)

// State of a Call.
type State int32

const (
	StateInit State = iota
	StateConfigured
	StateSent
	StateSettledSuccess
	StateSettledError
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateConfigured:
		return "configured"
	case StateSent:
		return "sent"
	case StateSettledSuccess:
		return "settled:success"
	case StateSettledError:
		return "settled:error"
	default:
		return "unknown"
	}
}

// Call is a pending outcome of the Client.Request method.
// It is settled exactly once, the first resolve or reject wins.
type Call struct {
	config    request.CallConfig
	state     atomic.Int32
	onSettled func(res *request.Response, err error)

	lock sync.Mutex
	url  string
	task transport.Task

	once     sync.Once
	done     chan struct{}
	response *request.Response
	err      error
}

func newCall(config request.CallConfig) *Call {
	return &Call{config: config, done: make(chan struct{})}
}

// Config returns the call definition passed to the Client.Request method.
func (c *Call) Config() request.CallConfig {
	return c.config.Clone()
}

// URL returns the resolved URL, it is empty before the request interceptors are applied.
func (c *Call) URL() string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.url
}

// State returns the current state of the call.
func (c *Call) State() State {
	return State(c.state.Load())
}

// Done returns a channel which is closed when the call is settled.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the call is settled or the ctx is done.
// The error is a *request.StatusError, a *request.TransportError,
// an error passed to a reject function by a response interceptor, or the ctx error.
func (c *Call) Wait(ctx context.Context) (*request.Response, error) {
	select {
	case <-c.done:
		return c.response, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Abort aborts the request of this call, it has no effect if the call is already settled.
func (c *Call) Abort() {
	c.lock.Lock()
	task := c.task
	c.lock.Unlock()
	if task != nil {
		task.Abort()
	}
}

func (c *Call) configured(url string) {
	c.lock.Lock()
	c.url = url
	c.lock.Unlock()
	c.state.CompareAndSwap(int32(StateInit), int32(StateConfigured))
}

func (c *Call) sent(task transport.Task) {
	c.lock.Lock()
	c.task = task
	c.lock.Unlock()
	// The call may already be settled by a fast transport
	c.state.CompareAndSwap(int32(StateConfigured), int32(StateSent))
}

func (c *Call) resolve(res *request.Response) {
	c.settle(res, nil)
}

func (c *Call) reject(err error) {
	c.settle(nil, err)
}

func (c *Call) settle(res *request.Response, err error) {
	c.once.Do(func() {
		c.response, c.err = res, err
		if err == nil {
			c.state.Store(int32(StateSettledSuccess))
		} else {
			c.state.Store(int32(StateSettledError))
		}
		if c.onSettled != nil {
			c.onSettled(res, err)
		}
		close(c.done)
	})
}
