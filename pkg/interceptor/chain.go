package interceptor

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

var chainIDGenerator uint64 //nolint:gochecknoglobals

// Chain is an append-only sequence of interceptors of the type F, each paired with an ErrorFunc.
// It is safe for concurrent use.
type Chain[F any] struct {
	id       uint64
	kind     Kind
	identity F
	logger   logrus.FieldLogger

	lock   sync.RWMutex
	fns    []F
	errFns []ErrorFunc
}

// NewChain creates an empty chain. The identity function replaces ejected and nil interceptors.
func NewChain[F any](kind Kind, identity F, logger logrus.FieldLogger) *Chain[F] {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Chain[F]{
		id:       atomic.AddUint64(&chainIDGenerator, 1),
		kind:     kind,
		identity: identity,
		logger:   logger.WithField("interceptor", string(kind)),
	}
}

// Kind returns the pipeline kind.
func (c *Chain[F]) Kind() Kind {
	return c.kind
}

// Use appends the interceptor and its error handler, both can be nil.
func (c *Chain[F]) Use(fn F, errFn ErrorFunc) *Handle {
	if isNil(fn) {
		fn = c.identity
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	c.fns = append(c.fns, fn)
	c.errFns = append(c.errFns, errFn)
	return &Handle{chainID: c.id, kind: c.kind, index: len(c.fns) - 1, errIndex: len(c.errFns) - 1}
}

// Eject deactivates the interceptor, the slot is kept, so other handles remain valid.
// An invalid handle is reported as a warning and ignored.
func (c *Chain[F]) Eject(h *Handle) {
	if h == nil {
		c.logger.Warn("cannot eject interceptor: handle is not set")
		return
	}
	if h.chainID != c.id {
		c.logger.WithField("handle", h.String()).Warn("cannot eject interceptor: handle belongs to another pipeline")
		return
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	if h.index < 0 || h.index >= len(c.fns) || h.errIndex < 0 || h.errIndex >= len(c.errFns) {
		c.logger.WithField("handle", h.String()).Warn("cannot eject interceptor: handle is out of range")
		return
	}
	c.fns[h.index] = c.identity
	c.errFns[h.errIndex] = noopErrorFunc
}

// Len returns number of slots, including ejected ones.
func (c *Chain[F]) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return len(c.fns)
}

// Interceptors returns a snapshot of the transform functions in registration order.
func (c *Chain[F]) Interceptors() []F {
	c.lock.RLock()
	defer c.lock.RUnlock()
	out := make([]F, len(c.fns))
	copy(out, c.fns)
	return out
}

// ErrorHandlers returns a snapshot of the registered error handlers in registration order.
// Slots registered without an error handler are skipped, ejected slots are present as a no-op.
func (c *Chain[F]) ErrorHandlers() []ErrorFunc {
	c.lock.RLock()
	defer c.lock.RUnlock()
	out := make([]ErrorFunc, 0, len(c.errFns))
	for _, fn := range c.errFns {
		if fn != nil {
			out = append(out, fn)
		}
	}
	return out
}

// HasErrorHandlers returns true if at least one error handler is registered.
func (c *Chain[F]) HasErrorHandlers() bool {
	return len(c.ErrorHandlers()) > 0
}

// DispatchError invokes all error handlers in order. It returns false if there is no handler.
func (c *Chain[F]) DispatchError(err error) bool {
	handlers := c.ErrorHandlers()
	for _, fn := range handlers {
		fn(err)
	}
	return len(handlers) > 0
}

func isNil(fn any) bool {
	if fn == nil {
		return true
	}
	v := reflect.ValueOf(fn)
	return v.Kind() == reflect.Func && v.IsNil()
}
