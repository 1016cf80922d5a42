package interceptor

import (
	"fmt"
)

// Handle references a registered interceptor, it is returned by Chain.Use.
// The handle is valid only for the chain which issued it.
type Handle struct {
	chainID  uint64
	kind     Kind
	index    int
	errIndex int
}

// Kind returns the pipeline of the interceptor.
func (h *Handle) Kind() Kind {
	return h.kind
}

// Index returns position of the transform function in the chain.
func (h *Handle) Index() int {
	return h.index
}

// ErrIndex returns position of the error handler in the chain.
func (h *Handle) ErrIndex() int {
	return h.errIndex
}

func (h *Handle) String() string {
	return fmt.Sprintf("%s[%d/%d]", h.kind, h.index, h.errIndex)
}
