// Package notify coordinates two notification channels of a user interface:
// a loading indicator and a toast message.
//
// A visible toast preempts the loading indicator:
//   - while a toast is visible, show/hide loading calls are ignored,
//   - showing a toast hides an active loading indicator first.
//
// The Coordinator wraps any Notifier implementation with these rules.
package notify

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/keboola/go-minireq/pkg/request"
)

// LoadingOptions of the loading indicator, the same type is used by request.CallConfig.
type LoadingOptions = request.LoadingOptions

// ToastOptions of the toast message.
type ToastOptions struct {
	Title string
	Icon  string
}

// Notifier is the underlying user interface.
type Notifier interface {
	ShowLoading(opts LoadingOptions)
	HideLoading()
	ShowToast(opts ToastOptions)
	HideToast()
}

// Coordinator applies the toast/loading rules and forwards permitted calls to the wrapped Notifier.
// It implements the Notifier interface, and it is safe for concurrent use.
type Coordinator struct {
	lock          sync.Mutex
	wrapped       Notifier
	loadingActive bool
	toastActive   bool
}

var (
	defaultOnce        sync.Once    //nolint:gochecknoglobals
	defaultCoordinator *Coordinator //nolint:gochecknoglobals
)

// Default returns the process-wide Coordinator, it is created only once, on the first call.
// The wrapped Notifier logs notifications to the standard logrus logger.
func Default() *Coordinator {
	defaultOnce.Do(func() {
		defaultCoordinator = NewCoordinator(NewLogNotifier(logrus.StandardLogger()))
	})
	return defaultCoordinator
}

// NewCoordinator wraps the Notifier. Nil Notifier is replaced by NopNotifier.
func NewCoordinator(wrapped Notifier) *Coordinator {
	if wrapped == nil {
		wrapped = NopNotifier{}
	}
	return &Coordinator{wrapped: wrapped}
}

func (c *Coordinator) ShowLoading(opts LoadingOptions) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.toastActive {
		return
	}
	c.loadingActive = true
	c.wrapped.ShowLoading(opts)
}

func (c *Coordinator) HideLoading() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.hideLoading()
}

func (c *Coordinator) ShowToast(opts ToastOptions) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.loadingActive {
		c.hideLoading()
	}
	c.toastActive = true
	c.wrapped.ShowToast(opts)
}

func (c *Coordinator) HideToast() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.toastActive = false
	c.wrapped.HideToast()
}

// LoadingActive returns true if the loading indicator is visible.
func (c *Coordinator) LoadingActive() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.loadingActive
}

// ToastActive returns true if the toast is visible.
func (c *Coordinator) ToastActive() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.toastActive
}

func (c *Coordinator) hideLoading() {
	if c.toastActive {
		return
	}
	c.loadingActive = false
	c.wrapped.HideLoading()
}
