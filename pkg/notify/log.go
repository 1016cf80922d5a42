package notify

import (
	"github.com/sirupsen/logrus"
)

// LogNotifier writes notifications to a logger, it is used if there is no real user interface.
type LogNotifier struct {
	logger logrus.FieldLogger
}

func NewLogNotifier(logger logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{logger: logger.WithField("component", "notify")}
}

func (n *LogNotifier) ShowLoading(opts LoadingOptions) {
	n.logger.WithField("title", opts.Title).Debug("loading shown")
}

func (n *LogNotifier) HideLoading() {
	n.logger.Debug("loading hidden")
}

func (n *LogNotifier) ShowToast(opts ToastOptions) {
	n.logger.WithFields(logrus.Fields{"title": opts.Title, "icon": opts.Icon}).Info("toast shown")
}

func (n *LogNotifier) HideToast() {
	n.logger.Debug("toast hidden")
}

// NopNotifier ignores all notifications.
type NopNotifier struct{}

func (NopNotifier) ShowLoading(LoadingOptions) {}

func (NopNotifier) HideLoading() {}

func (NopNotifier) ShowToast(ToastOptions) {}

func (NopNotifier) HideToast() {}
