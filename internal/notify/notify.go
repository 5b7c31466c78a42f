// Package notify delivers human-readable status notices. Notices are
// informational only; delivery failures are logged, never surfaced to
// the caller.
package notify

import (
	"log/slog"
)

// Notifier receives a titled notice.
type Notifier interface {
	Notice(title, body string)
}

// Console logs notices through slog.
type Console struct {
	logger *slog.Logger
}

// NewConsole creates a console notifier.
func NewConsole(logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{logger: logger}
}

// Notice implements Notifier.
func (c *Console) Notice(title, body string) {
	c.logger.Info(body, "notice", title)
}

// Multi fans a notice out to several notifiers.
type Multi []Notifier

// Notice implements Notifier.
func (m Multi) Notice(title, body string) {
	for _, n := range m {
		n.Notice(title, body)
	}
}
