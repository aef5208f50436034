// Package notify delivers best-effort operator alerts. Delivery is
// fire-and-forget: failures are logged, never retried indefinitely, and
// never block the pipeline.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Sender is the interface each notification channel must implement.
type Sender interface {
	// Send delivers a notification message.
	Send(ctx context.Context, text string) error
	// Name returns a human-readable identifier for the sender.
	Name() string
}

// Notifier dispatches notifications to one or more senders.
type Notifier struct {
	senders []Sender
	logger  *logrus.Logger
}

// NewNotifier creates a Notifier delivering to the given senders.
func NewNotifier(senders []Sender, logger *logrus.Logger) *Notifier {
	return &Notifier{senders: senders, logger: logger}
}

// Notify sends the message to all senders. Individual sender failures
// are collected; one failing sender does not prevent delivery to the rest.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, text); err != nil {
			n.logger.WithFields(logrus.Fields{
				"sender": s.Name(),
				"error":  err.Error(),
			}).Warn("notification delivery failed")
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
