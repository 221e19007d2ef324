package services

import (
	"context"

	"github.com/dmitrijs2005/omnivore/internal/logging"
	"github.com/dmitrijs2005/omnivore/internal/server/dispatch"
)

// Notifier receives domain events after their transaction has committed.
type Notifier interface {
	Notify(ctx context.Context, ev dispatch.Event) (dispatch.Handle, error)
}

// notify hands ev to n. A failure is logged and swallowed: the state that
// produced the event is already committed.
func notify(ctx context.Context, n Notifier, logger logging.Logger, ev dispatch.Event) {
	if n == nil {
		return
	}
	if _, err := n.Notify(ctx, ev); err != nil {
		logger.Error(ctx, "dispatch failed", "kind", string(ev.Kind()), "recipient", ev.RecipientID(), "error", err)
	}
}
