package application

import (
	"context"

	"github.com/mkreusch/magento-cd-edition/internal/domain"
)

// Event names the extension points of the reconciliation engine.
type Event string

const (
	EventAfterChargeBack           Event = "after_charge_back"
	EventAfterTerminalNotification Event = "after_terminal_notification"
	EventAfterCanceled             Event = "after_canceled"
	EventAfterProcessed            Event = "after_processed"
	EventAfterMapStatus            Event = "after_map_status"
)

// Observer is a synchronous extension-point callback. Observers run in
// registration order inside the reconcile transaction; they must not
// block.
type Observer func(ctx context.Context, event Event, order *domain.Order, result domain.TransactionResult)

// Hooks is an explicit, ordered observer list.
type Hooks struct {
	observers []Observer
}

func (h *Hooks) Register(o Observer) {
	h.observers = append(h.observers, o)
}

func (h *Hooks) Fire(ctx context.Context, event Event, order *domain.Order, result domain.TransactionResult) {
	if h == nil {
		return
	}
	for _, o := range h.observers {
		o(ctx, event, order, result)
	}
}
