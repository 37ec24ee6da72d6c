// Package handlers exposes the HTTP surface: the checkout API, the
// gateway callback endpoints and the back-office operations.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mkreusch/magento-cd-edition/internal/application/services"
	"github.com/mkreusch/magento-cd-edition/internal/config"
	"github.com/mkreusch/magento-cd-edition/internal/domain"
)

// TransactionLister reads the gateway transaction log for an order.
type TransactionLister interface {
	ListByOrder(ctx context.Context, orderID string) ([]domain.StoredTransaction, error)
}

type Handlers struct {
	checkout     *services.CheckoutService
	notification *services.NotificationService
	backoffice   *services.BackofficeService
	transactions TransactionLister
	cfg          *config.Config
	logger       *slog.Logger
}

func NewHandlers(
	checkout *services.CheckoutService,
	notification *services.NotificationService,
	backoffice *services.BackofficeService,
	transactions TransactionLister,
	cfg *config.Config,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		checkout:     checkout,
		notification: notification,
		backoffice:   backoffice,
		transactions: transactions,
		cfg:          cfg,
		logger:       logger,
	}
}

// Routes registers every endpoint except the push callback, which the
// caller wraps with the dedup middleware.
func (h *Handlers) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/checkout", h.Checkout)
	mux.HandleFunc("POST /api/v1/orders/{orderID}/capture", h.Capture)
	mux.HandleFunc("POST /api/v1/orders/{orderID}/refund", h.Refund)
	mux.HandleFunc("POST /api/v1/orders/{orderID}/reversal", h.Reverse)
	mux.HandleFunc("GET /api/v1/orders/{orderID}/transactions", h.ListTransactions)
	mux.HandleFunc("POST /payment/response", h.Response)
	mux.HandleFunc("GET /healthz", h.Health)
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
