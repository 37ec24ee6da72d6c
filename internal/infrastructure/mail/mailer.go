// Package mail delivers shop notifications. The log mailer stands in
// for a real delivery backend and records what would have been sent.
package mail

import (
	"context"
	"log/slog"

	"github.com/mkreusch/magento-cd-edition/internal/application"
	"github.com/mkreusch/magento-cd-edition/internal/domain"
)

type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) application.Mailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendInvoiceNotification(ctx context.Context, order *domain.Order, inv *domain.Invoice, paymentInfo string) error {
	m.logger.InfoContext(ctx, "invoice notification",
		slog.String("order_id", order.OrderID),
		slog.String("invoice", inv.IncrementID),
		slog.String("amount", domain.FormatAmount(inv.Amount)),
		slog.Bool("with_payment_info", paymentInfo != ""),
	)
	return nil
}
