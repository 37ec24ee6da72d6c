package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mkreusch/magento-cd-edition/internal/application"
	"github.com/mkreusch/magento-cd-edition/internal/config"
	"github.com/mkreusch/magento-cd-edition/internal/domain"
)

// Outcome names the branch of the rule chain a notification ended up in.
type Outcome string

const (
	OutcomeChargedBack Outcome = "charged_back"
	OutcomeAlreadyPaid Outcome = "already_paid"
	OutcomeTerminal    Outcome = "terminal"
	OutcomeCanceled    Outcome = "canceled"
	OutcomeProcessed   Outcome = "processed"
	OutcomePending     Outcome = "pending"
	OutcomeIgnored     Outcome = "ignored"
	OutcomeRegistered  Outcome = "registered"
)

// ReconcileService applies gateway transaction results to orders. The
// rule chain is evaluated in a fixed order and the first matching rule
// wins; every mutating branch records the raw result alongside the
// order mutation so both commit or neither does.
type ReconcileService struct {
	coordinator application.Coordinator
	cfg         *config.Config
	mailer      application.Mailer
	hooks       *application.Hooks
	logger      *slog.Logger
}

func NewReconcileService(
	coordinator application.Coordinator,
	cfg *config.Config,
	mailer application.Mailer,
	hooks *application.Hooks,
	logger *slog.Logger,
) *ReconcileService {
	return &ReconcileService{
		coordinator: coordinator,
		cfg:         cfg,
		mailer:      mailer,
		hooks:       hooks,
		logger:      logger,
	}
}

// Reconcile locks the order named by the result and applies the rule
// chain inside that transaction. Notifications for the same order are
// serialized, so a replayed or concurrently delivered result sees the
// state its predecessor left behind.
func (s *ReconcileService) Reconcile(ctx context.Context, result domain.TransactionResult, message string) (Outcome, error) {
	var outcome Outcome

	err := s.coordinator.WithOrder(ctx, result.OrderID, func(ctx context.Context, order *domain.Order, txns application.TransactionStore) error {
		var err error
		outcome, err = s.Apply(ctx, result, order, txns, message)
		return err
	})
	if err != nil {
		if application.IsServiceError(err) || domain.IsErrorCode(err, domain.ErrCodeOrderNotFound) {
			return "", err
		}
		return "", application.NewInternalError("failed to reconcile order", err)
	}

	s.logger.InfoContext(ctx, "transaction result reconciled",
		slog.String("order_id", result.OrderID),
		slog.String("payment_code", result.PaymentCode.String()),
		slog.String("unique_id", result.UniqueID),
		slog.String("outcome", string(outcome)),
	)

	return outcome, nil
}

// Apply runs the rule chain against an already loaded order. The caller
// owns persistence of the order itself; transaction rows are written to
// txns as part of the mutating branches.
func (s *ReconcileService) Apply(
	ctx context.Context,
	result domain.TransactionResult,
	order *domain.Order,
	txns application.TransactionStore,
	message string,
) (Outcome, error) {
	method, err := order.Method()
	if err != nil {
		return "", err
	}
	if message == "" {
		message = result.ReturnMessage
	}

	// A charge-back reverses a payment that already went through, so it
	// must win over every completed-order guard below.
	if result.Type() == domain.TxnTypeChargeBack {
		if order.HasInvoices() {
			order.ReopenInvoices()
		}
		order.SetState(method.StatusPending.State, method.StatusPending.Status, method.ChargeBackMessage)
		s.hooks.Fire(ctx, application.EventAfterChargeBack, order, result)
		return OutcomeChargedBack, nil
	}

	if order.Status == method.StatusSuccess.Status {
		return OutcomeAlreadyPaid, nil
	}

	// A closed order is never reopened or annotated by a late
	// notification; the signal goes out, the order stays untouched.
	if order.State.IsTerminal() {
		s.logger.InfoContext(ctx, "notification for closed order",
			slog.String("order_id", order.OrderID),
			slog.String("short_id", result.ShortID),
		)
		s.hooks.Fire(ctx, application.EventAfterTerminalNotification, order, result)
		return OutcomeTerminal, nil
	}

	if !result.IsAck() {
		if order.CanCancel() {
			order.Cancel()
		}
		order.SetState(method.StatusError.State, method.StatusError.Status, message)
		if err := txns.Save(ctx, domain.NewStoredTransaction(result)); err != nil {
			return "", err
		}
		s.hooks.Fire(ctx, application.EventAfterCanceled, order, result)
		return OutcomeCanceled, nil
	}

	if result.IsPaidType() {
		// A finalize only marks an order paid for the secured invoice
		// brand. For plain invoices it merely reports shipping.
		if result.Type() == domain.TxnTypeFinalize && result.AccountBrand != domain.AccountBrandSecuredInvoice {
			return OutcomeIgnored, nil
		}
		s.applyProcessing(ctx, result, order, method, message)
		if err := txns.Save(ctx, domain.NewStoredTransaction(result)); err != nil {
			return "", err
		}
		s.hooks.Fire(ctx, application.EventAfterProcessed, order, result)
		return OutcomeProcessed, nil
	}

	if order.Status != method.StatusSuccess.Status && order.Status != method.StatusError.Status {
		s.applyPending(result, order, method, message)
		if err := txns.Save(ctx, domain.NewStoredTransaction(result)); err != nil {
			return "", err
		}
		s.hooks.Fire(ctx, application.EventAfterMapStatus, order, result)
		return OutcomePending, nil
	}

	return OutcomeIgnored, nil
}

// applyProcessing handles an acknowledged payment-type result: chain the
// transaction onto the payment, map the order state by amount match and
// invoice automatically where the method configuration asks for it.
func (s *ReconcileService) applyProcessing(
	ctx context.Context,
	result domain.TransactionResult,
	order *domain.Order,
	method domain.PaymentMethod,
	message string,
) {
	if message == "" {
		message = fmt.Sprintf("ShortID: %s", result.ShortID)
	}

	pay := &order.Payment
	pay.SetTransactionID(result.UniqueID)
	pay.SetParentTransactionID(pay.LastTransID)
	// The booked debit or capture is what a later credit memo refunds
	// against.
	pay.SetRefundTransactionID(result.UniqueID)
	pay.SetIsTransactionClosed(true)

	// Amounts compare as formatted strings. The gateway reports the
	// presentation amount with two decimals, so anything else is a
	// partial payment, never a rounding artifact to be forgiven.
	fullyPaid := order.Currency == result.Currency && domain.AmountsEqual(result.Amount, order.GrandTotal)

	if fullyPaid {
		order.SetState(method.StatusSuccess.State, method.StatusSuccess.Status, message)
		s.autoInvoice(ctx, result, order, method)
	} else {
		order.SetState(method.StatusPartlyPaid.State, method.StatusPartlyPaid.Status,
			fmt.Sprintf("%s Received %s %s for a total of %s %s.",
				message, result.Amount, result.Currency, domain.FormatAmount(order.GrandTotal), order.Currency))
	}

	pay.AddTransaction(domain.PaymentTxnCapture, message)
	order.SetIsInProcess(true)
}

func (s *ReconcileService) autoInvoice(
	ctx context.Context,
	result domain.TransactionResult,
	order *domain.Order,
	method domain.PaymentMethod,
) {
	// Auto-invoicing is configured per store view; the gateway echoes the
	// store the checkout session ran under.
	storeID := result.StoreID
	if storeID == "" {
		storeID = order.StoreID
	}
	mcfg := s.cfg.MethodForStore(storeID, order.MethodCode)
	if !mcfg.AutoInvoice && !method.AutoInvoiceAlways {
		return
	}
	if !order.CanInvoice() {
		return
	}

	inv := order.PrepareInvoice()
	order.CaptureInvoiceOnline(inv)
	order.AddHistoryComment(fmt.Sprintf("Automatically invoiced. Invoice %s captured online.", inv.IncrementID))

	if !method.InvoiceMail {
		return
	}
	var info string
	if method.MailPaymentInfo && method.PaymentInfo != nil {
		info = method.PaymentInfo(result.Raw)
	}
	if err := s.mailer.SendInvoiceNotification(ctx, order, inv, info); err != nil {
		// Mail failure must not roll back a booked payment.
		s.logger.ErrorContext(ctx, "failed to send invoice notification",
			slog.String("order_id", order.OrderID),
			slog.String("invoice", inv.IncrementID),
			slog.String("error", err.Error()),
		)
	}
}

// applyPending handles acknowledged non-payment results such as a
// preauthorization. The transaction stays open so a later capture can
// reference it.
func (s *ReconcileService) applyPending(
	result domain.TransactionResult,
	order *domain.Order,
	method domain.PaymentMethod,
	message string,
) {
	message = fmt.Sprintf("ShortID: %s %s", result.ShortID, message)

	pay := &order.Payment
	pay.SetTransactionID(result.UniqueID)
	pay.SetIsTransactionClosed(false)

	order.SetState(method.StatusPending.State, method.StatusPending.Status, message)
	pay.AddTransaction(domain.PaymentTxnAuth, message)
}
