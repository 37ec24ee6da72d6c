package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkreusch/magento-cd-edition/internal/application"
	"github.com/mkreusch/magento-cd-edition/internal/config"
	"github.com/mkreusch/magento-cd-edition/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		Gateway: config.GatewayConfig{
			LiveURL:     "https://gateway.example/pay",
			SandboxURL:  "https://sandbox.gateway.example/pay",
			Sandbox:     true,
			Sender:      "sender-1",
			Login:       "login-1",
			Password:    "pwd-1",
			Secret:      "callback-secret",
			ResponseURL: "https://shop.example/payment/response",
			SuccessURL:  "https://shop.example/checkout/success",
			FailureURL:  "https://shop.example/checkout/failure",
			PushURL:     "https://shop.example/payment/push",
		},
		Methods: map[string]config.MethodConfig{
			"ddsec": {Enabled: true, Channel: "chan-ddsec", AutoInvoice: true},
			"dd":    {Enabled: true, Channel: "chan-dd", AutoInvoice: true},
			"cc":    {Enabled: true, Channel: "chan-cc", BookingMode: domain.TxnTypePreauthorization},
			"iv":    {Enabled: true, Channel: "chan-iv", AutoInvoice: true},
			"ivsec": {Enabled: true, Channel: "chan-ivsec"},
		},
	}
}

func pendingOrder(methodCode string) *domain.Order {
	return &domain.Order{
		OrderID:    "100000123",
		StoreID:    "1",
		CustomerID: "42",
		MethodCode: methodCode,
		Currency:   "EUR",
		GrandTotal: decimal.RequireFromString("100.00"),
		State:      domain.StatePendingPayment,
		Status:     string(domain.StatePendingPayment),
	}
}

func resultFrom(t *testing.T, overrides map[string]string) domain.TransactionResult {
	t.Helper()
	params := map[string]string{
		"PAYMENT_CODE":                 "DD.DB",
		"PROCESSING_RESULT":            domain.ResultAck,
		"PROCESSING_RETURN":            "Transaction succeeded",
		"PROCESSING_STATUS_CODE":       "90",
		"PRESENTATION_AMOUNT":          "100.00",
		"PRESENTATION_CURRENCY":        "EUR",
		"IDENTIFICATION_TRANSACTIONID": "100000123",
		"IDENTIFICATION_UNIQUEID":      "31HA07BC8142C5A171749A60D979B6E4",
		"IDENTIFICATION_SHORTID":       "1234.5678.9012",
		"CRITERION_STOREID":            "1",
		"CLEARING_AMOUNT":              "100.00",
		"CLEARING_CURRENCY":            "EUR",
		"ACCOUNT_IBAN":                 "DE89370400440532013000",
		"ACCOUNT_IDENTIFICATION":       "1234.5678.9012",
		"IDENTIFICATION_CREDITOR_ID":   "DE98ZZZ09999999999",
	}
	for k, v := range overrides {
		if v == "" {
			delete(params, k)
			continue
		}
		params[k] = v
	}
	result, err := domain.ParseTransactionResult(params)
	require.NoError(t, err)
	return result
}

type reconcileFixture struct {
	svc    *ReconcileService
	repo   *MockOrderRepository
	txns   *MockTransactionStore
	mailer *MockMailer
	hooks  *application.Hooks
	events []application.Event
}

func newReconcileFixture(order *domain.Order) *reconcileFixture {
	return newReconcileFixtureWithConfig(order, testConfig())
}

func newReconcileFixtureWithConfig(order *domain.Order, cfg *config.Config) *reconcileFixture {
	f := &reconcileFixture{
		repo:   &MockOrderRepository{Orders: map[string]*domain.Order{}},
		txns:   &MockTransactionStore{},
		mailer: &MockMailer{},
		hooks:  &application.Hooks{},
	}
	if order != nil {
		f.repo.Orders[order.OrderID] = order
	}
	f.hooks.Register(func(_ context.Context, event application.Event, _ *domain.Order, _ domain.TransactionResult) {
		f.events = append(f.events, event)
	})
	coordinator := &MockCoordinator{Repo: f.repo, Txns: f.txns}
	f.svc = NewReconcileService(coordinator, cfg, f.mailer, f.hooks, discardLogger())
	return f
}

func TestReconcileFullPaymentMarksOrderPaidAndInvoices(t *testing.T) {
	order := pendingOrder("dd")
	f := newReconcileFixture(order)

	outcome, err := f.svc.Reconcile(context.Background(), resultFrom(t, nil), "")

	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	assert.Equal(t, domain.StateProcessing, order.State)
	assert.Equal(t, string(domain.StateProcessing), order.Status)
	assert.True(t, order.InProcess)

	require.Len(t, order.Invoices, 1)
	assert.True(t, order.Invoices[0].IsPaid)
	assert.Equal(t, domain.InvoiceStatePaid, order.Invoices[0].State)
	assert.Equal(t, domain.CaptureCaseOnline, order.Invoices[0].CaptureCase)
	assert.True(t, order.TotalPaid.Equal(order.GrandTotal))
	assert.True(t, order.TotalInvoiced.Equal(order.GrandTotal))

	// payment transaction chained and closed, refundable against the debit
	assert.Equal(t, "31HA07BC8142C5A171749A60D979B6E4", order.Payment.TransactionID)
	assert.Equal(t, "31HA07BC8142C5A171749A60D979B6E4", order.Payment.RefundTransactionID)
	assert.True(t, order.Payment.TransactionClosed)
	require.Len(t, order.Payment.Transactions, 1)
	assert.Equal(t, domain.PaymentTxnCapture, order.Payment.Transactions[0].Type)

	require.Len(t, f.txns.Rows, 1)
	assert.Equal(t, domain.TxnTypeDebit, f.txns.Rows[0].TxnType)
	assert.Equal(t, []application.Event{application.EventAfterProcessed}, f.events)

	// direct debit mails the invoice with the remittance block
	require.Len(t, f.mailer.Sent, 1)
	assert.Contains(t, f.mailer.Infos[0], "100.00")
}

func TestReconcileAutoInvoiceUsesStoreScopedConfig(t *testing.T) {
	// store 2 turns auto-invoicing off for direct debit even though the
	// module-wide default has it on
	cfg := testConfig()
	cfg.Stores = map[string]map[string]config.MethodConfig{
		"2": {"dd": {Enabled: true, Channel: "chan-dd"}},
	}
	order := pendingOrder("dd")
	order.StoreID = "2"
	f := newReconcileFixtureWithConfig(order, cfg)

	outcome, err := f.svc.Reconcile(context.Background(),
		resultFrom(t, map[string]string{"CRITERION_STOREID": "2"}), "")

	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	assert.Equal(t, domain.StateProcessing, order.State)
	assert.Empty(t, order.Invoices)
	assert.Empty(t, f.mailer.Sent)
}

func TestReconcileAutoInvoiceFallsBackToOrderStore(t *testing.T) {
	// without a store criterion on the result, the order's own store view
	// decides the configuration
	cfg := testConfig()
	cfg.Stores = map[string]map[string]config.MethodConfig{
		"2": {"dd": {Enabled: true, Channel: "chan-dd"}},
	}
	order := pendingOrder("dd")
	order.StoreID = "2"
	f := newReconcileFixtureWithConfig(order, cfg)

	outcome, err := f.svc.Reconcile(context.Background(),
		resultFrom(t, map[string]string{"CRITERION_STOREID": ""}), "")

	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	assert.Empty(t, order.Invoices)
}

func TestReconcileAmountMismatchGoesToPaymentReview(t *testing.T) {
	order := pendingOrder("dd")
	f := newReconcileFixture(order)

	outcome, err := f.svc.Reconcile(context.Background(),
		resultFrom(t, map[string]string{"PRESENTATION_AMOUNT": "60.00"}), "")

	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	assert.Equal(t, domain.StatePaymentReview, order.State)
	assert.Empty(t, order.Invoices)
	assert.Empty(t, f.mailer.Sent)
	require.NotEmpty(t, order.History)
	assert.Contains(t, order.History[len(order.History)-1], "60.00")
}

func TestReconcileCurrencyMismatchGoesToPaymentReview(t *testing.T) {
	order := pendingOrder("dd")
	f := newReconcileFixture(order)

	outcome, err := f.svc.Reconcile(context.Background(),
		resultFrom(t, map[string]string{"PRESENTATION_CURRENCY": "USD"}), "")

	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	assert.Equal(t, domain.StatePaymentReview, order.State)
}

func TestReconcileAmountComparesAsFormattedString(t *testing.T) {
	// 100.0 is not the presentation format of 100.00 and must not match.
	order := pendingOrder("dd")
	f := newReconcileFixture(order)

	outcome, err := f.svc.Reconcile(context.Background(),
		resultFrom(t, map[string]string{"PRESENTATION_AMOUNT": "100.0"}), "")

	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	assert.Equal(t, domain.StatePaymentReview, order.State)
}

func TestReconcileReplayedResultIsNoOp(t *testing.T) {
	order := pendingOrder("dd")
	f := newReconcileFixture(order)
	result := resultFrom(t, nil)

	first, err := f.svc.Reconcile(context.Background(), result, "")
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, first)
	invoices := len(order.Invoices)
	historyLen := len(order.History)

	second, err := f.svc.Reconcile(context.Background(), result, "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyPaid, second)
	assert.Len(t, order.Invoices, invoices)
	assert.Len(t, order.History, historyLen)
	assert.Len(t, f.txns.Rows, 1)
	assert.Len(t, f.mailer.Sent, 1)
}

func TestReconcileTerminalOrderStaysUntouched(t *testing.T) {
	// a closed order only emits the notification signal, it is never
	// annotated or reopened
	for _, state := range []domain.OrderState{domain.StateCanceled, domain.StateClosed, domain.StateComplete} {
		t.Run(string(state), func(t *testing.T) {
			order := pendingOrder("dd")
			order.State = state
			order.Status = "some-terminal-status"
			f := newReconcileFixture(order)

			outcome, err := f.svc.Reconcile(context.Background(), resultFrom(t, nil), "")

			require.NoError(t, err)
			assert.Equal(t, OutcomeTerminal, outcome)
			assert.Equal(t, state, order.State)
			assert.Equal(t, "some-terminal-status", order.Status)
			assert.Empty(t, order.Invoices)
			assert.Empty(t, order.History)
			assert.Empty(t, order.Payment.TransactionID)
			assert.Empty(t, f.txns.Rows)
			assert.Equal(t, []application.Event{application.EventAfterTerminalNotification}, f.events)
		})
	}
}

func TestReconcileChargeBackReopensInvoicesOnPaidOrder(t *testing.T) {
	order := pendingOrder("dd")
	f := newReconcileFixture(order)

	_, err := f.svc.Reconcile(context.Background(), resultFrom(t, nil), "")
	require.NoError(t, err)
	require.Equal(t, string(domain.StateProcessing), order.Status)

	outcome, err := f.svc.Reconcile(context.Background(),
		resultFrom(t, map[string]string{
			"PAYMENT_CODE":            "DD.CB",
			"IDENTIFICATION_UNIQUEID": "31HA07BC8142C5A171749A60D979CB01",
		}), "")

	require.NoError(t, err)
	assert.Equal(t, OutcomeChargedBack, outcome)
	assert.Equal(t, domain.StatePendingPayment, order.State)
	assert.False(t, order.InProcess)
	assert.True(t, order.TotalPaid.IsZero())
	assert.True(t, order.TotalInvoiced.IsZero())
	require.Len(t, order.Invoices, 1)
	assert.False(t, order.Invoices[0].IsPaid)
	assert.Equal(t, domain.InvoiceStateOpen, order.Invoices[0].State)
	assert.Contains(t, order.History[len(order.History)-1], "debit failed")

	// the charge-back itself is not recorded as a transaction row
	assert.Len(t, f.txns.Rows, 1)
	assert.Equal(t, application.EventAfterChargeBack, f.events[len(f.events)-1])
}

func TestReconcileChargeBackWinsOverTerminalGuard(t *testing.T) {
	order := pendingOrder("dd")
	order.State = domain.StateComplete
	order.Status = "complete"
	f := newReconcileFixture(order)

	outcome, err := f.svc.Reconcile(context.Background(),
		resultFrom(t, map[string]string{"PAYMENT_CODE": "DD.CB"}), "")

	require.NoError(t, err)
	assert.Equal(t, OutcomeChargedBack, outcome)
	assert.Equal(t, domain.StatePendingPayment, order.State)
}

func TestReconcileNokCancelsCancellableOrder(t *testing.T) {
	order := pendingOrder("cc")
	f := newReconcileFixture(order)

	outcome, err := f.svc.Reconcile(context.Background(),
		resultFrom(t, map[string]string{
			"PAYMENT_CODE":      "CC.DB",
			"PROCESSING_RESULT": domain.ResultNok,
			"PROCESSING_RETURN": "Card declined",
		}), "")

	require.NoError(t, err)
	assert.Equal(t, OutcomeCanceled, outcome)
	assert.Equal(t, domain.StateCanceled, order.State)
	assert.Contains(t, order.History[len(order.History)-1], "Card declined")
	assert.Len(t, f.txns.Rows, 1)
	assert.Equal(t, []application.Event{application.EventAfterCanceled}, f.events)
}

func TestReconcileNokStillMapsStatusWhenNotCancellable(t *testing.T) {
	order := pendingOrder("cc")
	order.TotalPaid = decimal.RequireFromString("40.00")
	f := newReconcileFixture(order)

	outcome, err := f.svc.Reconcile(context.Background(),
		resultFrom(t, map[string]string{
			"PAYMENT_CODE":      "CC.DB",
			"PROCESSING_RESULT": domain.ResultNok,
		}), "")

	require.NoError(t, err)
	assert.Equal(t, OutcomeCanceled, outcome)
	// partially paid orders are not cancelled but still carry the error
	// status for the back office
	assert.Equal(t, string(domain.StateCanceled), order.Status)
	assert.False(t, order.TotalPaid.IsZero())
}

func TestReconcileFinalizeOnlyCountsForSecuredInvoice(t *testing.T) {
	t.Run("billsafe brand marks paid", func(t *testing.T) {
		order := pendingOrder("ivsec")
		f := newReconcileFixture(order)

		outcome, err := f.svc.Reconcile(context.Background(),
			resultFrom(t, map[string]string{
				"PAYMENT_CODE":  "IV.FI",
				"ACCOUNT_BRAND": domain.AccountBrandSecuredInvoice,
			}), "")

		require.NoError(t, err)
		assert.Equal(t, OutcomeProcessed, outcome)
		assert.Equal(t, domain.StateProcessing, order.State)
		// ivsec auto-invoices even without the store-level setting
		require.Len(t, order.Invoices, 1)
	})

	t.Run("other brand is ignored", func(t *testing.T) {
		order := pendingOrder("iv")
		f := newReconcileFixture(order)

		outcome, err := f.svc.Reconcile(context.Background(),
			resultFrom(t, map[string]string{"PAYMENT_CODE": "IV.FI"}), "")

		require.NoError(t, err)
		assert.Equal(t, OutcomeIgnored, outcome)
		assert.Equal(t, domain.StatePendingPayment, order.State)
		assert.Empty(t, f.txns.Rows)
		assert.Empty(t, f.events)
	})
}

func TestReconcilePreauthorizationMapsToPending(t *testing.T) {
	order := pendingOrder("cc")
	order.Status = "placed"
	f := newReconcileFixture(order)

	outcome, err := f.svc.Reconcile(context.Background(),
		resultFrom(t, map[string]string{"PAYMENT_CODE": "CC.PA"}), "")

	require.NoError(t, err)
	assert.Equal(t, OutcomePending, outcome)
	assert.Equal(t, domain.StatePendingPayment, order.State)
	assert.False(t, order.Payment.TransactionClosed)
	require.Len(t, order.Payment.Transactions, 1)
	assert.Equal(t, domain.PaymentTxnAuth, order.Payment.Transactions[0].Type)
	assert.Contains(t, order.History[len(order.History)-1], "ShortID: 1234.5678.9012")
	assert.Len(t, f.txns.Rows, 1)
	assert.Equal(t, []application.Event{application.EventAfterMapStatus}, f.events)
}

func TestReconcileUnknownOrderFails(t *testing.T) {
	f := newReconcileFixture(nil)

	_, err := f.svc.Reconcile(context.Background(), resultFrom(t, nil), "")

	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeOrderNotFound))
}

func TestReconcileMailFailureDoesNotFailPayment(t *testing.T) {
	order := pendingOrder("dd")
	f := newReconcileFixture(order)
	f.mailer.SendInvoiceNotificationFn = func(context.Context, *domain.Order, *domain.Invoice, string) error {
		return assert.AnError
	}

	outcome, err := f.svc.Reconcile(context.Background(), resultFrom(t, nil), "")

	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	assert.Equal(t, string(domain.StateProcessing), order.Status)
}

func TestReconcilePaymentInfoSuppressedForInvoiceMethod(t *testing.T) {
	// iv mails the invoice but never a remittance block
	order := pendingOrder("iv")
	f := newReconcileFixture(order)

	outcome, err := f.svc.Reconcile(context.Background(),
		resultFrom(t, map[string]string{"PAYMENT_CODE": "IV.RC"}), "")

	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	require.Len(t, order.Invoices, 1)
	require.Len(t, f.mailer.Sent, 1)
	assert.Empty(t, f.mailer.Infos[0])
}
