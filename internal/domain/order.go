package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderState is the lifecycle state of an order in the surrounding
// commerce system.
type OrderState string

const (
	StatePendingPayment OrderState = "pending_payment"
	StateProcessing     OrderState = "processing"
	StatePaymentReview  OrderState = "payment_review"
	StateCanceled       OrderState = "canceled"
	StateClosed         OrderState = "closed"
	StateComplete       OrderState = "complete"
)

// IsTerminal reports whether no notification may alter the order anymore.
func (s OrderState) IsTerminal() bool {
	switch s {
	case StateCanceled, StateClosed, StateComplete:
		return true
	default:
		return false
	}
}

// Invoice states.
type InvoiceState string

const (
	InvoiceStateOpen InvoiceState = "open"
	InvoiceStatePaid InvoiceState = "paid"
)

// CaptureCaseOnline marks an invoice captured online at the gateway.
const CaptureCaseOnline = "online"

type Invoice struct {
	IncrementID string
	Amount      decimal.Decimal
	State       InvoiceState
	IsPaid      bool
	CaptureCase string
}

// Payment transaction types recorded on the order's payment.
const (
	PaymentTxnAuth    = "authorization"
	PaymentTxnCapture = "capture"
)

type PaymentTransaction struct {
	Type    string
	TxnID   string
	Message string
}

// OrderPayment is the payment record attached to an order. It mirrors the
// narrow capability set the reconciliation engine consumes: transaction id
// chaining, the closed flag and the transaction history.
type OrderPayment struct {
	TransactionID       string
	ParentTransactionID string
	LastTransID         string
	TransactionClosed   bool

	// RefundTransactionID references the capture being refunded when a
	// credit memo is issued from the admin panel.
	RefundTransactionID string

	Transactions []PaymentTransaction
}

func (p *OrderPayment) SetTransactionID(id string)       { p.TransactionID = id }
func (p *OrderPayment) SetParentTransactionID(id string) { p.ParentTransactionID = id }
func (p *OrderPayment) SetRefundTransactionID(id string) { p.RefundTransactionID = id }
func (p *OrderPayment) SetIsTransactionClosed(closed bool) {
	p.TransactionClosed = closed
}

// AddTransaction appends a payment transaction for the current transaction
// id and advances the last-transaction pointer.
func (p *OrderPayment) AddTransaction(txnType, message string) {
	p.Transactions = append(p.Transactions, PaymentTransaction{
		Type:    txnType,
		TxnID:   p.TransactionID,
		Message: message,
	})
	p.LastTransID = p.TransactionID
}

// Order is the mutable order aggregate. The reconciliation engine mutates
// it only through the methods below; ownership stays with the surrounding
// commerce system.
type Order struct {
	OrderID    string
	StoreID    string
	CustomerID string
	MethodCode string

	Currency   string
	GrandTotal decimal.Decimal

	State  OrderState
	Status string

	TotalInvoiced decimal.Decimal
	TotalPaid     decimal.Decimal
	InProcess     bool

	Invoices []*Invoice
	Payment  OrderPayment
	History  []string
}

// SetState moves the order to the given state/status pair and records the
// history message when one is supplied.
func (o *Order) SetState(state OrderState, status, message string) {
	o.State = state
	o.Status = status
	if message != "" {
		o.AddHistoryComment(message)
	}
}

func (o *Order) AddHistoryComment(message string) {
	o.History = append(o.History, message)
}

// CanCancel reports whether the order may still be canceled: nothing paid
// yet and not in a terminal state.
func (o *Order) CanCancel() bool {
	if o.State.IsTerminal() {
		return false
	}
	return o.TotalPaid.IsZero()
}

// Cancel marks the order canceled. Callers set the method's error mapping
// afterwards to attach the history message.
func (o *Order) Cancel() {
	o.State = StateCanceled
	o.Status = string(StateCanceled)
}

// CanInvoice reports whether an invoice may still be created.
func (o *Order) CanInvoice() bool {
	if o.State.IsTerminal() {
		return false
	}
	return o.TotalInvoiced.LessThan(o.GrandTotal)
}

// PrepareInvoice creates an open invoice over the not yet invoiced rest
// of the grand total and attaches it to the order.
func (o *Order) PrepareInvoice() *Invoice {
	inv := &Invoice{
		IncrementID: fmt.Sprintf("%s-%d", o.OrderID, len(o.Invoices)+1),
		Amount:      o.GrandTotal.Sub(o.TotalInvoiced),
		State:       InvoiceStateOpen,
	}
	o.Invoices = append(o.Invoices, inv)
	return inv
}

// CaptureInvoiceOnline marks the invoice paid via online capture and
// updates the order totals.
func (o *Order) CaptureInvoiceOnline(inv *Invoice) {
	inv.State = InvoiceStatePaid
	inv.IsPaid = true
	inv.CaptureCase = CaptureCaseOnline
	o.TotalInvoiced = o.TotalInvoiced.Add(inv.Amount)
	o.TotalPaid = o.TotalPaid.Add(inv.Amount)
}

// ReopenInvoices reverses all invoices and zeroes the invoiced and paid
// totals. Used for charge-back handling.
func (o *Order) ReopenInvoices() {
	for _, inv := range o.Invoices {
		inv.State = InvoiceStateOpen
		inv.IsPaid = false
	}
	o.InProcess = false
	o.TotalInvoiced = decimal.Zero
	o.TotalPaid = decimal.Zero
}

func (o *Order) HasInvoices() bool {
	return len(o.Invoices) > 0
}

func (o *Order) SetIsInProcess(inProcess bool) {
	o.InProcess = inProcess
}

// Method resolves the payment method configuration of this order.
func (o *Order) Method() (PaymentMethod, error) {
	m, ok := MethodByCode(o.MethodCode)
	if !ok {
		return PaymentMethod{}, NewUnknownMethodError(o.MethodCode)
	}
	return m, nil
}
