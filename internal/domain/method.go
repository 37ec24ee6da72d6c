package domain

import (
	"fmt"
)

// StatusMapping pairs the order state with the status label a method maps
// a reconciliation outcome onto.
type StatusMapping struct {
	State  OrderState
	Status string
}

// PaymentInfoFunc renders supplementary payment information (remittance
// details) for the invoice notification from the raw gateway response.
// A nil func means the method has no such text.
type PaymentInfoFunc func(raw map[string]string) string

// PaymentMethod is the configuration of one payment method variant.
// Capability flags and status-mapping overrides replace the behavioral
// differences between method implementations; the registry below is the
// single strategy table keyed by method code.
type PaymentMethod struct {
	Code     string
	WireCode string
	Title    string

	CanCapture      bool
	CanReversal     bool
	CanBasketAPI    bool
	CanRegistration bool

	// AutoInvoiceAlways forces invoice creation on full payment even when
	// the store-level auto-invoice setting is off.
	AutoInvoiceAlways bool

	// InvoiceMail controls whether a fully paid, auto-invoiced order
	// triggers an invoice notification email at all.
	InvoiceMail bool

	// MailPaymentInfo controls whether that email carries the method's
	// supplementary payment information block.
	MailPaymentInfo bool

	// ReportsShipping marks methods that expect a finalize call once the
	// order ships.
	ReportsShipping bool

	ChargeBackMessage string
	PaymentInfo       PaymentInfoFunc

	StatusPending    StatusMapping
	StatusError      StatusMapping
	StatusSuccess    StatusMapping
	StatusPartlyPaid StatusMapping
}

func defaultMappings(m PaymentMethod) PaymentMethod {
	if m.StatusPending.Status == "" {
		m.StatusPending = StatusMapping{State: StatePendingPayment, Status: string(StatePendingPayment)}
	}
	if m.StatusError.Status == "" {
		m.StatusError = StatusMapping{State: StateCanceled, Status: string(StateCanceled)}
	}
	if m.StatusSuccess.Status == "" {
		m.StatusSuccess = StatusMapping{State: StateProcessing, Status: string(StateProcessing)}
	}
	if m.StatusPartlyPaid.Status == "" {
		m.StatusPartlyPaid = StatusMapping{State: StatePaymentReview, Status: string(StatePaymentReview)}
	}
	if m.ChargeBackMessage == "" {
		m.ChargeBackMessage = "debit failed"
	}
	return m
}

// directDebitPaymentInfo renders the remittance block for direct debit
// methods: the amount that will be debited and the creditor identifiers.
func directDebitPaymentInfo(raw map[string]string) string {
	return fmt.Sprintf(
		"The amount of %s %s will be debited from account %s (%s), creditor id %s.",
		raw["CLEARING_AMOUNT"],
		raw["CLEARING_CURRENCY"],
		raw["ACCOUNT_IBAN"],
		raw["ACCOUNT_IDENTIFICATION"],
		raw["IDENTIFICATION_CREDITOR_ID"],
	)
}

// prepaymentPaymentInfo renders the bank details the shopper has to
// transfer the amount to, including the short id as remittance reference.
func prepaymentPaymentInfo(raw map[string]string) string {
	return fmt.Sprintf(
		"Please transfer %s %s to IBAN %s, BIC %s, holder %s, stating reference %s.",
		raw["PRESENTATION_AMOUNT"],
		raw["PRESENTATION_CURRENCY"],
		raw["CONNECTOR_ACCOUNT_IBAN"],
		raw["CONNECTOR_ACCOUNT_BIC"],
		raw["CONNECTOR_ACCOUNT_HOLDER"],
		raw["IDENTIFICATION_SHORTID"],
	)
}

var methods = func() map[string]PaymentMethod {
	list := []PaymentMethod{
		{
			Code:            "cc",
			WireCode:        "CC",
			Title:           "Credit Card",
			CanCapture:      true,
			CanReversal:     true,
			CanRegistration: true,
			InvoiceMail:     true,
			MailPaymentInfo: true,
		},
		{
			Code:            "dc",
			WireCode:        "DC",
			Title:           "Debit Card",
			CanCapture:      true,
			CanReversal:     true,
			CanRegistration: true,
			InvoiceMail:     true,
			MailPaymentInfo: true,
		},
		{
			Code:            "dd",
			WireCode:        "DD",
			Title:           "Direct Debit",
			CanRegistration: true,
			InvoiceMail:     true,
			MailPaymentInfo: true,
			PaymentInfo:     directDebitPaymentInfo,
		},
		{
			Code:            "ddsec",
			WireCode:        "DD",
			Title:           "Direct Debit Secured",
			CanReversal:     true,
			CanBasketAPI:    true,
			CanRegistration: true,
			InvoiceMail:     true,
			MailPaymentInfo: true,
			ReportsShipping: true,
			PaymentInfo:     directDebitPaymentInfo,
		},
		{
			Code:            "iv",
			WireCode:        "IV",
			Title:           "Invoice",
			InvoiceMail:     true,
			MailPaymentInfo: false,
		},
		{
			Code:              "ivsec",
			WireCode:          "IV",
			Title:             "Invoice Secured",
			CanCapture:        true,
			CanReversal:       true,
			CanBasketAPI:      true,
			AutoInvoiceAlways: true,
			InvoiceMail:       true,
			MailPaymentInfo:   true,
			ReportsShipping:   true,
		},
		{
			Code:            "pp",
			WireCode:        "PP",
			Title:           "Prepayment",
			InvoiceMail:     true,
			MailPaymentInfo: false,
			PaymentInfo:     prepaymentPaymentInfo,
		},
	}

	m := make(map[string]PaymentMethod, len(list))
	for _, method := range list {
		m[method.Code] = defaultMappings(method)
	}
	return m
}()

// MethodByCode looks up a payment method configuration.
func MethodByCode(code string) (PaymentMethod, bool) {
	m, ok := methods[code]
	return m, ok
}

// MethodCodes returns all registered method codes.
func MethodCodes() []string {
	codes := make([]string, 0, len(methods))
	for code := range methods {
		codes = append(codes, code)
	}
	return codes
}
