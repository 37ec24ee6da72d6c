// Package domain defines the transaction taxonomy, the payment method
// registry and the order aggregate for the hosted payment gateway
// integration.
package domain

import (
	"strings"
)

// Transaction type codes as the gateway reports them in the second
// segment of PAYMENT_CODE and as they are persisted with every
// stored transaction row.
const (
	TxnTypeChargeBack       = "CB"
	TxnTypeCapture          = "CP"
	TxnTypeDebit            = "DB"
	TxnTypeReceipt          = "RC"
	TxnTypeFinalize         = "FI"
	TxnTypePreauthorization = "PA"
	TxnTypeRefund           = "RF"
	TxnTypeReversal         = "RV"
	TxnTypeRegistration     = "RG"
)

// Processing results returned by the gateway.
const (
	ResultAck = "ACK"
	ResultNok = "NOK"
)

// AccountBrandSecuredInvoice marks a finalize notification that belongs to
// the secured-invoice variant. Any other brand makes FI informational only.
const AccountBrandSecuredInvoice = "BILLSAFE"

// PaymentCode is the decomposed PAYMENT_CODE, e.g. "CC.CP" or "DD.DB".
// Type is the operative discriminator for reconciliation.
type PaymentCode struct {
	Method string
	Type   string
}

func (c PaymentCode) String() string {
	return c.Method + "." + c.Type
}

// SplitPaymentCode decomposes a composite payment code into its
// payment-method and transaction-type segments.
func SplitPaymentCode(code string) (PaymentCode, error) {
	parts := strings.Split(code, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return PaymentCode{}, NewMalformedResultError("PAYMENT_CODE")
	}

	return PaymentCode{
		Method: strings.ToUpper(strings.TrimSpace(parts[0])),
		Type:   strings.ToUpper(strings.TrimSpace(parts[1])),
	}, nil
}

// TransactionResult is the immutable record received from the gateway,
// either via the synchronous redirect or the asynchronous push channel.
// Response keys use the underscore convention (PROCESSING_RESULT), in
// contrast to the dotted keys of outbound requests.
type TransactionResult struct {
	PaymentCode   PaymentCode
	Result        string
	ReturnMessage string
	StatusCode    string

	Amount   string
	Currency string

	UniqueID string
	ShortID  string
	OrderID  string

	Language     string
	StoreID      string
	AccountBrand string
	Secret       string

	Raw map[string]string
}

// ParseTransactionResult normalizes a flat underscore-keyed response map
// into a TransactionResult. Both notification channels must run through
// this before reconciliation so the engine sees a single shape.
func ParseTransactionResult(params map[string]string) (TransactionResult, error) {
	code, ok := params["PAYMENT_CODE"]
	if !ok {
		return TransactionResult{}, NewMalformedResultError("PAYMENT_CODE")
	}

	paymentCode, err := SplitPaymentCode(code)
	if err != nil {
		return TransactionResult{}, err
	}

	result, ok := params["PROCESSING_RESULT"]
	if !ok {
		return TransactionResult{}, NewMalformedResultError("PROCESSING_RESULT")
	}

	orderID, ok := params["IDENTIFICATION_TRANSACTIONID"]
	if !ok || orderID == "" {
		return TransactionResult{}, NewMalformedResultError("IDENTIFICATION_TRANSACTIONID")
	}

	raw := make(map[string]string, len(params))
	for k, v := range params {
		raw[k] = v
	}

	return TransactionResult{
		PaymentCode:   paymentCode,
		Result:        strings.ToUpper(result),
		ReturnMessage: params["PROCESSING_RETURN"],
		StatusCode:    params["PROCESSING_STATUS_CODE"],
		Amount:        params["PRESENTATION_AMOUNT"],
		Currency:      params["PRESENTATION_CURRENCY"],
		UniqueID:      params["IDENTIFICATION_UNIQUEID"],
		ShortID:       params["IDENTIFICATION_SHORTID"],
		OrderID:       orderID,
		Language:      params["CRITERION_LANGUAGE"],
		StoreID:       params["CRITERION_STOREID"],
		AccountBrand:  params["ACCOUNT_BRAND"],
		Secret:        params["CRITERION_SECRET"],
		Raw:           raw,
	}, nil
}

// IsAck reports whether the gateway acknowledged the transaction.
func (r TransactionResult) IsAck() bool {
	return r.Result == ResultAck
}

// Type returns the transaction-type segment of the payment code.
func (r TransactionResult) Type() string {
	return r.PaymentCode.Type
}

// IsPaidType reports whether the transaction type represents money
// received: capture, direct booking, receipt, or finalize. Finalize only
// counts for the secured-invoice brand, checked separately by the engine.
func (r TransactionResult) IsPaidType() bool {
	switch r.PaymentCode.Type {
	case TxnTypeCapture, TxnTypeDebit, TxnTypeReceipt, TxnTypeFinalize:
		return true
	default:
		return false
	}
}
