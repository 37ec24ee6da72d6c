package postgres

// JSON documents stored alongside the scalar order columns. The
// aggregate's nested slices change shape together with the order, so
// they live in jsonb columns instead of satellite tables.

type invoiceDoc struct {
	IncrementID string `json:"increment_id"`
	Amount      string `json:"amount"`
	State       string `json:"state"`
	IsPaid      bool   `json:"is_paid"`
	CaptureCase string `json:"capture_case,omitempty"`
}

type paymentTxnDoc struct {
	Type    string `json:"type"`
	TxnID   string `json:"txn_id"`
	Message string `json:"message,omitempty"`
}

type paymentDoc struct {
	TransactionID       string          `json:"transaction_id,omitempty"`
	ParentTransactionID string          `json:"parent_transaction_id,omitempty"`
	LastTransID         string          `json:"last_trans_id,omitempty"`
	TransactionClosed   bool            `json:"transaction_closed"`
	RefundTransactionID string          `json:"refund_transaction_id,omitempty"`
	Transactions        []paymentTxnDoc `json:"transactions,omitempty"`
}
