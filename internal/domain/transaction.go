package domain

import (
	"time"

	"github.com/google/uuid"
)

// StoredTransaction is one row of the append-only gateway transaction log.
// Rows are never mutated; corrections show up as new rows.
type StoredTransaction struct {
	ID      uuid.UUID
	OrderID string

	Method  string
	TxnType string

	UniqueID string
	ShortID  string

	Result     string
	StatusCode string

	Amount   string
	Currency string
	StoreID  string

	// Raw keeps the full underscore-keyed gateway response for audit and
	// for payment-info rendering on later notifications.
	Raw map[string]string

	CreatedAt time.Time
}

// NewStoredTransaction captures a gateway result as a transaction row.
func NewStoredTransaction(r TransactionResult) StoredTransaction {
	return StoredTransaction{
		ID:         uuid.New(),
		OrderID:    r.OrderID,
		Method:     r.PaymentCode.Method,
		TxnType:    r.PaymentCode.Type,
		UniqueID:   r.UniqueID,
		ShortID:    r.ShortID,
		Result:     r.Result,
		StatusCode: r.StatusCode,
		Amount:     r.Amount,
		Currency:   r.Currency,
		StoreID:    r.StoreID,
		Raw:        r.Raw,
		CreatedAt:  time.Now().UTC(),
	}
}
