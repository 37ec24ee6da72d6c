// Package application wires the domain to its collaborators: the gateway
// transport, the stores and the notification side effects.
package application

import (
	"context"

	"github.com/mkreusch/magento-cd-edition/internal/domain"
)

// GatewayClient is the port for the hosted payment gateway. Request
// parameters are flat dotted-key/value pairs (PAYMENT.TYPE), the response
// comes back underscore-keyed (PROCESSING_RESULT). Implementations send
// the parameters key-sorted.
type GatewayClient interface {
	Send(ctx context.Context, url string, params map[string]string) (map[string]string, error)
}

// TransactionStore is the append-only gateway transaction log.
type TransactionStore interface {
	Save(ctx context.Context, txn domain.StoredTransaction) error
	FindLatestByOrderAndType(ctx context.Context, orderID, txnType string) (*domain.StoredTransaction, error)
	FindByUniqueID(ctx context.Context, uniqueID string) (*domain.StoredTransaction, error)
}

// CustomerTokenStore persists reusable payment tokens per
// (customer, store, method) triple. Implementations store the account
// data encrypted and return it decrypted.
type CustomerTokenStore interface {
	Save(ctx context.Context, token domain.CustomerPaymentToken) error
	Find(ctx context.Context, customerID, storeID, methodCode string) (*domain.CustomerPaymentToken, error)
}

// OrderRepository loads and saves order snapshots.
type OrderRepository interface {
	GetByOrderID(ctx context.Context, orderID string) (*domain.Order, error)
	Save(ctx context.Context, order *domain.Order) error
}

// Coordinator runs fn inside one storage transaction with the order row
// locked for its duration. This serializes reconcile calls per order: two
// concurrent notifications cannot both read the pre-commit status.
type Coordinator interface {
	WithOrder(
		ctx context.Context,
		orderID string,
		fn func(ctx context.Context, order *domain.Order, txns TransactionStore) error,
	) error
}

// Encryptor encrypts customer payment tokens at rest.
type Encryptor interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// Mailer delivers the invoice notification after auto-invoicing.
// paymentInfo carries the method's supplementary payment information
// block, empty when the method suppresses it.
type Mailer interface {
	SendInvoiceNotification(ctx context.Context, order *domain.Order, inv *domain.Invoice, paymentInfo string) error
}
