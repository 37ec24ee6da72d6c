package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkreusch/magento-cd-edition/internal/domain"
)

// TransactionStore is the append-only gateway transaction log. Replayed
// gateway deliveries insert the same unique id again; the conflict is
// swallowed so redelivery stays harmless.
type TransactionStore struct {
	q querier
}

func NewTransactionStore(db *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{q: db}
}

const transactionColumns = `
	id, order_id, method, txn_type, unique_id, short_id,
	result, status_code, amount, currency, store_id, raw, created_at
`

func (s *TransactionStore) Save(ctx context.Context, txn domain.StoredTransaction) error {
	raw, err := json.Marshal(txn.Raw)
	if err != nil {
		return fmt.Errorf("failed to marshal raw response: %w", err)
	}

	query := `
		INSERT INTO transactions (
			id, order_id, method, txn_type, unique_id, short_id,
			result, status_code, amount, currency, store_id, raw, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (unique_id) DO NOTHING
	`

	_, err = s.q.Exec(ctx, query,
		txn.ID,
		txn.OrderID,
		txn.Method,
		txn.TxnType,
		txn.UniqueID,
		txn.ShortID,
		txn.Result,
		txn.StatusCode,
		txn.Amount,
		txn.Currency,
		txn.StoreID,
		raw,
		txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

func (s *TransactionStore) FindLatestByOrderAndType(ctx context.Context, orderID, txnType string) (*domain.StoredTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE order_id = $1 AND txn_type = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanTransaction(s.q.QueryRow(ctx, query, orderID, txnType), orderID+"/"+txnType)
}

func (s *TransactionStore) FindByUniqueID(ctx context.Context, uniqueID string) (*domain.StoredTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE unique_id = $1`
	return scanTransaction(s.q.QueryRow(ctx, query, uniqueID), uniqueID)
}

// ListByOrder returns the transaction rows of an order, oldest first.
func (s *TransactionStore) ListByOrder(ctx context.Context, orderID string) ([]domain.StoredTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE order_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.q.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.StoredTransaction
	for rows.Next() {
		txn, err := scanTransaction(rows, orderID)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *txn)
	}
	return txns, rows.Err()
}

func scanTransaction(row pgx.Row, ref string) (*domain.StoredTransaction, error) {
	var (
		txn domain.StoredTransaction
		raw []byte
	)

	err := row.Scan(
		&txn.ID,
		&txn.OrderID,
		&txn.Method,
		&txn.TxnType,
		&txn.UniqueID,
		&txn.ShortID,
		&txn.Result,
		&txn.StatusCode,
		&txn.Amount,
		&txn.Currency,
		&txn.StoreID,
		&raw,
		&txn.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewTransactionNotFoundError(ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &txn.Raw); err != nil {
			return nil, fmt.Errorf("failed to unmarshal raw response: %w", err)
		}
	}
	return &txn, nil
}
