package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkreusch/magento-cd-edition/internal/application"
	"github.com/mkreusch/magento-cd-edition/internal/domain"
)

// TokenStore persists customer payment registrations. Account data is
// sealed with the encryptor before it touches the database and opened on
// the way out.
type TokenStore struct {
	q     querier
	crypt application.Encryptor
}

func NewTokenStore(db *pgxpool.Pool, crypt application.Encryptor) *TokenStore {
	return &TokenStore{q: db, crypt: crypt}
}

func (s *TokenStore) Save(ctx context.Context, token domain.CustomerPaymentToken) error {
	plain, err := json.Marshal(token.AccountData)
	if err != nil {
		return fmt.Errorf("failed to marshal account data: %w", err)
	}
	sealed, err := s.crypt.Encrypt(plain)
	if err != nil {
		return fmt.Errorf("failed to encrypt account data: %w", err)
	}

	query := `
		INSERT INTO customer_tokens (
			customer_id, store_id, method_code, unique_id,
			account_data, shipping_hash, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (customer_id, store_id, method_code) DO UPDATE SET
			unique_id     = EXCLUDED.unique_id,
			account_data  = EXCLUDED.account_data,
			shipping_hash = EXCLUDED.shipping_hash,
			updated_at    = EXCLUDED.updated_at
	`

	updatedAt := token.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err = s.q.Exec(ctx, query,
		token.CustomerID,
		token.StoreID,
		token.MethodCode,
		token.UniqueID,
		sealed,
		token.ShippingHash,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

func (s *TokenStore) Find(ctx context.Context, customerID, storeID, methodCode string) (*domain.CustomerPaymentToken, error) {
	query := `
		SELECT customer_id, store_id, method_code, unique_id,
		       account_data, shipping_hash, updated_at
		FROM customer_tokens
		WHERE customer_id = $1 AND store_id = $2 AND method_code = $3
	`

	var (
		token  domain.CustomerPaymentToken
		sealed []byte
	)
	err := s.q.QueryRow(ctx, query, customerID, storeID, methodCode).Scan(
		&token.CustomerID,
		&token.StoreID,
		&token.MethodCode,
		&token.UniqueID,
		&sealed,
		&token.ShippingHash,
		&token.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewTokenNotFoundError(customerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan token: %w", err)
	}

	plain, err := s.crypt.Decrypt(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt account data: %w", err)
	}
	if err := json.Unmarshal(plain, &token.AccountData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account data: %w", err)
	}
	return &token, nil
}
