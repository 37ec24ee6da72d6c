package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkreusch/magento-cd-edition/internal/application"
	"github.com/mkreusch/magento-cd-edition/internal/domain"
)

// Coordinator runs order mutations inside a single database transaction
// with the order row locked. The lock serializes notifications per
// order: a replayed push waits for the first delivery to commit and then
// sees its result.
type Coordinator struct {
	pool *pgxpool.Pool
}

func NewCoordinator(db *DB) *Coordinator {
	return &Coordinator{pool: db.Pool}
}

func (c *Coordinator) WithOrder(
	ctx context.Context,
	orderID string,
	fn func(ctx context.Context, order *domain.Order, txns application.TransactionStore) error,
) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	orders := &OrderRepository{q: tx}
	txns := &TransactionStore{q: tx}

	order, err := orders.GetByOrderIDForUpdate(ctx, orderID)
	if err != nil {
		return err
	}

	if err := fn(ctx, order, txns); err != nil {
		return err
	}

	if err := orders.Save(ctx, order); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
