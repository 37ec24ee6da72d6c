package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkreusch/magento-cd-edition/internal/domain"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type OrderRepository struct {
	q querier
}

func NewOrderRepository(db *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{q: db}
}

const orderColumns = `
	order_id, store_id, customer_id, method_code, currency,
	grand_total::text, state, status,
	total_invoiced::text, total_paid::text, in_process,
	invoices, payment, history
`

func (r *OrderRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`
	return scanOrder(r.q.QueryRow(ctx, query, orderID), orderID)
}

// GetByOrderIDForUpdate locks the order row for the surrounding
// transaction. Concurrent reconcile calls for the same order queue here.
func (r *OrderRepository) GetByOrderIDForUpdate(ctx context.Context, orderID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1 FOR UPDATE`
	return scanOrder(r.q.QueryRow(ctx, query, orderID), orderID)
}

func (r *OrderRepository) Save(ctx context.Context, order *domain.Order) error {
	invoices, err := invoicesToJSON(order.Invoices)
	if err != nil {
		return fmt.Errorf("failed to marshal invoices: %w", err)
	}
	payment, err := paymentToJSON(order.Payment)
	if err != nil {
		return fmt.Errorf("failed to marshal payment: %w", err)
	}
	history, err := json.Marshal(order.History)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	query := `
		INSERT INTO orders (
			order_id, store_id, customer_id, method_code, currency,
			grand_total, state, status, total_invoiced, total_paid,
			in_process, invoices, payment, history, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (order_id) DO UPDATE SET
			state          = EXCLUDED.state,
			status         = EXCLUDED.status,
			total_invoiced = EXCLUDED.total_invoiced,
			total_paid     = EXCLUDED.total_paid,
			in_process     = EXCLUDED.in_process,
			invoices       = EXCLUDED.invoices,
			payment        = EXCLUDED.payment,
			history        = EXCLUDED.history,
			updated_at     = EXCLUDED.updated_at
	`

	_, err = r.q.Exec(ctx, query,
		order.OrderID,
		order.StoreID,
		order.CustomerID,
		order.MethodCode,
		order.Currency,
		order.GrandTotal.StringFixed(2),
		string(order.State),
		order.Status,
		order.TotalInvoiced.StringFixed(2),
		order.TotalPaid.StringFixed(2),
		order.InProcess,
		invoices,
		payment,
		history,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

func scanOrder(row pgx.Row, orderID string) (*domain.Order, error) {
	var (
		order                                  domain.Order
		state                                  string
		grandTotal, totalInvoiced, totalPaid   string
		invoicesJSON, paymentJSON, historyJSON []byte
	)

	err := row.Scan(
		&order.OrderID,
		&order.StoreID,
		&order.CustomerID,
		&order.MethodCode,
		&order.Currency,
		&grandTotal,
		&state,
		&order.Status,
		&totalInvoiced,
		&totalPaid,
		&order.InProcess,
		&invoicesJSON,
		&paymentJSON,
		&historyJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewOrderNotFoundError(orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	order.State = domain.OrderState(state)
	if order.GrandTotal, err = parseAmount("grand_total", grandTotal); err != nil {
		return nil, err
	}
	if order.TotalInvoiced, err = parseAmount("total_invoiced", totalInvoiced); err != nil {
		return nil, err
	}
	if order.TotalPaid, err = parseAmount("total_paid", totalPaid); err != nil {
		return nil, err
	}
	if order.Invoices, err = invoicesFromJSON(invoicesJSON); err != nil {
		return nil, err
	}
	if order.Payment, err = paymentFromJSON(paymentJSON); err != nil {
		return nil, err
	}
	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &order.History); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history: %w", err)
		}
	}

	return &order, nil
}
