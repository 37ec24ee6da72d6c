package services

import (
	"context"
	"sync"

	"github.com/mkreusch/magento-cd-edition/internal/application"
	"github.com/mkreusch/magento-cd-edition/internal/domain"
)

// Test doubles for the application ports. Function fields override the
// default in-memory behavior per test case.

type MockGatewayClient struct {
	SendFn func(ctx context.Context, url string, params map[string]string) (map[string]string, error)

	mu    sync.Mutex
	Calls []map[string]string
}

func (m *MockGatewayClient) Send(ctx context.Context, url string, params map[string]string) (map[string]string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, params)
	m.mu.Unlock()
	if m.SendFn != nil {
		return m.SendFn(ctx, url, params)
	}
	return map[string]string{"PROCESSING_RESULT": domain.ResultAck}, nil
}

func (m *MockGatewayClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

type MockTransactionStore struct {
	SaveFn                     func(ctx context.Context, txn domain.StoredTransaction) error
	FindLatestByOrderAndTypeFn func(ctx context.Context, orderID, txnType string) (*domain.StoredTransaction, error)
	FindByUniqueIDFn           func(ctx context.Context, uniqueID string) (*domain.StoredTransaction, error)

	mu   sync.Mutex
	Rows []domain.StoredTransaction
}

func (m *MockTransactionStore) Save(ctx context.Context, txn domain.StoredTransaction) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, txn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rows = append(m.Rows, txn)
	return nil
}

func (m *MockTransactionStore) FindLatestByOrderAndType(ctx context.Context, orderID, txnType string) (*domain.StoredTransaction, error) {
	if m.FindLatestByOrderAndTypeFn != nil {
		return m.FindLatestByOrderAndTypeFn(ctx, orderID, txnType)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.Rows) - 1; i >= 0; i-- {
		if m.Rows[i].OrderID == orderID && m.Rows[i].TxnType == txnType {
			row := m.Rows[i]
			return &row, nil
		}
	}
	return nil, domain.NewTransactionNotFoundError(orderID + "/" + txnType)
}

func (m *MockTransactionStore) FindByUniqueID(ctx context.Context, uniqueID string) (*domain.StoredTransaction, error) {
	if m.FindByUniqueIDFn != nil {
		return m.FindByUniqueIDFn(ctx, uniqueID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Rows {
		if m.Rows[i].UniqueID == uniqueID {
			row := m.Rows[i]
			return &row, nil
		}
	}
	return nil, domain.NewTransactionNotFoundError(uniqueID)
}

func (m *MockTransactionStore) ListByOrder(ctx context.Context, orderID string) ([]domain.StoredTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var txns []domain.StoredTransaction
	for _, row := range m.Rows {
		if row.OrderID == orderID {
			txns = append(txns, row)
		}
	}
	return txns, nil
}

type MockOrderRepository struct {
	GetByOrderIDFn func(ctx context.Context, orderID string) (*domain.Order, error)
	SaveFn         func(ctx context.Context, order *domain.Order) error

	mu     sync.Mutex
	Orders map[string]*domain.Order
	Saved  []*domain.Order
}

func (m *MockOrderRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Order, error) {
	if m.GetByOrderIDFn != nil {
		return m.GetByOrderIDFn(ctx, orderID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.Orders[orderID]
	if !ok {
		return nil, domain.NewOrderNotFoundError(orderID)
	}
	return order, nil
}

func (m *MockOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, order)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Orders == nil {
		m.Orders = make(map[string]*domain.Order)
	}
	m.Orders[order.OrderID] = order
	m.Saved = append(m.Saved, order)
	return nil
}

// MockCoordinator runs the closure against the repository's in-memory
// orders with a process-wide lock standing in for the row lock.
type MockCoordinator struct {
	Repo *MockOrderRepository
	Txns *MockTransactionStore

	mu sync.Mutex
}

func (m *MockCoordinator) WithOrder(
	ctx context.Context,
	orderID string,
	fn func(ctx context.Context, order *domain.Order, txns application.TransactionStore) error,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, err := m.Repo.GetByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if err := fn(ctx, order, m.Txns); err != nil {
		return err
	}
	return m.Repo.Save(ctx, order)
}

type MockTokenStore struct {
	SaveFn func(ctx context.Context, token domain.CustomerPaymentToken) error
	FindFn func(ctx context.Context, customerID, storeID, methodCode string) (*domain.CustomerPaymentToken, error)

	mu     sync.Mutex
	Tokens []domain.CustomerPaymentToken
}

func (m *MockTokenStore) Save(ctx context.Context, token domain.CustomerPaymentToken) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tokens = append(m.Tokens, token)
	return nil
}

func (m *MockTokenStore) Find(ctx context.Context, customerID, storeID, methodCode string) (*domain.CustomerPaymentToken, error) {
	if m.FindFn != nil {
		return m.FindFn(ctx, customerID, storeID, methodCode)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.Tokens) - 1; i >= 0; i-- {
		t := m.Tokens[i]
		if t.CustomerID == customerID && t.StoreID == storeID && t.MethodCode == methodCode {
			return &t, nil
		}
	}
	return nil, domain.NewTokenNotFoundError(customerID)
}

type MockMailer struct {
	SendInvoiceNotificationFn func(ctx context.Context, order *domain.Order, inv *domain.Invoice, paymentInfo string) error

	mu    sync.Mutex
	Sent  []string
	Infos []string
}

func (m *MockMailer) SendInvoiceNotification(ctx context.Context, order *domain.Order, inv *domain.Invoice, paymentInfo string) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, inv.IncrementID)
	m.Infos = append(m.Infos, paymentInfo)
	m.mu.Unlock()
	if m.SendInvoiceNotificationFn != nil {
		return m.SendInvoiceNotificationFn(ctx, order, inv, paymentInfo)
	}
	return nil
}
