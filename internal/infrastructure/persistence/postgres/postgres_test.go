package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkreusch/magento-cd-edition/internal/application"
	"github.com/mkreusch/magento-cd-edition/internal/domain"
	"github.com/mkreusch/magento-cd-edition/internal/infrastructure/crypto"
	"github.com/mkreusch/magento-cd-edition/internal/infrastructure/persistence/postgres"
	"github.com/mkreusch/magento-cd-edition/internal/infrastructure/persistence/postgres/testhelpers"
)

func setup(t *testing.T) *testhelpers.TestDatabase {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	td := testhelpers.SetupTestDatabase(t)
	t.Cleanup(func() { td.Cleanup(t) })
	return td
}

func seedOrder(t *testing.T, repo *postgres.OrderRepository) *domain.Order {
	t.Helper()
	order := &domain.Order{
		OrderID:    "100000123",
		StoreID:    "1",
		CustomerID: "42",
		MethodCode: "dd",
		Currency:   "EUR",
		GrandTotal: decimal.RequireFromString("100.00"),
		State:      domain.StatePendingPayment,
		Status:     string(domain.StatePendingPayment),
	}
	require.NoError(t, repo.Save(context.Background(), order))
	return order
}

func TestOrderRepositoryRoundTrip(t *testing.T) {
	td := setup(t)
	repo := postgres.NewOrderRepository(td.DB.Pool)
	ctx := context.Background()

	order := seedOrder(t, repo)
	order.SetState(domain.StateProcessing, "processing", "ShortID: 1234.5678.9012")
	order.Payment.SetTransactionID("uid-1")
	order.Payment.SetIsTransactionClosed(true)
	order.Payment.AddTransaction(domain.PaymentTxnCapture, "captured")
	inv := order.PrepareInvoice()
	order.CaptureInvoiceOnline(inv)
	require.NoError(t, repo.Save(ctx, order))

	loaded, err := repo.GetByOrderID(ctx, order.OrderID)
	require.NoError(t, err)

	assert.Equal(t, domain.StateProcessing, loaded.State)
	assert.Equal(t, "processing", loaded.Status)
	assert.True(t, loaded.GrandTotal.Equal(order.GrandTotal))
	assert.True(t, loaded.TotalPaid.Equal(order.GrandTotal))
	assert.Equal(t, "uid-1", loaded.Payment.TransactionID)
	assert.Equal(t, "uid-1", loaded.Payment.LastTransID)
	assert.True(t, loaded.Payment.TransactionClosed)
	require.Len(t, loaded.Payment.Transactions, 1)
	require.Len(t, loaded.Invoices, 1)
	assert.True(t, loaded.Invoices[0].IsPaid)
	require.NotEmpty(t, loaded.History)
	assert.Contains(t, loaded.History[0], "1234.5678.9012")
}

func TestOrderRepositoryNotFound(t *testing.T) {
	td := setup(t)
	repo := postgres.NewOrderRepository(td.DB.Pool)

	_, err := repo.GetByOrderID(context.Background(), "900000000")

	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeOrderNotFound))
}

func TestCoordinatorSerializesOrderMutations(t *testing.T) {
	td := setup(t)
	repo := postgres.NewOrderRepository(td.DB.Pool)
	coordinator := postgres.NewCoordinator(td.DB)
	ctx := context.Background()

	seedOrder(t, repo)

	// Two concurrent mutations must not lose an increment: the second
	// waits on the row lock and reads the committed state.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := coordinator.WithOrder(ctx, "100000123", func(_ context.Context, order *domain.Order, _ application.TransactionStore) error {
				order.AddHistoryComment("notification")
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	loaded, err := repo.GetByOrderID(ctx, "100000123")
	require.NoError(t, err)
	assert.Len(t, loaded.History, 10)
}

func TestCoordinatorRollsBackOnError(t *testing.T) {
	td := setup(t)
	repo := postgres.NewOrderRepository(td.DB.Pool)
	coordinator := postgres.NewCoordinator(td.DB)
	ctx := context.Background()

	seedOrder(t, repo)

	err := coordinator.WithOrder(ctx, "100000123", func(_ context.Context, order *domain.Order, txns application.TransactionStore) error {
		order.SetState(domain.StateProcessing, "processing", "should not persist")
		if err := txns.Save(ctx, domain.StoredTransaction{}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	loaded, err := repo.GetByOrderID(ctx, "100000123")
	require.NoError(t, err)
	assert.Equal(t, domain.StatePendingPayment, loaded.State)
	assert.Empty(t, loaded.History)

	store := postgres.NewTransactionStore(td.DB.Pool)
	rows, err := store.ListByOrder(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func storedTxn(orderID, txnType, uniqueID string, createdAt time.Time) domain.StoredTransaction {
	result, _ := domain.ParseTransactionResult(map[string]string{
		"PAYMENT_CODE":                 "CC." + txnType,
		"PROCESSING_RESULT":            domain.ResultAck,
		"IDENTIFICATION_TRANSACTIONID": orderID,
		"IDENTIFICATION_UNIQUEID":      uniqueID,
		"IDENTIFICATION_SHORTID":       "1111.2222.3333",
		"PRESENTATION_AMOUNT":          "100.00",
		"PRESENTATION_CURRENCY":        "EUR",
		"CRITERION_STOREID":            "1",
	})
	txn := domain.NewStoredTransaction(result)
	txn.CreatedAt = createdAt
	return txn
}

func TestTransactionStoreLatestByType(t *testing.T) {
	td := setup(t)
	store := postgres.NewTransactionStore(td.DB.Pool)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Save(ctx, storedTxn("100000123", domain.TxnTypePreauthorization, "uid-pa-1", now.Add(-2*time.Hour))))
	require.NoError(t, store.Save(ctx, storedTxn("100000123", domain.TxnTypePreauthorization, "uid-pa-2", now.Add(-time.Hour))))
	require.NoError(t, store.Save(ctx, storedTxn("100000123", domain.TxnTypeCapture, "uid-cp-1", now)))

	latest, err := store.FindLatestByOrderAndType(ctx, "100000123", domain.TxnTypePreauthorization)
	require.NoError(t, err)
	assert.Equal(t, "uid-pa-2", latest.UniqueID)

	byID, err := store.FindByUniqueID(ctx, "uid-cp-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TxnTypeCapture, byID.TxnType)
	assert.Equal(t, "100.00", byID.Amount)
	assert.Equal(t, domain.ResultAck, byID.Raw["PROCESSING_RESULT"])

	_, err = store.FindLatestByOrderAndType(ctx, "100000123", domain.TxnTypeRefund)
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeTransactionNotFound))

	all, err := store.ListByOrder(ctx, "100000123")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestTransactionStoreSwallowsDuplicateUniqueID(t *testing.T) {
	td := setup(t)
	store := postgres.NewTransactionStore(td.DB.Pool)
	ctx := context.Background()

	first := storedTxn("100000123", domain.TxnTypeDebit, "uid-db-1", time.Now().UTC())
	require.NoError(t, store.Save(ctx, first))

	replay := storedTxn("100000123", domain.TxnTypeDebit, "uid-db-1", time.Now().UTC())
	require.NoError(t, store.Save(ctx, replay))

	all, err := store.ListByOrder(ctx, "100000123")
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, first.ID, all[0].ID)
}

func TestTokenStoreEncryptsAtRest(t *testing.T) {
	td := setup(t)
	enc, err := crypto.NewAESEncryptor("test-secret")
	require.NoError(t, err)
	store := postgres.NewTokenStore(td.DB.Pool, enc)
	ctx := context.Background()

	token := domain.CustomerPaymentToken{
		CustomerID: "42",
		StoreID:    "1",
		MethodCode: "dd",
		UniqueID:   "uid-rg-1",
		AccountData: map[string]string{
			"ACCOUNT_IBAN":   "DE89370400440532013000",
			"ACCOUNT_HOLDER": "Max Mustermann",
		},
		ShippingHash: "hash-1",
	}
	require.NoError(t, store.Save(ctx, token))

	loaded, err := store.Find(ctx, "42", "1", "dd")
	require.NoError(t, err)
	assert.Equal(t, "uid-rg-1", loaded.UniqueID)
	assert.Equal(t, "DE89370400440532013000", loaded.AccountData["ACCOUNT_IBAN"])

	// the raw column never contains the IBAN in the clear
	var sealed []byte
	err = td.DB.Pool.QueryRow(ctx,
		"SELECT account_data FROM customer_tokens WHERE customer_id = $1", "42").Scan(&sealed)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "DE89370400440532013000")

	// upsert replaces the registration
	token.UniqueID = "uid-rg-2"
	require.NoError(t, store.Save(ctx, token))
	loaded, err = store.Find(ctx, "42", "1", "dd")
	require.NoError(t, err)
	assert.Equal(t, "uid-rg-2", loaded.UniqueID)
}

func TestTokenStoreNotFound(t *testing.T) {
	td := setup(t)
	enc, err := crypto.NewAESEncryptor("test-secret")
	require.NoError(t, err)
	store := postgres.NewTokenStore(td.DB.Pool, enc)

	_, err = store.Find(context.Background(), "nobody", "1", "dd")
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeTokenNotFound))
}
