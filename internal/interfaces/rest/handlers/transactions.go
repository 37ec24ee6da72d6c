package handlers

import (
	"net/http"
	"time"

	"github.com/mkreusch/magento-cd-edition/internal/domain"
	"github.com/mkreusch/magento-cd-edition/internal/interfaces/rest"
)

type transactionItem struct {
	ID        string `json:"id"`
	Method    string `json:"method"`
	TxnType   string `json:"txn_type"`
	UniqueID  string `json:"unique_id"`
	ShortID   string `json:"short_id"`
	Result    string `json:"result"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	CreatedAt string `json:"created_at"`
}

type transactionListResponse struct {
	Success      bool              `json:"success"`
	OrderID      string            `json:"order_id"`
	Transactions []transactionItem `json:"transactions"`
}

// ListTransactions returns the gateway transaction log of an order,
// oldest first.
func (h *Handlers) ListTransactions(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderID")

	txns, err := h.transactions.ListByOrder(r.Context(), orderID)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	items := make([]transactionItem, 0, len(txns))
	for _, txn := range txns {
		items = append(items, toTransactionItem(txn))
	}

	rest.WriteJSON(w, http.StatusOK, transactionListResponse{
		Success:      true,
		OrderID:      orderID,
		Transactions: items,
	})
}

func toTransactionItem(txn domain.StoredTransaction) transactionItem {
	return transactionItem{
		ID:        txn.ID.String(),
		Method:    txn.Method,
		TxnType:   txn.TxnType,
		UniqueID:  txn.UniqueID,
		ShortID:   txn.ShortID,
		Result:    txn.Result,
		Amount:    txn.Amount,
		Currency:  txn.Currency,
		CreatedAt: txn.CreatedAt.UTC().Format(time.RFC3339),
	}
}
