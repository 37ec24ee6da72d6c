package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mkreusch/magento-cd-edition/internal/application"
	"github.com/mkreusch/magento-cd-edition/internal/application/services"
	"github.com/mkreusch/magento-cd-edition/internal/domain"
	"github.com/mkreusch/magento-cd-edition/internal/interfaces/rest"
)

type amountRequest struct {
	Amount string `json:"amount"`
}

type transactionResponse struct {
	Success     bool   `json:"success"`
	TxnType     string `json:"txn_type"`
	UniqueID    string `json:"unique_id"`
	ShortID     string `json:"short_id"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Result      string `json:"result"`
	ProcessedAt string `json:"processed_at"`
}

func parseAmountBody(r *http.Request) (decimal.Decimal, error) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return decimal.Zero, application.NewInvalidInputError("unparseable request body", err)
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, application.NewInvalidInputError("amount must be a positive decimal string", err)
	}
	return amount, nil
}

func toTransactionResponse(txn *domain.StoredTransaction) transactionResponse {
	return transactionResponse{
		Success:     true,
		TxnType:     txn.TxnType,
		UniqueID:    txn.UniqueID,
		ShortID:     txn.ShortID,
		Amount:      txn.Amount,
		Currency:    txn.Currency,
		Result:      txn.Result,
		ProcessedAt: txn.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Capture books a previously authorized amount. The endpoint itself is
// the admin surface, so the command carries the admin context.
func (h *Handlers) Capture(w http.ResponseWriter, r *http.Request) {
	amount, err := parseAmountBody(r)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	txn, err := h.backoffice.Capture(r.Context(), services.CaptureCommand{
		OrderID:      r.PathValue("orderID"),
		Amount:       amount,
		AdminContext: true,
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, toTransactionResponse(txn))
}

func (h *Handlers) Refund(w http.ResponseWriter, r *http.Request) {
	amount, err := parseAmountBody(r)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	txn, err := h.backoffice.Refund(r.Context(), services.RefundCommand{
		OrderID: r.PathValue("orderID"),
		Amount:  amount,
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, toTransactionResponse(txn))
}

type reversalResponse struct {
	Success  bool `json:"success"`
	Reversed bool `json:"reversed"`
}

func (h *Handlers) Reverse(w http.ResponseWriter, r *http.Request) {
	reversed, err := h.backoffice.Reverse(r.Context(), r.PathValue("orderID"))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, reversalResponse{
		Success:  true,
		Reversed: reversed,
	})
}
