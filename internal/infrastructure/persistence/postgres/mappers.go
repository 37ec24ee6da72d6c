package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mkreusch/magento-cd-edition/internal/domain"
)

func invoicesToJSON(invoices []*domain.Invoice) ([]byte, error) {
	docs := make([]invoiceDoc, 0, len(invoices))
	for _, inv := range invoices {
		docs = append(docs, invoiceDoc{
			IncrementID: inv.IncrementID,
			Amount:      inv.Amount.String(),
			State:       string(inv.State),
			IsPaid:      inv.IsPaid,
			CaptureCase: inv.CaptureCase,
		})
	}
	return json.Marshal(docs)
}

func invoicesFromJSON(data []byte) ([]*domain.Invoice, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var docs []invoiceDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal invoices: %w", err)
	}
	invoices := make([]*domain.Invoice, 0, len(docs))
	for _, doc := range docs {
		amount, err := decimal.NewFromString(doc.Amount)
		if err != nil {
			return nil, fmt.Errorf("invalid invoice amount %q: %w", doc.Amount, err)
		}
		invoices = append(invoices, &domain.Invoice{
			IncrementID: doc.IncrementID,
			Amount:      amount,
			State:       domain.InvoiceState(doc.State),
			IsPaid:      doc.IsPaid,
			CaptureCase: doc.CaptureCase,
		})
	}
	return invoices, nil
}

func paymentToJSON(p domain.OrderPayment) ([]byte, error) {
	doc := paymentDoc{
		TransactionID:       p.TransactionID,
		ParentTransactionID: p.ParentTransactionID,
		LastTransID:         p.LastTransID,
		TransactionClosed:   p.TransactionClosed,
		RefundTransactionID: p.RefundTransactionID,
	}
	for _, txn := range p.Transactions {
		doc.Transactions = append(doc.Transactions, paymentTxnDoc(txn))
	}
	return json.Marshal(doc)
}

func paymentFromJSON(data []byte) (domain.OrderPayment, error) {
	if len(data) == 0 {
		return domain.OrderPayment{}, nil
	}
	var doc paymentDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.OrderPayment{}, fmt.Errorf("failed to unmarshal payment: %w", err)
	}
	p := domain.OrderPayment{
		TransactionID:       doc.TransactionID,
		ParentTransactionID: doc.ParentTransactionID,
		LastTransID:         doc.LastTransID,
		TransactionClosed:   doc.TransactionClosed,
		RefundTransactionID: doc.RefundTransactionID,
	}
	for _, txn := range doc.Transactions {
		p.Transactions = append(p.Transactions, domain.PaymentTransaction(txn))
	}
	return p, nil
}

func parseAmount(column, raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", column, raw, err)
	}
	return amount, nil
}
