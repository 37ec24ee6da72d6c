package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mkreusch/magento-cd-edition/internal/application"
	"github.com/mkreusch/magento-cd-edition/internal/domain"
)

// NotificationService is the entry point for gateway callbacks, both the
// shopper redirect response and the asynchronous push. It authenticates
// the payload, siphons off account registrations and hands payment
// results to the reconciler.
type NotificationService struct {
	reconcile *ReconcileService
	tokens    application.CustomerTokenStore
	builder   *RequestBuilder
	logger    *slog.Logger
}

func NewNotificationService(
	reconcile *ReconcileService,
	tokens application.CustomerTokenStore,
	builder *RequestBuilder,
	logger *slog.Logger,
) *NotificationService {
	return &NotificationService{
		reconcile: reconcile,
		tokens:    tokens,
		builder:   builder,
		logger:    logger,
	}
}

// Parse validates and authenticates a raw callback payload. The secret
// in the payload is the one this shop emitted when the payment was
// initialized, so a mismatch means the callback is not ours.
func (s *NotificationService) Parse(params map[string]string) (domain.TransactionResult, error) {
	result, err := domain.ParseTransactionResult(params)
	if err != nil {
		return domain.TransactionResult{}, application.NewInvalidInputError("malformed notification payload", err)
	}
	if !s.builder.VerifySecret(result) {
		return domain.TransactionResult{}, application.NewInvalidInputError("notification secret mismatch", nil)
	}
	return result, nil
}

// Process routes an authenticated result. Registrations never touch an
// order; everything else goes through the reconciler.
func (s *NotificationService) Process(ctx context.Context, result domain.TransactionResult) (Outcome, error) {
	if result.Type() == domain.TxnTypeRegistration {
		return s.processRegistration(ctx, result)
	}
	return s.reconcile.Reconcile(ctx, result, "")
}

// processRegistration stores the registered account reference so later
// checkouts can debit against it without re-entering account data.
func (s *NotificationService) processRegistration(ctx context.Context, result domain.TransactionResult) (Outcome, error) {
	if !result.IsAck() {
		s.logger.InfoContext(ctx, "account registration refused",
			slog.String("unique_id", result.UniqueID),
			slog.String("return", result.ReturnMessage),
		)
		return OutcomeIgnored, nil
	}

	customerID := result.Raw["IDENTIFICATION_SHOPPERID"]
	methodCode := result.Raw["CRITERION_PAYMENT_METHOD"]
	if customerID == "" || methodCode == "" {
		return "", application.NewInvalidInputError("registration result lacks shopper or method context", nil)
	}

	account := make(map[string]string)
	for key, value := range result.Raw {
		if strings.HasPrefix(key, "ACCOUNT_") {
			account[key] = value
		}
	}

	token := domain.CustomerPaymentToken{
		CustomerID:   customerID,
		StoreID:      result.StoreID,
		MethodCode:   methodCode,
		UniqueID:     result.UniqueID,
		AccountData:  account,
		ShippingHash: result.Raw["CRITERION_SHIPPING_HASH"],
		UpdatedAt:    time.Now().UTC(),
	}
	if err := s.tokens.Save(ctx, token); err != nil {
		return "", application.NewInternalError("failed to store payment registration", err)
	}

	s.logger.InfoContext(ctx, "account registration stored",
		slog.String("customer_id", customerID),
		slog.String("method", methodCode),
		slog.String("unique_id", result.UniqueID),
	)
	return OutcomeRegistered, nil
}
