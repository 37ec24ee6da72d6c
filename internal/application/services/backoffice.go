package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/mkreusch/magento-cd-edition/internal/application"
	"github.com/mkreusch/magento-cd-edition/internal/config"
	"github.com/mkreusch/magento-cd-edition/internal/domain"
)

// BackofficeService runs the merchant-initiated follow-up operations:
// capture against a preauthorization, refund against a booked payment
// and reversal of an open preauthorization. Every operation runs inside
// the coordinator with the order row locked, gateway round trip
// included, so a push notification reconciled for the same order cannot
// interleave between the read and the save.
type BackofficeService struct {
	coordinator application.Coordinator
	gateway     application.GatewayClient
	builder     *RequestBuilder
	cfg         *config.Config
	logger      *slog.Logger
}

func NewBackofficeService(
	coordinator application.Coordinator,
	gateway application.GatewayClient,
	builder *RequestBuilder,
	cfg *config.Config,
	logger *slog.Logger,
) *BackofficeService {
	return &BackofficeService{
		coordinator: coordinator,
		gateway:     gateway,
		builder:     builder,
		cfg:         cfg,
		logger:      logger,
	}
}

// CaptureCommand requests a capture of a previously authorized amount.
type CaptureCommand struct {
	OrderID string
	Amount  decimal.Decimal
	Items   []BasketItem

	// AdminContext marks the call as coming from the merchant back
	// office. Captures are refused anywhere else.
	AdminContext bool
}

type RefundCommand struct {
	OrderID string
	Amount  decimal.Decimal
}

// Capture books an authorized amount. The preconditions are checked
// before any network call so a refused capture never reaches the
// gateway.
func (s *BackofficeService) Capture(ctx context.Context, cmd CaptureCommand) (*domain.StoredTransaction, error) {
	if !cmd.AdminContext {
		return nil, application.NewPreconditionError("capture is only available from the merchant back office", nil)
	}

	var captured *domain.StoredTransaction
	err := s.coordinator.WithOrder(ctx, cmd.OrderID, func(ctx context.Context, order *domain.Order, txns application.TransactionStore) error {
		method, err := resolveMethod(order)
		if err != nil {
			return err
		}
		if !method.CanCapture {
			return application.NewPreconditionError(
				fmt.Sprintf("method %s does not support capture", method.Code), nil)
		}

		pa, err := findPreauthorization(ctx, txns, order.OrderID)
		if err != nil {
			return err
		}

		params := s.builder.AdminRequest(order, method, domain.TxnTypeCapture, pa.UniqueID, cmd.Amount, pa.StoreID, cmd.Items)
		result, err := s.send(ctx, params, "capture")
		if err != nil {
			return err
		}

		order.Payment.SetTransactionID(result.UniqueID)
		order.Payment.SetParentTransactionID(pa.UniqueID)
		order.Payment.SetRefundTransactionID(result.UniqueID)
		order.AddHistoryComment(fmt.Sprintf("Captured %s %s. ShortID: %s",
			domain.FormatAmount(cmd.Amount), order.Currency, result.ShortID))

		captured, err = record(ctx, txns, *result)
		return err
	})
	if err != nil {
		return nil, s.translate(cmd.OrderID, err)
	}
	return captured, nil
}

// Refund sends an amount back to the shopper, referencing the booked
// payment transaction on the order.
func (s *BackofficeService) Refund(ctx context.Context, cmd RefundCommand) (*domain.StoredTransaction, error) {
	var refunded *domain.StoredTransaction
	err := s.coordinator.WithOrder(ctx, cmd.OrderID, func(ctx context.Context, order *domain.Order, txns application.TransactionStore) error {
		method, err := resolveMethod(order)
		if err != nil {
			return err
		}

		refundRef := order.Payment.RefundTransactionID
		if refundRef == "" {
			return application.NewPreconditionError(
				fmt.Sprintf("order %s has no refundable payment transaction", order.OrderID), nil)
		}
		ref, err := txns.FindByUniqueID(ctx, refundRef)
		if err != nil {
			if domain.IsErrorCode(err, domain.ErrCodeTransactionNotFound) {
				return application.NewPreconditionError(
					fmt.Sprintf("payment transaction %s not recorded for order %s", refundRef, order.OrderID), err)
			}
			return application.NewInternalError("failed to look up payment transaction", err)
		}

		params := s.builder.AdminRequest(order, method, domain.TxnTypeRefund, ref.UniqueID, cmd.Amount, ref.StoreID, nil)
		result, err := s.send(ctx, params, "refund")
		if err != nil {
			return err
		}

		order.Payment.SetTransactionID(result.UniqueID)
		order.Payment.SetParentTransactionID(ref.UniqueID)
		order.AddHistoryComment(fmt.Sprintf("Refunded %s %s. ShortID: %s",
			domain.FormatAmount(cmd.Amount), order.Currency, result.ShortID))

		refunded, err = record(ctx, txns, *result)
		return err
	})
	if err != nil {
		return nil, s.translate(cmd.OrderID, err)
	}
	return refunded, nil
}

// Reverse voids an open preauthorization. A gateway NOK is reported as
// false, not as an error: the caller treats an unreversible
// authorization as a normal outcome and leaves the order alone.
func (s *BackofficeService) Reverse(ctx context.Context, orderID string) (bool, error) {
	var reversed bool
	err := s.coordinator.WithOrder(ctx, orderID, func(ctx context.Context, order *domain.Order, txns application.TransactionStore) error {
		method, err := resolveMethod(order)
		if err != nil {
			return err
		}
		if !method.CanReversal {
			return application.NewPreconditionError(
				fmt.Sprintf("method %s does not support reversal", method.Code), nil)
		}

		pa, err := findPreauthorization(ctx, txns, order.OrderID)
		if err != nil {
			return err
		}

		reference := order.Payment.LastTransID
		if reference == "" {
			reference = pa.UniqueID
		}

		params := s.builder.AdminRequest(order, method, domain.TxnTypeReversal, reference, order.GrandTotal, pa.StoreID, nil)
		resp, err := s.gateway.Send(ctx, s.cfg.Gateway.URL(), params)
		if err != nil {
			return application.NewGatewayUnavailableError("payment gateway did not accept the reversal", err)
		}
		if resp["PROCESSING_RESULT"] != domain.ResultAck {
			s.logger.WarnContext(ctx, "reversal refused by gateway",
				slog.String("order_id", order.OrderID),
				slog.String("return", resp["PROCESSING_RETURN"]),
			)
			return nil
		}

		result, err := domain.ParseTransactionResult(resp)
		if err != nil {
			return application.NewInternalError("gateway acknowledged with a malformed response", err)
		}

		order.Payment.SetTransactionID(result.UniqueID)
		order.AddHistoryComment(fmt.Sprintf("Authorization reversed. ShortID: %s", result.ShortID))
		if _, err := record(ctx, txns, result); err != nil {
			return err
		}
		reversed = true
		return nil
	})
	if err != nil {
		return false, s.translate(orderID, err)
	}
	return reversed, nil
}

func resolveMethod(order *domain.Order) (domain.PaymentMethod, error) {
	method, err := order.Method()
	if err != nil {
		return domain.PaymentMethod{}, application.NewInvalidInputError(err.Error(), err)
	}
	return method, nil
}

func findPreauthorization(ctx context.Context, txns application.TransactionStore, orderID string) (*domain.StoredTransaction, error) {
	pa, err := txns.FindLatestByOrderAndType(ctx, orderID, domain.TxnTypePreauthorization)
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeTransactionNotFound) {
			return nil, application.NewPreconditionError(
				fmt.Sprintf("no preauthorization recorded for order %s", orderID), err)
		}
		return nil, application.NewInternalError("failed to look up preauthorization", err)
	}
	return pa, nil
}

// send posts a back-office request and translates transport failures and
// gateway refusals. Capture and refund callers get hard errors on NOK.
func (s *BackofficeService) send(ctx context.Context, params map[string]string, op string) (*domain.TransactionResult, error) {
	resp, err := s.gateway.Send(ctx, s.cfg.Gateway.URL(), params)
	if err != nil {
		return nil, application.NewGatewayUnavailableError(
			fmt.Sprintf("payment gateway did not accept the %s", op), err)
	}
	if resp["PROCESSING_RESULT"] != domain.ResultAck {
		return nil, application.NewGatewayRejectedError(
			fmt.Sprintf("%s refused", op), resp["PROCESSING_RETURN"], nil)
	}

	result, err := domain.ParseTransactionResult(resp)
	if err != nil {
		return nil, application.NewInternalError("gateway acknowledged with a malformed response", err)
	}
	return &result, nil
}

func record(ctx context.Context, txns application.TransactionStore, result domain.TransactionResult) (*domain.StoredTransaction, error) {
	txn := domain.NewStoredTransaction(result)
	if err := txns.Save(ctx, txn); err != nil {
		return nil, application.NewInternalError("failed to record gateway transaction", err)
	}
	return &txn, nil
}

// translate maps coordinator failures. Errors raised inside the closure
// pass through unchanged.
func (s *BackofficeService) translate(orderID string, err error) error {
	if application.IsServiceError(err) {
		return err
	}
	if domain.IsErrorCode(err, domain.ErrCodeOrderNotFound) {
		return application.NewNotFoundError(fmt.Sprintf("order %s not found", orderID), err)
	}
	return application.NewInternalError("back office operation failed", err)
}
