package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mkreusch/magento-cd-edition/internal/application"
	"github.com/mkreusch/magento-cd-edition/internal/config"
	"github.com/mkreusch/magento-cd-edition/internal/domain"
)

// CheckoutCommand carries everything needed to initialize a hosted
// payment for an order. Context that legacy integrations pulled from the
// shop session travels in the command instead.
type CheckoutCommand struct {
	OrderID  string
	Locale   string
	Customer Customer
	Items    []BasketItem

	// Registration runs the request as a standalone account
	// registration instead of a debit against the order.
	Registration bool
	Shipping     *domain.ShippingAddress
}

// CheckoutResult is the redirect target for the shopper.
type CheckoutResult struct {
	RedirectURL string
	Method      string
}

// CheckoutService initializes hosted payments: it assembles the request
// parameter sets, reuses stored account registrations where the method
// supports them and hands the shopper the gateway redirect URL.
type CheckoutService struct {
	orders  application.OrderRepository
	tokens  application.CustomerTokenStore
	gateway application.GatewayClient
	builder *RequestBuilder
	cfg     *config.Config
	logger  *slog.Logger
}

func NewCheckoutService(
	orders application.OrderRepository,
	tokens application.CustomerTokenStore,
	gateway application.GatewayClient,
	builder *RequestBuilder,
	cfg *config.Config,
	logger *slog.Logger,
) *CheckoutService {
	return &CheckoutService{
		orders:  orders,
		tokens:  tokens,
		gateway: gateway,
		builder: builder,
		cfg:     cfg,
		logger:  logger,
	}
}

// Begin starts the hosted payment flow for an order and returns the
// gateway redirect URL.
func (s *CheckoutService) Begin(ctx context.Context, cmd CheckoutCommand) (*CheckoutResult, error) {
	order, err := s.orders.GetByOrderID(ctx, cmd.OrderID)
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeOrderNotFound) {
			return nil, application.NewNotFoundError(fmt.Sprintf("order %s not found", cmd.OrderID), err)
		}
		return nil, application.NewInternalError("failed to load order", err)
	}

	method, err := order.Method()
	if err != nil {
		return nil, application.NewInvalidInputError(err.Error(), err)
	}
	if err := s.checkAvailable(method, order); err != nil {
		return nil, err
	}

	params := Merge(
		s.builder.MainConfig(method),
		s.builder.Frontend(order.OrderID, order.StoreID, cmd.Locale),
		s.builder.User(cmd.Customer),
		s.basket(order, method, cmd),
	)
	params["CRITERION.PAYMENT_METHOD"] = method.Code

	if cmd.Registration {
		if !method.CanRegistration {
			return nil, application.NewPreconditionError(
				fmt.Sprintf("method %s does not support account registration", method.Code), nil)
		}
		params["PAYMENT.TYPE"] = domain.TxnTypeRegistration
	} else {
		s.applyStoredAccount(ctx, params, method, order, cmd)
	}

	if cmd.Shipping != nil {
		params["CRITERION.SHIPPING_HASH"] = cmd.Shipping.Hash()
	}

	resp, err := s.gateway.Send(ctx, s.cfg.Gateway.URL(), params)
	if err != nil {
		return nil, application.NewGatewayUnavailableError("payment gateway did not accept the request", err)
	}

	if resp["PROCESSING_RESULT"] != domain.ResultAck {
		return nil, application.NewGatewayRejectedError("payment initialization refused", resp["PROCESSING_RETURN"], nil)
	}
	redirect := resp["FRONTEND_REDIRECT_URL"]
	if redirect == "" {
		return nil, application.NewInternalError("gateway acknowledged without a redirect URL", nil)
	}

	s.logger.InfoContext(ctx, "hosted payment initialized",
		slog.String("order_id", order.OrderID),
		slog.String("method", method.Code),
		slog.Bool("registration", cmd.Registration),
	)

	return &CheckoutResult{RedirectURL: redirect, Method: method.Code}, nil
}

// checkAvailable enforces the per-method enablement and order total
// bounds. A zero bound means unbounded on that side.
func (s *CheckoutService) checkAvailable(method domain.PaymentMethod, order *domain.Order) error {
	mcfg := s.cfg.MethodForStore(order.StoreID, method.Code)
	if !mcfg.Enabled {
		return application.NewPreconditionError(fmt.Sprintf("method %s is not enabled", method.Code), nil)
	}
	if min, ok := parseBound(mcfg.MinAmount); ok && order.GrandTotal.LessThan(min) {
		return application.NewPreconditionError(
			fmt.Sprintf("order total below the minimum for method %s", method.Code), nil)
	}
	if max, ok := parseBound(mcfg.MaxAmount); ok && order.GrandTotal.GreaterThan(max) {
		return application.NewPreconditionError(
			fmt.Sprintf("order total above the maximum for method %s", method.Code), nil)
	}
	return nil
}

// parseBound reads a configured amount bound. Empty, zero or malformed
// values disable the bound rather than block checkout.
func parseBound(raw string) (decimal.Decimal, bool) {
	if raw == "" {
		return decimal.Zero, false
	}
	bound, err := decimal.NewFromString(raw)
	if err != nil || !bound.IsPositive() {
		return decimal.Zero, false
	}
	return bound, true
}

func (s *CheckoutService) basket(order *domain.Order, method domain.PaymentMethod, cmd CheckoutCommand) map[string]string {
	items := cmd.Items
	if !method.CanBasketAPI {
		items = nil
	}
	return s.builder.Basket(order, items, order.GrandTotal)
}

// applyStoredAccount attaches a previously registered account so the
// shopper does not re-enter it. The registration is only offered when
// the shipping address still matches the one it was created with.
func (s *CheckoutService) applyStoredAccount(
	ctx context.Context,
	params map[string]string,
	method domain.PaymentMethod,
	order *domain.Order,
	cmd CheckoutCommand,
) {
	if !method.CanRegistration || cmd.Customer.Guest {
		return
	}

	token, err := s.tokens.Find(ctx, cmd.Customer.CustomerID, order.StoreID, method.Code)
	if err != nil {
		if !domain.IsErrorCode(err, domain.ErrCodeTokenNotFound) {
			s.logger.WarnContext(ctx, "stored account lookup failed",
				slog.String("customer_id", cmd.Customer.CustomerID),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	if cmd.Shipping != nil && token.ShippingHash != cmd.Shipping.Hash() {
		return
	}

	for key, value := range token.AccountData {
		// IBANs are stored the way the shopper typed them.
		if strings.HasSuffix(key, "IBAN") {
			value = strings.ToUpper(value)
		}
		params["ACCOUNT."+strings.TrimPrefix(key, "ACCOUNT_")] = value
	}
	params["IDENTIFICATION.REFERENCEID"] = token.UniqueID
	params["FRONTEND.ENABLED"] = "false"
}
