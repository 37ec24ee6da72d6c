package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mkreusch/magento-cd-edition/internal/config"
	"github.com/mkreusch/magento-cd-edition/internal/domain"
)

// Customer is the billing context sent with a gateway request.
type Customer struct {
	CustomerID string
	Guest      bool

	Company   string
	Firstname string
	Lastname  string

	Street  string
	Zip     string
	City    string
	Country string

	Email string
	Phone string
	IP    string
}

// BasketItem is one order line for the extended basket request of
// invoicing-capable methods.
type BasketItem struct {
	SKU        string
	Name       string
	Quantity   int
	UnitAmount decimal.Decimal
	TaxPercent decimal.Decimal
}

// RequestBuilder assembles the dotted-key parameter sets for gateway
// calls: config, frontend, user, basket and criterion. Keys are sorted
// before sending so request logs stay diffable.
type RequestBuilder struct {
	cfg *config.Config
}

func NewRequestBuilder(cfg *config.Config) *RequestBuilder {
	return &RequestBuilder{cfg: cfg}
}

// MainConfig builds the credential and channel parameters for a method.
func (b *RequestBuilder) MainConfig(method domain.PaymentMethod) map[string]string {
	gw := b.cfg.Gateway
	mcfg := b.cfg.Method(method.Code)

	params := map[string]string{
		"PAYMENT.METHOD":      method.WireCode,
		"SECURITY.SENDER":     gw.Sender,
		"USER.LOGIN":          strings.TrimSpace(gw.Login),
		"USER.PWD":            strings.TrimSpace(gw.Password),
		"TRANSACTION.MODE":    gw.TransactionMode(),
		"TRANSACTION.CHANNEL": strings.TrimSpace(mcfg.Channel),
	}

	if mcfg.BookingMode != "" {
		params["PAYMENT.TYPE"] = mcfg.BookingMode
	}

	return params
}

// Frontend builds the redirect and notification parameters, including the
// secret hash that authenticates callbacks for this order.
func (b *RequestBuilder) Frontend(orderID, storeID, language string) map[string]string {
	gw := b.cfg.Gateway
	if language == "" {
		language = "en"
	}

	return map[string]string{
		"FRONTEND.LANGUAGE":     strings.ToUpper(language),
		"FRONTEND.RESPONSE_URL": gw.ResponseURL,
		"FRONTEND.SUCCESS_URL":  gw.SuccessURL,
		"FRONTEND.FAILURE_URL":  gw.FailureURL,
		"CRITERION.PUSH_URL":    gw.PushURL,
		"CRITERION.SECRET":      b.NotificationSecret(orderID),
		"CRITERION.LANGUAGE":    strings.ToLower(language),
		"CRITERION.STOREID":     storeID,
		"SHOP.TYPE":             gw.ShopType,
		"SHOPMODULE.VERSION":    gw.ModuleVersion,
	}
}

// User builds the customer identification parameters.
func (b *RequestBuilder) User(c Customer) map[string]string {
	params := map[string]string{
		"IDENTIFICATION.SHOPPERID": c.CustomerID,
		"CRITERION.GUEST":          fmt.Sprintf("%t", c.Guest),
		"NAME.GIVEN":               strings.TrimSpace(c.Firstname),
		"NAME.FAMILY":              strings.TrimSpace(c.Lastname),
		"ADDRESS.STREET":           strings.TrimSpace(c.Street),
		"ADDRESS.ZIP":              strings.TrimSpace(c.Zip),
		"ADDRESS.CITY":             strings.TrimSpace(c.City),
		"ADDRESS.COUNTRY":          strings.TrimSpace(c.Country),
		"CONTACT.EMAIL":            strings.TrimSpace(c.Email),
	}

	if c.Company != "" {
		params["NAME.COMPANY"] = strings.TrimSpace(c.Company)
	}
	if c.Phone != "" {
		params["CONTACT.PHONE"] = c.Phone
	}
	if c.IP != "" {
		params["CONTACT.IP"] = c.IP
	}

	return params
}

// Basket builds the presentation parameters for an order. A zero amount
// means the full grand total. Line items are only attached for methods
// with basket API support.
func (b *RequestBuilder) Basket(order *domain.Order, items []BasketItem, amount decimal.Decimal) map[string]string {
	if amount.IsZero() {
		amount = order.GrandTotal
	}

	params := map[string]string{
		"PRESENTATION.AMOUNT":          domain.FormatAmount(amount),
		"PRESENTATION.CURRENCY":        order.Currency,
		"IDENTIFICATION.TRANSACTIONID": order.OrderID,
	}

	for i, item := range items {
		prefix := fmt.Sprintf("BASKET.ITEM.%d.", i+1)
		params[prefix+"ARTICLE_NUMBER"] = item.SKU
		params[prefix+"NAME"] = item.Name
		params[prefix+"QUANTITY"] = fmt.Sprintf("%d", item.Quantity)
		params[prefix+"UNIT_AMOUNT"] = domain.FormatAmount(item.UnitAmount)
		params[prefix+"TAX_PERCENT"] = item.TaxPercent.String()
	}

	return params
}

// AdminRequest builds the parameter set for a back-office follow-up call
// (capture, refund, reversal): frontend disabled, a fixed transaction
// type and the reference to the prior transaction. The store id comes
// from the original transaction so multi-store orders resolve the
// configuration they were created with.
func (b *RequestBuilder) AdminRequest(
	order *domain.Order,
	method domain.PaymentMethod,
	txnType string,
	referenceID string,
	amount decimal.Decimal,
	storeID string,
	items []BasketItem,
) map[string]string {
	params := b.MainConfig(method)
	params["PAYMENT.TYPE"] = txnType

	frontend := b.Frontend(order.OrderID, storeID, "")
	frontend["FRONTEND.MODE"] = "DEFAULT"
	frontend["FRONTEND.ENABLED"] = "false"

	basket := b.Basket(order, items, amount)
	basket["IDENTIFICATION.REFERENCEID"] = referenceID

	return Merge(params, frontend, basket)
}

// NotificationSecret derives the callback authentication hash for an
// order identifier.
func (b *RequestBuilder) NotificationSecret(orderID string) string {
	mac := hmac.New(sha256.New, []byte(b.cfg.Gateway.Secret))
	mac.Write([]byte(orderID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySecret checks a notification's secret against the one derived
// from its order identifier.
func (b *RequestBuilder) VerifySecret(result domain.TransactionResult) bool {
	expected := b.NotificationSecret(result.OrderID)
	return hmac.Equal([]byte(expected), []byte(result.Secret))
}

// Merge flattens parameter sets into one request map. Later sets win on
// key collisions.
func Merge(sets ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, set := range sets {
		for k, v := range set {
			merged[k] = v
		}
	}
	return merged
}

// SortedKeys returns the request keys in sorted order.
func SortedKeys(params map[string]string) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
