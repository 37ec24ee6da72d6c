package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator"
	"github.com/shopspring/decimal"

	"github.com/mkreusch/magento-cd-edition/internal/application"
	"github.com/mkreusch/magento-cd-edition/internal/application/services"
	"github.com/mkreusch/magento-cd-edition/internal/domain"
	"github.com/mkreusch/magento-cd-edition/internal/interfaces/rest"
)

type checkoutRequest struct {
	OrderID      string          `json:"order_id" validate:"required"`
	Locale       string          `json:"locale,omitempty"`
	Registration bool            `json:"registration,omitempty"`
	Customer     customerPayload `json:"customer"`
	Shipping     *addressPayload `json:"shipping,omitempty"`
	Items        []itemPayload   `json:"items,omitempty"`
}

type customerPayload struct {
	CustomerID string `json:"customer_id"`
	Guest      bool   `json:"guest,omitempty"`
	Company    string `json:"company,omitempty"`
	Firstname  string `json:"firstname" validate:"required"`
	Lastname   string `json:"lastname" validate:"required"`
	Street     string `json:"street"`
	Zip        string `json:"zip"`
	City       string `json:"city"`
	Country    string `json:"country"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone,omitempty"`
	IP         string `json:"ip,omitempty"`
}

type addressPayload struct {
	Firstname string `json:"firstname,omitempty"`
	Lastname  string `json:"lastname,omitempty"`
	Street    string `json:"street"`
	Zip       string `json:"zip"`
	City      string `json:"city"`
	Country   string `json:"country"`
}

type itemPayload struct {
	SKU        string `json:"sku"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	UnitAmount string `json:"unit_amount"`
	TaxPercent string `json:"tax_percent,omitempty"`
}

type checkoutResponse struct {
	Success     bool   `json:"success"`
	RedirectURL string `json:"redirect_url"`
	Method      string `json:"method"`
}

var validate = validator.New()

func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rest.WriteError(w, application.NewInvalidInputError("unparseable request body", err), h.logger)
		return
	}
	if err := validate.Struct(req); err != nil {
		rest.WriteError(w, application.NewInvalidInputError("invalid checkout request", err), h.logger)
		return
	}

	cmd, err := toCheckoutCommand(req)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	result, err := h.checkout.Begin(r.Context(), cmd)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, checkoutResponse{
		Success:     true,
		RedirectURL: result.RedirectURL,
		Method:      result.Method,
	})
}

func toCheckoutCommand(req checkoutRequest) (services.CheckoutCommand, error) {
	cmd := services.CheckoutCommand{
		OrderID:      req.OrderID,
		Locale:       req.Locale,
		Registration: req.Registration,
		Customer: services.Customer{
			CustomerID: req.Customer.CustomerID,
			Guest:      req.Customer.Guest,
			Company:    req.Customer.Company,
			Firstname:  req.Customer.Firstname,
			Lastname:   req.Customer.Lastname,
			Street:     req.Customer.Street,
			Zip:        req.Customer.Zip,
			City:       req.Customer.City,
			Country:    req.Customer.Country,
			Email:      req.Customer.Email,
			Phone:      req.Customer.Phone,
			IP:         req.Customer.IP,
		},
	}

	if req.Shipping != nil {
		cmd.Shipping = &domain.ShippingAddress{
			Firstname: req.Shipping.Firstname,
			Lastname:  req.Shipping.Lastname,
			Street:    req.Shipping.Street,
			Postcode:  req.Shipping.Zip,
			City:      req.Shipping.City,
			Country:   req.Shipping.Country,
		}
	}

	for _, item := range req.Items {
		unit, err := decimal.NewFromString(item.UnitAmount)
		if err != nil {
			return services.CheckoutCommand{}, application.NewInvalidInputError("invalid item unit_amount", err)
		}
		tax := decimal.Zero
		if item.TaxPercent != "" {
			if tax, err = decimal.NewFromString(item.TaxPercent); err != nil {
				return services.CheckoutCommand{}, application.NewInvalidInputError("invalid item tax_percent", err)
			}
		}
		cmd.Items = append(cmd.Items, services.BasketItem{
			SKU:        item.SKU,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitAmount: unit,
			TaxPercent: tax,
		})
	}

	return cmd, nil
}
