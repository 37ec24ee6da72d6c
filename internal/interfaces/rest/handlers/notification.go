package handlers

import (
	"log/slog"
	"net/http"

	"github.com/mkreusch/magento-cd-edition/internal/application/services"
	"github.com/mkreusch/magento-cd-edition/internal/interfaces/rest"
)

// Response handles the synchronous gateway callback at the end of the
// hosted payment flow. The gateway expects the body to contain the URL
// it should forward the shopper to, so every path answers 200 with a
// redirect target; failures send the shopper to the failure page.
func (h *Handlers) Response(w http.ResponseWriter, r *http.Request) {
	params, err := rest.FormParams(r)
	if err != nil {
		h.redirect(w, h.cfg.Gateway.FailureURL)
		return
	}

	result, err := h.notification.Parse(params)
	if err != nil {
		h.logger.WarnContext(r.Context(), "rejected payment response",
			slog.String("error", err.Error()),
		)
		h.redirect(w, h.cfg.Gateway.FailureURL)
		return
	}

	outcome, err := h.notification.Process(r.Context(), result)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to process payment response",
			slog.String("order_id", result.OrderID),
			slog.String("error", err.Error()),
		)
		h.redirect(w, h.cfg.Gateway.FailureURL)
		return
	}

	if !result.IsAck() || outcome == services.OutcomeCanceled {
		h.redirect(w, h.cfg.Gateway.FailureURL)
		return
	}
	h.redirect(w, h.cfg.Gateway.SuccessURL)
}

func (h *Handlers) redirect(w http.ResponseWriter, target string) {
	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(target))
}

type pushResponse struct {
	Success bool   `json:"success"`
	Outcome string `json:"outcome"`
}

// Push handles the asynchronous notification channel. Errors answer
// with an error status so the gateway redelivers later.
func (h *Handlers) Push(w http.ResponseWriter, r *http.Request) {
	params, err := rest.FormParams(r)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	result, err := h.notification.Parse(params)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	outcome, err := h.notification.Process(r.Context(), result)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, pushResponse{
		Success: true,
		Outcome: string(outcome),
	})
}
