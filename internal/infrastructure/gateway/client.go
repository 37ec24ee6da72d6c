// Package gateway implements the HTTP transport to the hosted payment
// gateway. Requests go out as form-encoded dotted-key parameters, the
// response body comes back form-encoded with underscore keys.
package gateway

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/go-resty/resty/v2"

	"github.com/mkreusch/magento-cd-edition/internal/application"
	"github.com/mkreusch/magento-cd-edition/internal/config"
)

type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

func NewClient(cfg config.GatewayConfig, logger *slog.Logger) application.GatewayClient {
	httpClient := resty.New().
		SetTimeout(cfg.ConnTimeout).
		SetHeader("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")

	return &Client{
		http:   httpClient,
		logger: logger,
	}
}

func (c *Client) Send(ctx context.Context, endpoint string, params map[string]string) (map[string]string, error) {
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}

	c.logger.DebugContext(ctx, "sending gateway request",
		slog.String("url", endpoint),
		slog.String("payment_type", params["PAYMENT.TYPE"]),
		slog.String("order_id", params["IDENTIFICATION.TRANSACTIONID"]),
	)

	// Encode sorts the keys, which keeps request logs and signatures
	// stable across calls.
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(form.Encode()).
		Post(endpoint)
	if err != nil {
		return nil, &GatewayError{Message: "gateway request failed", Err: err}
	}
	if resp.StatusCode() >= 400 {
		return nil, &GatewayError{
			StatusCode: resp.StatusCode(),
			Message:    "gateway returned an error status",
		}
	}

	values, err := url.ParseQuery(string(resp.Body()))
	if err != nil {
		return nil, &GatewayError{Message: "unparseable gateway response", Err: err}
	}

	result := make(map[string]string, len(values))
	for key := range values {
		result[key] = values.Get(key)
	}

	c.logger.DebugContext(ctx, "received gateway response",
		slog.String("result", result["PROCESSING_RESULT"]),
		slog.String("status_code", result["PROCESSING_STATUS_CODE"]),
		slog.String("unique_id", result["IDENTIFICATION_UNIQUEID"]),
	)

	return result, nil
}
