// Package gateway is a payment provider backed by a remote HTTP payment
// gateway. Calls go through a retrying client guarded by a circuit breaker.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Noobiez16/SubliGraphic/internal/payment"
	apperrors "github.com/Noobiez16/SubliGraphic/pkg/errors"
	"github.com/Noobiez16/SubliGraphic/pkg/httpclient"
)

const serviceName = "payment-gateway"

// Doer executes HTTP requests. *httpclient.CircuitBreakerClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Config describes the remote gateway.
type Config struct {
	BaseURL string
	APIKey  string
	HTTP    httpclient.Config
	Breaker httpclient.CircuitBreakerConfig
}

// Provider implements payment.Provider and payment.Capturer.
type Provider struct {
	baseURL string
	apiKey  string
	client  Doer
}

// New builds a provider with the retry and breaker stack. Zero settings in
// cfg.HTTP and cfg.Breaker fall back to the httpclient defaults.
func New(cfg Config, logger *slog.Logger) *Provider {
	httpCfg := cfg.HTTP
	if httpCfg.Timeout <= 0 {
		httpCfg = httpclient.DefaultConfig()
	}
	client := httpclient.NewCircuitBreakerClient(httpclient.New(httpCfg), breakerConfig(cfg.Breaker), logger)
	return NewWithDoer(cfg.BaseURL, cfg.APIKey, client)
}

func breakerConfig(in httpclient.CircuitBreakerConfig) httpclient.CircuitBreakerConfig {
	out := httpclient.DefaultCircuitBreakerConfig(serviceName)
	if in.Name != "" {
		out.Name = in.Name
	}
	if in.MaxRequests > 0 {
		out.MaxRequests = in.MaxRequests
	}
	if in.Interval > 0 {
		out.Interval = in.Interval
	}
	if in.Timeout > 0 {
		out.Timeout = in.Timeout
	}
	if in.FailureRatio > 0 {
		out.FailureRatio = in.FailureRatio
	}
	if in.MinRequests > 0 {
		out.MinRequests = in.MinRequests
	}
	return out
}

// NewWithDoer builds a provider over an arbitrary transport.
func NewWithDoer(baseURL, apiKey string, client Doer) *Provider {
	return &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

func (p *Provider) Name() string { return "gateway" }

type authorizeRequest struct {
	AttemptID string `json:"attempt_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Method    string `json:"method"`
}

type authorizeResponse struct {
	Approved      bool   `json:"approved"`
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}

type captureRequest struct {
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
}

// Authorize asks the gateway to approve the attempt. A 402 answer is a
// decline, not an error.
func (p *Provider) Authorize(ctx context.Context, in *payment.AuthorizeInput) (*payment.AuthorizeResult, error) {
	body := authorizeRequest{
		AttemptID: in.AttemptID,
		Amount:    in.Amount,
		Currency:  in.Currency,
		Method:    string(in.Method),
	}

	resp, err := p.post(ctx, "/v1/authorizations", in.AttemptID, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		err := httpclient.ParseResponseError(resp, serviceName)
		if errors.Is(err, apperrors.ErrPaymentRejected) {
			var appErr *apperrors.AppError
			reason := err.Error()
			if errors.As(err, &appErr) {
				reason = appErr.Message
			}
			return &payment.AuthorizeResult{Approved: false, Reason: reason}, nil
		}
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var out authorizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding authorization response: %w", err)
	}
	if out.Approved && out.TransactionID == "" {
		return nil, fmt.Errorf("%s approved attempt %s without a transaction id", serviceName, in.AttemptID)
	}
	return &payment.AuthorizeResult{
		Approved:      out.Approved,
		TransactionID: out.TransactionID,
		Reason:        out.Reason,
	}, nil
}

// Capture settles an approved transaction.
func (p *Provider) Capture(ctx context.Context, in *payment.CaptureInput) error {
	body := captureRequest{
		TransactionID: in.TransactionID,
		Amount:        in.Amount,
		Currency:      in.Currency,
	}
	resp, err := p.post(ctx, "/v1/captures", in.AttemptID+":capture", body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return httpclient.ParseResponseError(resp, serviceName)
	}
	_ = resp.Body.Close()
	return nil
}

func (p *Provider) post(ctx context.Context, path, idempotencyKey string, payload any) (*http.Response, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		if httpclient.IsBreakerRejection(err) {
			return nil, apperrors.ServiceUnavailable(serviceName + " is unavailable, try again shortly")
		}
		return nil, fmt.Errorf("calling %s%s: %w", serviceName, path, err)
	}
	return resp, nil
}
