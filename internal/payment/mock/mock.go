// Package mock is a configurable in-process payment provider for development
// and tests.
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Noobiez16/SubliGraphic/internal/payment"
)

// Outcome decides how the provider answers.
type Outcome struct {
	Decline       bool
	DeclineReason string
	// CaptureError makes every capture fail with this message.
	CaptureError string
	Delay        time.Duration
}

// Provider approves everything unless told otherwise.
type Provider struct {
	mu       sync.Mutex
	outcome  Outcome
	captured map[string]bool
}

// NewProvider creates a mock provider with the given outcome.
func NewProvider(o Outcome) *Provider {
	return &Provider{outcome: o, captured: make(map[string]bool)}
}

// SetOutcome changes how subsequent calls are answered.
func (p *Provider) SetOutcome(o Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcome = o
}

func (p *Provider) current() Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outcome
}

func (p *Provider) Name() string { return "mock" }

func (p *Provider) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Authorize answers according to the configured outcome.
func (p *Provider) Authorize(ctx context.Context, in *payment.AuthorizeInput) (*payment.AuthorizeResult, error) {
	o := p.current()
	if err := p.wait(ctx, o.Delay); err != nil {
		return nil, err
	}
	if o.Decline {
		reason := o.DeclineReason
		if reason == "" {
			reason = "declined by issuer"
		}
		return &payment.AuthorizeResult{Approved: false, Reason: reason}, nil
	}
	return &payment.AuthorizeResult{
		Approved:      true,
		TransactionID: "mock_txn_" + uuid.NewString(),
	}, nil
}

// Capture settles an approved transaction once.
func (p *Provider) Capture(ctx context.Context, in *payment.CaptureInput) error {
	o := p.current()
	if err := p.wait(ctx, o.Delay); err != nil {
		return err
	}
	if o.CaptureError != "" {
		return errors.New(o.CaptureError)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.captured[in.TransactionID] {
		return errors.New("transaction already captured")
	}
	p.captured[in.TransactionID] = true
	return nil
}

// Captured reports whether a transaction has been captured.
func (p *Provider) Captured(transactionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.captured[transactionID]
}
