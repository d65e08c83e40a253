// Package payment holds the payment collaborators used by checkout. A
// provider is an opaque service that approves or rejects an amount; capture
// style methods need a second call to settle the charge.
package payment

import (
	"context"
	"fmt"
	"sort"

	apperrors "github.com/Noobiez16/SubliGraphic/pkg/errors"
)

// Method is a payment option offered at checkout.
type Method string

const (
	MethodPayPal        Method = "paypal"
	MethodATHMovil      Method = "ath_movil"
	MethodApplePay      Method = "apple_pay"
	MethodGooglePay     Method = "google_pay"
	MethodBankReference Method = "bank_reference"
)

// Kind is how a method settles.
type Kind string

const (
	// KindSingleStep settles on approval.
	KindSingleStep Kind = "single_step"
	// KindCapture needs an explicit capture after approval.
	KindCapture Kind = "capture"
	// KindManual is paid offline against a reference number and confirmed by
	// the shopper. Nothing verifies that the money arrived.
	KindManual Kind = "manual"
)

// KindOf returns the settlement kind of a known method.
func KindOf(m Method) (Kind, bool) {
	switch m {
	case MethodPayPal:
		return KindCapture, true
	case MethodATHMovil, MethodApplePay, MethodGooglePay:
		return KindSingleStep, true
	case MethodBankReference:
		return KindManual, true
	default:
		return "", false
	}
}

// AuthorizeInput asks a provider to approve an amount. AttemptID doubles as
// the idempotency key.
type AuthorizeInput struct {
	AttemptID string
	Amount    int64
	Currency  string
	Method    Method
}

// AuthorizeResult is the provider's verdict.
type AuthorizeResult struct {
	Approved      bool
	TransactionID string
	Reason        string
}

// CaptureInput settles a previously approved transaction.
type CaptureInput struct {
	AttemptID     string
	TransactionID string
	Amount        int64
	Currency      string
}

// Provider approves or rejects payments. A returned error means the outcome
// is unknown (transport failure); a rejection is a result, not an error.
type Provider interface {
	Name() string
	Authorize(ctx context.Context, in *AuthorizeInput) (*AuthorizeResult, error)
}

// Capturer is implemented by providers that support capture-style methods.
type Capturer interface {
	Capture(ctx context.Context, in *CaptureInput) error
}

// Route is a resolved method.
type Route struct {
	Method   Method
	Kind     Kind
	Provider Provider
	Capturer Capturer
}

// Registry maps methods to providers.
type Registry struct {
	routes map[Method]Route
}

// NewRegistry creates a registry with the manual method pre-registered.
func NewRegistry() *Registry {
	r := &Registry{routes: make(map[Method]Route)}
	r.routes[MethodBankReference] = Route{Method: MethodBankReference, Kind: KindManual}
	return r
}

// Register routes method to p. Capture methods require p to implement Capturer.
func (r *Registry) Register(method Method, p Provider) error {
	kind, ok := KindOf(method)
	if !ok {
		return fmt.Errorf("unknown payment method %q", method)
	}
	route := Route{Method: method, Kind: kind, Provider: p}
	switch kind {
	case KindManual:
		return fmt.Errorf("payment method %q is settled offline", method)
	case KindCapture:
		c, ok := p.(Capturer)
		if !ok {
			return fmt.Errorf("provider %s cannot capture %q payments", p.Name(), method)
		}
		route.Capturer = c
	}
	r.routes[method] = route
	return nil
}

// Resolve returns the route for method.
func (r *Registry) Resolve(method Method) (Route, error) {
	route, ok := r.routes[method]
	if !ok {
		return Route{}, apperrors.InvalidInput(fmt.Sprintf("payment method %q is not available", method))
	}
	return route, nil
}

// Methods lists the available methods in name order.
func (r *Registry) Methods() []Method {
	out := make([]Method, 0, len(r.routes))
	for m := range r.routes {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
