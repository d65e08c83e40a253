// Package checkout holds the checkout session state machine. Transitions are
// pure; the caller performs the payment I/O and reports outcomes back.
package checkout

import (
	"fmt"
	"strings"
	"time"

	"github.com/Noobiez16/SubliGraphic/internal/domain"
	"github.com/Noobiez16/SubliGraphic/internal/payment"
	apperrors "github.com/Noobiez16/SubliGraphic/pkg/errors"
)

// Status is the state of a checkout session.
type Status string

const (
	StatusReviewing       Status = "reviewing"
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusProcessing      Status = "processing"
	StatusSucceeded       Status = "succeeded"
	StatusFailed          Status = "failed"
)

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded
}

// Session is a snapshot of the cart being paid for and the progress of the
// payment. The snapshot is taken once and never changes afterwards.
type Session struct {
	ID              string             `json:"id"`
	Status          Status             `json:"status"`
	Items           []domain.CartEntry `json:"items"`
	Total           int64              `json:"total"`
	Currency        string             `json:"currency"`
	Method          payment.Method     `json:"method,omitempty"`
	Kind            payment.Kind       `json:"kind,omitempty"`
	Attempts        int                `json:"attempts"`
	TransactionID   string             `json:"transaction_id,omitempty"`
	ReferenceNumber string             `json:"reference_number,omitempty"`
	// Verified is false when the shopper confirmed an offline payment that
	// nobody has checked yet.
	Verified      bool       `json:"verified"`
	FailureReason string     `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func (s *Session) clone() *Session {
	out := *s
	out.Items = append([]domain.CartEntry(nil), s.Items...)
	if s.CompletedAt != nil {
		at := *s.CompletedAt
		out.CompletedAt = &at
	}
	return &out
}

// Attempt is a single charge attempt handed to a provider.
type Attempt struct {
	ID            string
	Method        payment.Method
	Kind          payment.Kind
	Amount        int64
	Currency      string
	TransactionID string
}

// Machine drives at most one session at a time.
type Machine struct {
	ids     domain.IdentityGenerator
	now     func() time.Time
	session *Session
	pending *Attempt
}

// NewMachine creates an idle machine. A nil now defaults to time.Now.
func NewMachine(ids domain.IdentityGenerator, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{ids: ids, now: now}
}

func errNoSession() error {
	return apperrors.NotFound("checkout session", "current")
}

// Session returns a copy of the current session, or nil.
func (m *Machine) Session() *Session {
	if m.session == nil {
		return nil
	}
	return m.session.clone()
}

// Active reports whether a session exists that has not succeeded yet.
func (m *Machine) Active() bool {
	return m.session != nil && m.session.Status != StatusSucceeded
}

// Pending returns the attempt whose outcome is still outstanding.
func (m *Machine) Pending() (Attempt, bool) {
	if m.pending == nil {
		return Attempt{}, false
	}
	return *m.pending, true
}

func (m *Machine) touch() {
	m.session.UpdatedAt = m.now().UTC()
}

// Begin opens a session over items. A finished session is replaced.
func (m *Machine) Begin(items []domain.CartEntry, total int64, currency string) (*Session, error) {
	if m.Active() {
		return nil, apperrors.Conflict("a checkout session is already in progress")
	}
	if len(items) == 0 {
		return nil, apperrors.InvalidCheckoutEntry("cannot check out an empty cart")
	}

	now := m.now().UTC()
	m.session = &Session{
		ID:        m.ids.NewIdentity(),
		Status:    StatusReviewing,
		Items:     append([]domain.CartEntry(nil), items...),
		Total:     total,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.pending = nil
	return m.session.clone(), nil
}

// SelectMethod moves to awaiting_payment with method. For provider methods
// it opens an attempt the caller must settle through Authorized/Rejected and,
// for capture methods, Captured/CaptureFailed. Manual methods get a reference
// number and wait for ConfirmManual instead.
func (m *Machine) SelectMethod(method payment.Method, kind payment.Kind) (Attempt, error) {
	if m.session == nil {
		return Attempt{}, errNoSession()
	}
	if m.pending != nil {
		return Attempt{}, apperrors.Conflict("a payment attempt is already in flight")
	}
	switch m.session.Status {
	case StatusReviewing, StatusAwaitingPayment, StatusFailed:
	default:
		return Attempt{}, apperrors.Conflict(fmt.Sprintf("cannot select a payment method while %s", m.session.Status))
	}

	m.session.Status = StatusAwaitingPayment
	m.session.Method = method
	m.session.Kind = kind
	m.session.FailureReason = ""
	m.touch()

	attempt := Attempt{
		ID:       m.ids.NewIdentity(),
		Method:   method,
		Kind:     kind,
		Amount:   m.session.Total,
		Currency: m.session.Currency,
	}
	if kind == payment.KindManual {
		if m.session.ReferenceNumber == "" {
			m.session.ReferenceNumber = referenceNumber(m.session.ID)
		}
		return attempt, nil
	}

	m.session.Attempts++
	m.pending = &attempt
	return attempt, nil
}

// referenceNumber derives a short code the shopper quotes with an offline
// transfer.
func referenceNumber(sessionID string) string {
	code := strings.ToUpper(strings.ReplaceAll(sessionID, "-", ""))
	if len(code) > 10 {
		code = code[len(code)-10:]
	}
	return "SG-" + code
}

func (m *Machine) current(attemptID string) bool {
	return m.session != nil && m.pending != nil && m.pending.ID == attemptID
}

// Authorized records provider approval. It returns false for an attempt
// that is no longer current.
func (m *Machine) Authorized(attemptID, transactionID string) bool {
	if !m.current(attemptID) || m.session.Status != StatusAwaitingPayment {
		return false
	}
	m.pending.TransactionID = transactionID
	m.session.TransactionID = transactionID
	m.session.Status = StatusProcessing
	m.touch()
	return true
}

// Rejected records a decline or a shopper cancellation at the provider.
// The session stays in awaiting_payment.
func (m *Machine) Rejected(attemptID, reason string) bool {
	if !m.current(attemptID) || m.session.Status != StatusAwaitingPayment {
		return false
	}
	m.pending = nil
	m.session.FailureReason = reason
	m.touch()
	return true
}

// Captured settles the attempt and completes the session.
func (m *Machine) Captured(attemptID string) bool {
	if !m.current(attemptID) || m.session.Status != StatusProcessing {
		return false
	}
	m.pending = nil
	m.complete(true)
	return true
}

// CaptureFailed moves the session to failed.
func (m *Machine) CaptureFailed(attemptID, reason string) bool {
	if !m.current(attemptID) || m.session.Status != StatusProcessing {
		return false
	}
	m.pending = nil
	m.session.Status = StatusFailed
	m.session.FailureReason = reason
	m.touch()
	return true
}

// Fail abandons the pending attempt after an unknown provider outcome, such
// as a transport error. Authorization failures stay retryable from
// awaiting_payment; failures after approval move the session to failed.
func (m *Machine) Fail(attemptID, reason string) bool {
	if !m.current(attemptID) {
		return false
	}
	if m.session.Status == StatusProcessing {
		return m.CaptureFailed(attemptID, reason)
	}
	return m.Rejected(attemptID, reason)
}

// ConfirmManual completes a manual payment on the shopper's word. The
// session succeeds unverified.
func (m *Machine) ConfirmManual() error {
	if m.session == nil {
		return errNoSession()
	}
	if m.session.Status != StatusAwaitingPayment || m.session.Kind != payment.KindManual {
		return apperrors.Conflict("no offline payment is awaiting confirmation")
	}
	m.session.Status = StatusProcessing
	m.complete(false)
	return nil
}

func (m *Machine) complete(verified bool) {
	now := m.now().UTC()
	m.session.Status = StatusSucceeded
	m.session.Verified = verified
	m.session.FailureReason = ""
	m.session.CompletedAt = &now
	m.session.UpdatedAt = now
}

// Retry returns a failed session to awaiting_payment.
func (m *Machine) Retry() error {
	if m.session == nil {
		return errNoSession()
	}
	if m.session.Status != StatusFailed {
		return apperrors.Conflict(fmt.Sprintf("cannot retry a checkout that is %s", m.session.Status))
	}
	m.session.Status = StatusAwaitingPayment
	m.touch()
	return nil
}

// Exit destroys the session. Leaving while a payment is processing is
// refused. Outcomes for an attempt abandoned here are ignored later.
func (m *Machine) Exit() error {
	if m.session == nil {
		return nil
	}
	if m.session.Status == StatusProcessing {
		return apperrors.Conflict("cannot leave checkout while a payment is processing")
	}
	m.session = nil
	m.pending = nil
	return nil
}
