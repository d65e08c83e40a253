package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Noobiez16/SubliGraphic/internal/checkout"
	"github.com/Noobiez16/SubliGraphic/internal/event"
	"github.com/Noobiez16/SubliGraphic/internal/payment"
	apperrors "github.com/Noobiez16/SubliGraphic/pkg/errors"
	"github.com/Noobiez16/SubliGraphic/pkg/logger"
)

// CheckoutView is the current checkout session plus any warning raised
// while finishing it.
type CheckoutView struct {
	Session *checkout.Session `json:"session"`
	Warning string            `json:"warning,omitempty"`
}

// BeginCheckout snapshots the cart into a new session.
func (s *StorefrontService) BeginCheckout(ctx context.Context, owner string) (*CheckoutView, error) {
	sh, err := s.acquire(ctx, owner)
	if err != nil {
		return nil, err
	}
	defer sh.mu.Unlock()

	session, err := sh.machine.Begin(sh.ledger.Entries(), sh.ledger.Total(), s.cfg.Currency)
	if err != nil {
		return nil, err
	}
	checkoutTransitions.WithLabelValues(string(session.Status)).Inc()

	if err := s.events.PublishCheckoutInitiated(ctx, owner, session); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish checkout.initiated event",
			slog.String("checkout_id", session.ID),
			slog.String("error", err.Error()),
		)
	}
	s.logger.InfoContext(ctx, "checkout started",
		slog.String("user_id", owner),
		slog.String("checkout_id", session.ID),
		slog.Int64("total", session.Total),
	)
	return &CheckoutView{Session: session}, nil
}

// GetCheckout returns the current session.
func (s *StorefrontService) GetCheckout(ctx context.Context, owner string) (*CheckoutView, error) {
	sh, err := s.acquire(ctx, owner)
	if err != nil {
		return nil, err
	}
	defer sh.mu.Unlock()

	session := sh.machine.Session()
	if session == nil {
		return nil, apperrors.NotFound("checkout session", "current")
	}
	return &CheckoutView{Session: session}, nil
}

// Pay selects method and, for provider-backed methods, runs the charge.
// The shopper's lock is released while the provider is called; the pending
// attempt keeps a second submission out meanwhile. Manual methods return in
// awaiting_payment with a reference number to pay against.
func (s *StorefrontService) Pay(ctx context.Context, owner string, method payment.Method) (*CheckoutView, error) {
	route, err := s.payments.Resolve(method)
	if err != nil {
		return nil, err
	}

	sh, err := s.acquire(ctx, owner)
	if err != nil {
		return nil, err
	}
	attempt, err := sh.machine.SelectMethod(method, route.Kind)
	if err != nil {
		sh.mu.Unlock()
		return nil, err
	}
	session := sh.machine.Session()
	checkoutTransitions.WithLabelValues(string(session.Status)).Inc()
	if route.Kind == payment.KindManual {
		sh.mu.Unlock()
		s.logger.InfoContext(ctx, "awaiting offline payment",
			slog.String("user_id", owner),
			slog.String("checkout_id", session.ID),
			slog.String("reference_number", session.ReferenceNumber),
		)
		return &CheckoutView{Session: session}, nil
	}
	sh.mu.Unlock()

	// The outcome must be recorded even if the shopper's request goes away.
	ctx = logger.WithCheckoutID(context.WithoutCancel(ctx), session.ID)

	result, err := s.authorize(ctx, route, &payment.AuthorizeInput{
		AttemptID: attempt.ID,
		Amount:    attempt.Amount,
		Currency:  attempt.Currency,
		Method:    method,
	})

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if err != nil {
		paymentAttempts.WithLabelValues(string(method), "error").Inc()
		s.logger.ErrorContext(ctx, "payment authorization failed",
			slog.String("user_id", owner),
			slog.String("attempt_id", attempt.ID),
			slog.String("error", err.Error()),
		)
		sh.machine.Fail(attempt.ID, "payment provider did not respond")
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperrors.ServiceUnavailable("payment provider did not respond, please try again")
	}

	if !result.Approved {
		paymentAttempts.WithLabelValues(string(method), "rejected").Inc()
		if !sh.machine.Rejected(attempt.ID, result.Reason) {
			return nil, s.stale(ctx, owner, attempt, "rejection")
		}
		checkoutTransitions.WithLabelValues(string(checkout.StatusAwaitingPayment)).Inc()
		s.logger.InfoContext(ctx, "payment rejected",
			slog.String("user_id", owner),
			slog.String("attempt_id", attempt.ID),
			slog.String("reason", result.Reason),
		)
		return nil, apperrors.PaymentRejected(result.Reason)
	}

	if !sh.machine.Authorized(attempt.ID, result.TransactionID) {
		paymentAttempts.WithLabelValues(string(method), "abandoned").Inc()
		return nil, s.stale(ctx, owner, attempt, "approval")
	}
	checkoutTransitions.WithLabelValues(string(checkout.StatusProcessing)).Inc()

	if route.Kind == payment.KindCapture {
		// Exit is refused while processing, so the attempt stays current
		// across the unlocked capture.
		sh.mu.Unlock()
		err = s.capture(ctx, route, &payment.CaptureInput{
			AttemptID:     attempt.ID,
			TransactionID: result.TransactionID,
			Amount:        attempt.Amount,
			Currency:      attempt.Currency,
		})
		sh.mu.Lock()

		if err != nil {
			paymentAttempts.WithLabelValues(string(method), "capture_failed").Inc()
			reason := err.Error()
			sh.machine.CaptureFailed(attempt.ID, reason)
			checkoutTransitions.WithLabelValues(string(checkout.StatusFailed)).Inc()
			failed := sh.machine.Session()
			if perr := s.events.PublishCheckoutFailed(ctx, owner, failed); perr != nil {
				s.logger.ErrorContext(ctx, "failed to publish checkout.failed event",
					slog.String("checkout_id", failed.ID),
					slog.String("error", perr.Error()),
				)
			}
			s.logger.WarnContext(ctx, "payment capture failed",
				slog.String("user_id", owner),
				slog.String("attempt_id", attempt.ID),
				slog.String("error", reason),
			)
			return nil, apperrors.PaymentCaptureFailed(reason)
		}
	}

	sh.machine.Captured(attempt.ID)
	paymentAttempts.WithLabelValues(string(method), "succeeded").Inc()
	return s.complete(ctx, sh), nil
}

func (s *StorefrontService) authorize(ctx context.Context, route payment.Route, in *payment.AuthorizeInput) (*payment.AuthorizeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.PaymentTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		paymentDuration.WithLabelValues(string(in.Method), "authorize").Observe(time.Since(start).Seconds())
	}()
	res, err := route.Provider.Authorize(ctx, in)
	if err == nil && res == nil {
		return nil, fmt.Errorf("payment provider %s returned no result", route.Provider.Name())
	}
	return res, err
}

func (s *StorefrontService) capture(ctx context.Context, route payment.Route, in *payment.CaptureInput) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.PaymentTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		paymentDuration.WithLabelValues(string(route.Method), "capture").Observe(time.Since(start).Seconds())
	}()
	return route.Capturer.Capture(ctx, in)
}

// stale handles an outcome for an attempt whose session was closed while
// the provider was deciding.
func (s *StorefrontService) stale(ctx context.Context, owner string, attempt checkout.Attempt, outcome string) error {
	s.logger.WarnContext(ctx, "ignoring payment outcome for abandoned checkout",
		slog.String("user_id", owner),
		slog.String("attempt_id", attempt.ID),
		slog.String("outcome", outcome),
	)
	return apperrors.Conflict("checkout was closed before the payment settled")
}

// ConfirmManual completes an offline payment on the shopper's word. The
// resulting session is marked unverified.
func (s *StorefrontService) ConfirmManual(ctx context.Context, owner string) (*CheckoutView, error) {
	sh, err := s.acquire(ctx, owner)
	if err != nil {
		return nil, err
	}
	defer sh.mu.Unlock()

	if err := sh.machine.ConfirmManual(); err != nil {
		return nil, err
	}
	paymentAttempts.WithLabelValues(string(payment.MethodBankReference), "confirmed_unverified").Inc()
	return s.complete(ctx, sh), nil
}

// complete runs once per session, on the transition into succeeded: the cart
// is cleared and saved, and the outcome is published.
func (s *StorefrontService) complete(ctx context.Context, sh *shopper) *CheckoutView {
	session := sh.machine.Session()
	checkoutTransitions.WithLabelValues(string(session.Status)).Inc()

	sh.ledger.Clear()
	cartMutations.WithLabelValues("clear").Inc()
	warning := s.persist(ctx, sh)

	if err := s.events.PublishCartCleared(ctx, sh.owner, event.ClearedByCheckout); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("user_id", sh.owner),
			slog.String("error", err.Error()),
		)
	}
	if err := s.events.PublishCheckoutSucceeded(ctx, sh.owner, session); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish checkout.succeeded event",
			slog.String("checkout_id", session.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "checkout succeeded",
		slog.String("user_id", sh.owner),
		slog.String("checkout_id", session.ID),
		slog.String("method", string(session.Method)),
		slog.Bool("verified", session.Verified),
	)
	return &CheckoutView{Session: session, Warning: warning}
}

// RetryCheckout returns a failed session to awaiting_payment.
func (s *StorefrontService) RetryCheckout(ctx context.Context, owner string) (*CheckoutView, error) {
	sh, err := s.acquire(ctx, owner)
	if err != nil {
		return nil, err
	}
	defer sh.mu.Unlock()

	if err := sh.machine.Retry(); err != nil {
		return nil, err
	}
	checkoutTransitions.WithLabelValues(string(checkout.StatusAwaitingPayment)).Inc()
	return &CheckoutView{Session: sh.machine.Session()}, nil
}

// ExitCheckout closes the session and returns to the store with the cart
// unchanged. Refused while a payment is processing.
func (s *StorefrontService) ExitCheckout(ctx context.Context, owner string) error {
	sh, err := s.acquire(ctx, owner)
	if err != nil {
		return err
	}
	defer sh.mu.Unlock()

	session := sh.machine.Session()
	if err := sh.machine.Exit(); err != nil {
		return err
	}
	if session != nil {
		s.logger.InfoContext(ctx, "checkout closed",
			slog.String("user_id", owner),
			slog.String("checkout_id", session.ID),
			slog.String("status", string(session.Status)),
		)
	}
	return nil
}
