package checkout

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Noobiez16/SubliGraphic/internal/domain"
	"github.com/Noobiez16/SubliGraphic/internal/payment"
	apperrors "github.com/Noobiez16/SubliGraphic/pkg/errors"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestMachine() *Machine {
	n := 0
	ids := domain.IdentityFunc(func() string {
		n++
		return fmt.Sprintf("00000000-0000-7000-8000-%012d", n)
	})
	return NewMachine(ids, func() time.Time { return fixedNow })
}

func items() []domain.CartEntry {
	return []domain.CartEntry{
		{Identity: "1", ProductID: 1, Name: "Classic Ceramic Mug", Price: 1499, Quantity: 2},
	}
}

func begin(t *testing.T, m *Machine) *Session {
	t.Helper()
	s, err := m.Begin(items(), 2998, "USD")
	require.NoError(t, err)
	return s
}

func TestBegin(t *testing.T) {
	m := newTestMachine()
	assert.Nil(t, m.Session())
	assert.False(t, m.Active())

	s := begin(t, m)
	assert.Equal(t, StatusReviewing, s.Status)
	assert.Equal(t, int64(2998), s.Total)
	assert.Equal(t, fixedNow, s.CreatedAt)
	assert.True(t, m.Active())

	_, err := m.Begin(items(), 2998, "USD")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestBegin_EmptySnapshot(t *testing.T) {
	m := newTestMachine()
	_, err := m.Begin(nil, 0, "USD")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCheckoutEntry)
	assert.Nil(t, m.Session())
}

func TestSnapshotIsIsolated(t *testing.T) {
	m := newTestMachine()
	src := items()
	_, err := m.Begin(src, 2998, "USD")
	require.NoError(t, err)

	src[0].Quantity = 99
	got := m.Session()
	got.Items[0].Quantity = 42

	assert.Equal(t, 2, m.Session().Items[0].Quantity)
}

func TestSingleStepPayment(t *testing.T) {
	m := newTestMachine()
	begin(t, m)

	a, err := m.SelectMethod(payment.MethodApplePay, payment.KindSingleStep)
	require.NoError(t, err)
	assert.Equal(t, int64(2998), a.Amount)
	assert.Equal(t, StatusAwaitingPayment, m.Session().Status)

	require.True(t, m.Authorized(a.ID, "txn_1"))
	assert.Equal(t, StatusProcessing, m.Session().Status)
	require.True(t, m.Captured(a.ID))

	s := m.Session()
	assert.Equal(t, StatusSucceeded, s.Status)
	assert.True(t, s.Verified)
	assert.Equal(t, "txn_1", s.TransactionID)
	assert.Equal(t, 1, s.Attempts)
	require.NotNil(t, s.CompletedAt)
	assert.True(t, s.Status.IsTerminal())
	assert.False(t, m.Active())

	_, pending := m.Pending()
	assert.False(t, pending)
}

func TestSecondAttemptWhileInFlight(t *testing.T) {
	m := newTestMachine()
	begin(t, m)

	_, err := m.SelectMethod(payment.MethodPayPal, payment.KindCapture)
	require.NoError(t, err)

	_, err = m.SelectMethod(payment.MethodPayPal, payment.KindCapture)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Equal(t, 1, m.Session().Attempts)
}

func TestRejectionStaysAwaitingPayment(t *testing.T) {
	m := newTestMachine()
	begin(t, m)

	a, err := m.SelectMethod(payment.MethodATHMovil, payment.KindSingleStep)
	require.NoError(t, err)
	require.True(t, m.Rejected(a.ID, "cancelled by shopper"))

	s := m.Session()
	assert.Equal(t, StatusAwaitingPayment, s.Status)
	assert.Equal(t, "cancelled by shopper", s.FailureReason)

	b, err := m.SelectMethod(payment.MethodGooglePay, payment.KindSingleStep)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Empty(t, m.Session().FailureReason)
	assert.Equal(t, 2, m.Session().Attempts)
}

func TestCaptureFailureAndRetry(t *testing.T) {
	m := newTestMachine()
	begin(t, m)

	a, _ := m.SelectMethod(payment.MethodPayPal, payment.KindCapture)
	require.True(t, m.Authorized(a.ID, "txn_1"))
	require.True(t, m.CaptureFailed(a.ID, "capture declined"))

	s := m.Session()
	assert.Equal(t, StatusFailed, s.Status)
	assert.Equal(t, "capture declined", s.FailureReason)

	require.NoError(t, m.Retry())
	assert.Equal(t, StatusAwaitingPayment, m.Session().Status)

	assert.ErrorIs(t, m.Retry(), apperrors.ErrConflict)
}

func TestSelectMethodFromFailed(t *testing.T) {
	m := newTestMachine()
	begin(t, m)
	a, _ := m.SelectMethod(payment.MethodPayPal, payment.KindCapture)
	m.Authorized(a.ID, "txn")
	m.CaptureFailed(a.ID, "boom")

	_, err := m.SelectMethod(payment.MethodApplePay, payment.KindSingleStep)
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingPayment, m.Session().Status)
}

func TestFail(t *testing.T) {
	m := newTestMachine()
	begin(t, m)

	a, _ := m.SelectMethod(payment.MethodPayPal, payment.KindCapture)
	require.True(t, m.Fail(a.ID, "timeout"))
	assert.Equal(t, StatusAwaitingPayment, m.Session().Status)

	b, _ := m.SelectMethod(payment.MethodPayPal, payment.KindCapture)
	m.Authorized(b.ID, "txn")
	require.True(t, m.Fail(b.ID, "timeout"))
	assert.Equal(t, StatusFailed, m.Session().Status)
}

func TestStaleOutcomesAreIgnored(t *testing.T) {
	m := newTestMachine()
	begin(t, m)

	a, _ := m.SelectMethod(payment.MethodApplePay, payment.KindSingleStep)
	require.NoError(t, m.Exit())
	assert.Nil(t, m.Session())

	assert.False(t, m.Authorized(a.ID, "txn"))
	assert.False(t, m.Captured(a.ID))

	begin(t, m)
	assert.False(t, m.Authorized(a.ID, "txn"))
	assert.False(t, m.Rejected(a.ID, "late"))
	assert.Equal(t, StatusReviewing, m.Session().Status)
}

func TestOutOfOrderOutcomes(t *testing.T) {
	m := newTestMachine()
	begin(t, m)
	a, _ := m.SelectMethod(payment.MethodPayPal, payment.KindCapture)

	assert.False(t, m.Captured(a.ID), "capture before authorization")
	assert.False(t, m.CaptureFailed(a.ID, "x"))

	m.Authorized(a.ID, "txn")
	assert.False(t, m.Rejected(a.ID, "late decline"))
	assert.False(t, m.Authorized(a.ID, "again"))
	assert.Equal(t, StatusProcessing, m.Session().Status)
}

func TestManualPayment(t *testing.T) {
	m := newTestMachine()
	s := begin(t, m)

	assert.ErrorIs(t, m.ConfirmManual(), apperrors.ErrConflict)

	a, err := m.SelectMethod(payment.MethodBankReference, payment.KindManual)
	require.NoError(t, err)
	assert.Equal(t, payment.KindManual, a.Kind)
	_, pending := m.Pending()
	assert.False(t, pending)

	ref := m.Session().ReferenceNumber
	assert.Equal(t, "SG-0000000001", ref)
	assert.Contains(t, s.ID, "000000000001")

	require.NoError(t, m.ConfirmManual())
	got := m.Session()
	assert.Equal(t, StatusSucceeded, got.Status)
	assert.False(t, got.Verified)
	assert.Equal(t, 0, got.Attempts)
}

func TestManualReferenceIsStable(t *testing.T) {
	m := newTestMachine()
	begin(t, m)

	_, _ = m.SelectMethod(payment.MethodBankReference, payment.KindManual)
	ref := m.Session().ReferenceNumber
	_, _ = m.SelectMethod(payment.MethodBankReference, payment.KindManual)
	assert.Equal(t, ref, m.Session().ReferenceNumber)
}

func TestExit(t *testing.T) {
	m := newTestMachine()
	assert.NoError(t, m.Exit(), "exit without a session is a no-op")

	begin(t, m)
	a, _ := m.SelectMethod(payment.MethodPayPal, payment.KindCapture)
	m.Authorized(a.ID, "txn")

	assert.ErrorIs(t, m.Exit(), apperrors.ErrConflict)
	assert.NotNil(t, m.Session())

	m.Captured(a.ID)
	require.NoError(t, m.Exit())
	assert.Nil(t, m.Session())
}

func TestBeginAfterSuccessReplacesSession(t *testing.T) {
	m := newTestMachine()
	first := begin(t, m)
	a, _ := m.SelectMethod(payment.MethodApplePay, payment.KindSingleStep)
	m.Authorized(a.ID, "txn")
	m.Captured(a.ID)

	second := begin(t, m)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, StatusReviewing, second.Status)
}

func TestNoSession(t *testing.T) {
	m := newTestMachine()

	_, err := m.SelectMethod(payment.MethodPayPal, payment.KindCapture)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.ErrorIs(t, m.ConfirmManual(), apperrors.ErrNotFound)
	assert.ErrorIs(t, m.Retry(), apperrors.ErrNotFound)
}
