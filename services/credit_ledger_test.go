package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuePresenceAPI/internal/common/clock"
	"venuePresenceAPI/internal/types/credit"
)

func newMockCreditLedger(t *testing.T) (pgxmock.PgxPoolIface, *CreditLedger) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewCreditLedger(mock, clock.NewFake(ledgerNow), nil)
}

func TestCreditLedger_GetBalance(t *testing.T) {
	mock, ledger := newMockCreditLedger(t)

	mock.ExpectQuery("FROM credit_entries").
		WithArgs("user_1").
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(int64(7)))

	balance, err := ledger.GetBalance(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, 7, balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditLedger_Purchase(t *testing.T) {
	mock, ledger := newMockCreditLedger(t)

	mock.ExpectExec("INSERT INTO credit_entries").
		WithArgs(pgxmock.AnyArg(), "user_1", 10, 4.99, "purchase", ledgerNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	entry, err := ledger.Purchase(context.Background(), "user_1", 10, 4.99)
	require.NoError(t, err)
	assert.Equal(t, credit.TypePurchase, entry.Type)
	assert.Equal(t, 10, entry.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditLedger_PurchasePropagatesStorageErrors(t *testing.T) {
	mock, ledger := newMockCreditLedger(t)

	mock.ExpectExec("INSERT INTO credit_entries").
		WithArgs(pgxmock.AnyArg(), "user_1", 10, 4.99, "purchase", ledgerNow).
		WillReturnError(errors.New("disk full"))

	_, err := ledger.Purchase(context.Background(), "user_1", 10, 4.99)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditLedger_PurchaseRejectsBadAmounts(t *testing.T) {
	_, ledger := newMockCreditLedger(t)

	_, err := ledger.Purchase(context.Background(), "user_1", 0, 1)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = ledger.Purchase(context.Background(), "user_1", 5, -1)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCreditLedger_SpendWithSufficientBalance(t *testing.T) {
	mock, ledger := newMockCreditLedger(t)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("credits:user_1").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("INSERT INTO credit_entries").
		WithArgs(pgxmock.AnyArg(), "user_1", 1, "debit", ledgerNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	ok, err := ledger.Spend(context.Background(), "user_1", 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditLedger_SpendInsufficientWritesNothing(t *testing.T) {
	mock, ledger := newMockCreditLedger(t)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("credits:user_1").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("INSERT INTO credit_entries").
		WithArgs(pgxmock.AnyArg(), "user_1", 5, "debit", ledgerNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectRollback()

	ok, err := ledger.Spend(context.Background(), "user_1", 5)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditLedger_SpendWriteFailureIsAnError(t *testing.T) {
	mock, ledger := newMockCreditLedger(t)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("credits:user_1").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("INSERT INTO credit_entries").
		WithArgs(pgxmock.AnyArg(), "user_1", 1, "debit", ledgerNow).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	ok, err := ledger.Spend(context.Background(), "user_1", 1)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditLedger_SpendRejectsNonPositive(t *testing.T) {
	_, ledger := newMockCreditLedger(t)

	_, err := ledger.Spend(context.Background(), "user_1", 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCreditLedger_RecordPaidPurchaseIsIdempotent(t *testing.T) {
	mock, ledger := newMockCreditLedger(t)

	mock.ExpectExec("ON CONFLICT").
		WithArgs(pgxmock.AnyArg(), "user_1", 50, 19.99, "purchase", "txn_1", ledgerNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("ON CONFLICT").
		WithArgs(pgxmock.AnyArg(), "user_1", 50, 19.99, "purchase", "txn_1", ledgerNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	first, err := ledger.RecordPaidPurchase(context.Background(), "user_1", 50, 19.99, "txn_1")
	require.NoError(t, err)
	assert.True(t, first)

	replay, err := ledger.RecordPaidPurchase(context.Background(), "user_1", 50, 19.99, "txn_1")
	require.NoError(t, err)
	assert.False(t, replay)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditLedger_ListEntries(t *testing.T) {
	mock, ledger := newMockCreditLedger(t)
	ref := "txn_1"

	mock.ExpectQuery("FROM credit_entries").
		WithArgs("user_1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "amount", "price", "entry_type", "external_ref", "created_at"}).
			AddRow("e2", "user_1", -1, 0.0, "debit", (*string)(nil), ledgerNow).
			AddRow("e1", "user_1", 10, 4.99, "purchase", &ref, ledgerNow.Add(-time.Hour)))

	entries, err := ledger.ListEntries(context.Background(), "user_1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, credit.TypeDebit, entries[0].Type)
	assert.Nil(t, entries[0].ExternalRef)
	assert.Equal(t, "txn_1", *entries[1].ExternalRef)
}

func TestCreditLedger_RequiresUser(t *testing.T) {
	_, ledger := newMockCreditLedger(t)
	ctx := context.Background()

	_, err := ledger.GetBalance(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = ledger.Purchase(ctx, "", 10, 1)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = ledger.Spend(ctx, "", 1)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = ledger.ListEntries(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCreditLedger_Refund(t *testing.T) {
	mock, ledger := newMockCreditLedger(t)

	mock.ExpectExec("INSERT INTO credit_entries").
		WithArgs(pgxmock.AnyArg(), "user_1", 2, "refund", ledgerNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, ledger.Refund(context.Background(), "user_1", 2))
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.ErrorIs(t, ledger.Refund(context.Background(), "user_1", 0), ErrInvalidAmount)
	assert.ErrorIs(t, ledger.Refund(context.Background(), "", 1), ErrUnauthorized)
}
