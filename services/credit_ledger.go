package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"venuePresenceAPI/internal/common/clock"
	"venuePresenceAPI/internal/metrics"
	"venuePresenceAPI/internal/types/credit"
)

// CreditLedger is an append-only ledger of signed credit entries. The
// balance is always derived by summing amounts; it is never stored.
type CreditLedger struct {
	db     DBPool
	clock  clock.Clock
	logger *zap.Logger
}

func NewCreditLedger(db DBPool, clk clock.Clock, logger *zap.Logger) *CreditLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CreditLedger{db: db, clock: clk, logger: logger}
}

func (l *CreditLedger) GetBalance(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, ErrUnauthorized
	}
	var balance int64
	query := `SELECT COALESCE(SUM(amount), 0) FROM credit_entries WHERE user_id = $1`
	if err := l.db.QueryRow(ctx, query, userID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("failed to get credit balance: %w", err)
	}
	return int(balance), nil
}

// Purchase appends a positive entry. Top-ups are unconditional.
func (l *CreditLedger) Purchase(ctx context.Context, userID string, amount int, price float64) (*credit.Entry, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if amount <= 0 || price < 0 {
		return nil, ErrInvalidAmount
	}

	entry := credit.Entry{
		ID:        uuid.New().String(),
		UserID:    userID,
		Amount:    amount,
		Price:     price,
		Type:      credit.TypePurchase,
		CreatedAt: l.clock.Now(),
	}

	query := `
		INSERT INTO credit_entries (id, user_id, amount, price, entry_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := l.db.Exec(ctx, query, entry.ID, entry.UserID, entry.Amount, entry.Price, string(entry.Type), entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record purchase: %w", err)
	}

	l.logger.Info("Credits purchased", zap.String("user_id", userID), zap.Int("amount", amount))
	return &entry, nil
}

// RecordPaidPurchase appends a purchase tied to a payment provider reference.
// Replays of the same reference are ignored and report false.
func (l *CreditLedger) RecordPaidPurchase(ctx context.Context, userID string, amount int, price float64, externalRef string) (bool, error) {
	if userID == "" {
		return false, ErrUnauthorized
	}
	if amount <= 0 || price < 0 {
		return false, ErrInvalidAmount
	}

	query := `
		INSERT INTO credit_entries (id, user_id, amount, price, entry_type, external_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (external_ref) DO NOTHING
	`
	tag, err := l.db.Exec(ctx, query,
		uuid.New().String(),
		userID,
		amount,
		price,
		string(credit.TypePurchase),
		externalRef,
		l.clock.Now(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to record paid purchase: %w", err)
	}

	recorded := tag.RowsAffected() > 0
	if recorded {
		l.logger.Info("Paid credits recorded", zap.String("user_id", userID), zap.Int("amount", amount), zap.String("ref", externalRef))
	}
	return recorded, nil
}

// Spend appends a debit of amount iff the balance covers it. The balance
// check and the insert run as one conditional statement under a per-user
// advisory lock, so concurrent spends cannot overdraw. false with a nil
// error means insufficient credits and nothing was written.
func (l *CreditLedger) Spend(ctx context.Context, userID string, amount int) (bool, error) {
	if userID == "" {
		return false, ErrUnauthorized
	}
	if amount <= 0 {
		return false, ErrInvalidAmount
	}

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "credits:"+userID); err != nil {
		return false, fmt.Errorf("failed to lock credit ledger: %w", err)
	}

	debitQuery := `
		INSERT INTO credit_entries (id, user_id, amount, price, entry_type, created_at)
		SELECT $1, $2, -$3::integer, 0, $4, $5
		WHERE (SELECT COALESCE(SUM(amount), 0) FROM credit_entries WHERE user_id = $2) >= $3::integer
	`
	tag, err := tx.Exec(ctx, debitQuery, uuid.New().String(), userID, amount, string(credit.TypeDebit), l.clock.Now())
	if err != nil {
		return false, fmt.Errorf("failed to record debit: %w", err)
	}

	if tag.RowsAffected() == 0 {
		metrics.CreditSpends.WithLabelValues("insufficient").Inc()
		return false, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("transaction commit failed: %w", err)
	}

	metrics.CreditSpends.WithLabelValues("spent").Inc()
	return true, nil
}

// Refund credits back amount previously taken by Spend. It is not tied to
// a payment, so the price is zero.
func (l *CreditLedger) Refund(ctx context.Context, userID string, amount int) error {
	if userID == "" {
		return ErrUnauthorized
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}

	query := `
		INSERT INTO credit_entries (id, user_id, amount, price, entry_type, created_at)
		VALUES ($1, $2, $3, 0, $4, $5)
	`
	if _, err := l.db.Exec(ctx, query, uuid.New().String(), userID, amount, string(credit.TypeRefund), l.clock.Now()); err != nil {
		return fmt.Errorf("failed to record refund: %w", err)
	}

	metrics.CreditSpends.WithLabelValues("refunded").Inc()
	l.logger.Info("Credits refunded", zap.String("user_id", userID), zap.Int("amount", amount))
	return nil
}

// ListEntries returns the user's ledger, newest first.
func (l *CreditLedger) ListEntries(ctx context.Context, userID string) ([]credit.Entry, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	query := `
		SELECT id::text, user_id, amount, price::float8, entry_type, external_ref, created_at
		FROM credit_entries
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := l.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query credit entries: %w", err)
	}
	defer rows.Close()

	entries := []credit.Entry{}
	for rows.Next() {
		var (
			e         credit.Entry
			entryType string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Price, &entryType, &e.ExternalRef, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan credit entry: %w", err)
		}
		e.Type = credit.EntryType(entryType)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return entries, nil
}
