package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"venuePresenceAPI/internal/common/clock"
	"venuePresenceAPI/internal/types/checkin"
	"venuePresenceAPI/internal/types/user"
)

// CheckInLedger stores check-ins. A user has at most one row; creating a
// new check-in replaces it inside a transaction serialized per user.
type CheckInLedger struct {
	db    DBPool
	clock clock.Clock
}

func NewCheckInLedger(db DBPool, clk clock.Clock) *CheckInLedger {
	return &CheckInLedger{db: db, clock: clk}
}

// GetActive returns the user's live check-in, or nil when there is none.
func (l *CheckInLedger) GetActive(ctx context.Context, userID string) (*checkin.CheckIn, error) {
	query := `
		SELECT id::text, venue_id::text, user_id, created_at, expires_at
		FROM check_ins
		WHERE user_id = $1 AND expires_at > $2
		ORDER BY expires_at DESC
		LIMIT 1
	`

	var c checkin.CheckIn
	err := l.db.QueryRow(ctx, query, userID, l.clock.Now()).Scan(
		&c.ID,
		&c.VenueID,
		&c.UserID,
		&c.CreatedAt,
		&c.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active check-in: %w", err)
	}

	return &c, nil
}

// Create supersedes every existing check-in of the user and inserts a new
// one expiring after checkin.Window. The advisory lock serializes concurrent
// calls for the same user; the unique user_id constraint backs it up.
func (l *CheckInLedger) Create(ctx context.Context, userID, venueID string) (*checkin.CheckIn, error) {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return nil, fmt.Errorf("failed to lock user check-ins: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM check_ins WHERE user_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("failed to supersede check-ins: %w", err)
	}

	now := l.clock.Now()
	c := checkin.CheckIn{
		ID:        uuid.New().String(),
		VenueID:   venueID,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(checkin.Window),
	}

	insertQuery := `
		INSERT INTO check_ins (id, venue_id, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET id = EXCLUDED.id,
			venue_id = EXCLUDED.venue_id,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
	`
	if _, err := tx.Exec(ctx, insertQuery, c.ID, c.VenueID, c.UserID, c.CreatedAt, c.ExpiresAt); err != nil {
		return nil, fmt.Errorf("failed to insert check-in: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("transaction commit failed: %w", err)
	}

	return &c, nil
}

// CountActiveByVenue counts live check-ins per venue. A nil or empty
// venueIDs counts across all venues.
func (l *CheckInLedger) CountActiveByVenue(ctx context.Context, venueIDs []string) (map[string]int, error) {
	query := `
		SELECT venue_id::text, COUNT(*)
		FROM check_ins
		WHERE expires_at > $1
		GROUP BY venue_id
	`
	args := []any{l.clock.Now()}
	if len(venueIDs) > 0 {
		query = `
			SELECT venue_id::text, COUNT(*)
			FROM check_ins
			WHERE expires_at > $1 AND venue_id::text = ANY($2)
			GROUP BY venue_id
		`
		args = append(args, venueIDs)
	}

	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count active check-ins: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			venueID string
			count   int64
		)
		if err := rows.Scan(&venueID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan check-in count: %w", err)
		}
		counts[venueID] = int(count)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return counts, nil
}

// ListActiveGuests returns the profiles of users with a live check-in at venueID.
func (l *CheckInLedger) ListActiveGuests(ctx context.Context, venueID string) ([]user.Guest, error) {
	query := `
		SELECT c.user_id, COALESCE(u.username, ''), COALESCE(u.image_url, '')
		FROM check_ins c
		LEFT JOIN users u ON u.clerk_id = c.user_id
		WHERE c.venue_id::text = $1 AND c.expires_at > $2
		ORDER BY c.created_at DESC
	`

	rows, err := l.db.Query(ctx, query, venueID, l.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query guests: %w", err)
	}
	defer rows.Close()

	guests := []user.Guest{}
	for rows.Next() {
		var g user.Guest
		if err := rows.Scan(&g.UserID, &g.Username, &g.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan guest: %w", err)
		}
		guests = append(guests, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return guests, nil
}
