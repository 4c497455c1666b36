package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"venuePresenceAPI/internal/types/user"
)

// UserService keeps the local copy of user profiles that guest lists join
// against. Clerk owns identity; rows here follow its webhooks.
type UserService struct {
	db DBPool
}

func NewUserService(db DBPool) *UserService {
	return &UserService{db: db}
}

// UpsertProfile creates or refreshes the profile for p.ClerkID. Empty
// fields never overwrite stored values.
func (s *UserService) UpsertProfile(ctx context.Context, p user.Profile) (*user.Profile, error) {
	if p.ClerkID == "" {
		return nil, ErrUnauthorized
	}

	query := `
	INSERT INTO users (clerk_id, username, image_url)
	VALUES ($1, $2, $3)
	ON CONFLICT (clerk_id) DO UPDATE SET
		username = COALESCE(NULLIF(EXCLUDED.username, ''), users.username),
		image_url = COALESCE(NULLIF(EXCLUDED.image_url, ''), users.image_url)
	RETURNING clerk_id, username, image_url
	`

	out := &user.Profile{}
	err := s.db.QueryRow(ctx, query, p.ClerkID, p.Username, p.ImageURL).Scan(
		&out.ClerkID,
		&out.Username,
		&out.ImageURL,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return out, nil
}

func (s *UserService) GetProfile(ctx context.Context, clerkID string) (*user.Profile, error) {
	query := `SELECT clerk_id, username, image_url FROM users WHERE clerk_id = $1`

	out := &user.Profile{}
	err := s.db.QueryRow(ctx, query, clerkID).Scan(&out.ClerkID, &out.Username, &out.ImageURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return out, nil
}

// DeleteProfile removes the profile and any live check-in so the user
// drops off every guest list at once. Deleting an unknown user is not an
// error; Clerk may redeliver.
func (s *UserService) DeleteProfile(ctx context.Context, clerkID string) error {
	if clerkID == "" {
		return ErrUnauthorized
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM check_ins WHERE user_id = $1`, clerkID); err != nil {
		return fmt.Errorf("failed to delete check-ins: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM users WHERE clerk_id = $1`, clerkID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit user delete: %w", err)
	}
	return nil
}
