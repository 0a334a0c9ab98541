package pgstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/open-rails/djibgo-auth/core"
)

const profileColumns = `user_id::text, display_name, phone_number,
	temporary_password_expires_at, temporary_password_issued_at, updated_at`

func scanProfile(row pgx.Row) (*core.Profile, error) {
	var p core.Profile
	if err := row.Scan(&p.UserID, &p.DisplayName, &p.PhoneNumber,
		&p.TemporaryPasswordExpiresAt, &p.TemporaryPasswordIssuedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// PutProfile inserts or replaces the profile row of an existing account.
func (s *Store) PutProfile(ctx context.Context, p core.Profile) error {
	_, err := s.pg.Exec(ctx, `
		INSERT INTO profiles.profiles (user_id, display_name, phone_number)
		VALUES ($1::uuid, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET display_name = EXCLUDED.display_name, phone_number = EXCLUDED.phone_number, updated_at = now()`,
		p.UserID, p.DisplayName, p.PhoneNumber)
	return err
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*core.Profile, error) {
	p, err := scanProfile(s.pg.QueryRow(ctx, `
		SELECT `+profileColumns+` FROM profiles.profiles WHERE user_id = $1::uuid`, userID))
	if isNoRows(err) {
		return nil, core.ErrProfileNotFound
	}
	return p, err
}

func (s *Store) SetTemporaryPassword(ctx context.Context, userID string, issuedAt, expiresAt time.Time) error {
	tag, err := s.pg.Exec(ctx, `
		UPDATE profiles.profiles
		SET temporary_password_issued_at = $2, temporary_password_expires_at = $3, updated_at = now()
		WHERE user_id = $1::uuid`, userID, issuedAt, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrProfileNotFound
	}
	return nil
}

func (s *Store) ClearTemporaryPassword(ctx context.Context, userID string) error {
	tag, err := s.pg.Exec(ctx, `
		UPDATE profiles.profiles
		SET temporary_password_issued_at = NULL, temporary_password_expires_at = NULL, updated_at = now()
		WHERE user_id = $1::uuid`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrProfileNotFound
	}
	return nil
}

func (s *Store) ListExpiredTemporaryPasswords(ctx context.Context, before time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.pg.Query(ctx, `
		SELECT user_id::text
		FROM profiles.profiles
		WHERE temporary_password_expires_at IS NOT NULL AND temporary_password_expires_at <= $1
		ORDER BY temporary_password_expires_at ASC
		LIMIT $2`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
