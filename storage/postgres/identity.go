package pgstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/open-rails/djibgo-auth/core"
	"github.com/open-rails/djibgo-auth/password"
)

const accountColumns = `id::text, email, phone_number, email_verified, phone_verified, is_active,
	banned_until, ban_reason, created_at, updated_at`

func scanAccount(row pgx.Row) (*core.Account, error) {
	var a core.Account
	if err := row.Scan(&a.ID, &a.Email, &a.PhoneNumber, &a.EmailVerified, &a.PhoneVerified, &a.IsActive,
		&a.BannedUntil, &a.BanReason, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAccount inserts an active account with an Argon2id password.
func (s *Store) CreateAccount(ctx context.Context, email, phone, pass string) (*core.Account, error) {
	hash, err := password.HashArgon2id(pass)
	if err != nil {
		return nil, err
	}
	var phonePtr *string
	if p := strings.TrimSpace(phone); p != "" {
		phonePtr = &p
	}
	var acct *core.Account
	err = pgx.BeginFunc(ctx, s.pg, func(tx pgx.Tx) error {
		a, err := scanAccount(tx.QueryRow(ctx, `
			INSERT INTO profiles.users (id, email, phone_number)
			VALUES ($1, $2, $3)
			RETURNING `+accountColumns, uuid.New(), email, phonePtr))
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO profiles.user_passwords (user_id, password_hash, hash_algo)
			VALUES ($1::uuid, $2, 'argon2id')`, a.ID, hash); err != nil {
			return err
		}
		acct = a
		return nil
	})
	if isUniqueViolation(err) {
		return nil, core.ErrEmailTaken
	}
	return acct, err
}

func (s *Store) FindAccountByEmail(ctx context.Context, email string) (*core.Account, error) {
	a, err := scanAccount(s.pg.QueryRow(ctx, `SELECT `+accountColumns+` FROM profiles.users WHERE email = $1`, email))
	if isNoRows(err) {
		return nil, core.ErrAccountNotFound
	}
	return a, err
}

func (s *Store) GetAccountByID(ctx context.Context, id string) (*core.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, core.ErrAccountNotFound
	}
	a, err := scanAccount(s.pg.QueryRow(ctx, `SELECT `+accountColumns+` FROM profiles.users WHERE id = $1::uuid`, id))
	if isNoRows(err) {
		return nil, core.ErrAccountNotFound
	}
	return a, err
}

// UpdateCredential writes the password hash, confirmation flags and
// ban/activation state in one transaction.
func (s *Store) UpdateCredential(ctx context.Context, id string, upd core.CredentialUpdate) (*core.Account, error) {
	var hash string
	if upd.Password != "" {
		h, err := password.HashArgon2id(upd.Password)
		if err != nil {
			return nil, err
		}
		hash = h
	}
	var acct *core.Account
	err := pgx.BeginFunc(ctx, s.pg, func(tx pgx.Tx) error {
		a, err := scanAccount(tx.QueryRow(ctx, `
			UPDATE profiles.users SET
				email_verified = COALESCE($2::boolean, email_verified),
				phone_verified = COALESCE($3::boolean, phone_verified),
				banned_until   = CASE WHEN $4::boolean THEN NULL ELSE banned_until END,
				ban_reason     = CASE WHEN $4::boolean THEN NULL ELSE ban_reason END,
				is_active      = CASE WHEN $4::boolean THEN TRUE ELSE is_active END,
				updated_at     = now()
			WHERE id = $1::uuid
			RETURNING `+accountColumns, id, upd.EmailVerified, upd.PhoneVerified, upd.ClearBan))
		if err != nil {
			return err
		}
		if hash != "" {
			if _, err := tx.Exec(ctx, `
				INSERT INTO profiles.user_passwords (user_id, password_hash, hash_algo, updated_at)
				VALUES ($1::uuid, $2, 'argon2id', now())
				ON CONFLICT (user_id) DO UPDATE
				SET password_hash = EXCLUDED.password_hash, hash_algo = EXCLUDED.hash_algo, updated_at = now()`,
				id, hash); err != nil {
				return err
			}
		}
		acct = a
		return nil
	})
	if isNoRows(err) {
		return nil, core.ErrAccountNotFound
	}
	return acct, err
}

func (s *Store) VerifyPassword(ctx context.Context, id, pass string) error {
	var hash, algo string
	err := s.pg.QueryRow(ctx, `
		SELECT password_hash, hash_algo FROM profiles.user_passwords WHERE user_id = $1::uuid`, id).Scan(&hash, &algo)
	if isNoRows(err) {
		return core.ErrInvalidCredentials
	}
	if err != nil {
		return err
	}
	ok, err := password.Verify(hash, pass)
	if err != nil || !ok {
		return core.ErrInvalidCredentials
	}
	// Legacy bcrypt rows are rehashed to Argon2id on a successful check.
	if algo != "argon2id" || password.IsBcryptHash(hash) {
		if phc, err := password.HashArgon2id(pass); err == nil {
			_, _ = s.pg.Exec(ctx, `
				UPDATE profiles.user_passwords SET password_hash = $2, hash_algo = 'argon2id', updated_at = now()
				WHERE user_id = $1::uuid`, id, phc)
		}
	}
	return nil
}

func (s *Store) SignIn(ctx context.Context, email, pass string) (*core.Session, error) {
	a, err := s.FindAccountByEmail(ctx, email)
	if errors.Is(err, core.ErrAccountNotFound) {
		return nil, core.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !a.IsActive || a.Banned(time.Now()) {
		return nil, core.ErrInvalidCredentials
	}
	if err := s.VerifyPassword(ctx, a.ID, pass); err != nil {
		return nil, err
	}
	sess := core.Session{ID: core.NewSessionID(), UserID: a.ID}
	if err := s.pg.QueryRow(ctx, `
		INSERT INTO profiles.sessions (id, user_id) VALUES ($1, $2::uuid)
		RETURNING created_at`, sess.ID, a.ID).Scan(&sess.CreatedAt); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) SignOut(ctx context.Context, sessionID string) error {
	_, err := s.pg.Exec(ctx, `
		UPDATE profiles.sessions SET revoked_at = now()
		WHERE id = $1 AND revoked_at IS NULL`, sessionID)
	return err
}

func (s *Store) SessionActive(ctx context.Context, sessionID string) (bool, error) {
	var ok bool
	err := s.pg.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM profiles.sessions WHERE id = $1 AND revoked_at IS NULL)`, sessionID).Scan(&ok)
	return ok, err
}

// RevokeUserSessions revokes every live session of userID except keep.
func (s *Store) RevokeUserSessions(ctx context.Context, userID string, keep *string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return nil
	}
	_, err := s.pg.Exec(ctx, `
		UPDATE profiles.sessions SET revoked_at = now()
		WHERE user_id = $1::uuid AND revoked_at IS NULL AND ($2::text IS NULL OR id <> $2::text)`, userID, keep)
	return err
}
