//go:build integration

package pgstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/open-rails/djibgo-auth/core"
	pgmigrations "github.com/open-rails/djibgo-auth/migrations/postgres"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("DJIBGO_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("DJIBGO_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := pgmigrations.Open(dsn)
	require.NoError(t, err)
	require.NoError(t, pgmigrations.Up(ctx, db))
	_ = db.Close()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return New(pool)
}

func TestCredentialUpdateAndSessions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	email := uuid.NewString() + "@example.dj"

	acct, err := s.CreateAccount(ctx, email, "+25377123456", "initial-pass")
	require.NoError(t, err)
	_, err = s.CreateAccount(ctx, email, "", "other-pass")
	require.ErrorIs(t, err, core.ErrEmailTaken)

	yes := true
	upd, err := s.UpdateCredential(ctx, acct.ID, core.CredentialUpdate{Password: "482913", EmailVerified: &yes, PhoneVerified: &yes, ClearBan: true})
	require.NoError(t, err)
	require.True(t, upd.EmailVerified)
	require.True(t, upd.PhoneVerified)

	read, err := s.GetAccountByID(ctx, acct.ID)
	require.NoError(t, err)
	require.False(t, read.UpdatedAt.Before(upd.UpdatedAt))

	_, err = s.SignIn(ctx, email, "initial-pass")
	require.ErrorIs(t, err, core.ErrInvalidCredentials)

	sess, err := s.SignIn(ctx, email, "482913")
	require.NoError(t, err)
	ok, err := s.SessionActive(ctx, sess.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, s.SignOut(ctx, sess.ID))
	ok, _ = s.SessionActive(ctx, sess.ID)
	require.False(t, ok)

	_, err = s.FindAccountByEmail(ctx, "missing-"+email)
	require.ErrorIs(t, err, core.ErrAccountNotFound)
}

func TestClearBanReactivatesAndRevokeUserSessions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	email := uuid.NewString() + "@example.dj"
	acct, err := s.CreateAccount(ctx, email, "", "initial-pass")
	require.NoError(t, err)

	first, err := s.SignIn(ctx, email, "initial-pass")
	require.NoError(t, err)
	second, err := s.SignIn(ctx, email, "initial-pass")
	require.NoError(t, err)
	require.NoError(t, s.RevokeUserSessions(ctx, acct.ID, &second.ID))
	ok, _ := s.SessionActive(ctx, first.ID)
	require.False(t, ok)
	ok, _ = s.SessionActive(ctx, second.ID)
	require.True(t, ok)
	require.NoError(t, s.RevokeUserSessions(ctx, acct.ID, nil))
	ok, _ = s.SessionActive(ctx, second.ID)
	require.False(t, ok)

	_, err = s.pg.Exec(ctx, `UPDATE profiles.users SET is_active = false WHERE id = $1::uuid`, acct.ID)
	require.NoError(t, err)
	_, err = s.SignIn(ctx, email, "initial-pass")
	require.ErrorIs(t, err, core.ErrInvalidCredentials)

	upd, err := s.UpdateCredential(ctx, acct.ID, core.CredentialUpdate{Password: "482913", ClearBan: true})
	require.NoError(t, err)
	require.True(t, upd.IsActive)
	_, err = s.SignIn(ctx, email, "482913")
	require.NoError(t, err)
}

func TestProfilesAndDeliveries(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	acct, err := s.CreateAccount(ctx, uuid.NewString()+"@example.dj", "", "initial-pass")
	require.NoError(t, err)

	_, err = s.GetProfile(ctx, acct.ID)
	require.ErrorIs(t, err, core.ErrProfileNotFound)

	phone := "77 12 34 56"
	require.NoError(t, s.PutProfile(ctx, core.Profile{UserID: acct.ID, DisplayName: "Awa", PhoneNumber: &phone}))

	issued := time.Now().Add(-25 * time.Hour).UTC().Truncate(time.Microsecond)
	require.NoError(t, s.SetTemporaryPassword(ctx, acct.ID, issued, issued.Add(24*time.Hour)))

	ids, err := s.ListExpiredTemporaryPasswords(ctx, time.Now(), 1000)
	require.NoError(t, err)
	require.Contains(t, ids, acct.ID)

	require.NoError(t, s.ClearTemporaryPassword(ctx, acct.ID))
	p, err := s.GetProfile(ctx, acct.ID)
	require.NoError(t, err)
	require.Nil(t, p.TemporaryPasswordExpiresAt)

	rec := core.DeliveryRecord{
		ID:        core.NewDeliveryID(time.Now()),
		UserID:    acct.ID,
		Phone:     "+25377123456",
		Channel:   core.DeliveryChannelWhatsApp,
		Status:    core.DeliveryStatusSent,
		Summary:   "temporary password instructions",
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.AppendDeliveryRecord(ctx, rec))
	recs, err := s.ListDeliveryRecords(ctx, acct.ID, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, rec.ID, recs[0].ID)
}
