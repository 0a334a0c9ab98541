package core

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"
)

type fakeIdentity struct {
	mu        sync.Mutex
	accounts  map[string]*Account
	passwords map[string]string
	sessions  map[string]string

	findErr     error
	updateErr   error
	signInErr   error
	staleReads  bool
	updateGate  chan struct{}
	updateEnter chan struct{}
	updates     int
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		accounts:  map[string]*Account{},
		passwords: map[string]string{},
		sessions:  map[string]string{},
	}
}

func (f *fakeIdentity) add(a Account, pass string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.IsActive = true
	f.accounts[a.ID] = &a
	f.passwords[a.ID] = pass
}

func (f *fakeIdentity) account(id string) Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.accounts[id]
}

func (f *fakeIdentity) password(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.passwords[id]
}

func (f *fakeIdentity) FindAccountByEmail(_ context.Context, email string) (*Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, a := range f.accounts {
		if a.Email == email {
			c := *a
			return &c, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (f *fakeIdentity) GetAccountByID(_ context.Context, id string) (*Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	c := *a
	if f.staleReads {
		c.EmailVerified, c.PhoneVerified = false, false
	}
	return &c, nil
}

func (f *fakeIdentity) UpdateCredential(_ context.Context, id string, upd CredentialUpdate) (*Account, error) {
	if f.updateEnter != nil {
		f.updateEnter <- struct{}{}
	}
	if f.updateGate != nil {
		<-f.updateGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	a, ok := f.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	f.updates++
	if upd.Password != "" {
		f.passwords[id] = upd.Password
	}
	if upd.EmailVerified != nil {
		a.EmailVerified = *upd.EmailVerified
	}
	if upd.PhoneVerified != nil {
		a.PhoneVerified = *upd.PhoneVerified
	}
	if upd.ClearBan {
		a.BannedUntil, a.BanReason = nil, nil
		a.IsActive = true
	}
	a.UpdatedAt = time.Now()
	c := *a
	return &c, nil
}

func (f *fakeIdentity) VerifyPassword(_ context.Context, id, pass string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.passwords[id]; !ok || p != pass {
		return ErrInvalidCredentials
	}
	return nil
}

func (f *fakeIdentity) SignIn(ctx context.Context, email, pass string) (*Session, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	a, err := f.FindAccountByEmail(ctx, email)
	if err != nil || !a.IsActive || a.Banned(time.Now()) {
		return nil, ErrInvalidCredentials
	}
	if err := f.VerifyPassword(ctx, a.ID, pass); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s := Session{ID: NewSessionID(), UserID: a.ID, CreatedAt: time.Now()}
	f.sessions[s.ID] = a.ID
	return &s, nil
}

func (f *fakeIdentity) SignOut(_ context.Context, sid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, sid)
	return nil
}

func (f *fakeIdentity) SessionActive(_ context.Context, sid string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sessions[sid]
	return ok, nil
}

func (f *fakeIdentity) RevokeUserSessions(_ context.Context, userID string, keep *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sid, uid := range f.sessions {
		if uid == userID && (keep == nil || sid != *keep) {
			delete(f.sessions, sid)
		}
	}
	return nil
}

func (f *fakeIdentity) sessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

type fakeProfiles struct {
	mu     sync.Mutex
	rows   map[string]Profile
	getErr   error
	setErr   error
	clearErr error
	writes   int
}

func newFakeProfiles() *fakeProfiles { return &fakeProfiles{rows: map[string]Profile{}} }

func (f *fakeProfiles) put(p Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[p.UserID] = p
}

func (f *fakeProfiles) get(id string) Profile {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

func (f *fakeProfiles) GetProfile(_ context.Context, id string) (*Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.rows[id]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return &p, nil
}

func (f *fakeProfiles) SetTemporaryPassword(_ context.Context, id string, issuedAt, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	p, ok := f.rows[id]
	if !ok {
		return ErrProfileNotFound
	}
	f.writes++
	p.TemporaryPasswordIssuedAt, p.TemporaryPasswordExpiresAt = &issuedAt, &expiresAt
	f.rows[id] = p
	return nil
}

func (f *fakeProfiles) ClearTemporaryPassword(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return f.clearErr
	}
	p, ok := f.rows[id]
	if !ok {
		return ErrProfileNotFound
	}
	f.writes++
	p.TemporaryPasswordIssuedAt, p.TemporaryPasswordExpiresAt = nil, nil
	f.rows[id] = p
	return nil
}

func (f *fakeProfiles) ListExpiredTemporaryPasswords(_ context.Context, before time.Time, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, p := range f.rows {
		if p.TemporaryPasswordExpiresAt != nil && !p.TemporaryPasswordExpiresAt.After(before) {
			ids = append(ids, id)
		}
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

type fakeDeliveries struct {
	mu   sync.Mutex
	recs []DeliveryRecord
	err  error
}

func (f *fakeDeliveries) AppendDeliveryRecord(_ context.Context, rec DeliveryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.recs = append(f.recs, rec)
	return nil
}

func (f *fakeDeliveries) records() []DeliveryRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DeliveryRecord(nil), f.recs...)
}

type fakeKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeKV() *fakeKV { return &fakeKV{data: map[string][]byte{}} }

func (k *fakeKV) get(key string) ([]byte, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.data[key]
	return v, ok
}

func (k *fakeKV) put(key string, v []byte) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[key] = v
}

func (k *fakeKV) drop(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.data, key)
}

func (k *fakeKV) SetNX(_ context.Context, key string, v []byte, _ time.Duration) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.data[key]; ok {
		return false, nil
	}
	k.data[key] = v
	return true, nil
}

func (k *fakeKV) DelIfValue(_ context.Context, key string, v []byte) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if cur, ok := k.data[key]; !ok || !bytes.Equal(cur, v) {
		return false, nil
	}
	delete(k.data, key)
	return true, nil
}

type recordingMetrics struct {
	mu        sync.Mutex
	outcomes  []string
	selfTests []bool
}

func (m *recordingMetrics) IssuanceFinished(o string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, o)
}

func (m *recordingMetrics) SelfTestFinished(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selfTests = append(m.selfTests, ok)
}

var errStoreDown = errors.New("connection refused")

type fixture struct {
	svc        *Service
	identity   *fakeIdentity
	profiles   *fakeProfiles
	deliveries *fakeDeliveries
	kv         *fakeKV
	metrics    *recordingMetrics
}

const (
	testUserID = "9f1c2d7e-0000-4000-8000-000000000001"
	testEmail  = "awa@example.dj"
)

func newFixture(storedPhone *string) *fixture {
	f := &fixture{
		identity:   newFakeIdentity(),
		profiles:   newFakeProfiles(),
		deliveries: &fakeDeliveries{},
		kv:         newFakeKV(),
		metrics:    &recordingMetrics{},
	}
	f.identity.add(Account{ID: testUserID, Email: testEmail, PhoneNumber: storedPhone}, "old-password")
	f.profiles.put(Profile{UserID: testUserID, DisplayName: "Awa", PhoneNumber: storedPhone})

	noWait := ReadbackPolicy{Attempts: 2}
	f.svc = NewFromConfig(Config{Readback: &noWait}).
		WithIdentityStore(f.identity).
		WithProfileStore(f.profiles).
		WithDeliveryLog(f.deliveries).
		WithEphemeralStore(f.kv, EphemeralMemory).
		WithMetrics(f.metrics)
	return f
}

func strPtr(s string) *string { return &s }
