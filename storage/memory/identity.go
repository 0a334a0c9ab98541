package memorystore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/open-rails/djibgo-auth/core"
	"github.com/open-rails/djibgo-auth/password"
)

type accountRow struct {
	acct core.Account
	hash string
}

// Identity is an in-memory core.IdentityStore. Password hashes use Argon2id
// exactly like the Postgres store.
type Identity struct {
	mu       sync.RWMutex
	accounts map[string]*accountRow
	byEmail  map[string]string
	sessions map[string]core.Session
	now      func() time.Time
}

func NewIdentity() *Identity {
	return &Identity{
		accounts: make(map[string]*accountRow),
		byEmail:  make(map[string]string),
		sessions: make(map[string]core.Session),
		now:      time.Now,
	}
}

// CreateAccount seeds an active account. An empty pass leaves the account
// without a usable password.
func (m *Identity) CreateAccount(ctx context.Context, email, phone, pass string) (*core.Account, error) {
	_ = ctx
	var hash string
	if pass != "" {
		h, err := password.HashArgon2id(pass)
		if err != nil {
			return nil, err
		}
		hash = h
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[email]; ok {
		return nil, core.ErrEmailTaken
	}
	now := m.now()
	a := core.Account{ID: uuid.NewString(), Email: email, IsActive: true, CreatedAt: now, UpdatedAt: now}
	if p := strings.TrimSpace(phone); p != "" {
		a.PhoneNumber = &p
	}
	m.accounts[a.ID] = &accountRow{acct: a, hash: hash}
	m.byEmail[email] = a.ID
	return cloneAccount(a), nil
}

// Ban suspends the account until until.
func (m *Identity) Ban(id string, until time.Time, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.accounts[id]; ok {
		r.acct.BannedUntil = &until
		r.acct.BanReason = &reason
		r.acct.UpdatedAt = m.now()
	}
}

// Deactivate marks the account inactive.
func (m *Identity) Deactivate(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.accounts[id]; ok {
		r.acct.IsActive = false
		r.acct.UpdatedAt = m.now()
	}
}

func (m *Identity) FindAccountByEmail(ctx context.Context, email string) (*core.Account, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, core.ErrAccountNotFound
	}
	return cloneAccount(m.accounts[id].acct), nil
}

func (m *Identity) GetAccountByID(ctx context.Context, id string) (*core.Account, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.accounts[id]
	if !ok {
		return nil, core.ErrAccountNotFound
	}
	return cloneAccount(r.acct), nil
}

func (m *Identity) UpdateCredential(ctx context.Context, id string, upd core.CredentialUpdate) (*core.Account, error) {
	_ = ctx
	var hash string
	if upd.Password != "" {
		h, err := password.HashArgon2id(upd.Password)
		if err != nil {
			return nil, err
		}
		hash = h
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.accounts[id]
	if !ok {
		return nil, core.ErrAccountNotFound
	}
	if hash != "" {
		r.hash = hash
	}
	if upd.EmailVerified != nil {
		r.acct.EmailVerified = *upd.EmailVerified
	}
	if upd.PhoneVerified != nil {
		r.acct.PhoneVerified = *upd.PhoneVerified
	}
	if upd.ClearBan {
		r.acct.BannedUntil = nil
		r.acct.BanReason = nil
		r.acct.IsActive = true
	}
	r.acct.UpdatedAt = m.now()
	return cloneAccount(r.acct), nil
}

func (m *Identity) VerifyPassword(ctx context.Context, id, pass string) error {
	_ = ctx
	m.mu.RLock()
	r, ok := m.accounts[id]
	var hash string
	if ok {
		hash = r.hash
	}
	m.mu.RUnlock()
	if !ok || hash == "" {
		return core.ErrInvalidCredentials
	}
	match, err := password.Verify(hash, pass)
	if err != nil || !match {
		return core.ErrInvalidCredentials
	}
	return nil
}

func (m *Identity) SignIn(ctx context.Context, email, pass string) (*core.Session, error) {
	m.mu.RLock()
	id, ok := m.byEmail[email]
	var acct core.Account
	if ok {
		acct = m.accounts[id].acct
	}
	m.mu.RUnlock()
	if !ok || !acct.IsActive || acct.Banned(m.now()) {
		return nil, core.ErrInvalidCredentials
	}
	if err := m.VerifyPassword(ctx, id, pass); err != nil {
		return nil, err
	}
	sess := core.Session{ID: core.NewSessionID(), UserID: id, CreatedAt: m.now()}
	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()
	return &sess, nil
}

func (m *Identity) SignOut(ctx context.Context, sessionID string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func (m *Identity) SessionActive(ctx context.Context, sessionID string) (bool, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[sessionID]
	return ok, nil
}

func (m *Identity) RevokeUserSessions(ctx context.Context, userID string, keep *string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sess := range m.sessions {
		if sess.UserID == userID && (keep == nil || id != *keep) {
			delete(m.sessions, id)
		}
	}
	return nil
}

// SessionCount returns the number of live sessions.
func (m *Identity) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func cloneAccount(a core.Account) *core.Account {
	if a.PhoneNumber != nil {
		p := *a.PhoneNumber
		a.PhoneNumber = &p
	}
	if a.BannedUntil != nil {
		t := *a.BannedUntil
		a.BannedUntil = &t
	}
	if a.BanReason != nil {
		r := *a.BanReason
		a.BanReason = &r
	}
	return &a
}
