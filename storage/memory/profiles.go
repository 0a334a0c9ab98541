package memorystore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/open-rails/djibgo-auth/core"
)

// Profiles is an in-memory core.ProfileStore.
type Profiles struct {
	mu   sync.RWMutex
	rows map[string]core.Profile
}

func NewProfiles() *Profiles {
	return &Profiles{rows: make(map[string]core.Profile)}
}

// PutProfile inserts or replaces a profile row.
func (p *Profiles) PutProfile(prof core.Profile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prof.UpdatedAt.IsZero() {
		prof.UpdatedAt = time.Now()
	}
	p.rows[prof.UserID] = prof
}

func (p *Profiles) GetProfile(ctx context.Context, userID string) (*core.Profile, error) {
	_ = ctx
	p.mu.RLock()
	defer p.mu.RUnlock()
	prof, ok := p.rows[userID]
	if !ok {
		return nil, core.ErrProfileNotFound
	}
	return cloneProfile(prof), nil
}

func (p *Profiles) SetTemporaryPassword(ctx context.Context, userID string, issuedAt, expiresAt time.Time) error {
	_ = ctx
	p.mu.Lock()
	defer p.mu.Unlock()
	prof, ok := p.rows[userID]
	if !ok {
		return core.ErrProfileNotFound
	}
	prof.TemporaryPasswordIssuedAt = &issuedAt
	prof.TemporaryPasswordExpiresAt = &expiresAt
	prof.UpdatedAt = time.Now()
	p.rows[userID] = prof
	return nil
}

func (p *Profiles) ClearTemporaryPassword(ctx context.Context, userID string) error {
	_ = ctx
	p.mu.Lock()
	defer p.mu.Unlock()
	prof, ok := p.rows[userID]
	if !ok {
		return core.ErrProfileNotFound
	}
	prof.TemporaryPasswordIssuedAt = nil
	prof.TemporaryPasswordExpiresAt = nil
	prof.UpdatedAt = time.Now()
	p.rows[userID] = prof
	return nil
}

// ListExpiredTemporaryPasswords returns user ids ordered by expiry, oldest first.
func (p *Profiles) ListExpiredTemporaryPasswords(ctx context.Context, before time.Time, limit int) ([]string, error) {
	_ = ctx
	p.mu.RLock()
	defer p.mu.RUnlock()
	var rows []core.Profile
	for _, prof := range p.rows {
		if prof.TemporaryPasswordExpiresAt != nil && !prof.TemporaryPasswordExpiresAt.After(before) {
			rows = append(rows, prof)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].TemporaryPasswordExpiresAt.Before(*rows[j].TemporaryPasswordExpiresAt)
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.UserID
	}
	return ids, nil
}

func cloneProfile(p core.Profile) *core.Profile {
	if p.PhoneNumber != nil {
		v := *p.PhoneNumber
		p.PhoneNumber = &v
	}
	if p.TemporaryPasswordExpiresAt != nil {
		v := *p.TemporaryPasswordExpiresAt
		p.TemporaryPasswordExpiresAt = &v
	}
	if p.TemporaryPasswordIssuedAt != nil {
		v := *p.TemporaryPasswordIssuedAt
		p.TemporaryPasswordIssuedAt = &v
	}
	return &p
}
