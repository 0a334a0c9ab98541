package memorystore

import (
	"context"
	"sync"

	"github.com/open-rails/djibgo-auth/core"
)

// Deliveries is an append-only in-memory core.DeliveryLog.
type Deliveries struct {
	mu      sync.Mutex
	records []core.DeliveryRecord
}

func NewDeliveries() *Deliveries { return &Deliveries{} }

func (d *Deliveries) AppendDeliveryRecord(ctx context.Context, rec core.DeliveryRecord) error {
	_ = ctx
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = append(d.records, rec)
	return nil
}

// Records returns a copy of everything appended so far.
func (d *Deliveries) Records() []core.DeliveryRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]core.DeliveryRecord(nil), d.records...)
}
