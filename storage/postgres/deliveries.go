package pgstore

import (
	"context"

	"github.com/open-rails/djibgo-auth/core"
)

func (s *Store) AppendDeliveryRecord(ctx context.Context, rec core.DeliveryRecord) error {
	_, err := s.pg.Exec(ctx, `
		INSERT INTO profiles.delivery_records (id, user_id, phone, channel, status, summary, created_at)
		VALUES ($1, $2::uuid, $3, $4, $5, $6, $7)`,
		rec.ID, rec.UserID, rec.Phone, rec.Channel, rec.Status, rec.Summary, rec.CreatedAt)
	return err
}

// ListDeliveryRecords returns the newest records for a user first.
func (s *Store) ListDeliveryRecords(ctx context.Context, userID string, limit int) ([]core.DeliveryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pg.Query(ctx, `
		SELECT id, user_id::text, phone, channel, status, summary, created_at
		FROM profiles.delivery_records
		WHERE user_id = $1::uuid
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.DeliveryRecord
	for rows.Next() {
		var r core.DeliveryRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.Phone, &r.Channel, &r.Status, &r.Summary, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
