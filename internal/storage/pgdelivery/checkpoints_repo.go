package pgdelivery

import (
	"context"

	"livetrack/internal/models"

	"github.com/pkg/errors"
)

// ListCheckpoints returns the most recent checkpoints, newest first.
func (s *Storage) ListCheckpoints(ctx context.Context, deliveryID uint64, limit int) ([]*models.Checkpoint, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.db.Query(ctx, `
SELECT
  id, delivery_id, kind, location_name, latitude, longitude,
  accuracy, description, estimated_arrival, actual_arrival,
  courier_notes, customer_notified, created_at
FROM checkpoints
WHERE delivery_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`, deliveryID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select checkpoints")
	}
	defer rows.Close()

	var out []*models.Checkpoint
	for rows.Next() {
		var c models.Checkpoint
		if err := rows.Scan(
			&c.ID, &c.DeliveryID, &c.Kind, &c.LocationName, &c.Latitude, &c.Longitude,
			&c.Accuracy, &c.Description, &c.EstimatedAt, &c.ArrivedAt,
			&c.CourierNotes, &c.Notified, &c.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan checkpoint")
		}
		out = append(out, &c)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// CountCheckpoints is used by tests and the ops stats endpoint.
func (s *Storage) CountCheckpoints(ctx context.Context, deliveryID uint64) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM checkpoints WHERE delivery_id = $1`, deliveryID,
	).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "count checkpoints")
	}
	return n, nil
}
