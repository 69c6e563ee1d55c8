package pgdelivery

import (
	"context"
	"time"

	"livetrack/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

type StatusInput struct {
	DeliveryID  uint64
	Status      string
	Location    string
	Description string
}

// ApplyStatusUpdate appends the audit row and moves the delivery's status in
// the same transaction, so the two can never diverge. This is the only write
// path that touches deliveries.status.
func (s *Storage) ApplyStatusUpdate(ctx context.Context, in StatusInput) (*models.Delivery, *models.StatusUpdate, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1 FOR UPDATE`,
		in.DeliveryID)
	d, err := scanDelivery(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, models.ErrDeliveryNotFound
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "select delivery for update")
	}

	var suID uint64
	err = tx.QueryRow(ctx, `
INSERT INTO status_updates (delivery_id, status, location, description, created_at)
VALUES ($1,$2,$3,$4,$5)
RETURNING id
`, in.DeliveryID, in.Status, in.Location, in.Description, now).Scan(&suID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "insert status update")
	}

	_, err = tx.Exec(ctx,
		`UPDATE deliveries SET status = $2, updated_at = $3 WHERE id = $1`,
		in.DeliveryID, in.Status, now)
	if err != nil {
		return nil, nil, errors.Wrap(err, "update delivery status")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, errors.Wrap(err, "commit tx")
	}

	d.Status = in.Status
	d.UpdatedAt = now
	su := &models.StatusUpdate{
		ID:          suID,
		DeliveryID:  in.DeliveryID,
		Status:      in.Status,
		Location:    in.Location,
		Description: in.Description,
		CreatedAt:   now,
	}
	return d, su, nil
}

func (s *Storage) ListStatusUpdates(ctx context.Context, deliveryID uint64) ([]*models.StatusUpdate, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, delivery_id, status, location, description, created_at
FROM status_updates
WHERE delivery_id = $1
ORDER BY created_at DESC, id DESC
`, deliveryID)
	if err != nil {
		return nil, errors.Wrap(err, "select status updates")
	}
	defer rows.Close()

	var out []*models.StatusUpdate
	for rows.Next() {
		var u models.StatusUpdate
		if err := rows.Scan(&u.ID, &u.DeliveryID, &u.Status, &u.Location, &u.Description, &u.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan status update")
		}
		out = append(out, &u)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
