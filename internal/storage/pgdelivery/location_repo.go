package pgdelivery

import (
	"context"
	"fmt"
	"time"

	"livetrack/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

type LocationUpdate struct {
	DeliveryID uint64

	Latitude  float64
	Longitude float64

	LocationName string
	Accuracy     *float64

	// CheckpointKind overrides the kind of a created checkpoint. Empty means
	// transit.
	CheckpointKind string
}

// ApplyLocationUpdate performs the whole location step as one transaction:
// lock the delivery row, decide on a checkpoint against the stored position,
// overwrite the current position, insert the checkpoint if warranted. Either
// everything commits or nothing does. Returns the updated delivery and the
// created checkpoint (nil when the sample was gated away).
func (s *Storage) ApplyLocationUpdate(ctx context.Context, upd LocationUpdate) (*models.Delivery, *models.Checkpoint, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Row lock serializes concurrent writers to the same delivery; writers to
	// different deliveries proceed in parallel.
	row := tx.QueryRow(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1 FOR UPDATE`,
		upd.DeliveryID)
	d, err := scanDelivery(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, models.ErrDeliveryNotFound
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "select delivery for update")
	}

	checkpointed := s.decider.ShouldCheckpoint(d.CurrentLocation, upd.Latitude, upd.Longitude)

	_, err = tx.Exec(ctx, `
UPDATE deliveries
SET
  current_lat = $2,
  current_lon = $3,
  current_location_name = $4,
  last_location_update_at = $5,
  updated_at = $5
WHERE id = $1
`, upd.DeliveryID, upd.Latitude, upd.Longitude, upd.LocationName, now)
	if err != nil {
		return nil, nil, errors.Wrap(err, "update delivery position")
	}

	var cp *models.Checkpoint
	if checkpointed {
		kind := upd.CheckpointKind
		if kind == "" {
			kind = models.CheckpointTransit
		}
		desc := checkpointDescription(kind, upd.LocationName)

		var cpID uint64
		err = tx.QueryRow(ctx, `
INSERT INTO checkpoints (
  delivery_id, kind, location_name, latitude, longitude, accuracy, description, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING id
`, upd.DeliveryID, kind, upd.LocationName, upd.Latitude, upd.Longitude, upd.Accuracy, desc, now).Scan(&cpID)
		if err != nil {
			return nil, nil, errors.Wrap(err, "insert checkpoint")
		}

		cp = &models.Checkpoint{
			ID:           cpID,
			DeliveryID:   upd.DeliveryID,
			Kind:         kind,
			LocationName: upd.LocationName,
			Latitude:     upd.Latitude,
			Longitude:    upd.Longitude,
			Accuracy:     upd.Accuracy,
			Description:  desc,
			CreatedAt:    now,
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, errors.Wrap(err, "commit tx")
	}

	d.CurrentLocation = &models.Coordinate{Latitude: upd.Latitude, Longitude: upd.Longitude}
	d.CurrentLocationName = upd.LocationName
	d.LastLocationUpdateAt = &now
	d.UpdatedAt = now
	return d, cp, nil
}

func checkpointDescription(kind, locationName string) string {
	if locationName == "" {
		return fmt.Sprintf("Recorded %s position", kind)
	}
	return fmt.Sprintf("Recorded %s position near %s", kind, locationName)
}
