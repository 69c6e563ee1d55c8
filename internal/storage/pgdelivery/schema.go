package pgdelivery

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS deliveries (
  id BIGSERIAL PRIMARY KEY,
  order_id TEXT NOT NULL,
  tracking_number TEXT NOT NULL,
  tracking_secret TEXT NOT NULL,
  tracking_link_expires TIMESTAMPTZ NOT NULL,
  status TEXT NOT NULL,
  pickup_lat DOUBLE PRECISION NULL,
  pickup_lon DOUBLE PRECISION NULL,
  delivery_lat DOUBLE PRECISION NULL,
  delivery_lon DOUBLE PRECISION NULL,
  current_lat DOUBLE PRECISION NULL,
  current_lon DOUBLE PRECISION NULL,
  current_location_name TEXT NOT NULL DEFAULT '',
  last_location_update_at TIMESTAMPTZ NULL,
  gps_tracking_enabled BOOLEAN NOT NULL DEFAULT TRUE,
  location_update_frequency INT NOT NULL DEFAULT 60,
  courier_name TEXT NOT NULL DEFAULT '',
  courier_phone TEXT NOT NULL DEFAULT '',
  courier_vehicle TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (order_id),
  UNIQUE (tracking_number),
  UNIQUE (tracking_secret)
)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_status ON deliveries(status)`,
		`
CREATE TABLE IF NOT EXISTS status_updates (
  id BIGSERIAL PRIMARY KEY,
  delivery_id BIGINT NOT NULL REFERENCES deliveries(id) ON DELETE CASCADE,
  status TEXT NOT NULL,
  location TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_status_updates_delivery_id_created_at ON status_updates(delivery_id, created_at DESC)`,
		`
CREATE TABLE IF NOT EXISTS checkpoints (
  id BIGSERIAL PRIMARY KEY,
  delivery_id BIGINT NOT NULL REFERENCES deliveries(id) ON DELETE CASCADE,
  kind TEXT NOT NULL,
  location_name TEXT NOT NULL DEFAULT '',
  latitude DOUBLE PRECISION NOT NULL,
  longitude DOUBLE PRECISION NOT NULL,
  accuracy DOUBLE PRECISION NULL,
  description TEXT NOT NULL DEFAULT '',
  estimated_arrival TIMESTAMPTZ NULL,
  actual_arrival TIMESTAMPTZ NULL,
  courier_notes TEXT NOT NULL DEFAULT '',
  customer_notified BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_checkpoints_delivery_id_created_at ON checkpoints(delivery_id, created_at DESC)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
