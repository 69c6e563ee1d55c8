package pgdelivery

import (
	"context"
	"time"

	"livetrack/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const deliveryColumns = `
  id, order_id,
  tracking_number, tracking_secret, tracking_link_expires,
  status,
  pickup_lat, pickup_lon,
  delivery_lat, delivery_lon,
  current_lat, current_lon,
  current_location_name, last_location_update_at,
  gps_tracking_enabled, location_update_frequency,
  courier_name, courier_phone, courier_vehicle,
  created_at, updated_at`

func (s *Storage) TrackingNumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM deliveries WHERE tracking_number = $1)`, number,
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "check tracking number")
	}
	return exists, nil
}

type DeliveryInsert struct {
	Input models.DeliveryCreateInput

	TrackingNumber string
	TrackingSecret string
	LinkExpires    time.Time
}

func (s *Storage) CreateDelivery(ctx context.Context, ins DeliveryInsert) (*models.Delivery, error) {
	now := time.Now().UTC()
	in := ins.Input

	var pickupLat, pickupLon, deliveryLat, deliveryLon *float64
	if in.PickupLocation != nil {
		pickupLat, pickupLon = &in.PickupLocation.Latitude, &in.PickupLocation.Longitude
	}
	if in.DeliveryLocation != nil {
		deliveryLat, deliveryLon = &in.DeliveryLocation.Latitude, &in.DeliveryLocation.Longitude
	}

	var id uint64
	err := s.db.QueryRow(ctx, `
INSERT INTO deliveries (
  order_id, tracking_number, tracking_secret, tracking_link_expires,
  status,
  pickup_lat, pickup_lon, delivery_lat, delivery_lon,
  gps_tracking_enabled, location_update_frequency,
  courier_name, courier_phone, courier_vehicle,
  created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$15)
RETURNING id
`, in.OrderID, ins.TrackingNumber, ins.TrackingSecret, ins.LinkExpires.UTC(),
		models.StatusPending,
		pickupLat, pickupLon, deliveryLat, deliveryLon,
		in.GPSTrackingEnabled, in.LocationUpdateFrequency,
		in.CourierName, in.CourierPhone, in.CourierVehicle,
		now).Scan(&id)
	if err != nil {
		return nil, errors.Wrap(err, "insert delivery")
	}

	return s.GetDeliveryByID(ctx, id)
}

func (s *Storage) GetDeliveryByID(ctx context.Context, id uint64) (*models.Delivery, error) {
	row := s.db.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1`, id)
	d, err := scanDelivery(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrDeliveryNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select delivery")
	}
	return d, nil
}

// GetByCredentials matches number and secret as a pair. A wrong secret and an
// unknown number look identical to the caller.
func (s *Storage) GetByCredentials(ctx context.Context, number, secret string) (*models.Delivery, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries WHERE tracking_number = $1 AND tracking_secret = $2`,
		number, secret)
	d, err := scanDelivery(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrDeliveryNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select delivery by credentials")
	}
	return d, nil
}

func (s *Storage) ListActiveDeliveries(ctx context.Context) ([]*models.Delivery, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries WHERE status = ANY($1) ORDER BY updated_at DESC`,
		models.ActiveStatuses)
	if err != nil {
		return nil, errors.Wrap(err, "select active deliveries")
	}
	defer rows.Close()

	var out []*models.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan delivery")
		}
		out = append(out, d)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDelivery(row rowScanner) (*models.Delivery, error) {
	var d models.Delivery
	var pickupLat, pickupLon, deliveryLat, deliveryLon, currentLat, currentLon *float64
	var lastUpdate *time.Time

	if err := row.Scan(
		&d.ID, &d.OrderID,
		&d.TrackingNumber, &d.TrackingSecret, &d.TrackingLinkExpires,
		&d.Status,
		&pickupLat, &pickupLon,
		&deliveryLat, &deliveryLon,
		&currentLat, &currentLon,
		&d.CurrentLocationName, &lastUpdate,
		&d.GPSTrackingEnabled, &d.LocationUpdateFrequency,
		&d.CourierName, &d.CourierPhone, &d.CourierVehicle,
		&d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}

	d.PickupLocation = coordFrom(pickupLat, pickupLon)
	d.DeliveryLocation = coordFrom(deliveryLat, deliveryLon)
	d.CurrentLocation = coordFrom(currentLat, currentLon)
	d.LastLocationUpdateAt = lastUpdate
	return &d, nil
}

func coordFrom(lat, lon *float64) *models.Coordinate {
	if lat == nil || lon == nil {
		return nil
	}
	return &models.Coordinate{Latitude: *lat, Longitude: *lon}
}
