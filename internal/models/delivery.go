package models

import "time"

// Delivery statuses. delivered/failed/returned are terminal; the side
// branches are reachable from any non-terminal status.
const (
	StatusPending        = "pending"
	StatusConfirmed      = "confirmed"
	StatusInTransit      = "in_transit"
	StatusOutForDelivery = "out_for_delivery"
	StatusDelivered      = "delivered"
	StatusFailed         = "failed"
	StatusReturned       = "returned"
)

// ActiveStatuses are the statuses shown on the operations dashboard.
var ActiveStatuses = []string{StatusConfirmed, StatusInTransit, StatusOutForDelivery}

func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInTransit, StatusOutForDelivery,
		StatusDelivered, StatusFailed, StatusReturned:
		return true
	}
	return false
}

// Coordinate is a lat/lon pair. A delivery either has the whole pair or
// nothing; latitude without longitude never occurs.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Delivery struct {
	ID      uint64 `json:"id"`
	OrderID string `json:"order_id"`

	TrackingNumber      string    `json:"tracking_number"`
	TrackingSecret      string    `json:"-"`
	TrackingLinkExpires time.Time `json:"tracking_link_expires"`

	Status string `json:"status"`

	PickupLocation   *Coordinate `json:"pickup_location,omitempty"`
	DeliveryLocation *Coordinate `json:"delivery_location,omitempty"`
	CurrentLocation  *Coordinate `json:"current_location,omitempty"`

	CurrentLocationName  string     `json:"current_location_name,omitempty"`
	LastLocationUpdateAt *time.Time `json:"last_location_update,omitempty"`

	GPSTrackingEnabled      bool  `json:"gps_tracking_enabled"`
	LocationUpdateFrequency int32 `json:"location_update_frequency"`

	CourierName    string `json:"courier_name,omitempty"`
	CourierPhone   string `json:"courier_phone,omitempty"`
	CourierVehicle string `json:"courier_vehicle,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusUpdate is the append-only audit row for a status transition. The
// parent delivery's status field changes only together with one of these.
type StatusUpdate struct {
	ID          uint64    `json:"id"`
	DeliveryID  uint64    `json:"delivery_id"`
	Status      string    `json:"status"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Checkpoint kinds.
const (
	CheckpointPickup    = "pickup"
	CheckpointTransit   = "transit"
	CheckpointDelivery  = "delivery"
	CheckpointException = "exception"
)

// Checkpoint is a distance-gated sample of the delivery's physical journey,
// a sampled subset of the raw location feed.
type Checkpoint struct {
	ID           uint64     `json:"id"`
	DeliveryID   uint64     `json:"delivery_id"`
	Kind         string     `json:"kind"`
	LocationName string     `json:"location_name,omitempty"`
	Latitude     float64    `json:"latitude"`
	Longitude    float64    `json:"longitude"`
	Accuracy     *float64   `json:"accuracy,omitempty"`
	Description  string     `json:"description,omitempty"`
	EstimatedAt  *time.Time `json:"estimated_arrival,omitempty"`
	ArrivedAt    *time.Time `json:"actual_arrival,omitempty"`
	CourierNotes string     `json:"courier_notes,omitempty"`
	Notified     bool       `json:"customer_notified"`
	CreatedAt    time.Time  `json:"created_at"`
}

type DeliveryCreateInput struct {
	OrderID string

	PickupLocation   *Coordinate
	DeliveryLocation *Coordinate

	GPSTrackingEnabled      bool
	LocationUpdateFrequency int32

	CourierName    string
	CourierPhone   string
	CourierVehicle string
}

// Snapshot is the full tracking view sent to customer sessions on connect and
// returned by the read-only query. Checkpoints hold the most recent entries,
// newest first.
type Snapshot struct {
	Delivery    *Delivery       `json:"delivery"`
	StatusLog   []*StatusUpdate `json:"status_updates"`
	Checkpoints []*Checkpoint   `json:"checkpoints"`
}
