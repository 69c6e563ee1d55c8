package messages

import "time"

// LocationUpdated is the courier-device feed contract on the location ingest
// topic. One message per GPS sample; the checkpoint gate is applied on our
// side, not the device's.
type LocationUpdated struct {
	DeliveryID uint64 `json:"delivery_id"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	LocationName string   `json:"location_name,omitempty"`
	Accuracy     *float64 `json:"accuracy,omitempty"`

	RecordedAt time.Time `json:"recorded_at,omitempty"`
}

// CheckpointCreated is published for the notification collaborator whenever
// a location sample survives the checkpoint gate.
type CheckpointCreated struct {
	DeliveryID     uint64 `json:"delivery_id"`
	TrackingNumber string `json:"tracking_number"`

	CheckpointID uint64  `json:"checkpoint_id"`
	Kind         string  `json:"kind"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	LocationName string  `json:"location_name,omitempty"`
	Description  string  `json:"description,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
