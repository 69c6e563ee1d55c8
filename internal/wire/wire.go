// Package wire holds the JSON message contracts of the realtime protocol.
// Every message is a single object with a type discriminator; sessions
// forward hub events to clients verbatim.
package wire

import (
	"time"

	"livetrack/internal/models"
)

// Message types, client to server.
const (
	TypeGetTrackingData        = "get_tracking_data"
	TypeLocationUpdate         = "location_update"
	TypeUpdateDeliveryLocation = "update_delivery_location"
	TypeGetAllDeliveries       = "get_all_deliveries"
)

// Message types, server to client.
const (
	TypeTrackingData            = "tracking_data"
	TypeStatusUpdate            = "status_update"
	TypeDeliveryLocationUpdated = "delivery_location_updated"
	TypeAllDeliveries           = "all_deliveries"
	TypeError                   = "error"
	TypeSuccess                 = "success"
)

// Inbound is the decoded client message. One struct covers every inbound
// type; fields irrelevant to a given type stay zero. Coordinates are
// pointers so an absent field is distinguishable from a real 0.0.
type Inbound struct {
	Type string `json:"type"`

	DeliveryID uint64 `json:"delivery_id,omitempty"`

	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	LocationName string   `json:"location_name,omitempty"`
	Accuracy     *float64 `json:"accuracy,omitempty"`
}

// HasCoordinates reports whether the message carries both coordinate fields.
func (in Inbound) HasCoordinates() bool {
	return in.Latitude != nil && in.Longitude != nil
}

type TrackingData struct {
	Type     string           `json:"type"`
	Snapshot *models.Snapshot `json:"data"`
}

func NewTrackingData(s *models.Snapshot) TrackingData {
	return TrackingData{Type: TypeTrackingData, Snapshot: s}
}

type LocationUpdate struct {
	Type string `json:"type"`

	DeliveryID     uint64 `json:"delivery_id"`
	TrackingNumber string `json:"tracking_number"`

	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	LocationName string    `json:"location_name"`
	Accuracy     *float64  `json:"accuracy,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

type StatusUpdate struct {
	Type string `json:"type"`

	DeliveryID     uint64 `json:"delivery_id"`
	TrackingNumber string `json:"tracking_number"`

	Status      string    `json:"status"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Timestamp   time.Time `json:"timestamp"`
}

type DeliveryLocationUpdated struct {
	Type string `json:"type"`

	DeliveryID   uint64    `json:"delivery_id"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	LocationName string    `json:"location_name"`
	Timestamp    time.Time `json:"timestamp"`
}

type AllDeliveries struct {
	Type       string             `json:"type"`
	Deliveries []*models.Delivery `json:"deliveries"`
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(msg string) Error {
	return Error{Type: TypeError, Message: msg}
}

type Success struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewSuccess(msg string) Success {
	return Success{Type: TypeSuccess, Message: msg}
}
