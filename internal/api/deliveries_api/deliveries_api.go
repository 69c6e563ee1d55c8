// Package deliveries_api is the REST surface for portal collaborators: the
// order service registers deliveries here and receives the tracking link
// credentials in the response. Customer tracking itself runs over the
// realtime endpoints, not this API.
package deliveries_api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"livetrack/internal/geo"
	"livetrack/internal/models"
	"livetrack/internal/services/deliveries"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

type Service interface {
	CreateDelivery(ctx context.Context, in models.DeliveryCreateInput) (*models.Delivery, error)
	GetTracking(ctx context.Context, number, secret string) (*models.Snapshot, error)
	UpdateLocation(ctx context.Context, in deliveries.LocationInput) (*models.Delivery, *models.Checkpoint, error)
	UpdateStatus(ctx context.Context, in deliveries.StatusInput) (*models.Delivery, error)
	ActiveDeliveries(ctx context.Context) ([]*models.Delivery, error)
	GetDelivery(ctx context.Context, id uint64) (*models.Delivery, error)
}

type DeliveriesAPI struct {
	svc Service
}

func New(svc Service) *DeliveriesAPI {
	return &DeliveriesAPI{svc: svc}
}

func (a *DeliveriesAPI) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/deliveries", a.createDelivery)
		r.Get("/deliveries/active", a.activeDeliveries)
		r.Get("/deliveries/{deliveryID}", a.getDelivery)
		r.Post("/deliveries/{deliveryID}/location", a.updateLocation)
		r.Post("/deliveries/{deliveryID}/status", a.updateStatus)
		r.Get("/tracking/{trackingNumber}/{trackingSecret}", a.getTracking)
	})
}

type coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type createDeliveryRequest struct {
	OrderID string `json:"order_id"`

	PickupLocation   *coordinate `json:"pickup_location"`
	DeliveryLocation *coordinate `json:"delivery_location"`

	GPSTrackingEnabled      bool  `json:"gps_tracking_enabled"`
	LocationUpdateFrequency int32 `json:"location_update_frequency"`

	CourierName    string `json:"courier_name"`
	CourierPhone   string `json:"courier_phone"`
	CourierVehicle string `json:"courier_vehicle"`
}

// createDeliveryResponse is the one place the tracking secret ever leaves
// the service. The caller embeds it in the customer's tracking link.
type createDeliveryResponse struct {
	Delivery *models.Delivery `json:"delivery"`

	TrackingNumber      string    `json:"tracking_number"`
	TrackingSecret      string    `json:"tracking_secret"`
	TrackingLinkExpires time.Time `json:"tracking_link_expires"`
}

func (a *DeliveriesAPI) createDelivery(w http.ResponseWriter, r *http.Request) {
	var req createDeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrderID == "" {
		writeError(w, http.StatusBadRequest, "order_id is required")
		return
	}
	if !validOptionalCoord(req.PickupLocation) || !validOptionalCoord(req.DeliveryLocation) {
		writeError(w, http.StatusBadRequest, "coordinate out of range")
		return
	}

	d, err := a.svc.CreateDelivery(r.Context(), models.DeliveryCreateInput{
		OrderID:                 req.OrderID,
		PickupLocation:          toModelCoord(req.PickupLocation),
		DeliveryLocation:        toModelCoord(req.DeliveryLocation),
		GPSTrackingEnabled:      req.GPSTrackingEnabled,
		LocationUpdateFrequency: req.LocationUpdateFrequency,
		CourierName:             req.CourierName,
		CourierPhone:            req.CourierPhone,
		CourierVehicle:          req.CourierVehicle,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createDeliveryResponse{
		Delivery:            d,
		TrackingNumber:      d.TrackingNumber,
		TrackingSecret:      d.TrackingSecret,
		TrackingLinkExpires: d.TrackingLinkExpires,
	})
}

func (a *DeliveriesAPI) getTracking(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "trackingNumber")
	secret := chi.URLParam(r, "trackingSecret")

	snap, err := a.svc.GetTracking(r.Context(), number, secret)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type updateLocationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	LocationName   string   `json:"location_name"`
	Accuracy       *float64 `json:"accuracy"`
	CheckpointKind string   `json:"checkpoint_kind"`
}

type updateLocationResponse struct {
	Delivery   *models.Delivery   `json:"delivery"`
	Checkpoint *models.Checkpoint `json:"checkpoint,omitempty"`
}

func (a *DeliveriesAPI) updateLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := deliveryID(w, r)
	if !ok {
		return
	}

	var req updateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := geo.Validate(req.Latitude, req.Longitude); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, cp, err := a.svc.UpdateLocation(r.Context(), deliveries.LocationInput{
		DeliveryID:     id,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		LocationName:   req.LocationName,
		Accuracy:       req.Accuracy,
		CheckpointKind: req.CheckpointKind,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updateLocationResponse{Delivery: d, Checkpoint: cp})
}

type updateStatusRequest struct {
	Status      string `json:"status"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

func (a *DeliveriesAPI) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := deliveryID(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !models.ValidStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}

	d, err := a.svc.UpdateStatus(r.Context(), deliveries.StatusInput{
		DeliveryID:  id,
		Status:      req.Status,
		Location:    req.Location,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *DeliveriesAPI) activeDeliveries(w http.ResponseWriter, r *http.Request) {
	ds, err := a.svc.ActiveDeliveries(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if ds == nil {
		ds = []*models.Delivery{}
	}
	writeJSON(w, http.StatusOK, ds)
}

func (a *DeliveriesAPI) getDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := deliveryID(w, r)
	if !ok {
		return
	}
	d, err := a.svc.GetDelivery(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func deliveryID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "deliveryID"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "invalid delivery id")
		return 0, false
	}
	return id, true
}

func validOptionalCoord(c *coordinate) bool {
	if c == nil {
		return true
	}
	return geo.Validate(c.Latitude, c.Longitude) == nil
}

func toModelCoord(c *coordinate) *models.Coordinate {
	if c == nil {
		return nil
	}
	return &models.Coordinate{Latitude: c.Latitude, Longitude: c.Longitude}
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrDeliveryNotFound):
		writeError(w, http.StatusNotFound, "delivery not found")
	case errors.Is(err, models.ErrLinkExpired):
		writeError(w, http.StatusGone, "tracking link expired")
	case errors.Is(err, models.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "too many location updates")
	default:
		slog.Error("deliveries api", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "err", err)
	}
}
