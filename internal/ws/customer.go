package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"livetrack/internal/hub"
	"livetrack/internal/models"
	"livetrack/internal/services/deliveries"
	"livetrack/internal/wire"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Deliveries is the slice of the delivery service the sessions need.
type Deliveries interface {
	GetTracking(ctx context.Context, number, secret string) (*models.Snapshot, error)
	UpdateLocation(ctx context.Context, in deliveries.LocationInput) (*models.Delivery, *models.Checkpoint, error)
	ActiveDeliveries(ctx context.Context) ([]*models.Delivery, error)
}

// serveCustomer handles the tracking-page session. The secret in the path is
// a bearer capability; a wrong secret and an unknown number get the same
// response so tracking numbers cannot be probed.
func (h *Handler) serveCustomer(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "trackingNumber")
	secret := chi.URLParam(r, "trackingSecret")

	snap, err := h.svc.GetTracking(r.Context(), number, secret)
	if err != nil && !errors.Is(err, models.ErrLinkExpired) {
		// Not found, and anything else: no detail.
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	conn, upErr := upgrader.Upgrade(w, r, nil)
	if upErr != nil {
		slog.Debug("ws upgrade failed", "err", upErr)
		return
	}
	sess := newSession(conn)
	defer sess.close()

	if errors.Is(err, models.ErrLinkExpired) {
		// The caller proved possession of the secret, so naming the reason
		// leaks nothing.
		_ = sess.reply(wire.NewError("tracking link expired"))
		return
	}

	room := hub.DeliveryRoom(number)
	h.hub.Subscribe(room, sess)
	defer h.hub.Unsubscribe(room, sess)

	if err := sess.reply(wire.NewTrackingData(snap)); err != nil {
		return
	}

	h.readLoop(conn, sess, func(ctx context.Context, in wire.Inbound) {
		switch in.Type {
		case wire.TypeGetTrackingData:
			snap, err := h.svc.GetTracking(ctx, number, secret)
			if err != nil {
				_ = sess.reply(wire.NewError("tracking data unavailable"))
				return
			}
			_ = sess.reply(wire.NewTrackingData(snap))

		case wire.TypeLocationUpdate:
			// Courier-side feed over the same channel.
			if !in.HasCoordinates() {
				_ = sess.reply(wire.NewError("latitude and longitude are required"))
				return
			}
			_, _, err := h.svc.UpdateLocation(ctx, deliveries.LocationInput{
				DeliveryID:   snap.Delivery.ID,
				Latitude:     *in.Latitude,
				Longitude:    *in.Longitude,
				LocationName: in.LocationName,
				Accuracy:     in.Accuracy,
			})
			if err != nil {
				_ = sess.reply(wire.NewError(updateErrorMessage(err)))
				return
			}
			_ = sess.reply(wire.NewSuccess("location updated"))

		default:
			_ = sess.reply(wire.NewError("unknown message type"))
		}
	})
}

// readLoop decodes inbound frames until the connection drops. Malformed
// frames get an error reply and the connection stays open.
func (h *Handler) readLoop(conn *websocket.Conn, sess *session, handle func(ctx context.Context, in wire.Inbound)) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := context.Background()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Debug("ws read", "err", err)
			}
			return
		}

		var in wire.Inbound
		if err := json.Unmarshal(data, &in); err != nil || in.Type == "" {
			_ = sess.reply(wire.NewError("invalid message"))
			continue
		}
		handle(ctx, in)
	}
}

func updateErrorMessage(err error) string {
	switch {
	case errors.Is(err, models.ErrDeliveryNotFound):
		return "delivery not found"
	case errors.Is(err, models.ErrRateLimited):
		return "too many location updates"
	default:
		return "location update failed"
	}
}
