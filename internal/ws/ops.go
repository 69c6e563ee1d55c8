package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"livetrack/internal/hub"
	"livetrack/internal/services/deliveries"
	"livetrack/internal/wire"
)

// serveOps handles the dispatch-dashboard session. The caller is assumed to
// arrive with a staff-authenticated context; authorize only gates, it does
// not authenticate.
func (h *Handler) serveOps(w http.ResponseWriter, r *http.Request) {
	if h.authorize != nil && !h.authorize(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("ws upgrade failed", "err", err)
		return
	}
	sess := newSession(conn)
	defer sess.close()

	h.hub.Subscribe(hub.OpsRoom, sess)
	defer h.hub.Unsubscribe(hub.OpsRoom, sess)

	if err := h.sendActiveDeliveries(r.Context(), sess); err != nil {
		return
	}

	h.readLoop(conn, sess, func(ctx context.Context, in wire.Inbound) {
		switch in.Type {
		case wire.TypeGetAllDeliveries:
			_ = h.sendActiveDeliveries(ctx, sess)

		case wire.TypeUpdateDeliveryLocation:
			if !in.HasCoordinates() {
				_ = sess.reply(wire.NewError("latitude and longitude are required"))
				return
			}
			d, _, err := h.svc.UpdateLocation(ctx, deliveries.LocationInput{
				DeliveryID:   in.DeliveryID,
				Latitude:     *in.Latitude,
				Longitude:    *in.Longitude,
				LocationName: in.LocationName,
				Accuracy:     in.Accuracy,
			})
			if err != nil {
				_ = sess.reply(wire.NewError(updateErrorMessage(err)))
				return
			}

			// Mirror to the dashboard and to any customer watching the same
			// delivery.
			ev := wire.DeliveryLocationUpdated{
				Type:         wire.TypeDeliveryLocationUpdated,
				DeliveryID:   d.ID,
				Latitude:     *in.Latitude,
				Longitude:    *in.Longitude,
				LocationName: in.LocationName,
				Timestamp:    time.Now().UTC(),
			}
			h.hub.Publish(hub.OpsRoom, ev)
			h.hub.Publish(hub.DeliveryRoom(d.TrackingNumber), ev)

			_ = sess.reply(wire.NewSuccess("delivery location updated"))

		default:
			_ = sess.reply(wire.NewError("unknown message type"))
		}
	})
}

func (h *Handler) sendActiveDeliveries(ctx context.Context, sess *session) error {
	ds, err := h.svc.ActiveDeliveries(ctx)
	if err != nil {
		return sess.reply(wire.NewError("deliveries unavailable"))
	}
	return sess.reply(wire.AllDeliveries{Type: wire.TypeAllDeliveries, Deliveries: ds})
}
