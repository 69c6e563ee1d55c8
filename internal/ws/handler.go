package ws

import (
	"net/http"

	"livetrack/internal/hub"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Tracking pages are served from arbitrary portal origins; the secret
		// in the path is the access control, not the Origin header.
		return true
	},
}

// Handler serves the customer and operations realtime sessions.
type Handler struct {
	svc Deliveries
	hub *hub.Hub

	// authorize gates the ops endpoint. Staff authentication itself is the
	// portal's concern; when nil every caller is let through.
	authorize func(r *http.Request) bool
}

func NewHandler(svc Deliveries, h *hub.Hub) *Handler {
	return &Handler{svc: svc, hub: h}
}

// WithOpsAuthorizer installs the gate for /ws/ops connections.
func (h *Handler) WithOpsAuthorizer(f func(r *http.Request) bool) *Handler {
	h.authorize = f
	return h
}

// Register mounts the websocket routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/ws/track/{trackingNumber}/{trackingSecret}", h.serveCustomer)
	r.Get("/ws/ops", h.serveOps)
}
