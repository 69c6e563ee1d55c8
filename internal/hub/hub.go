package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// OpsRoom is the single global operations room. Every location and status
// change is mirrored here for the dispatch dashboard.
const OpsRoom = "ops"

// DeliveryRoom names the per-delivery room for a tracking number.
func DeliveryRoom(trackingNumber string) string {
	return "delivery:" + trackingNumber
}

// Sink receives marshaled events. A Send error marks the sink dead and it is
// pruned from the room being published to.
type Sink interface {
	Send(event []byte) error
}

// Hub is the in-process broadcast point: room name -> set of sinks. It holds
// no history; sessions compensate by sending a full snapshot on connect.
// Multiple service instances do not share hub state.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[Sink]struct{}
}

func New() *Hub {
	return &Hub{
		rooms: make(map[string]map[Sink]struct{}),
	}
}

func (h *Hub) Subscribe(room string, s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.rooms[room]
	if !ok {
		set = make(map[Sink]struct{})
		h.rooms[room] = set
	}
	set[s] = struct{}{}
}

func (h *Hub) Unsubscribe(room string, s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(room, s)
}

// Publish marshals event once and delivers it to every sink currently in the
// room. Best-effort: a sink that fails to accept the event is dropped from
// the room, never retried.
func (h *Hub) Publish(room string, event any) {
	b, err := json.Marshal(event)
	if err != nil {
		slog.Error("hub: marshal event", "room", room, "err", err)
		return
	}
	h.PublishRaw(room, b)
}

// PublishRaw delivers pre-marshaled bytes, used when forwarding an event to
// a second room without re-encoding.
func (h *Hub) PublishRaw(room string, event []byte) {
	h.mu.RLock()
	sinks := make([]Sink, 0, len(h.rooms[room]))
	for s := range h.rooms[room] {
		sinks = append(sinks, s)
	}
	h.mu.RUnlock()

	var dead []Sink
	for _, s := range sinks {
		if err := s.Send(event); err != nil {
			dead = append(dead, s)
		}
	}
	if len(dead) == 0 {
		return
	}

	h.mu.Lock()
	for _, s := range dead {
		h.removeLocked(room, s)
	}
	h.mu.Unlock()
	slog.Debug("hub: pruned dead subscribers", "room", room, "count", len(dead))
}

// RoomSize reports current membership.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) removeLocked(room string, s Sink) {
	set, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.rooms, room)
	}
}
