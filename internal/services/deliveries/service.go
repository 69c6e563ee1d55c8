package deliveries

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"livetrack/internal/broker/messages"
	"livetrack/internal/cache"
	"livetrack/internal/credentials"
	"livetrack/internal/geo"
	"livetrack/internal/hub"
	"livetrack/internal/models"
	"livetrack/internal/storage/pgdelivery"
	"livetrack/internal/wire"

	"github.com/pkg/errors"
)

// SnapshotCheckpointLimit bounds how many recent checkpoints a tracking
// snapshot carries.
const SnapshotCheckpointLimit = 10

type Repository interface {
	TrackingNumberExists(ctx context.Context, number string) (bool, error)
	CreateDelivery(ctx context.Context, ins pgdelivery.DeliveryInsert) (*models.Delivery, error)
	GetDeliveryByID(ctx context.Context, id uint64) (*models.Delivery, error)
	GetByCredentials(ctx context.Context, number, secret string) (*models.Delivery, error)
	ListActiveDeliveries(ctx context.Context) ([]*models.Delivery, error)
	ListStatusUpdates(ctx context.Context, deliveryID uint64) ([]*models.StatusUpdate, error)
	ListCheckpoints(ctx context.Context, deliveryID uint64, limit int) ([]*models.Checkpoint, error)
	ApplyLocationUpdate(ctx context.Context, upd pgdelivery.LocationUpdate) (*models.Delivery, *models.Checkpoint, error)
	ApplyStatusUpdate(ctx context.Context, in pgdelivery.StatusInput) (*models.Delivery, *models.StatusUpdate, error)
}

// Broadcaster is the in-process fan-out point. Publishing is fire-and-forget
// from the service's point of view.
type Broadcaster interface {
	Publish(room string, event any)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Service struct {
	repo  Repository
	creds *credentials.Generator
	bcast Broadcaster

	cache       cache.BytesCache
	snapshotTTL time.Duration

	rl          RateLimiter
	rlPerMinute int64
	producer    Producer
	eventTopic  string
}

func New(repo Repository, creds *credentials.Generator, bcast Broadcaster, c cache.BytesCache, snapshotTTL time.Duration) *Service {
	return &Service{
		repo:        repo,
		creds:       creds,
		bcast:       bcast,
		cache:       c,
		snapshotTTL: snapshotTTL,
	}
}

// WithRateLimiter bounds how many location updates per minute a single
// delivery's feed may apply.
func (s *Service) WithRateLimiter(rl RateLimiter, perMinute int64) *Service {
	if rl != nil && perMinute > 0 {
		s.rl = rl
		s.rlPerMinute = perMinute
	}
	return s
}

// WithProducer wires the outbound checkpoint-created topic for the
// notification collaborator.
func (s *Service) WithProducer(p Producer, topic string) *Service {
	if p != nil && topic != "" {
		s.producer = p
		s.eventTopic = topic
	}
	return s
}

func (s *Service) CreateDelivery(ctx context.Context, in models.DeliveryCreateInput) (*models.Delivery, error) {
	if in.OrderID == "" {
		return nil, errors.New("orderId is required")
	}
	if in.PickupLocation != nil {
		if err := geo.Validate(in.PickupLocation.Latitude, in.PickupLocation.Longitude); err != nil {
			return nil, errors.Wrap(err, "pickup location")
		}
	}
	if in.DeliveryLocation != nil {
		if err := geo.Validate(in.DeliveryLocation.Latitude, in.DeliveryLocation.Longitude); err != nil {
			return nil, errors.Wrap(err, "delivery location")
		}
	}

	c, err := s.creds.Generate(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "generate credentials")
	}

	return s.repo.CreateDelivery(ctx, pgdelivery.DeliveryInsert{
		Input:          in,
		TrackingNumber: c.TrackingNumber,
		TrackingSecret: c.TrackingSecret,
		LinkExpires:    c.Expiry,
	})
}

type LocationInput struct {
	DeliveryID uint64

	Latitude  float64
	Longitude float64

	LocationName string
	Accuracy     *float64

	// CheckpointKind is transit unless the caller overrides it.
	CheckpointKind string
}

// UpdateLocation runs the atomic position update and, after commit, fans the
// change out to the delivery's room and the ops room. Broadcast and broker
// failures never roll back the persisted update.
func (s *Service) UpdateLocation(ctx context.Context, in LocationInput) (*models.Delivery, *models.Checkpoint, error) {
	if in.DeliveryID == 0 {
		return nil, nil, errors.New("deliveryId is required")
	}
	if err := geo.Validate(in.Latitude, in.Longitude); err != nil {
		return nil, nil, err
	}

	if s.rl != nil {
		allowed, _, err := s.rl.Allow(ctx, rateKey(in.DeliveryID), s.rlPerMinute, time.Minute)
		if err != nil {
			// Limiter outage must not block the feed.
			slog.Warn("rate limiter unavailable", "deliveryId", in.DeliveryID, "err", err)
		} else if !allowed {
			return nil, nil, models.ErrRateLimited
		}
	}

	d, cp, err := s.repo.ApplyLocationUpdate(ctx, pgdelivery.LocationUpdate{
		DeliveryID:     in.DeliveryID,
		Latitude:       in.Latitude,
		Longitude:      in.Longitude,
		LocationName:   in.LocationName,
		Accuracy:       in.Accuracy,
		CheckpointKind: in.CheckpointKind,
	})
	if err != nil {
		return nil, nil, err
	}

	s.invalidateSnapshot(ctx, d.TrackingNumber)

	ev := wire.LocationUpdate{
		Type:           wire.TypeLocationUpdate,
		DeliveryID:     d.ID,
		TrackingNumber: d.TrackingNumber,
		Latitude:       in.Latitude,
		Longitude:      in.Longitude,
		LocationName:   in.LocationName,
		Accuracy:       in.Accuracy,
		Timestamp:      derefTime(d.LastLocationUpdateAt),
	}
	s.bcast.Publish(hub.DeliveryRoom(d.TrackingNumber), ev)
	s.bcast.Publish(hub.OpsRoom, ev)

	if cp != nil && s.producer != nil {
		s.publishCheckpoint(ctx, d, cp)
	}

	return d, cp, nil
}

// ApplyFeedUpdate handles one message from the courier-device location topic.
// Per-message problems (bad sample, unknown delivery, rate limit) are logged
// and dropped so one poison message cannot stall the whole feed; only
// infrastructure errors propagate to the consumer loop.
func (s *Service) ApplyFeedUpdate(ctx context.Context, msg messages.LocationUpdated) error {
	if msg.DeliveryID == 0 {
		slog.Warn("feed sample without delivery id dropped")
		return nil
	}
	if err := geo.Validate(msg.Latitude, msg.Longitude); err != nil {
		slog.Warn("feed sample with invalid coordinate dropped", "deliveryId", msg.DeliveryID, "err", err)
		return nil
	}
	_, _, err := s.UpdateLocation(ctx, LocationInput{
		DeliveryID:   msg.DeliveryID,
		Latitude:     msg.Latitude,
		Longitude:    msg.Longitude,
		LocationName: msg.LocationName,
		Accuracy:     msg.Accuracy,
	})
	switch {
	case errors.Is(err, models.ErrRateLimited):
		// Drop the sample; the feed will send another one shortly.
		slog.Debug("feed sample rate limited", "deliveryId", msg.DeliveryID)
		return nil
	case errors.Is(err, models.ErrDeliveryNotFound):
		slog.Warn("feed sample for unknown delivery dropped", "deliveryId", msg.DeliveryID)
		return nil
	}
	return err
}

type StatusInput struct {
	DeliveryID  uint64
	Status      string
	Location    string
	Description string
}

// UpdateStatus appends the audit row and moves the delivery's status in one
// transaction, then broadcasts. Any enumerated status is legal from any
// state; business transition rules belong to the callers.
func (s *Service) UpdateStatus(ctx context.Context, in StatusInput) (*models.Delivery, error) {
	if in.DeliveryID == 0 {
		return nil, errors.New("deliveryId is required")
	}
	if !models.ValidStatus(in.Status) {
		return nil, errors.Errorf("unknown status: %q", in.Status)
	}

	d, su, err := s.repo.ApplyStatusUpdate(ctx, pgdelivery.StatusInput{
		DeliveryID:  in.DeliveryID,
		Status:      in.Status,
		Location:    in.Location,
		Description: in.Description,
	})
	if err != nil {
		return nil, err
	}

	s.invalidateSnapshot(ctx, d.TrackingNumber)

	ev := wire.StatusUpdate{
		Type:           wire.TypeStatusUpdate,
		DeliveryID:     d.ID,
		TrackingNumber: d.TrackingNumber,
		Status:         su.Status,
		Description:    su.Description,
		Location:       su.Location,
		Timestamp:      su.CreatedAt,
	}
	s.bcast.Publish(hub.DeliveryRoom(d.TrackingNumber), ev)
	s.bcast.Publish(hub.OpsRoom, ev)

	return d, nil
}

// GetTracking is the read-only snapshot query. The credential pair is
// verified first; the snapshot body may come from cache.
func (s *Service) GetTracking(ctx context.Context, number, secret string) (*models.Snapshot, error) {
	if number == "" || secret == "" {
		return nil, models.ErrDeliveryNotFound
	}

	d, err := s.repo.GetByCredentials(ctx, number, secret)
	if err != nil {
		return nil, err
	}
	if time.Now().UTC().After(d.TrackingLinkExpires) {
		return nil, models.ErrLinkExpired
	}

	if s.cache != nil && s.snapshotTTL > 0 {
		if b, ok, err := s.cache.Get(ctx, snapshotKey(number)); err == nil && ok {
			var snap models.Snapshot
			if json.Unmarshal(b, &snap) == nil {
				return &snap, nil
			}
		}
	}

	statusLog, err := s.repo.ListStatusUpdates(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	checkpoints, err := s.repo.ListCheckpoints(ctx, d.ID, SnapshotCheckpointLimit)
	if err != nil {
		return nil, err
	}

	snap := &models.Snapshot{
		Delivery:    d,
		StatusLog:   statusLog,
		Checkpoints: checkpoints,
	}

	if s.cache != nil && s.snapshotTTL > 0 {
		if b, err := json.Marshal(snap); err == nil {
			_ = s.cache.Set(ctx, snapshotKey(number), b, s.snapshotTTL)
		}
	}

	return snap, nil
}

func (s *Service) ActiveDeliveries(ctx context.Context) ([]*models.Delivery, error) {
	return s.repo.ListActiveDeliveries(ctx)
}

func (s *Service) GetDelivery(ctx context.Context, id uint64) (*models.Delivery, error) {
	if id == 0 {
		return nil, errors.New("deliveryId is required")
	}
	return s.repo.GetDeliveryByID(ctx, id)
}

func (s *Service) invalidateSnapshot(ctx context.Context, number string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, snapshotKey(number)); err != nil {
		slog.Warn("snapshot cache invalidation failed", "trackingNumber", number, "err", err)
	}
}

func (s *Service) publishCheckpoint(ctx context.Context, d *models.Delivery, cp *models.Checkpoint) {
	ev := messages.CheckpointCreated{
		DeliveryID:     d.ID,
		TrackingNumber: d.TrackingNumber,
		CheckpointID:   cp.ID,
		Kind:           cp.Kind,
		Latitude:       cp.Latitude,
		Longitude:      cp.Longitude,
		LocationName:   cp.LocationName,
		Description:    cp.Description,
		CreatedAt:      cp.CreatedAt,
	}
	b, err := json.Marshal(ev)
	if err != nil {
		slog.Error("marshal checkpoint event", "err", err)
		return
	}
	if err := s.producer.Publish(ctx, s.eventTopic, []byte(d.TrackingNumber), b); err != nil {
		// Best-effort: the persisted checkpoint is the source of truth.
		slog.Error("publish checkpoint event", "trackingNumber", d.TrackingNumber, "err", err)
	}
}

func snapshotKey(number string) string {
	return "snapshot:" + number
}

func rateKey(deliveryID uint64) string {
	return "loc:" + strconv.FormatUint(deliveryID, 10)
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
