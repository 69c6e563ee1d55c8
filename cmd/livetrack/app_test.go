package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"livetrack/internal/credentials"
	"livetrack/internal/hub"
	"livetrack/internal/models"
	"livetrack/internal/services/deliveries"
	"livetrack/internal/storage/pgdelivery"

	"github.com/stretchr/testify/require"
)

type fakeRepo struct{}

func (r *fakeRepo) TrackingNumberExists(ctx context.Context, number string) (bool, error) {
	return false, nil
}
func (r *fakeRepo) CreateDelivery(ctx context.Context, ins pgdelivery.DeliveryInsert) (*models.Delivery, error) {
	return &models.Delivery{}, nil
}
func (r *fakeRepo) GetDeliveryByID(ctx context.Context, id uint64) (*models.Delivery, error) {
	return nil, models.ErrDeliveryNotFound
}
func (r *fakeRepo) GetByCredentials(ctx context.Context, number, secret string) (*models.Delivery, error) {
	return nil, models.ErrDeliveryNotFound
}
func (r *fakeRepo) ListActiveDeliveries(ctx context.Context) ([]*models.Delivery, error) {
	return []*models.Delivery{}, nil
}
func (r *fakeRepo) ListStatusUpdates(ctx context.Context, deliveryID uint64) ([]*models.StatusUpdate, error) {
	return []*models.StatusUpdate{}, nil
}
func (r *fakeRepo) ListCheckpoints(ctx context.Context, deliveryID uint64, limit int) ([]*models.Checkpoint, error) {
	return []*models.Checkpoint{}, nil
}
func (r *fakeRepo) ApplyLocationUpdate(ctx context.Context, upd pgdelivery.LocationUpdate) (*models.Delivery, *models.Checkpoint, error) {
	return nil, nil, models.ErrDeliveryNotFound
}
func (r *fakeRepo) ApplyStatusUpdate(ctx context.Context, in pgdelivery.StatusInput) (*models.Delivery, *models.StatusUpdate, error) {
	return nil, nil, models.ErrDeliveryNotFound
}

type fakeConsumer struct{}

func (c fakeConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRunLiveTrack_ServesHTTP(t *testing.T) {
	dir := t.TempDir()
	sw := filepath.Join(dir, "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))

	repo := &fakeRepo{}
	h := hub.New()
	svc := deliveries.New(repo, credentials.New(repo, 0), h, nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	opts := liveTrackOpts{
		httpAddr:      "127.0.0.1:0",
		swaggerPath:   sw,
		topic:         "t",
		consumerGroup: "g",
		onListen:      func(addr string) { addrCh <- addr },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLiveTrack(ctx, opts, svc, h, fakeConsumer{})
	}()

	addr := <-addrCh

	resp, err := http.Get("http://" + addr + "/swagger.json")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	require.Contains(t, string(body), "\"swagger\"")

	resp, err = http.Get("http://" + addr + "/api/deliveries/active")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	resp, err = http.Get("http://" + addr + "/api/tracking/UNKNOWN000AA/secret")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, 404, resp.StatusCode)

	cancel()

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting server to stop")
	}
}

func TestRunLiveTrack_MissingSwagger(t *testing.T) {
	repo := &fakeRepo{}
	h := hub.New()
	svc := deliveries.New(repo, credentials.New(repo, 0), h, nil, 0)

	err := runLiveTrack(context.Background(), liveTrackOpts{
		httpAddr:    "127.0.0.1:0",
		swaggerPath: filepath.Join(t.TempDir(), "missing.json"),
	}, svc, h, fakeConsumer{})
	require.Error(t, err)
}

func TestFeedHandler_DropsPoisonMessages(t *testing.T) {
	repo := &fakeRepo{}
	h := hub.New()
	svc := deliveries.New(repo, credentials.New(repo, 0), h, nil, 0)

	ctx := context.Background()
	handler := feedHandler(ctx, svc)

	// Undecodable and unknown-delivery messages return nil so the consumer
	// commits them and keeps reading.
	require.NoError(t, handler(nil, []byte("{not json")))
	require.NoError(t, handler(nil, []byte(`{"delivery_id":42,"latitude":1,"longitude":1}`)))
}

func TestOpsTokenAuthorizer(t *testing.T) {
	require.Nil(t, opsTokenAuthorizer(""))

	auth := opsTokenAuthorizer("tok")
	req, _ := http.NewRequest(http.MethodGet, "/ws/ops", nil)
	require.False(t, auth(req))
	req.Header.Set("Authorization", "Bearer tok")
	require.True(t, auth(req))
}
