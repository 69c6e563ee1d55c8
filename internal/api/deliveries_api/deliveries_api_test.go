package deliveries_api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"livetrack/internal/models"
	"livetrack/internal/services/deliveries"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	created  *models.Delivery
	snapshot *models.Snapshot
	active   []*models.Delivery

	createErr   error
	trackingErr error
	updateErr   error

	gotCreate   models.DeliveryCreateInput
	gotLocation deliveries.LocationInput
	gotStatus   deliveries.StatusInput
}

func (f *fakeService) CreateDelivery(ctx context.Context, in models.DeliveryCreateInput) (*models.Delivery, error) {
	f.gotCreate = in
	return f.created, f.createErr
}

func (f *fakeService) GetTracking(ctx context.Context, number, secret string) (*models.Snapshot, error) {
	if f.trackingErr != nil {
		return nil, f.trackingErr
	}
	return f.snapshot, nil
}

func (f *fakeService) UpdateLocation(ctx context.Context, in deliveries.LocationInput) (*models.Delivery, *models.Checkpoint, error) {
	f.gotLocation = in
	if f.updateErr != nil {
		return nil, nil, f.updateErr
	}
	return f.created, nil, nil
}

func (f *fakeService) UpdateStatus(ctx context.Context, in deliveries.StatusInput) (*models.Delivery, error) {
	f.gotStatus = in
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.created, nil
}

func (f *fakeService) ActiveDeliveries(ctx context.Context) ([]*models.Delivery, error) {
	return f.active, nil
}

func (f *fakeService) GetDelivery(ctx context.Context, id uint64) (*models.Delivery, error) {
	if f.created == nil || f.created.ID != id {
		return nil, models.ErrDeliveryNotFound
	}
	return f.created, nil
}

func testDelivery() *models.Delivery {
	now := time.Now().UTC()
	return &models.Delivery{
		ID:                  7,
		OrderID:             "ORD-7",
		TrackingNumber:      "AB12CD34EF56",
		TrackingSecret:      "s3cr3t-s3cr3t-s3cr3t-s3cr3t-s3cr3t-s3cr3t-s",
		TrackingLinkExpires: now.Add(30 * 24 * time.Hour),
		Status:              models.StatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func newServer(t *testing.T, svc Service) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	New(svc).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	return m
}

func TestCreateDelivery(t *testing.T) {
	svc := &fakeService{created: testDelivery()}
	srv := newServer(t, svc)

	resp := postJSON(t, srv.URL+"/api/deliveries", map[string]any{
		"order_id":        "ORD-7",
		"pickup_location": map[string]any{"latitude": 40.7128, "longitude": -74.0060},
		"courier_name":    "R. Fields",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decode(t, resp)
	require.Equal(t, "AB12CD34EF56", body["tracking_number"])
	require.Equal(t, svc.created.TrackingSecret, body["tracking_secret"])

	// The embedded delivery never carries the secret; only the explicit
	// credential fields do.
	delivery := body["delivery"].(map[string]any)
	require.NotContains(t, delivery, "tracking_secret")

	require.Equal(t, "ORD-7", svc.gotCreate.OrderID)
	require.NotNil(t, svc.gotCreate.PickupLocation)
	require.InDelta(t, 40.7128, svc.gotCreate.PickupLocation.Latitude, 1e-9)
}

func TestCreateDelivery_Validation(t *testing.T) {
	srv := newServer(t, &fakeService{})

	resp := postJSON(t, srv.URL+"/api/deliveries", map[string]any{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/deliveries", map[string]any{
		"order_id":        "ORD-1",
		"pickup_location": map[string]any{"latitude": 91.0, "longitude": 0.0},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetTracking_StatusMapping(t *testing.T) {
	d := testDelivery()
	svc := &fakeService{snapshot: &models.Snapshot{Delivery: d}}
	srv := newServer(t, svc)

	resp, err := http.Get(srv.URL + "/api/tracking/" + d.TrackingNumber + "/" + d.TrackingSecret)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	require.NotContains(t, body["delivery"].(map[string]any), "tracking_secret")

	svc.trackingErr = models.ErrDeliveryNotFound
	resp, err = http.Get(srv.URL + "/api/tracking/" + d.TrackingNumber + "/wrong")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	svc.trackingErr = models.ErrLinkExpired
	resp, err = http.Get(srv.URL + "/api/tracking/" + d.TrackingNumber + "/" + d.TrackingSecret)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusGone, resp.StatusCode)
}

func TestUpdateLocation(t *testing.T) {
	svc := &fakeService{created: testDelivery()}
	srv := newServer(t, svc)

	resp := postJSON(t, srv.URL+"/api/deliveries/7/location", map[string]any{
		"latitude":      40.7130,
		"longitude":     -74.0058,
		"location_name": "Crossing 5th Ave",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, uint64(7), svc.gotLocation.DeliveryID)
	require.Equal(t, "Crossing 5th Ave", svc.gotLocation.LocationName)
}

func TestUpdateLocation_Errors(t *testing.T) {
	svc := &fakeService{created: testDelivery()}
	srv := newServer(t, svc)

	resp := postJSON(t, srv.URL+"/api/deliveries/abc/location", map[string]any{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/deliveries/7/location", map[string]any{
		"latitude": 200.0, "longitude": 0.0,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	svc.updateErr = models.ErrRateLimited
	resp = postJSON(t, srv.URL+"/api/deliveries/7/location", map[string]any{
		"latitude": 1.0, "longitude": 1.0,
	})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	svc.updateErr = models.ErrDeliveryNotFound
	resp = postJSON(t, srv.URL+"/api/deliveries/7/location", map[string]any{
		"latitude": 1.0, "longitude": 1.0,
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateStatus(t *testing.T) {
	svc := &fakeService{created: testDelivery()}
	srv := newServer(t, svc)

	resp := postJSON(t, srv.URL+"/api/deliveries/7/status", map[string]any{
		"status":   "in_transit",
		"location": "Sorting hub",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "in_transit", svc.gotStatus.Status)

	resp = postJSON(t, srv.URL+"/api/deliveries/7/status", map[string]any{
		"status": "teleported",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestActiveDeliveries(t *testing.T) {
	svc := &fakeService{active: []*models.Delivery{testDelivery()}}
	srv := newServer(t, svc)

	resp, err := http.Get(srv.URL + "/api/deliveries/active")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ds []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ds))
	require.Len(t, ds, 1)
	require.NotContains(t, ds[0], "tracking_secret")
}

func TestActiveDeliveries_EmptyIsArray(t *testing.T) {
	srv := newServer(t, &fakeService{})

	resp, err := http.Get(srv.URL + "/api/deliveries/active")
	require.NoError(t, err)
	defer resp.Body.Close()

	b := new(bytes.Buffer)
	_, err = b.ReadFrom(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "[]", string(bytes.TrimSpace(b.Bytes())))
}
