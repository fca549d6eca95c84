package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenmobilitypass/tripdetect/internal/api"
	"github.com/greenmobilitypass/tripdetect/internal/api/models"
	"github.com/greenmobilitypass/tripdetect/internal/controller"
	"github.com/greenmobilitypass/tripdetect/internal/engine"
	"github.com/greenmobilitypass/tripdetect/internal/journey"
)

type testAPI struct {
	router     http.Handler
	controller *controller.Controller
	store      journey.Repository
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store := journey.NewInMemoryRepository()
	perms := controller.StaticPermissions{Location: true, ActivityRecognition: true, Notifications: true}
	ctl := controller.New(controller.Config{
		Engine: engine.Config{
			StartDebounce: 20 * time.Millisecond,
			StopDebounce:  25 * time.Millisecond,
		},
	}, controller.Deps{
		Logger:      zerolog.Nop(),
		Store:       store,
		Permissions: perms,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = ctl.Stop(ctx)
	})

	router := api.NewRouter(api.RouterConfig{
		Version:        "test",
		BuildTime:      "now",
		Logger:         zerolog.Nop(),
		Controller:     ctl,
		JourneyService: journey.NewService(store),
		Permissions:    perms,
	})

	return &testAPI{router: router, controller: ctl, store: store}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func createJourneyBody(departure time.Time) models.JourneyCreateRequest {
	return models.JourneyCreateRequest{
		TimeDeparture:  models.Timestamp(departure),
		TimeArrival:    models.Timestamp(departure.Add(25 * time.Minute)),
		DistanceKm:     4.2,
		TransportType:  "velo",
		PlaceDeparture: "Gare de Lyon",
		PlaceArrival:   "République",
	}
}

func TestRouter_Health(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/v1/ops/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"OK"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRouter_ReadyWithoutStoreCheck(t *testing.T) {
	a := newTestAPI(t)

	// No ReadyChecker wired: the in-memory store is always ready.
	rec := a.do(t, http.MethodGet, "/v1/ops/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_SystemStatusReportsStoppedEngine(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/v1/ops/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusDegraded, status.Status)
}

func TestRouter_JourneyLifecycle(t *testing.T) {
	a := newTestAPI(t)
	departure := time.Date(2026, 3, 12, 8, 30, 0, 0, time.UTC)

	rec := a.do(t, http.MethodGet, "/v1/journeys/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list models.JourneyList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Zero(t, list.Count)

	rec = a.do(t, http.MethodPost, "/v1/journeys/", createJourneyBody(departure))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.Journey
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "velo", created.TransportType)
	assert.Equal(t, "manual", created.DetectionSource)
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, 25, created.DurationMinutes)
	assert.Equal(t, "/v1/journeys/"+created.ID, rec.Header().Get("Location"))

	rec = a.do(t, http.MethodGet, "/v1/journeys/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Review correction: reclassify to public transport.
	transport := "transport_commun"
	rec = a.do(t, http.MethodPatch, "/v1/journeys/"+created.ID, models.JourneyUpdateRequest{
		TransportType: &transport,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated models.Journey
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "transport_commun", updated.TransportType)
	assert.InDelta(t, 4.2, updated.DistanceKm, 1e-9, "absent fields stay unchanged")

	// Marking sent twice must succeed both times.
	for i := 0; i < 2; i++ {
		rec = a.do(t, http.MethodPost, "/v1/journeys/"+created.ID+"/sent", nil)
		require.Equal(t, http.StatusOK, rec.Code, "markSent call %d", i+1)
		var sent models.Journey
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sent))
		assert.Equal(t, "sent", sent.Status)
	}

	// Sent journeys drop out of the pending filter.
	rec = a.do(t, http.MethodGet, "/v1/journeys/?status=pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Zero(t, list.Count)

	rec = a.do(t, http.MethodDelete, "/v1/journeys/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(t, http.MethodGet, "/v1/journeys/"+created.ID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestRouter_CreateJourneyValidation(t *testing.T) {
	a := newTestAPI(t)

	body := createJourneyBody(time.Now())
	body.TransportType = "fusee"
	rec := a.do(t, http.MethodPost, "/v1/journeys/", body)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "transportType")
}

func TestRouter_UnknownStatusFilter(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/v1/journeys/?status=archived", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_DetectionLifecycle(t *testing.T) {
	a := newTestAPI(t)

	// Stopped pipeline: status reports not running, ingest conflicts.
	rec := a.do(t, http.MethodGet, "/v1/detection/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status models.DetectionStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Running)
	assert.Equal(t, "IDLE", status.State)

	rec = a.do(t, http.MethodPost, "/v1/ingest/activity", models.ActivityIngest{
		Activity: "WALKING", Transition: "ENTER", Confidence: 80,
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/detection/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(t, http.MethodPost, "/v1/detection/start", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/ingest/activity", models.ActivityIngest{
		Activity: "WALKING", Transition: "ENTER", Confidence: 80,
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	rec = a.do(t, http.MethodPost, "/v1/ingest/location", models.LocationIngest{
		Lat: 48.85, Lon: 2.35, AccuracyMeters: 12,
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = a.do(t, http.MethodPut, "/v1/detection/debug", models.DebugModeRequest{Enabled: true})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.DebugMode)

	rec = a.do(t, http.MethodPost, "/v1/detection/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(t, http.MethodPost, "/v1/detection/stop", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestRouter_SimulateTrip(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/v1/detection/simulate", models.SimulateTripRequest{
		TransportType: "marche", DurationMinutes: 15,
	})
	require.Equal(t, http.StatusConflict, rec.Code, "simulation requires a running pipeline")

	rec = a.do(t, http.MethodPost, "/v1/detection/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/detection/simulate", models.SimulateTripRequest{
		TransportType: "marche", DurationMinutes: 15,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var j models.Journey
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &j))
	assert.Equal(t, "marche", j.TransportType)
	assert.Equal(t, 15, j.DurationMinutes)

	// The simulated trip is durably stored and visible through the API.
	rec = a.do(t, http.MethodGet, "/v1/journeys/"+j.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/detection/simulate", models.SimulateTripRequest{
		TransportType: "teleporteur", DurationMinutes: 5,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_Permissions(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/v1/detection/permissions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var perms models.PermissionsStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &perms))
	assert.True(t, perms.DetectionGranted)
}

func TestRouter_StartWithoutPermissions(t *testing.T) {
	store := journey.NewInMemoryRepository()
	perms := controller.StaticPermissions{Location: true} // no activity recognition
	ctl := controller.New(controller.Config{}, controller.Deps{
		Logger:      zerolog.Nop(),
		Store:       store,
		Permissions: perms,
	})
	router := api.NewRouter(api.RouterConfig{
		Logger:         zerolog.Nop(),
		Controller:     ctl,
		JourneyService: journey.NewService(store),
		Permissions:    perms,
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/detection/start", http.NoBody)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "permission-denied")
}
