package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"magadrive/internal/redis"
	"magadrive/internal/repository/memory"
	"magadrive/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakePositions serves canned live positions keyed by ride ID.
type fakePositions struct {
	positions map[string]*redis.DriverPosition
}

func (f *fakePositions) GetPosition(ctx context.Context, rideID string) (*redis.DriverPosition, error) {
	return f.positions[rideID], nil
}

func newTestService() *service.RideService {
	rides := memory.NewRideStore()
	events := memory.NewEventLog()
	return service.NewRideService(
		memory.NewUnitOfWork(rides, events),
		rides,
		events,
		memory.NewIdempotencyStore(),
		service.NewRegistry(),
	)
}

func createTestRide(t *testing.T, svc *service.RideService) string {
	t.Helper()
	ride, err := svc.CreateRide(context.Background(), service.CreateRideRequest{
		IdempotencyKey: "key-" + t.Name(),
		RiderID:        "rider-1",
		Origin:         "Lenina 1",
		Destination:    "Portovaya 10",
		VehicleClass:   "comfort",
	})
	if err != nil {
		t.Fatalf("create ride: %v", err)
	}
	return ride.ID
}

func performRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetPosition_ServesLivePosition(t *testing.T) {
	t.Parallel()

	svc := newTestService()
	rideID := createTestRide(t, svc)

	positions := &fakePositions{positions: map[string]*redis.DriverPosition{
		rideID: {RideID: rideID, Lat: 59.5619, Lng: 150.8081},
	}}
	h := NewRideHandler(svc, positions)

	router := gin.New()
	router.GET("/v1/rides/:id/position", h.GetPosition)

	w := performRequest(router, http.MethodGet, "/v1/rides/"+rideID+"/position")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var got PositionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.RideID != rideID {
		t.Errorf("rideId = %s, want %s", got.RideID, rideID)
	}
	if got.Lat != 59.5619 || got.Lng != 150.8081 {
		t.Errorf("position = (%f, %f), want (59.5619, 150.8081)", got.Lat, got.Lng)
	}
}

func TestGetPosition_FallsBackToRideSnapshot(t *testing.T) {
	t.Parallel()

	svc := newTestService()
	rideID := createTestRide(t, svc)

	// Live index has nothing for this ride; the ride row is the fallback.
	h := NewRideHandler(svc, &fakePositions{positions: map[string]*redis.DriverPosition{}})

	router := gin.New()
	router.GET("/v1/rides/:id/position", h.GetPosition)

	w := performRequest(router, http.MethodGet, "/v1/rides/"+rideID+"/position")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var got PositionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.RideID != rideID {
		t.Errorf("rideId = %s, want %s", got.RideID, rideID)
	}
	if got.Lat != 0 || got.Lng != 0 {
		t.Errorf("expected zero fallback position before any update, got (%f, %f)", got.Lat, got.Lng)
	}
}

func TestGetPosition_UnknownRide(t *testing.T) {
	t.Parallel()

	h := NewRideHandler(newTestService(), &fakePositions{})

	router := gin.New()
	router.GET("/v1/rides/:id/position", h.GetPosition)

	w := performRequest(router, http.MethodGet, "/v1/rides/no-such-ride/position")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}

	var got ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Error == "" {
		t.Error("expected an error message")
	}
}

func TestGetAll_RespondsWithRideList(t *testing.T) {
	t.Parallel()

	svc := newTestService()
	rideID := createTestRide(t, svc)

	h := NewRideHandler(svc, nil)

	router := gin.New()
	router.GET("/v1/rides", h.GetAll)

	w := performRequest(router, http.MethodGet, "/v1/rides")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("content type = %s, want application/json", ct)
	}

	var got []RideResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 ride, got %d", len(got))
	}
	if got[0].ID != rideID {
		t.Errorf("id = %s, want %s", got[0].ID, rideID)
	}
	if got[0].Status != "REQUESTED" {
		t.Errorf("status = %s, want REQUESTED", got[0].Status)
	}
}
