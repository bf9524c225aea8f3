package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"magadrive/internal/domain"
	"magadrive/internal/middleware"
	"magadrive/internal/redis"
	"magadrive/internal/service"
)

const idempotencyHeader = "Idempotency-Key"

// PositionReader reads the live driver position kept outside the ride row.
type PositionReader interface {
	GetPosition(ctx context.Context, rideID string) (*redis.DriverPosition, error)
}

var _ PositionReader = (*redis.TrackingStore)(nil)

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rideService *service.RideService
	positions   PositionReader // optional
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rideService *service.RideService, positions PositionReader) *RideHandler {
	return &RideHandler{rideService: rideService, positions: positions}
}

// CreateRideRequest is the HTTP request body for creating a ride.
type CreateRideRequest struct {
	RiderID      string `json:"riderId"`
	Origin       string `json:"origin"`
	Destination  string `json:"destination"`
	VehicleClass string `json:"vehicleClass,omitempty"`
}

// CancelRideRequest is the HTTP request body for cancelling a ride.
type CancelRideRequest struct {
	Reason string `json:"reason,omitempty"`
}

// RideResponse is the HTTP representation of a ride.
type RideResponse struct {
	ID           string `json:"id"`
	RiderID      string `json:"riderId"`
	Origin       string `json:"origin"`
	Destination  string `json:"destination"`
	VehicleClass string `json:"vehicleClass"`
	Status       string `json:"status"`

	DriverID      string  `json:"driverId,omitempty"`
	DriverName    string  `json:"driverName,omitempty"`
	DriverPhone   string  `json:"driverPhone,omitempty"`
	VehicleNumber string  `json:"vehicleNumber,omitempty"`
	DriverRating  float64 `json:"driverRating,omitempty"`

	EtaSeconds     int     `json:"etaSeconds,omitempty"`
	DistanceMeters float64 `json:"distanceMeters,omitempty"`
	Price          float64 `json:"price,omitempty"`
	Currency       string  `json:"currency,omitempty"`

	CancelReason string `json:"cancelReason,omitempty"`
	TraceID      string `json:"traceId,omitempty"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

func toRideResponse(ride *domain.Ride) RideResponse {
	return RideResponse{
		ID:             ride.ID,
		RiderID:        ride.RiderID,
		Origin:         ride.Origin,
		Destination:    ride.Destination,
		VehicleClass:   string(ride.VehicleClass),
		Status:         string(ride.Status),
		DriverID:       ride.Driver.ID,
		DriverName:     ride.Driver.Name,
		DriverPhone:    ride.Driver.Phone,
		VehicleNumber:  ride.Driver.VehicleNumber,
		DriverRating:   ride.Driver.Rating,
		EtaSeconds:     ride.EtaSeconds,
		DistanceMeters: ride.DistanceMeters,
		Price:          ride.Price,
		Currency:       ride.Currency,
		CancelReason:   ride.CancelReason,
		TraceID:        ride.TraceID,
		CreatedAt:      ride.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      ride.UpdatedAt.Format(time.RFC3339),
	}
}

// CreateRide handles POST /v1/rides
func (h *RideHandler) CreateRide(c *gin.Context) {
	var req CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	vehicleClass, err := domain.ValidateVehicleClass(req.VehicleClass)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	ride, err := h.rideService.CreateRide(c.Request.Context(), service.CreateRideRequest{
		IdempotencyKey: c.GetHeader(idempotencyHeader),
		RiderID:        req.RiderID,
		Origin:         req.Origin,
		Destination:    req.Destination,
		VehicleClass:   vehicleClass,
		TraceID:        middleware.RequestID(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toRideResponse(ride))
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, err := h.rideService.GetRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// CancelRide handles POST /v1/rides/:id/cancel
func (h *RideHandler) CancelRide(c *gin.Context) {
	var req CancelRideRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.rideService.CancelRide(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// CompleteRide handles POST /v1/rides/:id/complete
func (h *RideHandler) CompleteRide(c *gin.Context) {
	ride, err := h.rideService.CompleteRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// GetAll handles GET /v1/rides
func (h *RideHandler) GetAll(c *gin.Context) {
	rides, err := h.rideService.ListRides(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]RideResponse, 0, len(rides))
	for _, r := range rides {
		response = append(response, toRideResponse(r))
	}
	respondJSON(c, http.StatusOK, response)
}

// PositionResponse is the driver's last known position for a ride.
type PositionResponse struct {
	RideID string  `json:"rideId"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
}

// GetPosition handles GET /v1/rides/:id/position. The live index is
// preferred; the position persisted with the ride is the fallback.
func (h *RideHandler) GetPosition(c *gin.Context) {
	rideID := c.Param("id")

	ride, err := h.rideService.GetRide(c.Request.Context(), rideID)
	if err != nil {
		respondError(c, err)
		return
	}

	if h.positions != nil {
		pos, err := h.positions.GetPosition(c.Request.Context(), rideID)
		if err == nil && pos != nil {
			respondJSON(c, http.StatusOK, PositionResponse{RideID: rideID, Lat: pos.Lat, Lng: pos.Lng})
			return
		}
	}
	respondJSON(c, http.StatusOK, PositionResponse{RideID: rideID, Lat: ride.LiveLat, Lng: ride.LiveLng})
}
