package domain

import "time"

// RideStatus represents the current status of a ride.
type RideStatus string

const (
	RideStatusRequested RideStatus = "REQUESTED"
	RideStatusAssigned  RideStatus = "ASSIGNED"
	RideStatusOnTheWay  RideStatus = "ON_THE_WAY"
	RideStatusCompleted RideStatus = "COMPLETED"
	RideStatusCanceled  RideStatus = "CANCELED"
)

// VehicleClass represents the requested vehicle category.
type VehicleClass string

const (
	VehicleClassEconomy  VehicleClass = "economy"
	VehicleClassComfort  VehicleClass = "comfort"
	VehicleClassBusiness VehicleClass = "business"
)

// allowedTransitions is the directed ride status graph. Completed and
// Canceled are terminal.
var allowedTransitions = map[RideStatus][]RideStatus{
	RideStatusRequested: {RideStatusAssigned, RideStatusCanceled},
	RideStatusAssigned:  {RideStatusOnTheWay, RideStatusCompleted, RideStatusCanceled},
	RideStatusOnTheWay:  {RideStatusCompleted, RideStatusCanceled},
}

// CanTransition reports whether (from, to) is an allowed status edge.
func CanTransition(from, to RideStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func IsTerminal(s RideStatus) bool {
	return s == RideStatusCompleted || s == RideStatusCanceled
}

// Ride represents a trip request tracked from creation to a terminal outcome.
type Ride struct {
	ID           string
	RiderID      string
	Origin       string
	Destination  string
	VehicleClass VehicleClass
	Status       RideStatus

	// Driver fields are empty until the ride is ASSIGNED and are frozen once
	// the ride reaches a terminal status.
	Driver  DriverInfo
	LiveLat float64
	LiveLng float64

	EtaSeconds     int
	DistanceMeters float64
	Price          float64
	Currency       string

	CancelReason string
	TraceID      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Assigned reports whether a driver has been attached to the ride.
func (r *Ride) Assigned() bool {
	return r.Driver.ID != ""
}
