package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType classifies a ride lifecycle event.
type EventType string

const (
	EventRideCreated    EventType = "RIDE_CREATED"
	EventDriverAssigned EventType = "DRIVER_ASSIGNED"
	EventDriverOnTheWay EventType = "DRIVER_ON_THE_WAY"
	EventEtaUpdate      EventType = "ETA_UPDATE"
	EventLocationUpdate EventType = "LOCATION_UPDATE"
	EventRideCanceled   EventType = "RIDE_CANCELED"
	EventRideCompleted  EventType = "RIDE_COMPLETED"
)

// EventPayload is the typed payload carried by a RideEvent. Each event type
// has its own fixed field set.
type EventPayload interface {
	EventType() EventType
}

// RideCreatedPayload accompanies EventRideCreated.
type RideCreatedPayload struct {
	Origin       string       `json:"origin"`
	Destination  string       `json:"destination"`
	VehicleClass VehicleClass `json:"vehicleClass"`
}

func (RideCreatedPayload) EventType() EventType { return EventRideCreated }

// DriverAssignedPayload accompanies EventDriverAssigned.
type DriverAssignedPayload struct {
	DriverID      string  `json:"driverId"`
	Name          string  `json:"name"`
	Phone         string  `json:"phone"`
	VehicleNumber string  `json:"vehicleNumber"`
	Rating        float64 `json:"rating"`
	EtaSeconds    int     `json:"etaSeconds"`
}

func (DriverAssignedPayload) EventType() EventType { return EventDriverAssigned }

// DriverOnTheWayPayload accompanies EventDriverOnTheWay.
type DriverOnTheWayPayload struct {
	EtaSeconds int `json:"etaSeconds"`
}

func (DriverOnTheWayPayload) EventType() EventType { return EventDriverOnTheWay }

// EtaUpdatePayload accompanies EventEtaUpdate. ETA refreshes are
// informational and do not change the ride status.
type EtaUpdatePayload struct {
	EtaSeconds     int     `json:"etaSeconds"`
	DistanceMeters float64 `json:"distanceMeters"`
}

func (EtaUpdatePayload) EventType() EventType { return EventEtaUpdate }

// LocationUpdatePayload accompanies EventLocationUpdate.
type LocationUpdatePayload struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (LocationUpdatePayload) EventType() EventType { return EventLocationUpdate }

// RideCanceledPayload accompanies EventRideCanceled.
type RideCanceledPayload struct {
	Reason string `json:"reason"`
}

func (RideCanceledPayload) EventType() EventType { return EventRideCanceled }

// RideCompletedPayload accompanies EventRideCompleted.
type RideCompletedPayload struct{}

func (RideCompletedPayload) EventType() EventType { return EventRideCompleted }

// RideEvent is one entry in a ride's append-only event log. Seq is strictly
// increasing per ride starting at 1. Events are immutable once written.
type RideEvent struct {
	ID        string
	RideID    string
	Seq       int64
	Type      EventType
	Payload   EventPayload
	CreatedAt time.Time
}

// EventForStatus returns the event type recorded for a transition into the
// given status. Requested has no transition event; creation is recorded as
// EventRideCreated directly.
func EventForStatus(to RideStatus) (EventType, bool) {
	switch to {
	case RideStatusAssigned:
		return EventDriverAssigned, true
	case RideStatusOnTheWay:
		return EventDriverOnTheWay, true
	case RideStatusCompleted:
		return EventRideCompleted, true
	case RideStatusCanceled:
		return EventRideCanceled, true
	default:
		return "", false
	}
}

// StatusForEvent returns the ride status implied by an event type, if the
// event represents a status transition. ETA and location updates do not.
func StatusForEvent(t EventType) (RideStatus, bool) {
	switch t {
	case EventRideCreated:
		return RideStatusRequested, true
	case EventDriverAssigned:
		return RideStatusAssigned, true
	case EventDriverOnTheWay:
		return RideStatusOnTheWay, true
	case EventRideCompleted:
		return RideStatusCompleted, true
	case EventRideCanceled:
		return RideStatusCanceled, true
	default:
		return "", false
	}
}

// DecodePayload unmarshals a stored payload into its typed variant.
func DecodePayload(t EventType, data []byte) (EventPayload, error) {
	var (
		p   EventPayload
		err error
	)
	switch t {
	case EventRideCreated:
		var v RideCreatedPayload
		err = json.Unmarshal(data, &v)
		p = v
	case EventDriverAssigned:
		var v DriverAssignedPayload
		err = json.Unmarshal(data, &v)
		p = v
	case EventDriverOnTheWay:
		var v DriverOnTheWayPayload
		err = json.Unmarshal(data, &v)
		p = v
	case EventEtaUpdate:
		var v EtaUpdatePayload
		err = json.Unmarshal(data, &v)
		p = v
	case EventLocationUpdate:
		var v LocationUpdatePayload
		err = json.Unmarshal(data, &v)
		p = v
	case EventRideCanceled:
		var v RideCanceledPayload
		err = json.Unmarshal(data, &v)
		p = v
	case EventRideCompleted:
		var v RideCompletedPayload
		err = json.Unmarshal(data, &v)
		p = v
	default:
		return nil, fmt.Errorf("unknown event type %q", t)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ValidateVehicleClass validates a vehicle class string. An empty class
// defaults to comfort.
func ValidateVehicleClass(class string) (VehicleClass, error) {
	switch VehicleClass(class) {
	case VehicleClassEconomy, VehicleClassComfort, VehicleClassBusiness:
		return VehicleClass(class), nil
	case "":
		return VehicleClassComfort, nil
	default:
		return "", fmt.Errorf("unknown vehicle class %q", class)
	}
}
