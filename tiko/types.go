package tiko

import "time"

// RoomStatus holds the service-reported operating flags for a room.
type RoomStatus struct {
	HeatingOperating bool
	Disconnected     bool
}

// Room is one heated room as of the last successful refresh. Pointer
// fields are absent when the service omits them.
type Room struct {
	ID                 string
	Name               string
	CurrentTemperature *float64
	TargetTemperature  *float64
	Humidity           *float64
	Status             RoomStatus
}

// Heating states derived from RoomStatus.
const (
	HeatingStateHeating = "heating"
	HeatingStateIdle    = "idle"
)

// HeatingState reports "heating" while the room's heater is operating
// and "idle" otherwise.
func (r Room) HeatingState() string {
	if r.Status.HeatingOperating {
		return HeatingStateHeating
	}
	return HeatingStateIdle
}

// Device is one installed device on the property.
type Device struct {
	ID   string
	Code string
	Type string
	Name string
	MAC  string
}

// Snapshot is the consumer-visible view of all rooms and devices as of
// the last successful refresh. It is replaced wholesale after each
// successful cycle and never mutated in place; readers may hold the
// maps without synchronization.
type Snapshot struct {
	Rooms     map[string]Room
	Devices   map[string]Device
	FetchedAt time.Time
}
