package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joshp123/tiko-golang/tiko"
)

// HealthHandler returns a simple OK for liveness checks.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// MetricsHandler serves the prometheus registry.
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

type roomDTO struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	CurrentTemperature *float64 `json:"current_temperature,omitempty"`
	TargetTemperature  *float64 `json:"target_temperature,omitempty"`
	Humidity           *float64 `json:"humidity,omitempty"`
	HeatingState       string   `json:"heating_state"`
	Disconnected       bool     `json:"disconnected"`
}

type deviceDTO struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Type string `json:"type"`
	Name string `json:"name"`
	MAC  string `json:"mac"`
}

type snapshotDTO struct {
	Rooms     map[string]roomDTO   `json:"rooms"`
	Devices   map[string]deviceDTO `json:"devices"`
	FetchedAt time.Time            `json:"fetched_at"`
	LastError string               `json:"last_error,omitempty"`
}

// SnapshotHandler serves the coordinator's current snapshot as JSON.
func SnapshotHandler(coordinator *tiko.Coordinator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		snapshot := coordinator.Snapshot()

		dto := snapshotDTO{
			Rooms:     make(map[string]roomDTO, len(snapshot.Rooms)),
			Devices:   make(map[string]deviceDTO, len(snapshot.Devices)),
			FetchedAt: snapshot.FetchedAt,
		}
		for id, room := range snapshot.Rooms {
			dto.Rooms[id] = roomDTO{
				ID:                 room.ID,
				Name:               room.Name,
				CurrentTemperature: room.CurrentTemperature,
				TargetTemperature:  room.TargetTemperature,
				Humidity:           room.Humidity,
				HeatingState:       room.HeatingState(),
				Disconnected:       room.Status.Disconnected,
			}
		}
		for id, device := range snapshot.Devices {
			dto.Devices[id] = deviceDTO{
				ID:   device.ID,
				Code: device.Code,
				Type: device.Type,
				Name: device.Name,
				MAC:  device.MAC,
			}
		}
		if err := coordinator.LastError(); err != nil {
			dto.LastError = err.Error()
		}

		writeJSON(w, http.StatusOK, dto)
	})
}

// TemperatureHandler accepts POST /api/rooms/{id}/temperature with a
// body of {"celsius": 21.5}.
func TemperatureHandler(coordinator *tiko.Coordinator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		roomID := r.PathValue("id")
		if roomID == "" {
			writeError(w, http.StatusBadRequest, "missing room id")
			return
		}

		var body struct {
			Celsius *float64 `json:"celsius"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Celsius == nil {
			writeError(w, http.StatusBadRequest, "body must be {\"celsius\": <number>}")
			return
		}

		if err := coordinator.SetTemperature(r.Context(), roomID, *body.Celsius); err != nil {
			writeError(w, commandStatus(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// ModeHandler accepts POST /api/mode with a body of {"mode": "eco"}
// using the climate vocabulary.
func ModeHandler(coordinator *tiko.Coordinator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Mode string `json:"mode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Mode == "" {
			writeError(w, http.StatusBadRequest, "body must be {\"mode\": <string>}")
			return
		}

		if err := coordinator.SetMode(r.Context(), tiko.ClimateMode(body.Mode)); err != nil {
			writeError(w, commandStatus(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func commandStatus(err error) int {
	var rateErr tiko.RateLimitError
	if errors.As(err, &rateErr) {
		return http.StatusTooManyRequests
	}
	var authErr tiko.AuthenticationError
	if errors.As(err, &authErr) {
		return http.StatusUnauthorized
	}
	var transportErr tiko.TransportError
	var apiErr tiko.APIError
	var structErr tiko.StructuralError
	if errors.As(err, &transportErr) || errors.As(err, &apiErr) || errors.As(err, &structErr) {
		return http.StatusBadGateway
	}
	var validationErr tiko.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
