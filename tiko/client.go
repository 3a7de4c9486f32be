package tiko

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Client exposes the service's resource operations. It is stateless
// beyond the session it shares with its SessionManager; every
// authorized call attaches the live session's token and property id.
type Client struct {
	tr      *transport
	session *SessionManager
}

func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	tr := newTransport(cfg.BaseURL, cfg.RequestTimeout)
	return &Client{
		tr:      tr,
		session: newSessionManager(cfg.Credentials, tr),
	}, nil
}

// Session returns the session manager owning this client's token.
func (c *Client) Session() *SessionManager {
	return c.session
}

// Authenticate establishes a session with the configured credentials.
func (c *Client) Authenticate(ctx context.Context) error {
	return c.session.Authenticate(ctx)
}

// Verify checks that the credentials produce a usable account:
// authenticates and fetches rooms once. Intended for operator setup;
// the returned error carries the rate-limit / invalid-credentials
// classification.
func (c *Client) Verify(ctx context.Context) error {
	if err := c.Authenticate(ctx); err != nil {
		return err
	}
	rooms, err := c.Rooms(ctx)
	if err != nil {
		return err
	}
	if len(rooms) == 0 {
		return fmt.Errorf("no rooms on property")
	}
	return nil
}

// Rooms fetches the current state of every room on the property.
func (c *Client) Rooms(ctx context.Context) ([]Room, error) {
	data, err := c.authorizedCall(ctx, graphqlRequest{
		OperationName: "GetRooms",
		Query:         roomsQuery,
	})
	if err != nil {
		return nil, err
	}

	var reply struct {
		Property *struct {
			Rooms []struct {
				ID                        int64    `json:"id"`
				Name                      string   `json:"name"`
				CurrentTemperatureDegrees *float64 `json:"currentTemperatureDegrees"`
				TargetTemperatureDegrees  *float64 `json:"targetTemperatureDegrees"`
				Humidity                  *float64 `json:"humidity"`
				Status                    struct {
					HeatingOperating bool `json:"heatingOperating"`
					Disconnected     bool `json:"disconnected"`
				} `json:"status"`
			} `json:"rooms"`
		} `json:"property"`
	}
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, TransportError{Op: "GetRooms", Err: err}
	}
	if reply.Property == nil {
		return nil, StructuralError{Op: "GetRooms", Shape: shapeOf(data)}
	}

	rooms := make([]Room, 0, len(reply.Property.Rooms))
	for _, room := range reply.Property.Rooms {
		rooms = append(rooms, Room{
			ID:                 strconv.FormatInt(room.ID, 10),
			Name:               room.Name,
			CurrentTemperature: room.CurrentTemperatureDegrees,
			TargetTemperature:  room.TargetTemperatureDegrees,
			Humidity:           room.Humidity,
			Status: RoomStatus{
				HeatingOperating: room.Status.HeatingOperating,
				Disconnected:     room.Status.Disconnected,
			},
		})
	}
	return rooms, nil
}

// Devices fetches every installed device on the property. External
// devices are part of the reply contract but carry no state this
// system tracks.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	data, err := c.authorizedCall(ctx, graphqlRequest{
		OperationName: "GetDevices",
		Query:         devicesQuery,
	})
	if err != nil {
		return nil, err
	}

	var reply struct {
		Property *struct {
			Devices []struct {
				ID   int64  `json:"id"`
				Code string `json:"code"`
				Type string `json:"type"`
				Name string `json:"name"`
				MAC  string `json:"mac"`
			} `json:"devices"`
			ExternalDevices []struct {
				ID   int64  `json:"id"`
				Name string `json:"name"`
			} `json:"externalDevices"`
		} `json:"property"`
	}
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, TransportError{Op: "GetDevices", Err: err}
	}
	if reply.Property == nil {
		return nil, StructuralError{Op: "GetDevices", Shape: shapeOf(data)}
	}

	devices := make([]Device, 0, len(reply.Property.Devices))
	for _, device := range reply.Property.Devices {
		devices = append(devices, Device{
			ID:   strconv.FormatInt(device.ID, 10),
			Code: device.Code,
			Type: device.Type,
			Name: device.Name,
			MAC:  device.MAC,
		})
	}
	return devices, nil
}

// SetTemperature adjusts one room's target temperature.
func (c *Client) SetTemperature(ctx context.Context, roomID string, celsius float64) error {
	id, err := strconv.ParseInt(roomID, 10, 64)
	if err != nil {
		return ValidationError{Msg: fmt.Sprintf("room id %q: %v", roomID, err)}
	}

	_, err = c.authorizedCall(ctx, graphqlRequest{
		OperationName: "SET_PROPERTY_ROOM_ADJUST_TEMPERATURE",
		Query:         adjustTemperatureMutation,
		Variables: map[string]any{
			"roomId":      id,
			"temperature": celsius,
		},
	})
	return err
}

// SetMode switches the whole property's operating mode.
func (c *Client) SetMode(ctx context.Context, mode Mode) error {
	if _, err := ClimateModeFor(mode); err != nil {
		return err
	}

	_, err := c.authorizedCall(ctx, graphqlRequest{
		OperationName: "SetMode",
		Query:         setModeMutation,
		Variables: map[string]any{
			"mode": string(mode),
		},
	})
	return err
}

// authorizedCall injects the live session's property id and token.
// Without a session it fails locally.
func (c *Client) authorizedCall(ctx context.Context, op graphqlRequest) (json.RawMessage, error) {
	session, err := c.session.Current()
	if err != nil {
		return nil, err
	}
	if op.Variables == nil {
		op.Variables = map[string]any{}
	}
	op.Variables["propertyId"] = session.PropertyID
	return c.tr.call(ctx, session.Token, op)
}

// shapeOf summarizes a reply payload's top-level keys for structural
// error reports.
func shapeOf(data json.RawMessage) string {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || len(raw) == 0 {
		if len(data) == 0 {
			return "empty payload"
		}
		return "payload " + strings.TrimSpace(string(data))
	}
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return "keys: " + strings.Join(keys, ", ")
}
