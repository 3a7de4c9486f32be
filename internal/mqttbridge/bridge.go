// Package mqttbridge mirrors the coordinator's snapshot onto MQTT and
// accepts set-temperature / set-mode commands from topics.
package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/joshp123/tiko-golang/tiko"
)

const commandTimeout = 30 * time.Second

type Config struct {
	BrokerURL string
	ClientID  string
	BaseTopic string
	Username  string
	Password  string
	QoS       byte
	Retain    bool
}

func (c Config) withDefaults() Config {
	if c.BrokerURL == "" {
		c.BrokerURL = "tcp://localhost:1883"
	}
	if c.ClientID == "" {
		c.ClientID = "tikod"
	}
	if c.BaseTopic == "" {
		c.BaseTopic = "tiko"
	}
	return c
}

// Bridge publishes room state to <base>/rooms/<id>/state after every
// snapshot replacement and subscribes the command topics
// <base>/rooms/<id>/set/temperature and <base>/mode/set.
type Bridge struct {
	coordinator *tiko.Coordinator
	cfg         Config
	logger      *log.Logger

	client mqtt.Client
}

func New(coordinator *tiko.Coordinator, cfg Config, logger *log.Logger) *Bridge {
	if logger == nil {
		logger = log.Default()
	}
	return &Bridge{
		coordinator: coordinator,
		cfg:         cfg.withDefaults(),
		logger:      logger,
	}
}

// Run connects to the broker, subscribes the command topics, and
// republishes every coordinator update until ctx is cancelled or the
// coordinator stops.
func (b *Bridge) Run(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(b.cfg.BrokerURL).
		SetClientID(b.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(10 * time.Second)
	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
		opts.SetPassword(b.cfg.Password)
	}

	// Resubscribe on every (re)connect.
	opts.OnConnect = func(client mqtt.Client) {
		if token := client.Subscribe(b.topic("rooms/+/set/temperature"), b.cfg.QoS, b.onSetTemperature); token.Wait() && token.Error() != nil {
			b.logger.Printf("mqtt: subscribe temperature: %v", token.Error())
		}
		if token := client.Subscribe(b.topic("mode/set"), b.cfg.QoS, b.onSetMode); token.Wait() && token.Error() != nil {
			b.logger.Printf("mqtt: subscribe mode: %v", token.Error())
		}
	}

	b.client = mqtt.NewClient(opts)
	if token := b.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}

	updates, cancel := b.coordinator.Subscribe()
	defer cancel()

	b.publishSnapshot(b.coordinator.Snapshot())
	b.publishStatus(b.coordinator.LastError())

	for {
		select {
		case <-ctx.Done():
			b.client.Disconnect(250)
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				b.client.Disconnect(250)
				return nil
			}
			b.publishStatus(update.Err)
			if update.Err == nil {
				b.publishSnapshot(update.Snapshot)
			}
		}
	}
}

type roomPayload struct {
	Name               string   `json:"name"`
	CurrentTemperature *float64 `json:"current_temperature"`
	TargetTemperature  *float64 `json:"target_temperature"`
	Humidity           *float64 `json:"humidity"`
	HeatingState       string   `json:"heating_state"`
	Disconnected       bool     `json:"disconnected"`
}

func (b *Bridge) publishSnapshot(snapshot tiko.Snapshot) {
	for id, room := range snapshot.Rooms {
		payload, err := json.Marshal(buildRoomPayload(room))
		if err != nil {
			continue
		}
		b.publish(b.topic("rooms/"+id+"/state"), payload)
	}
}

func (b *Bridge) publishStatus(updateErr error) {
	status := "online"
	if updateErr != nil {
		status = "error: " + updateErr.Error()
	}
	b.publish(b.topic("status"), []byte(status))
}

func (b *Bridge) publish(topic string, payload []byte) {
	if token := b.client.Publish(topic, b.cfg.QoS, b.cfg.Retain, payload); token.Wait() && token.Error() != nil {
		b.logger.Printf("mqtt: publish %s: %v", topic, token.Error())
	}
}

func (b *Bridge) onSetTemperature(_ mqtt.Client, msg mqtt.Message) {
	roomID, ok := roomFromTopic(msg.Topic())
	if !ok {
		b.logger.Printf("mqtt: unexpected topic %q", msg.Topic())
		return
	}
	celsius, err := strconv.ParseFloat(strings.TrimSpace(string(msg.Payload())), 64)
	if err != nil {
		b.logger.Printf("mqtt: bad temperature payload %q: %v", msg.Payload(), err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := b.coordinator.SetTemperature(ctx, roomID, celsius); err != nil {
		b.logger.Printf("mqtt: set temperature room %s: %v", roomID, err)
	}
}

func (b *Bridge) onSetMode(_ mqtt.Client, msg mqtt.Message) {
	mode := tiko.ClimateMode(strings.TrimSpace(string(msg.Payload())))

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := b.coordinator.SetMode(ctx, mode); err != nil {
		b.logger.Printf("mqtt: set mode %q: %v", mode, err)
	}
}

func (b *Bridge) topic(suffix string) string {
	return b.cfg.BaseTopic + "/" + suffix
}

// roomFromTopic extracts the room id from a
// <base>/rooms/<id>/set/temperature topic.
func roomFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 5 {
		return "", false
	}
	if parts[len(parts)-1] != "temperature" || parts[len(parts)-2] != "set" {
		return "", false
	}
	if parts[len(parts)-4] != "rooms" {
		return "", false
	}
	id := parts[len(parts)-3]
	if id == "" {
		return "", false
	}
	return id, true
}

func buildRoomPayload(room tiko.Room) roomPayload {
	return roomPayload{
		Name:               room.Name,
		CurrentTemperature: room.CurrentTemperature,
		TargetTemperature:  room.TargetTemperature,
		Humidity:           room.Humidity,
		HeatingState:       room.HeatingState(),
		Disconnected:       room.Status.Disconnected,
	}
}
