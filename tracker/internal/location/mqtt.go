package location

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/hiketracker/hiketracker/pkg/types"
	"github.com/hiketracker/hiketracker/tracker/internal/config"
)

const (
	mqttConnectTimeout = 30 * time.Second
	mqttQoS            = 1
	mqttQuiesceMs      = 250
)

// MQTTSource subscribes to OwnTracks location messages on an MQTT broker.
type MQTTSource struct {
	cfg       config.MQTTConfig
	newClient func(*mqtt.ClientOptions) mqtt.Client
}

// NewMQTTSource returns a source for the given broker settings.
func NewMQTTSource(cfg config.MQTTConfig) *MQTTSource {
	return &MQTTSource{cfg: cfg, newClient: mqtt.NewClient}
}

// ownTracksMessage is the subset of the OwnTracks JSON payload we read.
type ownTracksMessage struct {
	Type string   `json:"_type"`
	Lat  *float64 `json:"lat"`
	Lon  *float64 `json:"lon"`
	Tst  int64    `json:"tst"`
}

// ParseOwnTracks decodes an OwnTracks payload. It returns false without an
// error for message types other than "location".
func ParseOwnTracks(payload []byte) (types.LocationSample, bool, error) {
	var m ownTracksMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return types.LocationSample{}, false, fmt.Errorf("location: decode owntracks: %w", err)
	}
	if m.Type != "location" {
		return types.LocationSample{}, false, nil
	}
	if m.Lat == nil || m.Lon == nil {
		return types.LocationSample{}, false, fmt.Errorf("%w: missing lat/lon", ErrInvalidSample)
	}
	s := types.LocationSample{Latitude: *m.Lat, Longitude: *m.Lon, Timestamp: time.Now()}
	if m.Tst > 0 {
		s.Timestamp = time.Unix(m.Tst, 0)
	}
	if err := Validate(s); err != nil {
		return types.LocationSample{}, false, err
	}
	return s, true, nil
}

// Run connects, subscribes and emits samples until ctx is canceled.
func (m *MQTTSource) Run(ctx context.Context, emit func(types.LocationSample)) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.cfg.Broker)
	opts.SetClientID(m.cfg.ClientID)
	opts.SetUsername(m.cfg.Username)
	opts.SetPassword(m.cfg.Password())
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOrderMatters(true)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		// Resubscribe on every (re)connect since the session is clean.
		tok := c.Subscribe(m.cfg.Topic, mqttQoS, m.handler(ctx, emit))
		if tok.WaitTimeout(mqttConnectTimeout) && tok.Error() != nil {
			slog.Error("location: mqtt subscribe failed", "topic", m.cfg.Topic, "err", tok.Error())
			return
		}
		slog.Info("location: mqtt subscribed", "broker", m.cfg.Broker, "topic", m.cfg.Topic)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("location: mqtt connection lost", "broker", m.cfg.Broker, "err", err)
	})

	client := m.newClient(opts)
	tok := client.Connect()
	select {
	case <-ctx.Done():
		client.Disconnect(mqttQuiesceMs)
		return nil
	case <-tok.Done():
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("location: mqtt connect %s: %w", m.cfg.Broker, err)
	}

	<-ctx.Done()
	client.Unsubscribe(m.cfg.Topic).WaitTimeout(time.Second)
	client.Disconnect(mqttQuiesceMs)
	return nil
}

// handler decodes each message and emits location samples. Malformed
// messages are logged and skipped.
func (m *MQTTSource) handler(ctx context.Context, emit func(types.LocationSample)) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		if ctx.Err() != nil {
			return
		}
		s, ok, err := ParseOwnTracks(msg.Payload())
		if err != nil {
			slog.Warn("location: mqtt message skipped", "topic", msg.Topic(), "err", err)
			return
		}
		if !ok {
			return
		}
		emit(s)
	}
}
