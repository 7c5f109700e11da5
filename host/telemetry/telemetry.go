// Package telemetry optionally publishes toolhead status over MQTT, for
// dashboards and remote monitoring. Disabled by default; enabling it does
// not change any motion-planning behavior. Grounded in the corpus's
// github.com/eclipse/paho.mqtt.golang dependency, which otherwise has no
// home in this spec's scope.
package telemetry

import (
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gopper/host/motion"
)

// Status is one snapshot published to the telemetry topic.
type Status struct {
	PrintTime float64         `json:"print_time"`
	Position  motion.Position `json:"position"`
	Homed     [3]bool         `json:"homed"`
}

// Publisher holds an MQTT client connected to a broker, publishing
// Status snapshots on demand.
type Publisher struct {
	log    *zap.Logger
	client mqtt.Client
	topic  string
}

// Config configures the MQTT connection.
type Config struct {
	Broker    string
	ClientID  string
	TopicBase string
}

// Connect dials the configured broker and returns a ready Publisher. A
// zero-value Config{} is invalid; callers should check cfg.Broker != ""
// before calling, mirroring the Enabled flag in host/config.
func Connect(log *zap.Logger, cfg Config) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, errors.Errorf("telemetry: connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(err, "telemetry: connect to %s", cfg.Broker)
	}

	return &Publisher{log: log, client: client, topic: cfg.TopicBase + "/status"}, nil
}

// Publish sends one status snapshot, best-effort: a publish failure is
// logged but never propagated to the motion pipeline.
func (p *Publisher) Publish(status Status) {
	payload, err := json.Marshal(status)
	if err != nil {
		p.log.Warn("telemetry: marshal status", zap.Error(err))
		return
	}
	token := p.client.Publish(p.topic, 0, false, payload)
	if !token.WaitTimeout(1 * time.Second) {
		p.log.Warn("telemetry: publish timed out")
		return
	}
	if err := token.Error(); err != nil {
		p.log.Warn("telemetry: publish failed", zap.Error(err))
	}
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
