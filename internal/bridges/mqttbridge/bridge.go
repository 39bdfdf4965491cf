package mqttbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/sensorbus-core/internal/bus"
	"github.com/nerrad567/sensorbus-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/sensorbus-core/internal/onewire"
)

// defaultScanReason tags ScanRequests that arrive without a reason.
const defaultScanReason = "mqtt"

// MQTTClient is the interface for MQTT operations.
// *mqtt.Client satisfies it; tests use a mock.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config configures a Bridge.
type Config struct {
	// SensorsGroup is joined to receive Temperature commands.
	SensorsGroup string

	// SystemGroup is joined to receive LinkState commands.
	SystemGroup string

	// ControlGroup receives ScanRequests built from inbound scan commands.
	ControlGroup string

	// QoS for publishes and the command subscription.
	QoS byte

	// ReceiveWait bounds each bus receive.
	ReceiveWait time.Duration
}

// Bridge mirrors bus traffic onto MQTT and turns MQTT commands into bus
// commands:
//   - Temperature -> retained sensorbus/state/onewire/{rom}
//   - LinkState   -> sensorbus/system/link
//   - sensorbus/command/scan -> ScanRequest on the control group
//
// Thread Safety: MQTT handlers may run concurrently with Run.
type Bridge struct {
	cfg    Config
	mqtt   MQTTClient
	ep     *bus.Endpoint
	logger Logger
	topics mqtt.Topics

	mu        sync.Mutex
	published int
	failed    int
}

// NewBridge creates a bridge routed through router.
func NewBridge(router bus.Router, client MQTTClient, cfg Config) (*Bridge, error) {
	if client == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	b := &Bridge{
		cfg:    cfg,
		mqtt:   client,
		logger: noopLogger{},
	}
	b.ep = bus.NewEndpoint(router, &bridgeVisitor{b: b})
	return b, nil
}

// SetLogger sets the logger for the bridge and its endpoint.
func (b *Bridge) SetLogger(logger Logger) {
	b.logger = logger
	b.ep.SetLogger(logger)
}

// Endpoint returns the bridge's bus endpoint.
func (b *Bridge) Endpoint() *bus.Endpoint {
	return b.ep
}

// Start connects the endpoint, joins the sensors and system groups and
// subscribes to the scan command topic.
func (b *Bridge) Start() error {
	if !b.ep.Initialize() {
		return bus.ErrNotConnected
	}
	for _, g := range []string{b.cfg.SensorsGroup, b.cfg.SystemGroup} {
		if g == "" {
			continue
		}
		if _, err := b.ep.JoinName(g); err != nil {
			return fmt.Errorf("joining %q: %w", g, err)
		}
	}

	topic := b.topics.ScanCommand()
	if err := b.mqtt.Subscribe(topic, b.cfg.QoS, b.handleScan); err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	b.logger.Info("mqtt bridge started", "addr", int32(b.ep.Address()), "command_topic", topic)
	return nil
}

// Run services the endpoint until ctx is cancelled. On return it
// unsubscribes and closes the endpoint.
func (b *Bridge) Run(ctx context.Context) {
	defer b.ep.Close()
	defer func() {
		if err := b.mqtt.Unsubscribe(b.topics.ScanCommand()); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
			b.logger.Warn("mqtt unsubscribe failed", "error", err)
		}
	}()

	wait := b.cfg.ReceiveWait
	if wait <= 0 {
		wait = time.Second
	}
	b.ep.Serve(ctx, wait)
}

// Stats returns the number of publishes that succeeded and failed.
func (b *Bridge) Stats() (published, failed int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published, b.failed
}

// handleScan turns an inbound scan command into a bus ScanRequest.
func (b *Bridge) handleScan(_ string, payload []byte) error {
	msg, err := parseScanMessage(payload)
	if err != nil {
		return fmt.Errorf("decoding scan command: %w", err)
	}
	if msg.Reason == "" {
		msg.Reason = defaultScanReason
	}
	if err := b.ep.SendName(b.cfg.ControlGroup, bus.ScanRequest{Reason: msg.Reason}); err != nil {
		return fmt.Errorf("forwarding scan request: %w", err)
	}
	b.logger.Debug("scan request forwarded", "reason", msg.Reason)
	return nil
}

func (b *Bridge) publish(topic string, v any, retained bool) {
	payload, err := json.Marshal(v)
	if err == nil {
		err = b.mqtt.Publish(topic, payload, b.cfg.QoS, retained)
	}

	b.mu.Lock()
	if err != nil {
		b.failed++
	} else {
		b.published++
	}
	b.mu.Unlock()

	if err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
		b.logger.Warn("mqtt publish failed", "topic", topic, "error", err)
	}
}

// bridgeVisitor handles bus commands for the bridge.
type bridgeVisitor struct {
	bus.NopVisitor
	b *Bridge
}

func (v *bridgeVisitor) VisitTemperature(_, _ bus.Address, t bus.Temperature) {
	rom := onewire.ROMFromID(t.SensorID)
	msg := StateMessage{
		ROM:        rom.String(),
		Celsius:    t.Celsius,
		Fahrenheit: onewire.CelsiusToFahrenheit(t.Celsius),
		Timestamp:  t.MeasuredAt.UTC(),
	}
	if rom.Family().Supported() {
		msg.Model = rom.Family().String()
	}
	v.b.publish(v.b.topics.SensorState(ProtocolOneWire, msg.ROM), msg, true)
}

func (v *bridgeVisitor) VisitLinkState(_, _ bus.Address, s bus.LinkState) {
	v.b.publish(v.b.topics.SystemLink(), LinkMessage{
		Connected: s.Connected,
		Interface: s.Interface,
		Timestamp: time.Now().UTC(),
	}, true)
}
