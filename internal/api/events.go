package api

import (
	"time"

	"github.com/nerrad567/sensorbus-core/internal/bus"
	"github.com/nerrad567/sensorbus-core/internal/onewire"
)

// WebSocket event channels.
const (
	ChannelTemperature = "sensor.temperature"
	ChannelLink        = "system.link"
)

// TemperatureEvent is the payload broadcast on ChannelTemperature.
type TemperatureEvent struct {
	ROM        string    `json:"rom"`
	Model      string    `json:"model"`
	Celsius    float64   `json:"celsius"`
	Fahrenheit float64   `json:"fahrenheit"`
	MeasuredAt time.Time `json:"measured_at"`
}

// LinkEvent is the payload broadcast on ChannelLink.
type LinkEvent struct {
	Connected bool   `json:"connected"`
	Interface string `json:"interface,omitempty"`
}

// eventVisitor turns commands delivered to the server's endpoint into
// WebSocket broadcasts.
type eventVisitor struct {
	bus.NopVisitor
	s *Server
}

func (v *eventVisitor) VisitTemperature(_, _ bus.Address, cmd bus.Temperature) {
	if v.s.hub == nil {
		return
	}
	rom := onewire.ROMFromID(cmd.SensorID)
	v.s.hub.Broadcast(ChannelTemperature, TemperatureEvent{
		ROM:        rom.String(),
		Model:      rom.Family().String(),
		Celsius:    cmd.Celsius,
		Fahrenheit: onewire.CelsiusToFahrenheit(cmd.Celsius),
		MeasuredAt: cmd.MeasuredAt.UTC(),
	})
}

func (v *eventVisitor) VisitLinkState(_, _ bus.Address, cmd bus.LinkState) {
	if v.s.hub == nil {
		return
	}
	v.s.hub.Broadcast(ChannelLink, LinkEvent{
		Connected: cmd.Connected,
		Interface: cmd.Interface,
	})
}
