package mqttbridge

import (
	"encoding/json"
	"time"
)

// ProtocolOneWire is the protocol segment of 1-Wire state topics.
const ProtocolOneWire = "onewire"

// StateMessage is the retained payload on sensorbus/state/onewire/{rom}.
type StateMessage struct {
	// ROM is the sensor's 1-Wire ROM in sysfs form, e.g. "28-0316a2794dff".
	ROM string `json:"rom"`

	// Model is the device family name, e.g. "DS18B20".
	Model string `json:"model,omitempty"`

	Celsius    float64 `json:"celsius"`
	Fahrenheit float64 `json:"fahrenheit"`

	// Timestamp is when the reading was taken.
	Timestamp time.Time `json:"timestamp"`
}

// LinkMessage is the payload on sensorbus/system/link.
type LinkMessage struct {
	Connected bool      `json:"connected"`
	Interface string    `json:"interface,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ScanMessage is the optional payload on sensorbus/command/scan.
type ScanMessage struct {
	Reason string `json:"reason,omitempty"`
}

// parseScanMessage decodes a scan command. An empty payload is a valid scan.
func parseScanMessage(payload []byte) (ScanMessage, error) {
	var msg ScanMessage
	if len(payload) == 0 {
		return msg, nil
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return ScanMessage{}, err
	}
	return msg, nil
}
