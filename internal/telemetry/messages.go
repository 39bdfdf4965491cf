package telemetry

import (
	"encoding/binary"
	"fmt"
	"math"
)

// MaxFrameSize is the largest frame sent or accepted.
const MaxFrameSize = 512

// Message IDs. Every frame starts with one, little-endian.
const (
	IDDiscovery   uint32 = 0x045f0f63
	IDTemperature uint32 = 0x3eee0c83
)

// idLen is the size of the leading message ID.
const idLen = 4

// Message is a telemetry frame body.
type Message interface {
	// ID returns the wire message ID.
	ID() uint32

	appendBody(b []byte) []byte
}

// Discovery announces a node. Body: u32 device id.
type Discovery struct {
	DeviceID uint32
}

func (Discovery) ID() uint32 { return IDDiscovery }

func (m Discovery) appendBody(b []byte) []byte {
	return binary.LittleEndian.AppendUint32(b, m.DeviceID)
}

func (m *Discovery) decodeBody(b []byte) error {
	if len(b) < 4 {
		return fmt.Errorf("%w: discovery needs 4 bytes, have %d", ErrShortFrame, len(b))
	}
	m.DeviceID = binary.LittleEndian.Uint32(b)
	return nil
}

// Temperature is one reading. Body: u64 sensor id, f32 value.
type Temperature struct {
	SensorID uint64
	Value    float32
}

func (Temperature) ID() uint32 { return IDTemperature }

func (m Temperature) appendBody(b []byte) []byte {
	b = binary.LittleEndian.AppendUint64(b, m.SensorID)
	return binary.LittleEndian.AppendUint32(b, math.Float32bits(m.Value))
}

func (m *Temperature) decodeBody(b []byte) error {
	if len(b) < 12 {
		return fmt.Errorf("%w: temperature needs 12 bytes, have %d", ErrShortFrame, len(b))
	}
	m.SensorID = binary.LittleEndian.Uint64(b[0:8])
	m.Value = math.Float32frombits(binary.LittleEndian.Uint32(b[8:12]))
	return nil
}

// Encode serialises m as id + body.
func Encode(m Message) ([]byte, error) {
	b := make([]byte, 0, 16)
	b = binary.LittleEndian.AppendUint32(b, m.ID())
	b = m.appendBody(b)
	if len(b) > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(b))
	}
	return b, nil
}

// Decode parses a frame. Trailing bytes after the body are ignored.
func Decode(frame []byte) (Message, error) {
	if len(frame) > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(frame))
	}
	if len(frame) < idLen {
		return nil, fmt.Errorf("%w: no message id", ErrShortFrame)
	}

	id := binary.LittleEndian.Uint32(frame)
	body := frame[idLen:]
	switch id {
	case IDDiscovery:
		var m Discovery
		if err := m.decodeBody(body); err != nil {
			return nil, err
		}
		return m, nil
	case IDTemperature:
		var m Temperature
		if err := m.decodeBody(body); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: 0x%08x", ErrUnknownMessage, id)
	}
}
