package onewire

import (
	"context"
	"fmt"
)

// Family is the 1-Wire family code, the first byte of a ROM.
type Family byte

// Supported thermometer families.
const (
	FamilyDS18S20 Family = 0x10 // also the original DS1820
	FamilyDS1822  Family = 0x22
	FamilyDS18B20 Family = 0x28
)

// String returns the chip name.
func (f Family) String() string {
	switch f {
	case FamilyDS18S20:
		return "DS18S20"
	case FamilyDS1822:
		return "DS1822"
	case FamilyDS18B20:
		return "DS18B20"
	default:
		return fmt.Sprintf("family(0x%02x)", byte(f))
	}
}

// Supported reports whether NewSensor can decode this family.
func (f Family) Supported() bool {
	switch f {
	case FamilyDS18S20, FamilyDS1822, FamilyDS18B20:
		return true
	default:
		return false
	}
}

// Scratchpad is the 9-byte memory read back after a conversion.
// Byte 8 is the CRC of bytes 0..7.
type Scratchpad [9]byte

// Valid reports whether the CRC byte matches.
func (s Scratchpad) Valid() bool {
	return CRC8(s[:8]) == s[8]
}

// Device is a 1-Wire bus master.
type Device interface {
	// Search enumerates the ROM codes of devices on the bus.
	Search(ctx context.Context) ([]ROM, error)

	// ReadScratchpad starts a conversion on rom and returns its scratchpad.
	ReadScratchpad(ctx context.Context, rom ROM) (Scratchpad, error)
}

// Sensor is a DS18x20 thermometer on a Device.
type Sensor struct {
	dev    Device
	rom    ROM
	decode func(Scratchpad) float64
}

// NewSensor returns a sensor for rom.
// Returns ErrUnsupportedFamily for anything other than DS18S20, DS1822 and DS18B20.
func NewSensor(dev Device, rom ROM) (*Sensor, error) {
	s := &Sensor{dev: dev, rom: rom}
	switch rom.Family() {
	case FamilyDS18S20:
		s.decode = DecodeDS18S20
	case FamilyDS18B20, FamilyDS1822:
		s.decode = DecodeDS18B20
	default:
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedFamily, rom, rom.Family())
	}
	return s, nil
}

// ROM returns the sensor's registration number.
func (s *Sensor) ROM() ROM {
	return s.rom
}

// Model returns the chip name.
func (s *Sensor) Model() string {
	return s.rom.Family().String()
}

// Measure runs a conversion and returns the temperature in Celsius.
// Returns ErrCRCMismatch if the scratchpad is corrupted.
func (s *Sensor) Measure(ctx context.Context) (float64, error) {
	sp, err := s.dev.ReadScratchpad(ctx, s.rom)
	if err != nil {
		return 0, fmt.Errorf("reading scratchpad %s: %w", s.rom, err)
	}
	if !sp.Valid() {
		return 0, fmt.Errorf("%w: %s (calc=0x%02x, recv=0x%02x)",
			ErrCRCMismatch, s.rom, CRC8(sp[:8]), sp[8])
	}
	return s.decode(sp), nil
}

// DecodeDS18B20 converts a DS18B20/DS1822 scratchpad to Celsius.
// Undefined low bits are cleared according to the configured resolution.
func DecodeDS18B20(sp Scratchpad) float64 {
	raw := int16(uint16(sp[1])<<8 | uint16(sp[0]))
	switch sp[4] & 0x60 {
	case 0x00: // 9 bit
		raw &^= 7
	case 0x20: // 10 bit
		raw &^= 3
	case 0x40: // 11 bit
		raw &^= 1
	}
	return float64(raw) / 16
}

// DecodeDS18S20 converts a DS18S20 scratchpad to Celsius, using the
// count-remain register for 12-bit resolution when available.
func DecodeDS18S20(sp Scratchpad) float64 {
	raw := int16(uint16(sp[1])<<8|uint16(sp[0])) << 3
	if sp[7] == 0x10 {
		raw = (raw &^ 0x0F) + 12 - int16(sp[6])
	}
	return float64(raw) / 16
}

// CelsiusToFahrenheit converts a temperature.
func CelsiusToFahrenheit(c float64) float64 {
	return c*1.8 + 32
}
