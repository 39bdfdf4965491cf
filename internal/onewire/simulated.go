package onewire

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
)

// SimulatedDevice is an in-memory 1-Wire bus for development and tests.
type SimulatedDevice struct {
	mu      sync.Mutex
	sensors map[ROM]*simSensor
}

type simSensor struct {
	celsius float64
	jitter  float64
	fault   error
	corrupt bool
}

// NewSimulatedDevice returns an empty simulated bus.
func NewSimulatedDevice() *SimulatedDevice {
	return &SimulatedDevice{sensors: make(map[ROM]*simSensor)}
}

// Add attaches a sensor reading celsius, plus or minus jitter.
func (d *SimulatedDevice) Add(rom ROM, celsius, jitter float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sensors[rom] = &simSensor{celsius: celsius, jitter: jitter}
}

// Remove detaches a sensor.
func (d *SimulatedDevice) Remove(rom ROM) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sensors, rom)
}

// Set changes a sensor's base temperature.
func (d *SimulatedDevice) Set(rom ROM, celsius float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.sensors[rom]; ok {
		s.celsius = celsius
	}
}

// SetFault makes reads of rom fail with err; nil clears it.
func (d *SimulatedDevice) SetFault(rom ROM, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.sensors[rom]; ok {
		s.fault = err
	}
}

// SetCorrupt makes reads of rom return a scratchpad with a bad CRC.
func (d *SimulatedDevice) SetCorrupt(rom ROM, corrupt bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.sensors[rom]; ok {
		s.corrupt = corrupt
	}
}

// Search returns the attached ROMs in byte order.
func (d *SimulatedDevice) Search(ctx context.Context) ([]ROM, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	roms := make([]ROM, 0, len(d.sensors))
	for rom := range d.sensors {
		roms = append(roms, rom)
	}
	slices.SortFunc(roms, func(a, b ROM) int { return bytes.Compare(a[:], b[:]) })
	return roms, nil
}

// ReadScratchpad encodes the sensor's current temperature.
func (d *SimulatedDevice) ReadScratchpad(ctx context.Context, rom ROM) (Scratchpad, error) {
	if err := ctx.Err(); err != nil {
		return Scratchpad{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.sensors[rom]
	if !ok {
		return Scratchpad{}, fmt.Errorf("%w: %s", ErrNoPresence, rom)
	}
	if s.fault != nil {
		return Scratchpad{}, s.fault
	}

	c := s.celsius
	if s.jitter > 0 {
		c += (rand.Float64()*2 - 1) * s.jitter
	}

	var sp Scratchpad
	if rom.Family() == FamilyDS18S20 {
		sp = EncodeDS18S20(c)
	} else {
		sp = EncodeDS18B20(c)
	}
	if s.corrupt {
		sp[8] ^= 0xFF
	}
	return sp, nil
}

// EncodeDS18B20 builds a 12-bit DS18B20 scratchpad for celsius.
func EncodeDS18B20(celsius float64) Scratchpad {
	raw := uint16(int16(math.Round(celsius * 16)))
	sp := Scratchpad{
		byte(raw), byte(raw >> 8),
		0x4B, 0x46, // TH, TL alarm registers
		0x7F,       // configuration: 12 bit
		0xFF, 0x0C, 0x10,
	}
	sp[8] = CRC8(sp[:8])
	return sp
}

// EncodeDS18S20 builds a DS18S20 scratchpad for celsius, with count-remain
// set so DecodeDS18S20 recovers 1/16 degree resolution.
func EncodeDS18S20(celsius float64) Scratchpad {
	t16 := int16(math.Round(celsius * 16))
	remain := (12 - t16) & 0x0F
	base := t16 - 12 + remain
	raw := uint16(base >> 3)
	sp := Scratchpad{
		byte(raw), byte(raw >> 8),
		0x4B, 0x46,
		0xFF, 0xFF,
		byte(remain),
		0x10, // count per degree
	}
	sp[8] = CRC8(sp[:8])
	return sp
}
