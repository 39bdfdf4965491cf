package onewire

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

// ROM is a 64-bit 1-Wire registration number in bus order:
// family code, 48-bit serial (least significant byte first), CRC.
type ROM [8]byte

// ParseROM parses the Linux w1 notation "ff-ssssssssssss", where ff is the
// family code and s the serial number in hex, most significant byte first.
// The CRC byte is computed.
func ParseROM(s string) (ROM, error) {
	var rom ROM
	if len(s) != 15 || s[2] != '-' {
		return rom, fmt.Errorf("%w: %q", ErrInvalidROM, s)
	}

	family, err := strconv.ParseUint(s[:2], 16, 8)
	if err != nil {
		return rom, fmt.Errorf("%w: %q: %w", ErrInvalidROM, s, err)
	}
	serial, err := strconv.ParseUint(s[3:], 16, 48)
	if err != nil {
		return rom, fmt.Errorf("%w: %q: %w", ErrInvalidROM, s, err)
	}

	rom[0] = byte(family)
	for i := 1; i <= 6; i++ {
		rom[i] = byte(serial >> (8 * (i - 1)))
	}
	rom[7] = CRC8(rom[:7])
	return rom, nil
}

// ROMFromID rebuilds a ROM from the value returned by ID.
func ROMFromID(id uint64) ROM {
	var rom ROM
	binary.LittleEndian.PutUint64(rom[:], id)
	return rom
}

// Family returns the family code byte.
func (r ROM) Family() Family {
	return Family(r[0])
}

// Serial returns the 48-bit serial number.
func (r ROM) Serial() uint64 {
	var s uint64
	for i := 6; i >= 1; i-- {
		s = s<<8 | uint64(r[i])
	}
	return s
}

// Valid reports whether the CRC byte matches.
func (r ROM) Valid() bool {
	return CRC8(r[:7]) == r[7]
}

// ID packs the ROM into the 64-bit sensor identifier carried in bus
// commands and telemetry frames (bus order, little-endian).
func (r ROM) ID() uint64 {
	return binary.LittleEndian.Uint64(r[:])
}

// String formats the ROM in w1 notation, e.g. "28-0316a2794dff".
func (r ROM) String() string {
	return fmt.Sprintf("%02x-%012x", r[0], r.Serial())
}
