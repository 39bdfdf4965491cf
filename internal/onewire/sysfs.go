package onewire

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// SysfsDevice reads thermometers through the Linux w1 kernel driver
// (w1-gpio + w1-therm), typically mounted at /sys/bus/w1/devices.
//
// Reading a device's w1_slave file triggers a conversion and prints the
// scratchpad, e.g.:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
type SysfsDevice struct {
	root string
}

// NewSysfsDevice returns a device rooted at the w1 devices directory.
func NewSysfsDevice(root string) *SysfsDevice {
	return &SysfsDevice{root: root}
}

// Search lists the slave directories whose names parse as ROM codes.
// Bus master entries (w1_bus_masterN) are skipped.
func (d *SysfsDevice) Search(ctx context.Context) ([]ROM, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", d.root, err)
	}

	var roms []ROM
	for _, e := range entries {
		rom, err := ParseROM(e.Name())
		if err != nil {
			continue
		}
		roms = append(roms, rom)
	}
	slices.SortFunc(roms, func(a, b ROM) int { return bytes.Compare(a[:], b[:]) })
	return roms, nil
}

// ReadScratchpad reads and parses the device's w1_slave file.
func (d *SysfsDevice) ReadScratchpad(ctx context.Context, rom ROM) (Scratchpad, error) {
	var sp Scratchpad
	if err := ctx.Err(); err != nil {
		return sp, err
	}

	path := filepath.Join(d.root, rom.String(), "w1_slave")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sp, fmt.Errorf("%w: %s", ErrNoPresence, rom)
		}
		return sp, fmt.Errorf("reading %s: %w", path, err)
	}
	return parseW1Slave(data)
}

// parseW1Slave extracts the nine scratchpad bytes from the first line.
func parseW1Slave(data []byte) (Scratchpad, error) {
	var sp Scratchpad

	sc := bufio.NewScanner(bytes.NewReader(data))
	if !sc.Scan() {
		return sp, fmt.Errorf("%w: empty output", ErrMalformedScratchpad)
	}
	fields := strings.Fields(sc.Text())
	if len(fields) < len(sp) {
		return sp, fmt.Errorf("%w: %q", ErrMalformedScratchpad, sc.Text())
	}
	for i := range sp {
		b, err := strconv.ParseUint(fields[i], 16, 8)
		if err != nil {
			return sp, fmt.Errorf("%w: byte %d: %w", ErrMalformedScratchpad, i, err)
		}
		sp[i] = byte(b)
	}
	return sp, nil
}
