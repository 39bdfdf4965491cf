// Package onewire reads Dallas/Maxim DS18x20 thermometers on a 1-Wire bus
// and publishes the readings on the message bus.
//
// # Key Types
//
//   - ROM: 64-bit registration number (family, serial, CRC)
//   - Device: a bus master; SysfsDevice uses the Linux w1 driver,
//     SimulatedDevice is in-memory
//   - Sensor: one thermometer, decoding DS18B20/DS1822 and DS18S20
//     scratchpads
//   - Poller: a bus endpoint that scans on an interval and on ScanRequest
//
// # Scratchpad Decoding
//
// DS18B20 and DS1822 report a signed 16-bit value in 1/16 °C. At 9, 10 and
// 11 bit resolution (configuration register bits 5-6) the undefined low
// bits are cleared. DS18S20 reports 1/2 °C; when the count-per-degree
// register reads 0x10 the count-remain register extends it to 1/16 °C.
//
// Bit-level bus timing is left to the kernel driver.
//
// # Usage
//
//	dev := onewire.NewSysfsDevice("/sys/bus/w1/devices")
//	p := onewire.NewPoller(reg, dev, onewire.PollerConfig{
//	    SensorsGroup: "sensors",
//	    ControlGroup: "control",
//	    Interval:     10 * time.Second,
//	})
//	if err := p.Start(); err != nil {
//	    return err
//	}
//	go p.Run(ctx)
package onewire
