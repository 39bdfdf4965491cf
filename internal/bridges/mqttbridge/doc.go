// Package mqttbridge connects the in-process bus to an MQTT broker.
//
// The Bridge owns one bus endpoint. It joins the sensors and system groups
// and republishes what it receives:
//
//	bus.Temperature -> sensorbus/state/onewire/{rom}  (retained StateMessage)
//	bus.LinkState   -> sensorbus/system/link          (retained LinkMessage)
//
// In the other direction a message on sensorbus/command/scan, with an
// optional {"reason": "..."} body, becomes a bus.ScanRequest sent to the
// control group.
package mqttbridge
