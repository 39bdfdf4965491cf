package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes. Every SensorBus topic lives under TopicPrefix.
const (
	// TopicPrefix is the root of the SensorBus topic tree.
	TopicPrefix = "sensorbus"

	// TopicPrefixState is the base for retained sensor state.
	TopicPrefixState = TopicPrefix + "/state"

	// TopicPrefixCommand is the base for inbound commands.
	TopicPrefixCommand = TopicPrefix + "/command"

	// TopicPrefixSystem is the base for node-level topics.
	TopicPrefixSystem = TopicPrefix + "/system"
)

// Topics provides builders for SensorBus MQTT topics.
//
//	topic := mqtt.Topics{}.SensorState("onewire", "28-0316a2794dff")
//	// Returns: "sensorbus/state/onewire/28-0316a2794dff"
type Topics struct{}

// SensorState returns the retained state topic for one sensor.
//
// Example: sensorbus/state/onewire/28-0316a2794dff
func (Topics) SensorState(protocol, id string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixState, protocol, id)
}

// AllSensorStates returns a wildcard matching every sensor state topic.
func (Topics) AllSensorStates() string {
	return TopicPrefixState + "/#"
}

// Command returns the topic for a named command.
//
// Example: sensorbus/command/scan
func (Topics) Command(name string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixCommand, name)
}

// ScanCommand returns the topic that triggers an immediate sensor scan.
func (t Topics) ScanCommand() string {
	return t.Command("scan")
}

// SystemStatus returns the retained online/offline status topic.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// SystemLink returns the network link state topic.
func (Topics) SystemLink() string {
	return TopicPrefixSystem + "/link"
}

// ParseSensorState splits a sensor state topic into protocol and id.
// ok is false for any other topic.
func ParseSensorState(topic string) (protocol, id string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicPrefixState+"/")
	if !found {
		return "", "", false
	}
	protocol, id, found = strings.Cut(rest, "/")
	if !found || protocol == "" || id == "" || strings.Contains(id, "/") {
		return "", "", false
	}
	return protocol, id, true
}
