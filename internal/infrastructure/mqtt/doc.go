// Package mqtt provides MQTT client connectivity for SensorBus Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS validation
//   - Topic subscriptions with wildcard support, restored on reconnect
//   - Last Will and Testament (LWT) for offline detection
//
// # Topic Tree
//
//	sensorbus/state/onewire/{rom}   retained temperature per sensor
//	sensorbus/system/status         retained online/offline status (LWT)
//	sensorbus/system/link           network link state
//	sensorbus/command/scan          request an immediate 1-Wire scan
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.ScanCommand(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("scan requested: %s", payload)
//	        return nil
//	    })
//
// Broker tests are behind the integration build tag and expect a broker at
// 127.0.0.1:1883:
//
//	go test -tags=integration ./internal/infrastructure/mqtt/...
package mqtt
