// Package mqtt provides MQTT client connectivity for Radiolink Core.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) registration for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Radiolink uses MQTT as its outward-facing message bus: the bridge
// publishes device state, acks, and health, and receives commands. The
// broker (Mosquitto) decouples the agent from its consumers.
//
//	Radiolink Core ↔ MQTT Broker ↔ Dashboards / Automations
//
// Topic construction lives with the bridge (see the netradio package's
// message helpers); this package moves bytes.
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all bridge commands
//	err = client.Subscribe("radiolink/command/netradio/#", 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish retained state
//	client.Publish("radiolink/state/netradio/kitchen-radio", payload, 1, true)
package mqtt
