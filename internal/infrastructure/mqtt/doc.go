// Package mqtt provides the MQTT connection the runtime uses to talk to
// participants.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS and payload-size validation
//   - Wildcard subscriptions restored after reconnect
//   - Runtime presence via a retained status topic and Last Will
//
// # Architecture
//
//	ACM Runtime ↔ MQTT Broker ↔ Participants
//
// Commands go out on acm/participant/{id}/command. Status reports,
// heartbeats and prime acknowledgements come back on sibling topics; see
// Topics for the full hierarchy.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Runtime.ID)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllParticipantStatus(), 1,
//	    func(topic string, payload []byte) error {
//	        return router.HandleStatus(topic, payload)
//	    })
package mqtt
