// Package mqtt publishes gadgetd's lifecycle events to an MQTT broker.
//
// MQTT is optional. When enabled, EventPublisher sends every lifecycle
// event (creation, status change, decommission, self-destruct initiation
// and destruction) next to the WebSocket feed. gadgetd only publishes; it
// holds no subscriptions and uses a clean session.
//
// Topics:
//
//	gadgetd/system/status                 retained online/offline, LWT
//	gadgetd/gadget/{id}/event/{type}      one message per lifecycle event
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	lifecycle.SetNotifier(mqtt.NewEventPublisher(client, client.QoS()))
package mqtt
