package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for gadgetd MQTT traffic.
const (
	// TopicPrefix is the root of every gadgetd topic.
	TopicPrefix = "gadgetd"

	// TopicPrefixGadget is the base for per-gadget topics.
	TopicPrefixGadget = TopicPrefix + "/gadget"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = TopicPrefix + "/system"
)

// Topics provides builders for gadgetd MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.GadgetEvent("0b6f...", "gadget.destroyed")
//	// Returns: "gadgetd/gadget/0b6f.../event/destroyed"
type Topics struct{}

// GadgetEvent returns the topic for one lifecycle event of a gadget.
// The "gadget." prefix of the event type is dropped from the last level.
//
// Example: gadgetd/gadget/0b6f.../event/self_destruct_initiated
func (Topics) GadgetEvent(gadgetID, eventType string) string {
	return fmt.Sprintf("%s/%s/event/%s", TopicPrefixGadget, gadgetID, strings.TrimPrefix(eventType, "gadget."))
}

// SystemStatus returns the service status topic carrying the retained
// online/offline payload and the LWT.
//
// Example: gadgetd/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// AllGadgetEvents returns a pattern matching every gadget's events.
//
// Pattern: gadgetd/gadget/+/event/+
func (Topics) AllGadgetEvents() string {
	return TopicPrefixGadget + "/+/event/+"
}

// GadgetEvents returns a pattern matching all events of one gadget.
//
// Pattern: gadgetd/gadget/{id}/event/+
func (Topics) GadgetEvents(gadgetID string) string {
	return fmt.Sprintf("%s/%s/event/+", TopicPrefixGadget, gadgetID)
}
