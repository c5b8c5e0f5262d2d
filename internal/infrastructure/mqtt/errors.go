package mqtt

import "errors"

// Sentinels returned by the publisher; match with errors.Is.
var (
	ErrNotConnected     = errors.New("mqtt: broker unreachable")
	ErrConnectionFailed = errors.New("mqtt: connect failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
	ErrInvalidQoS       = errors.New("mqtt: qos must be 0, 1 or 2")

	// ErrInvalidTopic covers empty topics and topics containing the
	// subscription wildcards + or #, which are illegal when publishing.
	ErrInvalidTopic = errors.New("mqtt: invalid publish topic")
)
