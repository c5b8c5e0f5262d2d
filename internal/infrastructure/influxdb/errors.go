package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled")

	ErrConnectionFailed = errors.New("influxdb: connect failed")
	ErrNotConnected     = errors.New("influxdb: client closed")
	ErrUnhealthy        = errors.New("influxdb: server unhealthy")

	// ErrWriteFailed wraps batch failures handed to the error handler.
	ErrWriteFailed = errors.New("influxdb: batch write failed")
)
