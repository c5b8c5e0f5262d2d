package influxdb

import (
	"context"
	"fmt"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/imf-phoenix/gadgetd/internal/gadget"
)

// MeasurementGadgetLifecycle is the measurement holding one point per
// lifecycle event.
const MeasurementGadgetLifecycle = "gadget_lifecycle"

// Tag and field keys of MeasurementGadgetLifecycle.
const (
	tagGadgetID     = "gadget_id"
	tagEvent        = "event"
	fieldStatusCode = "status_code"
)

// PointWriter accepts points for asynchronous delivery. *Client implements it.
type PointWriter interface {
	WritePoint(p *write.Point) error
}

// LifecyclePoint converts a lifecycle event into a point.
//
// Example line protocol:
//
//	gadget_lifecycle,event=gadget.destroyed,gadget_id=0b6f... status_code=2i 1767225600000000000
func LifecyclePoint(ev gadget.Event) *write.Point {
	return write.NewPointWithMeasurement(MeasurementGadgetLifecycle).
		AddTag(tagGadgetID, ev.GadgetID).
		AddTag(tagEvent, string(ev.Type)).
		AddField(fieldStatusCode, int64(ev.Status.Code())).
		SetTime(ev.Timestamp)
}

// LifecycleRecorder writes a point for each gadget lifecycle event.
// It implements gadget.Notifier.
type LifecycleRecorder struct {
	w PointWriter
}

// NewLifecycleRecorder creates a recorder writing to w.
func NewLifecycleRecorder(w PointWriter) *LifecycleRecorder {
	return &LifecycleRecorder{w: w}
}

// Notify queues the event's point. Delivery failures surface later
// through the client's error callback.
func (r *LifecycleRecorder) Notify(_ context.Context, ev gadget.Event) error {
	if err := r.w.WritePoint(LifecyclePoint(ev)); err != nil {
		return fmt.Errorf("recording %s for %s: %w", ev.Type, ev.GadgetID, err)
	}
	return nil
}
