package gadget

import (
	"context"
	"errors"
	"testing"
)

func TestMultiNotifier(t *testing.T) {
	errA := errors.New("a failed")
	var delivered []string

	m := MultiNotifier{
		NotifierFunc(func(_ context.Context, ev Event) error {
			delivered = append(delivered, "a:"+string(ev.Type))
			return errA
		}),
		nil,
		NotifierFunc(func(_ context.Context, ev Event) error {
			delivered = append(delivered, "b:"+string(ev.Type))
			return nil
		}),
	}

	err := m.Notify(context.Background(), Event{Type: EventCreated})
	if !errors.Is(err, errA) {
		t.Errorf("Notify() error = %v, want to wrap %v", err, errA)
	}
	if len(delivered) != 2 {
		t.Fatalf("delivered = %v, want both members", delivered)
	}
	if delivered[1] != "b:gadget.created" {
		t.Errorf("second delivery = %q", delivered[1])
	}
}

func TestMultiNotifier_Empty(t *testing.T) {
	if err := (MultiNotifier{}).Notify(context.Background(), Event{}); err != nil {
		t.Errorf("empty MultiNotifier error = %v, want nil", err)
	}
}
