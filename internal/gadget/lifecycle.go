package gadget

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	mrand "math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Logger defines the logging interface used by the Lifecycle.
// This allows for dependency injection and testing.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

const (
	// DefaultSelfDestructDelay is the wait between initiation and destruction.
	DefaultSelfDestructDelay = 5 * time.Second

	// confirmationCodeLength is the number of characters in a confirmation code.
	confirmationCodeLength = 6

	// confirmationAlphabet is the character set of confirmation codes.
	confirmationAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// destructionTimeout bounds the store calls made when a timer fires.
	destructionTimeout = 10 * time.Second
)

// Lifecycle applies the gadget status rules on top of a Repository.
//
// Thread Safety: all methods are safe for concurrent use. No lock is held
// across requests; each operation is a single read-modify-write against
// the store.
type Lifecycle struct {
	repo     Repository
	names    *Allocator
	notifier Notifier
	logger   Logger
	delay    time.Duration

	// seams for tests
	schedule func(d time.Duration, f func())
	intn     func(n int) int
	code     func() (string, error)

	pending atomic.Int64
}

// NewLifecycle creates a lifecycle engine. A nil allocator gets a fresh
// pool of DefaultCodenames; a non-positive delay selects DefaultSelfDestructDelay.
func NewLifecycle(repo Repository, names *Allocator, delay time.Duration) *Lifecycle {
	if names == nil {
		names = NewAllocator(nil, nil)
	}
	if delay <= 0 {
		delay = DefaultSelfDestructDelay
	}
	return &Lifecycle{
		repo:     repo,
		names:    names,
		notifier: noopNotifier{},
		logger:   noopLogger{},
		delay:    delay,
		schedule: func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		intn:     mrand.IntN,
		code:     confirmationCode,
	}
}

// SetLogger sets the logger for the lifecycle engine.
func (l *Lifecycle) SetLogger(logger Logger) {
	l.logger = logger
}

// SetNotifier sets the receiver of lifecycle events.
func (l *Lifecycle) SetNotifier(n Notifier) {
	if n == nil {
		n = noopNotifier{}
	}
	l.notifier = n
}

// SelfDestructDelay returns the configured destruction delay.
func (l *Lifecycle) SelfDestructDelay() time.Duration {
	return l.delay
}

// PendingDestructions returns the number of scheduled destructions that
// have not fired yet.
func (l *Lifecycle) PendingDestructions() int64 {
	return l.pending.Load()
}

// Create registers a new Available gadget under a freshly allocated codename.
func (l *Lifecycle) Create(ctx context.Context) (*Gadget, error) {
	g := &Gadget{
		ID:     uuid.NewString(),
		Name:   l.names.Allocate(),
		Status: StatusAvailable,
	}
	if err := l.repo.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("creating gadget: %w", err)
	}

	l.logger.Info("gadget created", "id", g.ID, "name", g.Name)
	l.emit(ctx, EventCreated, g)
	return g, nil
}

// Get returns one gadget.
func (l *Lifecycle) Get(ctx context.Context, id string) (*Gadget, error) {
	return l.repo.GetByID(ctx, id)
}

// List returns all gadgets, or those with exactly the given status when
// filter is non-nil, each with a freshly rolled mission probability.
func (l *Lifecycle) List(ctx context.Context, filter *Status) ([]Listed, error) {
	var (
		gadgets []Gadget
		err     error
	)
	if filter != nil {
		gadgets, err = l.repo.ListByStatus(ctx, *filter)
	} else {
		gadgets, err = l.repo.List(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("listing gadgets: %w", err)
	}
	return decorate(gadgets, l.intn), nil
}

// UpdateStatus applies an ordinary status change.
//
// Rules, in order:
//  1. A Decommissioned or Destroyed target is refused with a *TransitionError.
//  2. A gadget already Decommissioned or Destroyed is refused with a *TerminalError.
//  3. A target equal to the current status, or empty, is a no-op.
//  4. Otherwise the new status is saved.
//
// An unrecognised target returns ErrInvalidStatus.
func (l *Lifecycle) UpdateStatus(ctx context.Context, id string, target Status) (*Outcome, error) {
	g, err := l.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if target != "" && !target.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, target)
	}
	if target.IsTerminal() {
		return nil, &TransitionError{Target: target}
	}
	if g.Status.IsTerminal() {
		return nil, &TerminalError{Current: g.Status}
	}
	if target == "" || target == g.Status {
		return &Outcome{Message: "Gadget is already " + string(g.Status), Gadget: g}, nil
	}

	// Only reachable if a non-terminal status other than Available is introduced.
	previous := g.Status
	g.Status = target
	if err := l.repo.Update(ctx, g); err != nil {
		return nil, fmt.Errorf("saving gadget status: %w", err)
	}

	l.logger.Info("gadget status changed", "id", g.ID, "from", previous, "to", target)
	l.emit(ctx, EventStatusChanged, g)
	return &Outcome{Message: "Gadget status updated", Gadget: g, Changed: true}, nil
}

// Decommission retires a gadget and records when it happened.
// Already Decommissioned or Destroyed gadgets are left untouched.
func (l *Lifecycle) Decommission(ctx context.Context, id string) (*Outcome, error) {
	g, err := l.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch g.Status {
	case StatusDestroyed:
		return &Outcome{Message: "Gadget is already Destroyed. Decommissioning is not possible", Gadget: g}, nil
	case StatusDecommissioned:
		return &Outcome{Message: "Gadget is already Decommissioned", Gadget: g}, nil
	}

	now := time.Now().UTC()
	g.Status = StatusDecommissioned
	g.DecommissionedAt = &now
	if err := l.repo.Update(ctx, g); err != nil {
		return nil, fmt.Errorf("decommissioning gadget: %w", err)
	}

	l.logger.Info("gadget decommissioned", "id", g.ID, "name", g.Name)
	l.emit(ctx, EventDecommissioned, g)
	return &Outcome{Message: "Gadget decommissioned", Gadget: g, Changed: true}, nil
}

// SelfDestruct issues a confirmation code and schedules the gadget for
// destruction after the configured delay. The status is not changed now.
//
// The scheduled task only remembers the gadget ID. When it fires it
// re-reads the gadget and sets Destroyed unconditionally, so a
// decommission that lands inside the delay window is overwritten. The
// task cannot be cancelled and does not survive a restart.
func (l *Lifecycle) SelfDestruct(ctx context.Context, id string) (*Outcome, error) {
	g, err := l.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.Status == StatusDestroyed {
		return &Outcome{Message: "Gadget is already Destroyed", Gadget: g}, nil
	}

	code, err := l.code()
	if err != nil {
		return nil, fmt.Errorf("generating confirmation code: %w", err)
	}

	l.pending.Add(1)
	l.schedule(l.delay, func() { l.fireDestruction(g.ID) })

	l.logger.Info("self-destruct initiated", "id", g.ID, "name", g.Name, "delay", l.delay)
	l.emit(ctx, EventSelfDestructInitiated, g)

	return &Outcome{
		Message:          fmt.Sprintf("Self-destruct sequence initiated for %s. Confirmation Code: %s", g.Name, code),
		Gadget:           g,
		ConfirmationCode: code,
	}, nil
}

// fireDestruction runs when a self-destruct timer expires. Failures are
// logged only; the request that scheduled it has long completed.
func (l *Lifecycle) fireDestruction(id string) {
	defer l.pending.Add(-1)

	ctx, cancel := context.WithTimeout(context.Background(), destructionTimeout)
	defer cancel()

	g, err := l.repo.GetByID(ctx, id)
	if err != nil {
		l.logger.Error("self-destruct: loading gadget failed", "id", id, "error", err)
		return
	}

	if g.Status == StatusDecommissioned {
		l.logger.Warn("self-destruct overwriting decommissioned gadget", "id", id, "name", g.Name)
	}

	g.Status = StatusDestroyed
	if err := l.repo.Update(ctx, g); err != nil {
		l.logger.Error("self-destruct: saving gadget failed", "id", id, "error", err)
		return
	}

	l.logger.Info(g.Name+" has been destroyed", "id", id)
	l.emit(ctx, EventDestroyed, g)
}

func (l *Lifecycle) emit(ctx context.Context, typ EventType, g *Gadget) {
	ev := Event{
		Type:      typ,
		GadgetID:  g.ID,
		Name:      g.Name,
		Status:    g.Status,
		Timestamp: time.Now().UTC(),
	}
	if err := l.notifier.Notify(ctx, ev); err != nil {
		l.logger.Warn("delivering gadget event failed", "event", typ, "id", g.ID, "error", err)
	}
}

// confirmationCode returns a random code of uppercase letters and digits.
func confirmationCode() (string, error) {
	limit := big.NewInt(int64(len(confirmationAlphabet)))
	buf := make([]byte, confirmationCodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		buf[i] = confirmationAlphabet[n.Int64()]
	}
	return string(buf), nil
}
