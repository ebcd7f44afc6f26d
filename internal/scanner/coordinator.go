package scanner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/KeelyW-11/school-equipment-inventory/internal/model"
	"github.com/KeelyW-11/school-equipment-inventory/internal/store"
)

// State of the scan session.
type State string

const (
	StateIdle       State = "idle"
	StateAcquiring  State = "acquiring"
	StateActive     State = "active"
	StateDelivering State = "delivering"
	// StateError means the camera could not be used; manual entry is still accepted.
	StateError State = "error"
)

var (
	ErrNotActive        = errors.New("scanner is not accepting input")
	ErrCooldown         = errors.New("scan ignored during cooldown")
	ErrThrottled        = errors.New("decode callback throttled")
	ErrEmptyPayload     = errors.New("scan payload is empty")
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrNoDevice         = errors.New("no camera available")
	ErrDeviceBusy       = errors.New("camera is in use by another application")
	ErrNoDecoder        = errors.New("no supported QR decoder")
)

// Strictness controls how a candidate id is matched.
type Strictness string

const (
	// StrictExact toggles only on exact id equality.
	StrictExact Strictness = "exact"
	// StrictSuggest also returns substring suggestions for an unknown id. It never toggles them.
	StrictSuggest Strictness = "suggest"
)

// RescanPolicy decides what scanning an already checked id does.
type RescanPolicy string

const (
	RescanNotify  RescanPolicy = "notify"
	RescanUncheck RescanPolicy = "uncheck"
)

// Catalog is the part of the catalog the coordinator delivers to.
type Catalog interface {
	IsReady() bool
	Ready() <-chan struct{}
	Get(id string) (model.Equipment, bool)
	Toggle(ctx context.Context, id string) (model.Equipment, error)
	Suggest(fragment string, limit int) []string
}

// Notifier shows a transient message to the user.
type Notifier interface {
	Notify(message string, severity model.Severity)
}

// Highlighter draws attention to a record, optionally with a vibration pattern.
type Highlighter interface {
	Highlight(id string, vibrate []int)
}

// Options tune a Coordinator.
type Options struct {
	Cooldown         time.Duration
	ReadinessTimeout time.Duration
	AutoClose        time.Duration
	DecodesPerSecond float64
	Strictness       Strictness
	RescanPolicy     RescanPolicy
	QueryParams      []string
	// Now is the clock used for the cooldown window. Defaults to time.Now.
	Now func() time.Time
}

// Status is a point-in-time view of the coordinator.
type Status struct {
	State   State   `json:"state"`
	Source  string  `json:"source,omitempty"`
	Manual  bool    `json:"manualEntry"`
	Error   string  `json:"error,omitempty"`
	Session uint64  `json:"session"`
	Last    *Result `json:"last,omitempty"`
}

// Coordinator owns the scan session and delivers each accepted candidate to the catalog
// exactly once, whether or not the catalog has finished loading.
type Coordinator struct {
	catalog     Catalog
	store       store.Store
	notifier    Notifier
	highlighter Highlighter
	opts        Options

	mu           sync.Mutex
	state        State
	resume       State
	source       Source
	lastErr      error
	last         *Result
	generation   uint64
	lastAccepted time.Time
	autoClose    *time.Timer
	closed       chan struct{}

	// pendingMu serialises read-modify-write of the pending queue.
	pendingMu sync.Mutex

	wg       sync.WaitGroup
	done     chan struct{}
	doneOnce sync.Once
}

// New creates an idle coordinator.
func New(cat Catalog, st store.Store, notifier Notifier, highlighter Highlighter, opts Options) *Coordinator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ReadinessTimeout <= 0 {
		opts.ReadinessTimeout = 10 * time.Second
	}
	if opts.Strictness == "" {
		opts.Strictness = StrictExact
	}
	if opts.RescanPolicy == "" {
		opts.RescanPolicy = RescanNotify
	}
	return &Coordinator{
		catalog:     cat,
		store:       st,
		notifier:    notifier,
		highlighter: highlighter,
		opts:        opts,
		state:       StateIdle,
		done:        make(chan struct{}),
	}
}

// Open starts a scan session using the best source the client can offer. If the camera
// cannot be used the session still opens, in the error state, with manual entry available;
// the acquisition error is returned alongside that status.
func (c *Coordinator) Open(ctx context.Context, caps Capabilities) (Status, error) {
	c.mu.Lock()
	if c.state == StateActive || c.state == StateDelivering {
		st := c.statusLocked()
		c.mu.Unlock()
		return st, nil
	}

	c.stopAutoCloseLocked()
	c.generation++
	if c.closed != nil {
		close(c.closed)
	}
	c.closed = make(chan struct{})
	c.last = nil
	c.state = StateAcquiring

	src, err := selectSource(caps, c.opts.DecodesPerSecond)
	if err != nil {
		c.source = manualSource{}
		c.state = StateError
		c.resume = StateError
		c.lastErr = err
		st := c.statusLocked()
		c.mu.Unlock()

		log.Printf("Scanner falling back to manual entry: %v", err)
		c.notifier.Notify(fmt.Sprintf("Camera unavailable (%v). Enter the equipment id manually.", err), model.SeverityWarning)
		return st, err
	}

	c.source = src
	c.state = StateActive
	c.resume = StateActive
	c.lastErr = nil
	st := c.statusLocked()
	c.mu.Unlock()
	return st, nil
}

// DeviceLost reports a camera failure during an active session. The session drops to
// manual entry.
func (c *Coordinator) DeviceLost(err error) Status {
	c.mu.Lock()
	if c.state != StateActive || c.source == nil || !c.source.Camera() {
		st := c.statusLocked()
		c.mu.Unlock()
		return st
	}
	c.source = manualSource{}
	c.state = StateError
	c.resume = StateError
	c.lastErr = err
	st := c.statusLocked()
	c.mu.Unlock()

	c.notifier.Notify(fmt.Sprintf("Camera stopped (%v). Enter the equipment id manually.", err), model.SeverityWarning)
	return st
}

// Close ends the session and releases the source. Calling it when idle is a no-op.
func (c *Coordinator) Close() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return c.statusLocked()
}

// Status returns the current session state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Run waits for the catalog to become ready and drains pending scans. It then blocks until
// ctx is done, closes the session and waits for in-flight deliveries.
func (c *Coordinator) Run(ctx context.Context) {
	select {
	case <-c.catalog.Ready():
		c.Drain(ctx)
	case <-ctx.Done():
	}

	<-ctx.Done()
	c.Close()
	c.doneOnce.Do(func() { close(c.done) })
	c.wg.Wait()
	log.Println("Scan coordinator shut down.")
}

func (c *Coordinator) closeLocked() {
	if c.state == StateIdle {
		return
	}
	c.stopAutoCloseLocked()
	c.generation++
	if c.closed != nil {
		close(c.closed)
		c.closed = nil
	}
	c.source = nil
	c.lastErr = nil
	c.state = StateIdle
}

func (c *Coordinator) stopAutoCloseLocked() {
	if c.autoClose != nil {
		c.autoClose.Stop()
		c.autoClose = nil
	}
}

func (c *Coordinator) statusLocked() Status {
	st := Status{State: c.state, Session: c.generation, Last: c.last}
	if c.source != nil {
		st.Source = c.source.Kind()
	}
	st.Manual = c.state == StateActive || c.state == StateError
	if c.lastErr != nil {
		st.Error = c.lastErr.Error()
	}
	return st
}
