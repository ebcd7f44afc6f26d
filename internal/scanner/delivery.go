package scanner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/KeelyW-11/school-equipment-inventory/internal/catalog"
	"github.com/KeelyW-11/school-equipment-inventory/internal/model"
	"github.com/KeelyW-11/school-equipment-inventory/internal/parse"
)

// Outcome of a submitted candidate.
type Outcome string

const (
	OutcomeDelivered      Outcome = "delivered"
	OutcomeAlreadyChecked Outcome = "already_checked"
	OutcomeNotFound       Outcome = "not_found"
	OutcomePending        Outcome = "pending"
	// OutcomeWaiting means the catalog is still loading; the scan is delivered or queued later.
	OutcomeWaiting Outcome = "waiting"
	OutcomeFailed  Outcome = "failed"
)

const maxSuggestions = 5

var successVibration = []int{200, 100, 200}

// Result describes what happened to a candidate id.
type Result struct {
	Outcome     Outcome          `json:"outcome"`
	ID          string           `json:"id"`
	Record      *model.Equipment `json:"record,omitempty"`
	Suggestions []string         `json:"suggestions,omitempty"`
}

// Decode submits a camera decode callback. raw is either the decoded text or a JSON object
// with a "data" field.
func (c *Coordinator) Decode(ctx context.Context, raw string) (Result, error) {
	return c.submit(ctx, raw, true)
}

// Manual submits an id typed by the user. It is accepted while a session is active or has
// fallen back to manual entry.
func (c *Coordinator) Manual(ctx context.Context, text string) (Result, error) {
	return c.submit(ctx, text, false)
}

func (c *Coordinator) submit(ctx context.Context, raw string, fromCamera bool) (Result, error) {
	id := parse.NormalizePayload(raw, c.opts.QueryParams)

	c.mu.Lock()
	if fromCamera {
		if c.state != StateActive || c.source == nil || !c.source.Camera() {
			c.mu.Unlock()
			return Result{}, ErrNotActive
		}
	} else if c.state != StateActive && c.state != StateError {
		c.mu.Unlock()
		return Result{}, ErrNotActive
	}
	if id == "" {
		c.mu.Unlock()
		return Result{}, ErrEmptyPayload
	}

	// The window is keyed on time only: a different id inside it is dropped as well.
	now := c.opts.Now()
	if !c.lastAccepted.IsZero() && now.Sub(c.lastAccepted) < c.opts.Cooldown {
		c.mu.Unlock()
		return Result{}, ErrCooldown
	}
	if fromCamera && !c.source.Allow() {
		c.mu.Unlock()
		return Result{}, ErrThrottled
	}

	c.lastAccepted = now
	c.state = StateDelivering
	gen := c.generation
	closed := c.closed
	ready := c.catalog.IsReady()
	c.mu.Unlock()

	if ready {
		res, err := c.apply(ctx, id)
		c.finish(gen, res, err)
		return res, err
	}

	c.wg.Add(1)
	go c.awaitReadiness(gen, id, raw, closed)
	return Result{Outcome: OutcomeWaiting, ID: id}, nil
}

// awaitReadiness delivers a scan that arrived before the catalog was ready. If readiness
// does not come within the timeout, or the session closes first, the scan is queued.
func (c *Coordinator) awaitReadiness(gen uint64, id, raw string, closed <-chan struct{}) {
	defer c.wg.Done()

	timer := time.NewTimer(c.opts.ReadinessTimeout)
	defer timer.Stop()
	select {
	case <-c.catalog.Ready():
	case <-timer.C:
	case <-closed:
	case <-c.done:
	}

	ctx := context.Background()
	if c.catalog.IsReady() {
		res, err := c.apply(ctx, id)
		c.finish(gen, res, err)
		return
	}

	if _, err := c.enqueue(ctx, raw); err != nil {
		log.Printf("Failed to queue pending scan %q: %v", raw, err)
		c.finish(gen, Result{Outcome: OutcomeFailed, ID: id}, err)
		return
	}
	c.finish(gen, Result{Outcome: OutcomePending, ID: id}, nil)

	// Readiness may have fired between the check and the write.
	if c.catalog.IsReady() {
		c.Drain(ctx)
	}
}

// apply performs the lookup and toggle for one normalized id.
func (c *Coordinator) apply(ctx context.Context, id string) (Result, error) {
	rec, ok := c.catalog.Get(id)
	if !ok {
		res := Result{Outcome: OutcomeNotFound, ID: id}
		if c.opts.Strictness == StrictSuggest {
			res.Suggestions = c.catalog.Suggest(id, maxSuggestions)
		}
		return res, fmt.Errorf("%w: %s", catalog.ErrNotFound, id)
	}

	if rec.Checked() && c.opts.RescanPolicy == RescanNotify {
		return Result{Outcome: OutcomeAlreadyChecked, ID: id, Record: &rec}, nil
	}

	updated, err := c.catalog.Toggle(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return Result{Outcome: OutcomeNotFound, ID: id}, err
		}
		return Result{Outcome: OutcomeFailed, ID: id}, err
	}
	return Result{Outcome: OutcomeDelivered, ID: id, Record: &updated}, nil
}

// finish announces a result and moves the session on. Results of a session that has since
// been closed are announced but leave the state alone.
func (c *Coordinator) finish(gen uint64, res Result, err error) {
	c.announce(res, err)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.last = &res
	switch res.Outcome {
	case OutcomeDelivered, OutcomeAlreadyChecked, OutcomePending:
		c.stopAutoCloseLocked()
		c.autoClose = time.AfterFunc(c.opts.AutoClose, func() { c.closeSession(gen) })
	default:
		c.state = c.resume
	}
}

// closeSession is the auto-close callback; it does nothing if the session already changed.
func (c *Coordinator) closeSession(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.closeLocked()
}

func (c *Coordinator) announce(res Result, err error) {
	label := res.ID
	if res.Record != nil && res.Record.Name != "" {
		label = fmt.Sprintf("%s %s", res.ID, res.Record.Name)
	}

	switch res.Outcome {
	case OutcomeDelivered:
		if res.Record.Checked() {
			c.notifier.Notify(fmt.Sprintf("%s marked as checked.", label), model.SeveritySuccess)
		} else {
			c.notifier.Notify(fmt.Sprintf("%s marked as unchecked.", label), model.SeverityInfo)
		}
		c.highlighter.Highlight(res.ID, successVibration)
	case OutcomeAlreadyChecked:
		c.notifier.Notify(fmt.Sprintf("%s is already checked.", label), model.SeverityInfo)
		c.highlighter.Highlight(res.ID, nil)
	case OutcomeNotFound:
		msg := fmt.Sprintf("Equipment id %q was not found.", res.ID)
		if len(res.Suggestions) > 0 {
			msg = fmt.Sprintf("%s Did you mean %v?", msg, res.Suggestions)
		}
		c.notifier.Notify(msg, model.SeverityWarning)
	case OutcomePending:
		c.notifier.Notify(fmt.Sprintf("Scan of %s recorded; it will be applied once the equipment list has loaded.", label), model.SeverityInfo)
	default:
		c.notifier.Notify(fmt.Sprintf("Could not record the scan of %s: %v", label, err), model.SeverityError)
	}
}
