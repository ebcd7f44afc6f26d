package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/KeelyW-11/school-equipment-inventory/internal/model"
	"github.com/KeelyW-11/school-equipment-inventory/internal/parse"
	"github.com/KeelyW-11/school-equipment-inventory/internal/store"
)

var (
	ErrNotFound     = errors.New("equipment id not found")
	ErrNotReady     = errors.New("catalog is still loading")
	ErrNotConfirmed = errors.New("operation was not confirmed")
)

const resetPrompt = "Reset the inventory status of every item? This cannot be undone."

//go:embed defaults.csv
var defaultsCSV string

// Source yields the delimited equipment table read by Load.
type Source interface {
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Notifier shows a transient message to the user.
type Notifier interface {
	Notify(message string, severity model.Severity)
}

// Renderer redraws the client's current view.
type Renderer interface {
	Render()
}

// Confirmer asks the user to confirm a destructive operation.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a plain function to the Confirmer interface.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Options tune a Catalog. The zero value is usable.
type Options struct {
	// Delimiter forces the table delimiter; zero sniffs it from the header.
	Delimiter rune
	// Location is used for exported timestamps. Defaults to time.Local.
	Location *time.Location
	// Now stamps LastUpdated. Defaults to time.Now.
	Now func() time.Time
}

// LoadReport describes the outcome of a Load or Import.
type LoadReport struct {
	Source   string `json:"source"`
	Records  int    `json:"records"`
	Skipped  int    `json:"skipped"`
	Fallback bool   `json:"fallback"`
	Error    string `json:"error,omitempty"`
}

// Catalog is the single source of truth for equipment records and their check status.
type Catalog struct {
	store     store.Store
	notifier  Notifier
	renderer  Renderer
	delimiter rune
	loc       *time.Location
	now       func() time.Time

	// mu also covers writes of the persisted snapshot, so snapshots land in mutation order.
	mu      sync.RWMutex
	records []model.Equipment
	index   map[string]int
	rooms   []string

	ready     chan struct{}
	readyOnce sync.Once
}

// New creates an empty, not yet ready catalog. Nil collaborators are replaced with no-ops.
func New(st store.Store, notifier Notifier, renderer Renderer, opts Options) *Catalog {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if renderer == nil {
		renderer = nopRenderer{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Catalog{
		store:     st,
		notifier:  notifier,
		renderer:  renderer,
		delimiter: opts.Delimiter,
		loc:       opts.Location,
		now:       opts.Now,
		index:     make(map[string]int),
		ready:     make(chan struct{}),
	}
}

// Ready is closed once the first load and restore have completed.
func (c *Catalog) Ready() <-chan struct{} {
	return c.ready
}

// IsReady reports whether the first load and restore have completed.
func (c *Catalog) IsReady() bool {
	select {
	case <-c.ready:
		return true
	default:
		return false
	}
}

func (c *Catalog) markReady() {
	c.readyOnce.Do(func() { close(c.ready) })
}

// Load replaces the records with the table read from src, then reapplies the persisted
// status snapshot. If src fails or yields no usable rows, the embedded default records are
// loaded instead and the user is warned. Load never leaves the catalog empty and fires
// readiness after its first completion.
func (c *Catalog) Load(ctx context.Context, src Source) LoadReport {
	report := LoadReport{Source: "defaults"}
	var table *parse.Table
	var err error
	if src != nil {
		report.Source = src.Name()
		table, err = c.readSource(ctx, src)
	} else {
		err = errors.New("no source configured")
	}
	if err != nil {
		log.Printf("Failed to load equipment from %s, using built-in defaults: %v", report.Source, err)
		report.Fallback = true
		report.Error = err.Error()
		table = defaultTable()
	}
	report.Skipped = table.Skipped

	records := recordsFrom(table.Rows)

	// The snapshot is read under mu so a toggle racing the reload is not rolled back.
	c.mu.Lock()
	c.replaceLocked(records)
	c.restoreLocked(ctx)
	report.Records = len(c.records)
	c.mu.Unlock()

	c.markReady()
	if report.Fallback {
		c.notifier.Notify("Could not load the equipment list; showing the built-in sample data.", model.SeverityWarning)
	}
	c.renderer.Render()
	return report
}

// Restore applies the persisted status snapshot to the current records. Read failures and
// unknown ids are logged and skipped.
func (c *Catalog) Restore(ctx context.Context) {
	c.mu.Lock()
	c.restoreLocked(ctx)
	c.mu.Unlock()
	c.renderer.Render()
}

// restoreLocked is Restore without the locking. Caller holds mu.
func (c *Catalog) restoreLocked(ctx context.Context) {
	applySnapshot(c.records, c.readSnapshot(ctx))
}

// Import replaces the records with an uploaded table, keeping the current status of every
// id that survives. Unlike Load, a bad table is returned as an error and nothing changes.
// Import needs the initial load to have completed, since that is when statuses are restored.
func (c *Catalog) Import(ctx context.Context, r io.Reader) (LoadReport, error) {
	if !c.IsReady() {
		return LoadReport{}, ErrNotReady
	}
	table, err := parse.ReadTable(r, c.delimiter)
	if err != nil {
		return LoadReport{}, fmt.Errorf("failed to import table: %w", err)
	}
	records := recordsFrom(table.Rows)

	c.mu.Lock()
	for i := range records {
		if j, ok := c.index[records[i].ID]; ok {
			records[i].Status = c.records[j].Status
			records[i].LastUpdated = c.records[j].LastUpdated
		}
	}
	c.replaceLocked(records)
	c.persistLocked(ctx)
	n := len(c.records)
	c.mu.Unlock()

	c.notifier.Notify(fmt.Sprintf("Imported %d items.", n), model.SeveritySuccess)
	c.renderer.Render()
	return LoadReport{Source: "upload", Records: n, Skipped: table.Skipped}, nil
}

// Toggle flips the status of id and stamps LastUpdated.
func (c *Catalog) Toggle(ctx context.Context, id string) (model.Equipment, error) {
	if !c.IsReady() {
		return model.Equipment{}, ErrNotReady
	}

	c.mu.Lock()
	i, ok := c.index[id]
	if !ok {
		c.mu.Unlock()
		return model.Equipment{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	now := c.now()
	rec := &c.records[i]
	if rec.Status == model.StatusChecked {
		rec.Status = model.StatusUnchecked
	} else {
		rec.Status = model.StatusChecked
	}
	rec.LastUpdated = &now
	out := *rec
	c.persistLocked(ctx)
	c.mu.Unlock()

	c.renderer.Render()
	return out, nil
}

// BulkCheck marks every listed id that is unchecked as checked with one shared timestamp.
// Checked and unknown ids are left alone. It returns the number of records changed.
func (c *Catalog) BulkCheck(ctx context.Context, ids []string) (int, error) {
	if !c.IsReady() {
		return 0, ErrNotReady
	}

	c.mu.Lock()
	now := c.now()
	changed := 0
	for _, id := range ids {
		i, ok := c.index[id]
		if !ok || c.records[i].Status == model.StatusChecked {
			continue
		}
		c.records[i].Status = model.StatusChecked
		c.records[i].LastUpdated = &now
		changed++
	}
	if changed > 0 {
		c.persistLocked(ctx)
	}
	c.mu.Unlock()

	if changed > 0 {
		c.renderer.Render()
	}
	return changed, nil
}

// Reset unchecks every record, clears timestamps and deletes the persisted snapshot, but
// only once confirmer agrees.
func (c *Catalog) Reset(ctx context.Context, confirmer Confirmer) error {
	if !c.IsReady() {
		return ErrNotReady
	}
	if confirmer == nil || !confirmer.Confirm(resetPrompt) {
		return ErrNotConfirmed
	}

	c.mu.Lock()
	for i := range c.records {
		c.records[i].Status = model.StatusUnchecked
		c.records[i].LastUpdated = nil
	}
	err := c.store.Delete(ctx, store.StatusKey)
	c.mu.Unlock()
	if err != nil {
		log.Printf("Failed to clear saved status: %v", err)
	}

	c.notifier.Notify("All inventory status has been reset.", model.SeverityInfo)
	c.renderer.Render()
	return nil
}

// Get returns the record for id.
func (c *Catalog) Get(id string) (model.Equipment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		return model.Equipment{}, false
	}
	return c.records[i], true
}

// Rooms returns the distinct rooms, sorted.
func (c *Catalog) Rooms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.rooms...)
}

func (c *Catalog) readSource(ctx context.Context, src Source) (*parse.Table, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return parse.ReadTable(rc, c.delimiter)
}

func (c *Catalog) readSnapshot(ctx context.Context) []model.StatusEntry {
	var entries []model.StatusEntry
	if _, err := store.GetJSON(ctx, c.store, store.StatusKey, &entries); err != nil {
		log.Printf("Ignoring saved status: %v", err)
		return nil
	}
	return entries
}

// replaceLocked installs records and rebuilds the index and room list. Caller holds mu.
func (c *Catalog) replaceLocked(records []model.Equipment) {
	index := make(map[string]int, len(records))
	seen := make(map[string]struct{})
	var rooms []string
	for i, r := range records {
		index[r.ID] = i
		if _, ok := seen[r.Room]; !ok && r.Room != "" {
			seen[r.Room] = struct{}{}
			rooms = append(rooms, r.Room)
		}
	}
	sort.Strings(rooms)
	c.records = records
	c.index = index
	c.rooms = rooms
}

// persistLocked writes the full status snapshot. Caller holds mu. Failures are logged.
func (c *Catalog) persistLocked(ctx context.Context) {
	entries := make([]model.StatusEntry, len(c.records))
	for i, r := range c.records {
		entries[i] = model.StatusEntry{ID: r.ID, Status: r.Status, LastUpdated: r.LastUpdated}
	}
	if err := store.SetJSON(ctx, c.store, store.StatusKey, entries); err != nil {
		log.Printf("Failed to save status: %v", err)
	}
}

func applySnapshot(records []model.Equipment, entries []model.StatusEntry) {
	if len(entries) == 0 {
		return
	}
	byID := make(map[string]int, len(records))
	for i, r := range records {
		byID[r.ID] = i
	}
	for _, e := range entries {
		i, ok := byID[strings.TrimSpace(e.ID)]
		if !ok {
			continue
		}
		records[i].Status = model.ParseStatus(string(e.Status))
		records[i].LastUpdated = e.LastUpdated
	}
}

func recordsFrom(rows []parse.Row) []model.Equipment {
	records := make([]model.Equipment, len(rows))
	for i, r := range rows {
		records[i] = model.Equipment{ID: r.ID, Name: r.Name, Room: r.Room, Status: model.StatusUnchecked}
	}
	return records
}

func defaultTable() *parse.Table {
	table, err := parse.ReadTable(strings.NewReader(defaultsCSV), ',')
	if err != nil {
		panic(fmt.Sprintf("embedded defaults are invalid: %v", err))
	}
	return table
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, model.Severity) {}

type nopRenderer struct{}

func (nopRenderer) Render() {}
