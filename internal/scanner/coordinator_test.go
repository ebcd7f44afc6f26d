package scanner

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KeelyW-11/school-equipment-inventory/internal/catalog"
	"github.com/KeelyW-11/school-equipment-inventory/internal/model"
	"github.com/KeelyW-11/school-equipment-inventory/internal/store"
)

const equipmentTable = `id,name,room
EQ001,Projector,Room 101
EQ002,Computer,Room 101
EQ003,Speaker,Room 102
EQ004,Whiteboard,Room 102
EQ005,Scanner,Room 103
EQ006,Printer,Room 103
EQ010,Volleyball,Gym Storage
`

type stringSource string

func (s stringSource) Name() string { return "test" }

func (s stringSource) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(string(s))), nil
}

// countingCatalog counts the toggles that reach the real catalog.
type countingCatalog struct {
	*catalog.Catalog
	toggles atomic.Int32
}

func (c *countingCatalog) Toggle(ctx context.Context, id string) (model.Equipment, error) {
	rec, err := c.Catalog.Toggle(ctx, id)
	if err == nil {
		c.toggles.Add(1)
	}
	return rec, err
}

type recorder struct {
	mu         sync.Mutex
	severities []model.Severity
	messages   []string
	highlights []string
	vibrations [][]int
}

func (r *recorder) Notify(message string, severity model.Severity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	r.severities = append(r.severities, severity)
}

func (r *recorder) Highlight(id string, vibrate []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.highlights = append(r.highlights, id)
	r.vibrations = append(r.vibrations, vibrate)
}

func (r *recorder) severityList() []model.Severity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Severity(nil), r.severities...)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	st    store.Store
	cat   *countingCatalog
	rec   *recorder
	clock *fakeClock
	coord *Coordinator
}

func newFixture(t *testing.T, loaded bool, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		st:    store.NewMemoryStore(),
		rec:   &recorder{},
		clock: &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	f.cat = &countingCatalog{Catalog: catalog.New(f.st, nil, nil, catalog.Options{})}
	if loaded {
		f.load()
	}
	if opts.Now == nil {
		opts.Now = f.clock.Now
	}
	if opts.AutoClose == 0 {
		opts.AutoClose = time.Hour
	}
	f.coord = New(f.cat, f.st, f.rec, f.rec, opts)
	return f
}

func (f *fixture) load() {
	f.cat.Load(context.Background(), stringSource(equipmentTable))
}

func (f *fixture) checked(id string) bool {
	rec, ok := f.cat.Get(id)
	return ok && rec.Checked()
}

var camera = Capabilities{Camera: CameraGranted, Decoders: []string{DecoderJSQR, DecoderQRScanner}}

func TestOpen_SelectsSource(t *testing.T) {
	testCases := []struct {
		name           string
		caps           Capabilities
		expectedState  State
		expectedSource string
		expectedErr    error
	}{
		{name: "Preferred decoder", caps: camera, expectedState: StateActive, expectedSource: DecoderQRScanner},
		{name: "Polling decoder only", caps: Capabilities{Camera: CameraGranted, Decoders: []string{DecoderJSQR}}, expectedState: StateActive, expectedSource: DecoderJSQR},
		{name: "Permission denied", caps: Capabilities{Camera: CameraDenied, Decoders: []string{DecoderJSQR}}, expectedState: StateError, expectedSource: DecoderManual, expectedErr: ErrPermissionDenied},
		{name: "No device", caps: Capabilities{Camera: CameraAbsent}, expectedState: StateError, expectedSource: DecoderManual, expectedErr: ErrNoDevice},
		{name: "Device busy", caps: Capabilities{Camera: CameraBusy, Decoders: []string{DecoderQRScanner}}, expectedState: StateError, expectedSource: DecoderManual, expectedErr: ErrDeviceBusy},
		{name: "No decoder", caps: Capabilities{Camera: CameraGranted, Decoders: []string{"zxing"}}, expectedState: StateError, expectedSource: DecoderManual, expectedErr: ErrNoDecoder},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, true, Options{})

			st, err := f.coord.Open(context.Background(), tc.caps)

			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
				assert.Equal(t, []model.Severity{model.SeverityWarning}, f.rec.severityList())
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.expectedState, st.State)
			assert.Equal(t, tc.expectedSource, st.Source)
			assert.True(t, st.Manual)
		})
	}
}

func TestManualFallbackAcceptsEntry(t *testing.T) {
	f := newFixture(t, true, Options{})
	ctx := context.Background()
	_, err := f.coord.Open(ctx, Capabilities{Camera: CameraDenied})
	require.Error(t, err)

	_, err = f.coord.Decode(ctx, "EQ002")
	assert.ErrorIs(t, err, ErrNotActive)

	res, err := f.coord.Manual(ctx, " EQ002 ")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, res.Outcome)
	assert.True(t, f.checked("EQ002"))
}

func TestDeviceLostDropsToManual(t *testing.T) {
	f := newFixture(t, true, Options{})
	ctx := context.Background()
	_, err := f.coord.Open(ctx, camera)
	require.NoError(t, err)

	st := f.coord.DeviceLost(errors.New("track ended"))

	assert.Equal(t, StateError, st.State)
	assert.Equal(t, "track ended", st.Error)
	_, err = f.coord.Decode(ctx, "EQ001")
	assert.ErrorIs(t, err, ErrNotActive)
	res, err := f.coord.Manual(ctx, "EQ001")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, res.Outcome)
}

func TestSubmitBeforeOpen(t *testing.T) {
	f := newFixture(t, true, Options{})

	_, err := f.coord.Decode(context.Background(), "EQ001")
	assert.ErrorIs(t, err, ErrNotActive)
	_, err = f.coord.Manual(context.Background(), "EQ001")
	assert.ErrorIs(t, err, ErrNotActive)
	assert.False(t, f.checked("EQ001"))
}

func TestDeliveredScanHighlightsAndAutoCloses(t *testing.T) {
	f := newFixture(t, true, Options{AutoClose: 100 * time.Millisecond})
	ctx := context.Background()
	_, err := f.coord.Open(ctx, camera)
	require.NoError(t, err)

	res, err := f.coord.Decode(ctx, `{"data":"https://school.example/item?id=EQ003"}`)

	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, res.Outcome)
	require.NotNil(t, res.Record)
	assert.NotNil(t, res.Record.LastUpdated)
	assert.Equal(t, StateDelivering, f.coord.Status().State)
	assert.Equal(t, []string{"EQ003"}, f.rec.highlights)
	assert.Equal(t, [][]int{{200, 100, 200}}, f.rec.vibrations)
	assert.Eventually(t, func() bool { return f.coord.Status().State == StateIdle }, time.Second, 5*time.Millisecond)
}

func TestNotReadyScanIsDeliveredAfterReadiness(t *testing.T) {
	f := newFixture(t, false, Options{ReadinessTimeout: 5 * time.Second})
	ctx := context.Background()
	_, err := f.coord.Open(ctx, camera)
	require.NoError(t, err)

	res, err := f.coord.Decode(ctx, "EQ001")
	require.NoError(t, err)
	assert.Equal(t, OutcomeWaiting, res.Outcome)
	assert.False(t, f.checked("EQ001"))

	f.load()

	assert.Eventually(t, func() bool { return f.checked("EQ001") }, time.Second, 5*time.Millisecond)
	rec, _ := f.cat.Get("EQ001")
	assert.NotNil(t, rec.LastUpdated)
	assert.Eventually(t, func() bool {
		last := f.coord.Status().Last
		return last != nil && last.Outcome == OutcomeDelivered
	}, time.Second, 5*time.Millisecond)
	pending, err := f.coord.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, int32(1), f.cat.toggles.Load())
}

func TestReadinessTimeoutQueuesAndRunDrains(t *testing.T) {
	f := newFixture(t, false, Options{ReadinessTimeout: 20 * time.Millisecond, AutoClose: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		f.coord.Run(ctx)
	}()

	_, err := f.coord.Open(ctx, camera)
	require.NoError(t, err)
	res, err := f.coord.Decode(ctx, "EQ001")
	require.NoError(t, err)
	assert.Equal(t, OutcomeWaiting, res.Outcome)

	assert.Eventually(t, func() bool {
		pending, _ := f.coord.Pending(ctx)
		return len(pending) == 1
	}, time.Second, 5*time.Millisecond)
	pending, _ := f.coord.Pending(ctx)
	assert.Equal(t, "EQ001", pending[0].Payload)
	assert.NotEmpty(t, pending[0].ID)
	assert.Contains(t, f.rec.severityList(), model.SeverityInfo)
	assert.Eventually(t, func() bool { return f.coord.Status().State == StateIdle }, time.Second, 5*time.Millisecond)

	f.load()

	assert.Eventually(t, func() bool { return f.checked("EQ001") }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		pending, _ := f.coord.Pending(ctx)
		return len(pending) == 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), f.cat.toggles.Load())

	cancel()
	<-runDone
}

func TestCloseWhileWaitingQueuesScan(t *testing.T) {
	f := newFixture(t, false, Options{ReadinessTimeout: time.Hour})
	ctx := context.Background()
	_, err := f.coord.Open(ctx, camera)
	require.NoError(t, err)
	_, err = f.coord.Decode(ctx, "EQ004")
	require.NoError(t, err)

	st := f.coord.Close()

	assert.Equal(t, StateIdle, st.State)
	f.coord.wg.Wait()
	pending, err := f.coord.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	f.load()
	assert.Equal(t, 1, f.coord.Drain(ctx))
	assert.True(t, f.checked("EQ004"))
}

func TestCooldownSuppressesRepeatedDecodes(t *testing.T) {
	f := newFixture(t, true, Options{Cooldown: 2000 * time.Millisecond, AutoClose: time.Millisecond})
	ctx := context.Background()
	_, err := f.coord.Open(ctx, camera)
	require.NoError(t, err)

	res, err := f.coord.Decode(ctx, "EQ001")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, res.Outcome)
	assert.Eventually(t, func() bool { return f.coord.Status().State == StateIdle }, time.Second, time.Millisecond)

	_, err = f.coord.Open(ctx, camera)
	require.NoError(t, err)
	f.clock.Advance(500 * time.Millisecond)
	_, err = f.coord.Decode(ctx, "EQ001")
	assert.ErrorIs(t, err, ErrCooldown)
	_, err = f.coord.Decode(ctx, "EQ002")
	assert.ErrorIs(t, err, ErrCooldown)

	assert.Equal(t, int32(1), f.cat.toggles.Load())
	assert.True(t, f.checked("EQ001"))
	assert.False(t, f.checked("EQ002"))

	f.clock.Advance(2000 * time.Millisecond)
	res, err = f.coord.Decode(ctx, "EQ002")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, res.Outcome)
}

func TestUnknownIDIsReportedAsNotFound(t *testing.T) {
	testCases := []struct {
		name                string
		strictness          Strictness
		input               string
		expectedSuggestions []string
	}{
		{name: "Exact", strictness: StrictExact, input: "EQ999"},
		{name: "Suggest", strictness: StrictSuggest, input: "EQ00", expectedSuggestions: []string{"EQ001", "EQ002", "EQ003", "EQ004", "EQ005"}},
		{name: "Suggest never toggles a prefix", strictness: StrictSuggest, input: "EQ01", expectedSuggestions: []string{"EQ010"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, true, Options{Strictness: tc.strictness})
			ctx := context.Background()
			_, err := f.coord.Open(ctx, camera)
			require.NoError(t, err)
			before := f.cat.Query(catalog.Filter{})

			res, err := f.coord.Decode(ctx, tc.input)

			assert.ErrorIs(t, err, catalog.ErrNotFound)
			assert.NotErrorIs(t, err, catalog.ErrNotReady)
			assert.Equal(t, OutcomeNotFound, res.Outcome)
			assert.Equal(t, tc.expectedSuggestions, res.Suggestions)
			assert.Equal(t, before, f.cat.Query(catalog.Filter{}))
			assert.Equal(t, StateActive, f.coord.Status().State)
			assert.Equal(t, []model.Severity{model.SeverityWarning}, f.rec.severityList())
		})
	}
}

func TestRescanPolicy(t *testing.T) {
	testCases := []struct {
		name            string
		policy          RescanPolicy
		expectedOutcome Outcome
		expectedChecked bool
	}{
		{name: "Notify", policy: RescanNotify, expectedOutcome: OutcomeAlreadyChecked, expectedChecked: true},
		{name: "Uncheck", policy: RescanUncheck, expectedOutcome: OutcomeDelivered, expectedChecked: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, true, Options{RescanPolicy: tc.policy})
			ctx := context.Background()
			_, err := f.cat.Toggle(ctx, "EQ005")
			require.NoError(t, err)
			_, err = f.coord.Open(ctx, camera)
			require.NoError(t, err)

			res, err := f.coord.Manual(ctx, "EQ005")

			require.NoError(t, err)
			assert.Equal(t, tc.expectedOutcome, res.Outcome)
			assert.Equal(t, tc.expectedChecked, f.checked("EQ005"))
		})
	}
}

func TestStaleCallbacksAreNoOps(t *testing.T) {
	f := newFixture(t, true, Options{AutoClose: 30 * time.Millisecond})
	ctx := context.Background()

	assert.Equal(t, StateIdle, f.coord.Close().State)

	_, err := f.coord.Open(ctx, camera)
	require.NoError(t, err)
	_, err = f.coord.Decode(ctx, "EQ006")
	require.NoError(t, err)
	f.coord.Close()
	assert.Equal(t, StateIdle, f.coord.Close().State)

	_, err = f.coord.Decode(ctx, "EQ006")
	assert.ErrorIs(t, err, ErrNotActive)

	st, err := f.coord.Open(ctx, camera)
	require.NoError(t, err)
	time.Sleep(80 * time.Millisecond)

	after := f.coord.Status()
	assert.Equal(t, StateActive, after.State)
	assert.Equal(t, st.Session, after.Session)
}

func TestDecodeThrottle(t *testing.T) {
	f := newFixture(t, true, Options{DecodesPerSecond: 0.001})
	ctx := context.Background()
	_, err := f.coord.Open(ctx, camera)
	require.NoError(t, err)

	_, err = f.coord.Decode(ctx, "EQ999")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	_, err = f.coord.Decode(ctx, "EQ001")
	assert.ErrorIs(t, err, ErrThrottled)

	res, err := f.coord.Manual(ctx, "EQ001")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, res.Outcome)
}

func TestEmptyPayload(t *testing.T) {
	f := newFixture(t, true, Options{})
	_, err := f.coord.Open(context.Background(), camera)
	require.NoError(t, err)

	_, err = f.coord.Manual(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyPayload)
	assert.Equal(t, StateActive, f.coord.Status().State)
}
