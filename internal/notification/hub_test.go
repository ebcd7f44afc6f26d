package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KeelyW-11/school-equipment-inventory/internal/model"
)

type captureDispatcher struct {
	mu     sync.Mutex
	events []model.Event
}

func (d *captureDispatcher) Dispatch(ev model.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
}

func TestHub_Feed(t *testing.T) {
	pool := &captureDispatcher{}
	renders := 0
	h := NewHub(0, pool, func() { renders++ })

	h.Notify("EQ001 marked as checked.", model.SeveritySuccess)
	h.Highlight("EQ001", []int{200, 100, 200})
	h.Render()

	events := h.Since(0)
	require.Len(t, events, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{events[0].Seq, events[1].Seq, events[2].Seq})
	assert.Equal(t, model.EventToast, events[0].Kind)
	assert.Equal(t, model.EventHighlight, events[1].Kind)
	assert.Equal(t, "EQ001", events[1].TargetID)
	assert.Equal(t, []int{200, 100, 200}, events[1].Vibrate)
	assert.Equal(t, model.EventRender, events[2].Kind)
	assert.NotEmpty(t, events[0].ID)

	assert.Len(t, h.Since(2), 1)
	assert.Empty(t, h.Since(3))
	assert.Equal(t, int64(3), h.LastSeq())
	assert.Equal(t, 1, renders)

	require.Len(t, pool.events, 1)
	assert.Equal(t, events[0].ID, pool.events[0].ID)
}

func TestHub_KeepsBoundedFeed(t *testing.T) {
	h := NewHub(3, nil, nil)
	for i := 0; i < 5; i++ {
		h.Render()
	}

	events := h.Since(0)
	require.Len(t, events, 3)
	assert.Equal(t, int64(3), events[0].Seq)
	assert.Equal(t, int64(5), events[2].Seq)
}

func TestHub_Wait(t *testing.T) {
	h := NewHub(0, nil, nil)

	go func() {
		time.Sleep(20 * time.Millisecond)
		h.Notify("Scan recorded.", model.SeverityInfo)
	}()
	events := h.Wait(context.Background(), 0)
	require.Len(t, events, 1)
	assert.Equal(t, "Scan recorded.", events[0].Message)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Nil(t, h.Wait(ctx, h.LastSeq()))
}
