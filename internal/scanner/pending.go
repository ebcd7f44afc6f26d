package scanner

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"

	"github.com/KeelyW-11/school-equipment-inventory/internal/catalog"
	"github.com/KeelyW-11/school-equipment-inventory/internal/model"
	"github.com/KeelyW-11/school-equipment-inventory/internal/parse"
	"github.com/KeelyW-11/school-equipment-inventory/internal/store"
)

// Pending returns the queued scans, oldest first.
func (c *Coordinator) Pending(ctx context.Context) ([]model.PendingScan, error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return c.readPending(ctx)
}

// Drain delivers every queued scan through the same path as a live one and removes it from
// the queue. It does nothing until the catalog is ready and returns the number of scans
// that reached the catalog.
func (c *Coordinator) Drain(ctx context.Context) int {
	if !c.catalog.IsReady() {
		return 0
	}

	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	queue, err := c.readPending(ctx)
	if err != nil {
		log.Printf("Ignoring unreadable pending scans: %v", err)
	}
	if len(queue) == 0 {
		return 0
	}

	delivered := 0
	var keep []model.PendingScan
	for _, scan := range queue {
		id := parse.NormalizePayload(scan.Payload, c.opts.QueryParams)
		if id == "" {
			continue
		}
		res, err := c.apply(ctx, id)
		if errors.Is(err, catalog.ErrNotReady) {
			keep = append(keep, scan)
			continue
		}
		c.announce(res, err)
		if err == nil {
			delivered++
		}
	}

	if len(keep) == 0 {
		err = c.store.Delete(ctx, store.PendingKey)
	} else {
		err = store.SetJSON(ctx, c.store, store.PendingKey, keep)
	}
	if err != nil {
		log.Printf("Failed to update pending scans: %v", err)
	}
	log.Printf("Drained %d pending scans (%d delivered)", len(queue)-len(keep), delivered)
	return delivered
}

// enqueue appends a scan to the durable pending queue.
func (c *Coordinator) enqueue(ctx context.Context, payload string) (model.PendingScan, error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	queue, err := c.readPending(ctx)
	if err != nil {
		log.Printf("Replacing unreadable pending scans: %v", err)
		queue = nil
	}
	scan := model.PendingScan{
		ID:        uuid.NewString(),
		Payload:   payload,
		Timestamp: c.opts.Now().UTC(),
	}
	queue = append(queue, scan)
	if err := store.SetJSON(ctx, c.store, store.PendingKey, queue); err != nil {
		return model.PendingScan{}, err
	}
	return scan, nil
}

func (c *Coordinator) readPending(ctx context.Context) ([]model.PendingScan, error) {
	var queue []model.PendingScan
	if _, err := store.GetJSON(ctx, c.store, store.PendingKey, &queue); err != nil {
		return nil, err
	}
	return queue, nil
}
