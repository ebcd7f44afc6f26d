package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Well-known keys.
const (
	StatusKey  = "equipment-status"
	PendingKey = "pending-scans"
)

// GetJSON decodes the value stored under key into v. A missing key leaves v untouched
// and returns ok == false.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return true, fmt.Errorf("malformed value under %q: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode value for %q: %w", key, err)
	}
	return s.Set(ctx, key, string(b))
}
