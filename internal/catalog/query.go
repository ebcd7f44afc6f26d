package catalog

import (
	"math"
	"strings"

	"github.com/KeelyW-11/school-equipment-inventory/internal/model"
)

// Filter selects records. Empty fields match everything; set fields are ANDed.
type Filter struct {
	Room    string
	Status  model.Status
	Keyword string
}

func (f Filter) match(r model.Equipment, keyword string) bool {
	if f.Room != "" && r.Room != f.Room {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if keyword == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.ID), keyword) ||
		strings.Contains(strings.ToLower(r.Name), keyword) ||
		strings.Contains(strings.ToLower(r.Room), keyword)
}

// Query returns the records matching f in catalog order. The keyword is a case-insensitive
// substring match against id, name or room.
func (c *Catalog) Query(f Filter) []model.Equipment {
	keyword := strings.ToLower(strings.TrimSpace(f.Keyword))

	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Equipment, 0, len(c.records))
	for _, r := range c.records {
		if f.match(r, keyword) {
			out = append(out, r)
		}
	}
	return out
}

// Stats summarises progress for room, or for the whole catalog when room is empty.
func (c *Catalog) Stats(room string) model.Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := model.Stats{Room: room}
	for _, r := range c.records {
		if room != "" && r.Room != room {
			continue
		}
		s.Total++
		if r.Checked() {
			s.Checked++
		}
	}
	s.Unchecked = s.Total - s.Checked
	if s.Total > 0 {
		s.Progress = math.Round(float64(s.Checked)*1000/float64(s.Total)) / 10
	}
	return s
}

// Suggest returns up to limit ids containing fragment, case-insensitively. It never
// mutates anything and is meant for "did you mean" hints on a failed lookup.
func (c *Catalog) Suggest(fragment string, limit int) []string {
	fragment = strings.ToLower(strings.TrimSpace(fragment))
	if fragment == "" || limit <= 0 {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []string
	for _, r := range c.records {
		id := strings.ToLower(r.ID)
		if strings.Contains(id, fragment) || strings.Contains(fragment, id) {
			out = append(out, r.ID)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}
