package catalog

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"
)

const exportTimeLayout = "2006-01-02 15:04:05"

var exportHeader = []string{"id", "name", "room", "status", "lastUpdated"}

// ExportFilename is the download name of a report produced at t.
func ExportFilename(t time.Time) string {
	return fmt.Sprintf("equipment-inventory-report_%s.csv", t.Format("2006-01-02"))
}

// Export writes every record as a comma separated table with every field quoted.
// Never-checked records have an empty lastUpdated.
func (c *Catalog) Export(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if err := writeQuoted(bw, exportHeader); err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.records {
		ts := ""
		if r.LastUpdated != nil {
			ts = r.LastUpdated.In(c.loc).Format(exportTimeLayout)
		}
		if err := writeQuoted(bw, []string{r.ID, r.Name, r.Room, r.Status.Label(), ts}); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

// encoding/csv only quotes when needed; reports quote every field.
func writeQuoted(w *bufio.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(f, `"`, `""`))
		w.WriteByte('"')
	}
	_, err := w.WriteString("\n")
	return err
}
