package parse

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	// ErrMissingColumns is returned when the header row has no column for id, name or room.
	ErrMissingColumns = errors.New("table header is missing required columns")
	// ErrNoRows is returned when a table parses but yields no usable record.
	ErrNoRows = errors.New("table contains no usable rows")
)

// Row is one usable record from an equipment table.
type Row struct {
	ID   string
	Name string
	Room string
}

// Table is the result of reading an equipment table.
type Table struct {
	Rows      []Row
	Delimiter rune
	// Skipped counts rows dropped for being malformed, not UTF-8 or missing an id.
	Skipped int
}

var columnSynonyms = map[string][]string{
	"id":   {"id", "equipment id", "asset id", "asset no", "code", "編號", "编号"},
	"name": {"name", "equipment name", "item", "名稱", "名称"},
	"room": {"room", "classroom", "location", "教室"},
}

var delimiterCandidates = []rune{',', ';', '\t', '|'}

// ParseDelimiter turns a configured delimiter into a rune. Empty means sniff from the header.
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("invalid delimiter %q", s)
	}
	return r, nil
}

// ReadTable reads a delimited equipment table with a header row. A zero delimiter is
// sniffed from the header line. A leading byte order mark is stripped, and UTF-16 input
// carrying one is transcoded. Ids are unique in the result: the last row for an id wins
// but keeps the position of the first.
func ReadTable(r io.Reader, delimiter rune) (*Table, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	data, err := io.ReadAll(decoded)
	if err != nil {
		return nil, fmt.Errorf("failed to read table: %w", err)
	}

	if delimiter == 0 {
		delimiter = sniffDelimiter(data)
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	table := &Table{Delimiter: delimiter}
	index := make(map[string]int)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				table.Skipped++
				continue
			}
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		if isBlank(rec) {
			continue
		}

		row := Row{
			ID:   field(rec, cols["id"]),
			Name: field(rec, cols["name"]),
			Room: field(rec, cols["room"]),
		}
		// The decoder replaces invalid UTF-8 with U+FFFD.
		if row.ID == "" || !validText(rec) {
			table.Skipped++
			continue
		}

		if i, ok := index[row.ID]; ok {
			table.Rows[i] = row
			continue
		}
		index[row.ID] = len(table.Rows)
		table.Rows = append(table.Rows, row)
	}

	if len(table.Rows) == 0 {
		return nil, ErrNoRows
	}
	return table, nil
}

func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ',', 0
	for _, c := range delimiterCandidates {
		if n := bytes.Count(line, []byte(string(c))); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

func mapColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(columnSynonyms))
	for i, h := range header {
		key := normalizeHeader(h)
		for col, names := range columnSynonyms {
			if _, seen := cols[col]; seen {
				continue
			}
			for _, n := range names {
				if key == n {
					cols[col] = i
					break
				}
			}
		}
	}

	var missing []string
	for _, col := range []string{"id", "name", "room"} {
		if _, ok := cols[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return cols, nil
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, "_", " ")
	return strings.Join(strings.Fields(h), " ")
}

func field(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func validText(rec []string) bool {
	for _, f := range rec {
		if strings.ContainsRune(f, utf8.RuneError) {
			return false
		}
	}
	return true
}
