package parse

import (
	"encoding/json"
	"net/url"
	"strings"
)

// DefaultQueryParams are the URL query parameters that may carry an equipment id.
var DefaultQueryParams = []string{"id", "code", "equipment"}

// NormalizePayload reduces a scanned or typed candidate to the bare id used for lookup.
// It accepts a plain id, a JSON object with a "data" field, or a URL carrying the id in
// one of the given query parameters. Anything else is returned trimmed.
func NormalizePayload(raw string, params []string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if len(params) == 0 {
		params = DefaultQueryParams
	}

	if strings.HasPrefix(s, "{") {
		var structured struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal([]byte(s), &structured); err == nil && len(structured.Data) > 0 {
			var data string
			if err := json.Unmarshal(structured.Data, &data); err == nil {
				s = strings.TrimSpace(data)
			} else {
				s = strings.TrimSpace(string(structured.Data))
			}
		}
	}

	if strings.Contains(s, "?") {
		if u, err := url.Parse(s); err == nil {
			q := u.Query()
			for _, p := range params {
				if v := strings.TrimSpace(q.Get(p)); v != "" {
					return v
				}
			}
		}
	}
	return s
}
