// Package batch expands CSV target lists into action requests.
package batch

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/nvyas/linkpilot/internal/action"
)

var linkHeaders = map[string]bool{
	"profile_link": true,
	"profile_url":  true,
	"url":          true,
}

// ParseTargets reads a CSV of profile links and returns one request per
// usable row. The link column is found by header name when a header row
// is present, otherwise column zero is used. Rows without an http(s)
// link are skipped, not fatal.
func ParseTargets(r io.Reader, kind action.Kind, note string) ([]action.Request, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read target CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	col := 0
	start := 0
	for i, field := range rows[0] {
		if linkHeaders[strings.ToLower(strings.TrimSpace(field))] {
			col = i
			start = 1
			break
		}
	}

	var reqs []action.Request
	for _, row := range rows[start:] {
		if col >= len(row) {
			continue
		}
		target := strings.TrimSpace(row[col])
		if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
			continue
		}
		reqs = append(reqs, action.Request{Kind: kind, Target: target, Note: note})
	}
	return reqs, nil
}
