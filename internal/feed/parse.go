package feed

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/couchcryptid/incident-tracker-service/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// detectFormat resolves the document format: an explicit format wins, then
// the Content-Type header, then the first non-space byte of the body.
func detectFormat(declared Format, contentType string, body []byte) Format {
	if declared == FormatCSV || declared == FormatJSON {
		return declared
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch {
		case strings.Contains(mt, "json"):
			return FormatJSON
		case strings.Contains(mt, "csv"):
			return FormatCSV
		}
	}
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(body, utf8BOM), " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return FormatJSON
	}
	return FormatCSV
}

// parseCSV reads a header row followed by data rows. Short rows are padded
// with empty values; fully blank rows are skipped.
func parseCSV(body []byte) ([]domain.RawRow, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(body, utf8BOM)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFeed
	}
	if err != nil {
		return nil, &ParseError{Format: FormatCSV, Reason: "read header", Err: err}
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []domain.RawRow
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Format: FormatCSV, Reason: "read row", Err: err}
		}
		if blankRecord(rec) {
			continue
		}
		row := make(domain.RawRow, len(header))
		for i, h := range header {
			if h == "" {
				continue
			}
			var v string
			if i < len(rec) {
				v = rec[i]
			}
			if prev, dup := row[h]; dup && prev != "" {
				continue
			}
			row[h] = v
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, ErrEmptyFeed
	}
	return rows, nil
}

func blankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// parseJSON accepts a bare array of row objects or an object wrapping the
// array in "data" alongside an optional "lastUpdated" timestamp.
func parseJSON(body []byte) ([]domain.RawRow, *time.Time, error) {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimPrefix(body, utf8BOM)))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, nil, &ParseError{Format: FormatJSON, Reason: "decode document", Err: err}
	}

	var (
		items       []any
		lastUpdated *time.Time
	)
	switch v := doc.(type) {
	case []any:
		items = v
	case map[string]any:
		data, ok := v["data"].([]any)
		if !ok {
			return nil, nil, &ParseError{Format: FormatJSON, Reason: `object has no "data" array`}
		}
		items = data
		if raw := stringify(v["lastUpdated"]); raw != "" {
			if ts, err := dateparse.ParseIn(raw, time.UTC); err == nil {
				ts = ts.UTC()
				lastUpdated = &ts
			}
		}
	case nil:
		return nil, nil, ErrEmptyFeed
	default:
		return nil, nil, &ParseError{Format: FormatJSON, Reason: "top-level value is neither an array nor an object"}
	}

	rows := make([]domain.RawRow, 0, len(items))
	for i, item := range items {
		switch obj := item.(type) {
		case map[string]any:
			row := make(domain.RawRow, len(obj))
			for k, val := range obj {
				row[strings.TrimSpace(k)] = stringify(val)
			}
			rows = append(rows, row)
		case nil:
			continue
		default:
			return nil, nil, &ParseError{Format: FormatJSON, Reason: "row " + strconv.Itoa(i+1) + " is not an object"}
		}
	}

	if len(rows) == 0 {
		return nil, lastUpdated, ErrEmptyFeed
	}
	return rows, lastUpdated, nil
}

// stringify converts a decoded JSON value to the string form used by raw rows.
// Only scalars carry a value; nested arrays, objects and null become empty.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
