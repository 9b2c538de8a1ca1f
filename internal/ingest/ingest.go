// Package ingest decodes exported spreadsheet files into loosely typed rows.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/abhisek/classeval/internal/roster"
)

// ErrUnsupportedFormat is returned for file types with no decoder.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ReadFile decodes a .csv, .tsv or .json file into rows.
func ReadFile(path string) ([]roster.Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadDelimited(bytes.NewReader(data), ',')
	case ".tsv", ".tab":
		return ReadDelimited(bytes.NewReader(data), '\t')
	case ".json":
		return ReadJSON(data)
	case ".xlsx", ".xls":
		return nil, fmt.Errorf("%w: %s (export the sheet as CSV first)", ErrUnsupportedFormat, filepath.Base(path))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
}

// ReadDelimited reads a header row followed by data rows. Blank lines are
// ignored and short rows leave the missing cells empty.
func ReadDelimited(r io.Reader, comma rune) ([]roster.Row, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		// Excel writes a UTF-8 BOM at the start of CSV exports.
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var rows []roster.Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		row := make(roster.Row, len(header))
		empty := true
		for i, h := range header {
			if i >= len(rec) {
				break
			}
			row[h] = rec[i]
			if strings.TrimSpace(rec[i]) != "" {
				empty = false
			}
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// ReadJSON reads either a top-level array of objects or an object whose
// "rows" (or "data") member is such an array.
func ReadJSON(data []byte) ([]roster.Row, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON")
	}
	doc := gjson.ParseBytes(data)
	if doc.IsObject() {
		for _, key := range []string{"rows", "data"} {
			if v := doc.Get(key); v.IsArray() {
				doc = v
				break
			}
		}
	}
	if !doc.IsArray() {
		return nil, fmt.Errorf("expected an array of row objects")
	}

	var rows []roster.Row
	var bad error
	doc.ForEach(func(idx, item gjson.Result) bool {
		if !item.IsObject() {
			bad = fmt.Errorf("row %d: expected an object, got %s", idx.Int(), item.Type)
			return false
		}
		row := make(roster.Row)
		item.ForEach(func(k, v gjson.Result) bool {
			row[k.String()] = cellValue(v)
			return true
		})
		rows = append(rows, row)
		return true
	})
	if bad != nil {
		return nil, bad
	}
	return rows, nil
}

// cellValue maps a JSON value to the loosely typed cell representation.
func cellValue(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.Number:
		return v.Float()
	case gjson.True, gjson.False:
		return v.Bool()
	case gjson.String:
		return v.String()
	default:
		return v.Raw
	}
}
