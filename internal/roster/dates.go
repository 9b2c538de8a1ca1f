package roster

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/width"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	"2006/01/02",
	"2006/1/2",
	"2006.01.02",
	"2006.1.2",
	"2006年1月2日",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	time.RFC3339,
}

// Spreadsheet day numbers count from 1899-12-30.
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// normalizeDate returns YYYY-MM-DD for recognizable dates and the trimmed
// input otherwise.
func normalizeDate(s string) string {
	s = width.Fold.String(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil && n >= 20000 && n <= 80000 {
		return serialEpoch.AddDate(0, 0, int(n)).Format(time.DateOnly)
	}
	return s
}
