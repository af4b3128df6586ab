package core

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// CleanCell trims a spreadsheet cell and strips Excel text-forcing
// wrappers such as ="00123". A single matching pair of surrounding quotes
// is removed; unpaired quotes are content (Tubo 3/4").
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		return strings.TrimSpace(s[2 : len(s)-1])
	}

	if len(s) >= 2 {
		if q := s[0]; (q == '"' || q == '\'') && s[len(s)-1] == q {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

// NormalizeHeader lowercases and trims a header cell. The BOM some
// spreadsheet tools prepend to the first cell is removed.
func NormalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.TrimSpace(h))
}

// RowsFromRecords turns a header plus data records into Rows. Every header
// key is present on every row; short records get empty strings. Fully empty
// records are skipped.
func RowsFromRecords(header []string, records [][]string) []Row {
	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = NormalizeHeader(h)
	}

	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		if isEmptyRecord(rec) {
			continue
		}
		row := make(Row, len(keys))
		for i, k := range keys {
			if k == "" {
				continue
			}
			if i < len(rec) {
				row[k] = rec[i]
			} else {
				row[k] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func isEmptyRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// sanitizeUTF8 replaces invalid byte sequences with U+FFFD.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}
	return bytes.ToValidUTF8(data, []byte("\uFFFD"))
}
