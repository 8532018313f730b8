package fdsn

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
	"time"
)

// FDSN "format=text" responses are pipe separated with an optional header
// line starting with '#'. Columns are looked up by header name so services
// that append extra columns still parse.

var textTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type textRow struct {
	fields []string
	cols   map[string]int
}

func columnKey(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", ""))
}

func columnIndex(names []string) map[string]int {
	cols := make(map[string]int, len(names))
	for i, n := range names {
		cols[columnKey(n)] = i
	}
	return cols
}

// scanText calls fn for every data row. defaults is used when the response
// has no header line.
func scanText(body []byte, defaults []string, fn func(textRow)) error {
	cols := columnIndex(defaults)

	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			cols = columnIndex(strings.Split(strings.TrimPrefix(line, "#"), "|"))
			continue
		}
		fields := strings.Split(line, "|")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		fn(textRow{fields: fields, cols: cols})
	}
	return sc.Err()
}

func (r textRow) get(name string) string {
	i, ok := r.cols[columnKey(name)]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return r.fields[i]
}

func (r textRow) float(name string) (float64, bool) {
	s := r.get(name)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (r textRow) time(name string) (time.Time, bool) {
	return parseTime(r.get(name))
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range textTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
