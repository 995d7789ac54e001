package quake

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// ErrIncompleteHeader is returned when a header lacks one of the known columns
var ErrIncompleteHeader = errors.New("header is missing known columns")

var unitSuffix = regexp.MustCompile(`\([^)]*\)`)

// columnKey reduces a header name to lowercase letters and digits, dropping units
// in parentheses, so "Date - Time", "date_time" and "Date-Time" compare equal
func columnKey(name string) string {
	name = unitSuffix.ReplaceAllString(Normalize(name), "")
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var knownColumns = func() map[string]string {
	m := make(map[string]string, len(DefaultHeader))
	for _, col := range DefaultHeader {
		m[columnKey(col)] = col
	}
	return m
}()

// CanonicalColumn maps a header name to the known column it names
func CanonicalColumn(name string) (string, bool) {
	col, ok := knownColumns[columnKey(name)]
	return col, ok
}

// ResolveHeader renames the known columns of a stored header to their canonical
// names, keeping positions. Other columns keep their normalized names so extra
// source fields still line up. The first occurrence of a known column wins.
func ResolveHeader(header []string) ([]string, error) {
	resolved := make([]string, len(header))
	found := make(map[string]bool, len(DefaultHeader))

	for i, name := range header {
		if col, ok := CanonicalColumn(name); ok && !found[col] {
			resolved[i] = col
			found[col] = true
			continue
		}
		resolved[i] = Normalize(name)
	}

	var missing []string
	for _, col := range DefaultHeader {
		if !found[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s not in %q", ErrIncompleteHeader, strings.Join(missing, ", "), header)
	}
	return resolved, nil
}
