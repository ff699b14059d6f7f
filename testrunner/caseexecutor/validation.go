package caseexecutor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"
)

// columnValidator checks a single value against a type-string character.
type columnValidator func(v any) bool

// typeValidators maps type-string characters to their column check. Only T (any
// value) is defined; characters without an entry are accepted as they are.
var typeValidators = map[rune]columnValidator{
	'T': func(any) bool { return true },
}

// CheckTypeString verifies that the result is at least as wide as the type string
// and applies the per-column validators.
func CheckTypeString(rs *ResultSet, typeString string) error {
	width := rs.ColumnCount()
	expected := []rune(typeString)

	if width < len(expected) {
		return assertionFailure(ErrTypeStringArity, "expected %s, but result has %d columns", typeString, width)
	}

	for col, class := range expected {
		validate, ok := typeValidators[class]
		if !ok {
			continue
		}

		for rowIndex, row := range rs.rows() {
			if col < len(row) && !validate(row[col]) {
				return assertionFailure(ErrTypeStringArity, "column %d of row %d does not satisfy type %c", col+1, rowIndex+1, class)
			}
		}
	}

	return nil
}

// CheckValues compares the result rows with the expected JSON lines. Each expected
// line describes the first column of the corresponding row.
func CheckValues(rs *ResultSet, expected []string) error {
	rows := rs.rows()

	if len(rows) != len(expected) {
		return assertionFailure(ErrRowCountMismatch, "expected %d result rows, got:\n----\n%s\n", len(expected), FormatResult(rows))
	}

	for i, row := range rows {
		cols := columnize(expected[i])
		for c, col := range cols {
			want, err := decodeJSON(col)
			if err != nil {
				return definitionFailure(fmt.Errorf("%w: %w", ErrInvalidExpectedValue, err), "row %d: invalid expected value %s: %v", i+1, col, err)
			}

			if c >= len(row) {
				return assertionFailure(errMissingComparedColumn, "row %d: expected %s, but the row has no column %d", i+1, col, c+1)
			}

			got, err := canonicalValue(row[c])
			if err != nil {
				return assertionFailure(err, "row %d: %v", i+1, err)
			}

			if !reflect.DeepEqual(got, want) {
				return assertionFailure(ErrValueMismatch, "!deepEqual(%s, %s)", jsonString(row[c]), col)
			}
		}
	}

	return nil
}

// columnize splits an expected line into per-column expectations. The whole line
// is currently a single column.
func columnize(line string) []string {
	return []string{line}
}

// FormatResult renders rows for diagnostics: JSON-encoded columns joined by a
// space, rows joined by newlines.
func FormatResult(rows [][]any) string {
	lines := make([]string, len(rows))

	for i, row := range rows {
		cols := make([]string, len(row))
		for c, v := range row {
			cols[c] = jsonString(v)
		}

		lines[i] = strings.Join(cols, " ")
	}

	return strings.Join(lines, "\n")
}

// normalizeValue converts driver values into the JSON-facing representation.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return v
	}
}

func jsonString(v any) string {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(normalizeValue(v)); err != nil {
		return fmt.Sprintf("%v", v)
	}

	return strings.TrimSuffix(buf.String(), "\n")
}

// canonicalValue round-trips an actual value through JSON so it can be compared
// with a decoded expectation. Numbers stay literal: 1 and 1.0 remain different.
func canonicalValue(v any) (any, error) {
	data, err := json.Marshal(normalizeValue(v))
	if err != nil {
		return nil, fmt.Errorf("%w: %v: %w", errUnencodableValue, v, err)
	}

	return decodeJSON(string(data))
}

func decodeJSON(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after JSON value in %q", s)
	}

	return out, nil
}
