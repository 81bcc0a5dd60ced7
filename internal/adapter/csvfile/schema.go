package csvfile

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type kind int

const (
	kindInt kind = iota
	kindFloat
	kindString
)

func (k kind) String() string {
	switch k {
	case kindInt:
		return "integer"
	case kindFloat:
		return "float"
	default:
		return "string"
	}
}

// column declares one typed input column. Nullable columns map empty fields
// to null; required columns reject them.
type column struct {
	name     string
	kind     kind
	nullable bool
}

type schema []column

var codeSchema = schema{
	{name: "CODE", kind: kindInt},
	{name: "NAME", kind: kindString, nullable: true},
}

var incidentSchema = schema{
	{name: "OFFENSE_CODE", kind: kindInt},
	{name: "DISTRICT", kind: kindString, nullable: true},
	{name: "YEAR", kind: kindInt},
	{name: "MONTH", kind: kindInt},
	{name: "Lat", kind: kindFloat, nullable: true},
	{name: "Long", kind: kindFloat, nullable: true},
}

// value is one parsed field. Only the member matching the column kind is set.
type value struct {
	null bool
	i    int
	f    float64
	s    string
}

func (v value) text() *string {
	if v.null {
		return nil
	}
	s := v.s
	return &s
}

func (v value) float() *float64 {
	if v.null {
		return nil
	}
	f := v.f
	return &f
}

// resolve locates every schema column in the header and returns their positions.
func (s schema) resolve(header []string) ([]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	positions := make([]int, len(s))
	for i, c := range s {
		pos, ok := index[c.name]
		if !ok {
			return nil, fmt.Errorf("%w %s", ErrMissingColumn, c.name)
		}
		positions[i] = pos
	}
	return positions, nil
}

// parse converts the schema columns of one record into typed values.
func (s schema) parse(fields []string, positions []int) ([]value, error) {
	values := make([]value, len(s))
	for i, c := range s {
		v, err := c.parse(fields[positions[i]])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.name, err)
		}
		values[i] = v
	}
	return values, nil
}

func (c column) parse(raw string) (value, error) {
	if c.kind != kindString {
		raw = strings.TrimSpace(raw)
	}
	if raw == "" {
		if !c.nullable {
			return value{}, ErrMissingValue
		}
		return value{null: true}, nil
	}

	switch c.kind {
	case kindInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return value{}, fmt.Errorf("%w: %q is not an %s", ErrInvalidValue, raw, c.kind)
		}
		return value{i: n}, nil
	case kindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return value{}, fmt.Errorf("%w: %q is not a %s", ErrInvalidValue, raw, c.kind)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return value{}, fmt.Errorf("%w: %q is not a finite %s", ErrInvalidValue, raw, c.kind)
		}
		return value{f: f}, nil
	default:
		return value{s: raw}, nil
	}
}
