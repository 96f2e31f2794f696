package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind is the semantic type of a schema column.
type Kind int

const (
	String Kind = iota
	Int
	Date
	Bool
	List
	// LiteralTrue and LiteralFalse emit a constant regardless of the source.
	LiteralTrue
	LiteralFalse
)

// Column declares how one output column is derived from the catalog.
type Column struct {
	Name string
	Kind Kind

	// From names an alternate source column. Defaults to Name.
	From string

	// Sep is the list separator. Defaults to a single space.
	Sep string

	// Subtype is the list element type. Defaults to String.
	Subtype Kind

	// True is the literal a Bool column compares against. When empty, any
	// non-empty source value is true.
	True string

	// Exclude keeps the column out of the persisted tuple. It is still
	// evaluated, including its SkipIf predicate.
	Exclude bool

	// SkipIf marks the whole row skipped when satisfied by the raw source
	// value. Columns after the first satisfied predicate are not evaluated.
	SkipIf func(raw string) bool
}

// Result is the outcome of transforming one catalog row.
type Result struct {
	// Values holds the typed value for every evaluated, non-excluded column.
	Values map[string]any

	// Tuple holds the non-list, non-excluded values in schema order, ready
	// for bulk insertion.
	Tuple []any

	// Skipped reports that a SkipIf predicate fired; SkipColumn names it.
	Skipped    bool
	SkipColumn string
}

// Int returns the named value as an integer, or zero when absent.
func (r *Result) Int(name string) int64 {
	v, _ := r.Values[name].(int64)
	return v
}

// StringList returns the named list value's string elements.
func (r *Result) StringList(name string) []string {
	items, ok := r.Values[name].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// dateLayouts covers the timestamp shapes seen in catalog exports.
var dateLayouts = []string{
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

func (c Column) source(row Row) string {
	if c.From != "" {
		return row[c.From]
	}
	return row[c.Name]
}

func (c Column) coerce(value string, kind Kind) (any, error) {
	switch kind {
	case String:
		return value, nil

	case Int:
		if value == "" {
			return int64(0), nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse integer %q: %w", value, err)
		}
		return n, nil

	case Date:
		if value == "" {
			return int64(0), nil
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, value); err == nil {
				return t.Unix(), nil
			}
		}
		return nil, fmt.Errorf("parse date %q", value)

	case Bool:
		if c.True != "" {
			return value == c.True, nil
		}
		return value != "", nil

	case List:
		subtype := c.Subtype
		items := make([]any, 0)
		for _, token := range strings.Split(value, c.separator()) {
			if token == "" {
				continue
			}
			item, err := c.coerce(token, subtype)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return items, nil

	case LiteralTrue:
		return true, nil
	case LiteralFalse:
		return false, nil
	}
	return nil, fmt.Errorf("unknown column kind %d", kind)
}

func (c Column) separator() string {
	if c.Sep == "" {
		return " "
	}
	return c.Sep
}

// Transform maps a raw row through the schema. Evaluation stops at the first
// satisfied skip predicate; the columns before it, including the skipping one,
// remain in Values. A coercion failure is returned as an error since it means
// the catalog does not match the declared schema.
func Transform(schema []Column, row Row) (*Result, error) {
	res := &Result{Values: make(map[string]any, len(schema))}

	for _, col := range schema {
		raw := col.source(row)

		value, err := col.coerce(raw, col.Kind)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		res.Values[col.Name] = value

		if col.SkipIf != nil && col.SkipIf(raw) {
			res.Skipped = true
			res.SkipColumn = col.Name
			break
		}

		if col.Exclude {
			delete(res.Values, col.Name)
			continue
		}
		if col.Kind != List {
			res.Tuple = append(res.Tuple, value)
		}
	}

	return res, nil
}

// TupleColumns returns the column names that Transform emits into the tuple,
// in order. This is the column list a bulk insert must target.
func TupleColumns(schema []Column) []string {
	names := make([]string, 0, len(schema))
	for _, col := range schema {
		if col.Exclude || col.Kind == List {
			continue
		}
		names = append(names, col.Name)
	}
	return names
}
