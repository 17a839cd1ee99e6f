// Package store defines the catalog filter model shared by search, update,
// and delete operations, and renders it into parameterized SQL predicates.
package store

import (
	"strings"
)

// NumberOp selects the comparison a NumberClause applies.
type NumberOp int

const (
	NumberEquals NumberOp = iota
	NumberGreaterThan
	NumberLessThan
	NumberBetween
)

// NumberClause is one numeric predicate for a field. For NumberBetween,
// Value and Hi are the inclusive lower and upper bounds.
type NumberClause struct {
	Op    NumberOp
	Value int64
	Hi    int64
}

// Equals matches rows where the field equals v.
func Equals(v int64) NumberClause { return NumberClause{Op: NumberEquals, Value: v} }

// GreaterThan matches rows where the field is strictly greater than v.
func GreaterThan(v int64) NumberClause { return NumberClause{Op: NumberGreaterThan, Value: v} }

// LessThan matches rows where the field is strictly less than v.
func LessThan(v int64) NumberClause { return NumberClause{Op: NumberLessThan, Value: v} }

// Between matches rows where the field lies in [lo, hi] inclusive.
func Between(lo, hi int64) NumberClause { return NumberClause{Op: NumberBetween, Value: lo, Hi: hi} }

// Filter holds per-field predicates. Clauses for the same numeric field
// are OR-combined; distinct fields are AND-combined. Text predicates are
// substring matches with LIKE semantics. Fields outside an entity's
// allow-list are ignored during rendering.
type Filter struct {
	Text   map[string]string
	Number map[string][]NumberClause
}

// NewFilter returns an empty filter.
func NewFilter() *Filter {
	return &Filter{
		Text:   make(map[string]string),
		Number: make(map[string][]NumberClause),
	}
}

// WithText adds a substring predicate. Empty substrings are ignored.
func (f *Filter) WithText(field, substring string) *Filter {
	if substring != "" {
		f.Text[field] = substring
	}
	return f
}

// WithNumber adds numeric predicates for a field, OR-combined with any
// already present for it.
func (f *Filter) WithNumber(field string, clauses ...NumberClause) *Filter {
	if len(clauses) > 0 {
		f.Number[field] = append(f.Number[field], clauses...)
	}
	return f
}

// IsEmpty reports whether the filter holds no predicates at all.
// Callers distinguish this from "zero rows matched": search treats an
// empty filter as an unfiltered listing, while update and delete must
// reject it (see ErrNoFilter).
func (f *Filter) IsEmpty() bool {
	if f == nil {
		return true
	}
	for _, v := range f.Text {
		if v != "" {
			return false
		}
	}
	for _, clauses := range f.Number {
		if len(clauses) > 0 {
			return false
		}
	}
	return true
}

// Entity selects the allow-list a filter is rendered against.
type Entity int

const (
	EntitySeries Entity = iota
	EntityBook
)

// field pairs a recognized filter field with its quoted column and kind.
// "no" and "desc" are SQL keywords, hence the quoting throughout.
type field struct {
	name    string
	column  string
	numeric bool
}

var seriesFields = []field{
	{"id", `"id"`, true},
	{"title", `"title"`, false},
	{"author", `"author"`, false},
	{"desc", `"desc"`, false},
	{"cover_id", `"cover_id"`, false},
}

var bookFields = []field{
	{"id", `"id"`, true},
	{"series_id", `"series_id"`, true},
	{"title", `"title"`, false},
	{"no", `"no"`, true},
	{"filepath", `"filepath"`, false},
	{"upload_time", `"upload_time"`, true},
	{"desc", `"desc"`, false},
	{"cover_id", `"cover_id"`, false},
	{"filetype", `"filetype"`, false},
}

// Fields returns the recognized filter field names for an entity.
func Fields(e Entity) []string {
	var fs []field
	switch e {
	case EntityBook:
		fs = bookFields
	default:
		fs = seriesFields
	}
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.name
	}
	return names
}

// IsNumericField reports whether the named field takes numeric clauses
// for the given entity.
func IsNumericField(e Entity, name string) bool {
	fs := seriesFields
	if e == EntityBook {
		fs = bookFields
	}
	for _, f := range fs {
		if f.name == name {
			return f.numeric
		}
	}
	return false
}

// Where renders the filter into a parameterized WHERE clause (without the
// WHERE keyword) and its arguments. An empty filter renders to ("", nil).
// Fields are emitted in allow-list order so output is deterministic.
func (f *Filter) Where(e Entity) (string, []any) {
	if f == nil {
		return "", nil
	}

	fields := seriesFields
	if e == EntityBook {
		fields = bookFields
	}

	var parts []string
	var args []any

	for _, fld := range fields {
		if fld.numeric {
			clauses := f.Number[fld.name]
			if len(clauses) == 0 {
				continue
			}
			sub := make([]string, 0, len(clauses))
			for _, c := range clauses {
				switch c.Op {
				case NumberGreaterThan:
					sub = append(sub, fld.column+" > ?")
					args = append(args, c.Value)
				case NumberLessThan:
					sub = append(sub, fld.column+" < ?")
					args = append(args, c.Value)
				case NumberBetween:
					// Bounds bind exactly as supplied; an inverted
					// range matches nothing.
					sub = append(sub, fld.column+" BETWEEN ? AND ?")
					args = append(args, c.Value, c.Hi)
				default:
					sub = append(sub, fld.column+" = ?")
					args = append(args, c.Value)
				}
			}
			parts = append(parts, "("+strings.Join(sub, " OR ")+")")
			continue
		}

		v := f.Text[fld.name]
		if v == "" {
			continue
		}
		parts = append(parts, fld.column+" LIKE ?")
		args = append(args, "%"+v+"%")
	}

	if len(parts) == 0 {
		return "", nil
	}
	return strings.Join(parts, " AND "), args
}
