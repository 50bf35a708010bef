package types

import (
	"sort"
	"strconv"
	"strings"
)

// Location is the canonical identity of one resolvable bundle. Field order
// is irrelevant for equality; use Key when a comparable value is needed.
type Location struct {
	Kind   Kind
	Fields map[string]string
}

// NewLocation copies fields so the returned Location never aliases caller state.
func NewLocation(kind Kind, fields map[string]string) Location {
	copied := make(map[string]string, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return Location{Kind: kind, Fields: copied}
}

// Get returns the field value, or "" when absent.
func (l Location) Get(field string) string {
	if l.Fields == nil {
		return ""
	}
	return l.Fields[field]
}

// Has reports whether the field is present.
func (l Location) Has(field string) bool {
	if l.Fields == nil {
		return false
	}
	_, ok := l.Fields[field]
	return ok
}

// With returns a copy of the Location with one field replaced.
func (l Location) With(field string, value string) Location {
	next := NewLocation(l.Kind, l.Fields)
	next.Fields[field] = value
	return next
}

// Version is shorthand for the "version" field.
func (l Location) Version() string {
	return l.Get("version")
}

// Key is a canonical, order-independent representation used for
// map lookups and equality. Keys and values are quoted so delimiters inside
// a value cannot fake another field.
func (l Location) Key() string {
	keys := make([]string, 0, len(l.Fields))
	for key := range l.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var builder strings.Builder
	builder.WriteString(strconv.Quote(string(l.Kind)))
	for _, key := range keys {
		builder.WriteString("|")
		builder.WriteString(strconv.Quote(key))
		builder.WriteString("=")
		builder.WriteString(strconv.Quote(l.Fields[key]))
	}
	return builder.String()
}

// Equal compares kind and field set by value.
func (l Location) Equal(other Location) bool {
	return l.Key() == other.Key()
}

// Map returns the dict form used in manifests and environment files.
func (l Location) Map() map[string]string {
	out := make(map[string]string, len(l.Fields)+1)
	for key, value := range l.Fields {
		out[key] = value
	}
	out["type"] = string(l.Kind)
	return out
}
