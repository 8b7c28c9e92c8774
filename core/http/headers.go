package http

import "strings"

// Header is a single (name, value) pair. Comparison on name is
// case-insensitive; the list preserves insertion order and permits
// duplicate names.
type Header struct {
	Name  string
	Value string
}

// HeaderList is an ordered list of headers with case-insensitive lookup.
// Grounded on core/http/request.go's predefined-field-plus-overflow-map
// design, generalized into the ordered, duplicate-permitting list the spec
// requires for faithful serialization (§3 Header).
type HeaderList struct {
	items []Header
}

// Add appends a header, preserving any existing header with the same name.
func (h *HeaderList) Add(name, value string) {
	h.items = append(h.items, Header{Name: name, Value: value})
}

// Set replaces the first header matching name (case-insensitively), or
// appends one if none exists. Any additional duplicates are left in place.
func (h *HeaderList) Set(name, value string) {
	for i := range h.items {
		if strings.EqualFold(h.items[i].Name, name) {
			h.items[i].Value = value
			return
		}
	}
	h.Add(name, value)
}

// Get returns the value of the first header matching name
// (case-insensitively), and whether one was found.
func (h *HeaderList) Get(name string) (string, bool) {
	for i := range h.items {
		if strings.EqualFold(h.items[i].Name, name) {
			return h.items[i].Value, true
		}
	}
	return "", false
}

// Has reports whether a header with the given name is present.
func (h *HeaderList) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// Del removes all headers matching name (case-insensitively).
func (h *HeaderList) Del(name string) {
	out := h.items[:0]
	for _, it := range h.items {
		if !strings.EqualFold(it.Name, name) {
			out = append(out, it)
		}
	}
	h.items = out
}

// Len returns the number of headers, including duplicates.
func (h *HeaderList) Len() int {
	return len(h.items)
}

// All returns the headers in insertion order. The returned slice aliases
// internal storage and must not be mutated by the caller.
func (h *HeaderList) All() []Header {
	return h.items
}

// Reset empties the list while retaining its backing array.
func (h *HeaderList) Reset() {
	h.items = h.items[:0]
}
