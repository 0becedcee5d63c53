package model

import (
	"encoding/json"
	"strings"
)

// StringSet is an insertion-ordered set of strings compared by value. The
// zero value is an empty set ready to use.
type StringSet struct {
	index  map[string]struct{}
	values []string
}

// NewStringSet returns a set holding the given values.
func NewStringSet(values ...string) StringSet {
	var s StringSet
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts v after trimming whitespace. Empty values are ignored. It
// reports whether the set grew.
func (s *StringSet) Add(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[v]; ok {
		return false
	}
	s.index[v] = struct{}{}
	s.values = append(s.values, v)
	return true
}

// Has reports whether v is in the set.
func (s StringSet) Has(v string) bool {
	_, ok := s.index[strings.TrimSpace(v)]
	return ok
}

// Len returns the number of values.
func (s StringSet) Len() int { return len(s.values) }

// Values returns a copy of the values in insertion order. It never returns nil.
func (s StringSet) Values() []string {
	out := make([]string, len(s.values))
	copy(out, s.values)
	return out
}

// Clone returns an independent copy of the set.
func (s StringSet) Clone() StringSet {
	return NewStringSet(s.values...)
}

// MarshalJSON encodes the set as a JSON array.
func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}

// UnmarshalJSON decodes a JSON array, dropping duplicates.
func (s *StringSet) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = NewStringSet(values...)
	return nil
}
