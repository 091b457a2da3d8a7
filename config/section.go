package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Section is a hierarchical configuration map. Keys are dotted paths where
// each part but the last names a nested section: "worlds.arena.width".
//
// A Section is not safe for concurrent writes.
type Section struct {
	values map[string]any
}

// NewSection creates a section backed by values. A nil map creates an empty
// section.
func NewSection(values map[string]any) *Section {
	if values == nil {
		values = make(map[string]any)
	}
	return &Section{values: values}
}

// Keys returns the sorted keys of the top level of the section.
func (s *Section) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value at the given dotted key, or nil when it does not
// exist.
func (s *Section) Get(key string) any {
	parts := strings.Split(key, ".")

	m := s.values
	for _, p := range parts[:len(parts)-1] {
		next, ok := asMap(m[p])
		if !ok {
			return nil
		}
		m = next
	}
	return m[parts[len(parts)-1]]
}

// Set sets the value at the given dotted key. Missing intermediate sections
// are created and non section values on the path are replaced.
func (s *Section) Set(key string, v any) {
	parts := strings.Split(key, ".")

	m := s.values
	for _, p := range parts[:len(parts)-1] {
		next, ok := asMap(m[p])
		if !ok {
			next = make(map[string]any)
			m[p] = next
		}
		m = next
	}

	if sub, ok := v.(*Section); ok {
		v = sub.values
	}
	m[parts[len(parts)-1]] = v
}

// Section returns the nested section at the given key. The returned section
// shares its values with s. It returns nil when the key does not name a
// section.
func (s *Section) Section(key string) *Section {
	m, ok := asMap(s.Get(key))
	if !ok {
		return nil
	}
	return &Section{values: m}
}

// Int returns the integer at key, or fallback when the value is missing or is
// not a number.
func (s *Section) Int(key string, fallback int) int {
	switch v := s.Get(key).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// Float returns the number at key, or fallback when the value is missing or is
// not a number.
func (s *Section) Float(key string, fallback float64) float64 {
	switch v := s.Get(key).(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	case float64:
		return v
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// String returns the value at key formatted as a string, or fallback when it
// is missing.
func (s *Section) String(key string, fallback string) string {
	switch v := s.Get(key).(type) {
	case nil:
		return fallback
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Bool returns the boolean at key. Numbers are true when not zero. It returns
// fallback when the value is missing or cannot be interpreted.
func (s *Section) Bool(key string, fallback bool) bool {
	switch v := s.Get(key).(type) {
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case uint64:
		return v != 0
	case float64:
		return v != 0
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// Duration returns the duration at key. Strings are parsed with
// time.ParseDuration and numbers are read as seconds.
func (s *Section) Duration(key string, fallback time.Duration) time.Duration {
	switch v := s.Get(key).(type) {
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	case int:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	}
	return fallback
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}
