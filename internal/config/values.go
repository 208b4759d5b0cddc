package config

import (
	"strings"
	"time"
)

// Values wraps a decoded YAML or JSON document for typed lookups.
// Keys may be dotted paths ("llm.model") that walk nested maps. Every
// accessor returns the default when the key is missing or holds a value
// of the wrong type.
type Values struct {
	data map[string]any
}

// NewValues wraps data. A nil map behaves as an empty document.
func NewValues(data map[string]any) Values {
	if data == nil {
		data = make(map[string]any)
	}
	return Values{data: data}
}

func (v Values) lookup(key string) (any, bool) {
	if val, ok := v.data[key]; ok {
		return val, true
	}
	cur := v.data
	parts := strings.Split(key, ".")
	for i, part := range parts {
		val, ok := cur[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return val, true
		}
		next, ok := asMap(val)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			s, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[s] = val
		}
		return out, true
	}
	return nil, false
}

// Has reports whether key resolves to a value.
func (v Values) Has(key string) bool {
	_, ok := v.lookup(key)
	return ok
}

// String returns the string at key.
func (v Values) String(key, defaultVal string) string {
	val, ok := v.lookup(key)
	if !ok {
		return defaultVal
	}
	if s, ok := val.(string); ok {
		return s
	}
	return defaultVal
}

// Duration accepts a duration string ("30s") or a number of seconds.
func (v Values) Duration(key string, defaultVal time.Duration) time.Duration {
	val, ok := v.lookup(key)
	if !ok {
		return defaultVal
	}
	switch d := val.(type) {
	case string:
		if parsed, err := time.ParseDuration(d); err == nil {
			return parsed
		}
	case float64:
		return time.Duration(d * float64(time.Second))
	case int:
		return time.Duration(d) * time.Second
	case int64:
		return time.Duration(d) * time.Second
	case time.Duration:
		return d
	}
	return defaultVal
}

// Bool returns the boolean at key.
func (v Values) Bool(key string, defaultVal bool) bool {
	val, ok := v.lookup(key)
	if !ok {
		return defaultVal
	}
	if b, ok := val.(bool); ok {
		return b
	}
	return defaultVal
}

// Int returns the integer at key. Floats convert only when whole.
func (v Values) Int(key string, defaultVal int) int {
	val, ok := v.lookup(key)
	if !ok {
		return defaultVal
	}
	switch n := val.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		if n == float64(int(n)) {
			return int(n)
		}
	}
	return defaultVal
}

// Sub returns the nested document at key, or an empty one.
func (v Values) Sub(key string) Values {
	val, ok := v.lookup(key)
	if !ok {
		return NewValues(nil)
	}
	m, ok := asMap(val)
	if !ok {
		return NewValues(nil)
	}
	return NewValues(m)
}

// Raw returns the underlying map. Callers must not modify it.
func (v Values) Raw() map[string]any {
	return v.data
}
