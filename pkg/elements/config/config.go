package config

import (
	"strconv"
	"strings"
	"time"
)

// Config is a read-only view over decoded YAML or JSON.
//
// Keys may be dotted to reach into nested sections, so
// c.String("checkpoint.root", "") and c.Sub("checkpoint").String("root", "")
// agree. Accessors return the default when a key is missing or its value
// cannot be converted.
type Config struct {
	data map[string]any
}

// New creates a Config from the given map.
// If data is nil, an empty Config is returned.
func New(data map[string]any) Config {
	if data == nil {
		data = make(map[string]any)
	}
	return Config{data: data}
}

// lookup resolves a possibly dotted key. An exact match at any level wins
// over descending, so keys that themselves contain dots stay reachable.
func (c Config) lookup(key string) (any, bool) {
	if v, ok := c.data[key]; ok {
		return v, true
	}
	head, rest, ok := strings.Cut(key, ".")
	if !ok {
		return nil, false
	}
	sub, ok := section(c.data[head])
	if !ok {
		return nil, false
	}
	return sub.lookup(rest)
}

func section(v any) (Config, bool) {
	switch val := v.(type) {
	case map[string]any:
		return New(val), true
	case Config:
		return val, true
	}
	return Config{}, false
}

// String returns the string value for key, or defaultVal if missing or not a string.
func (c Config) String(key, defaultVal string) string {
	if s, ok := c.Any(key, nil).(string); ok {
		return s
	}
	return defaultVal
}

// Duration returns the duration value for key, or defaultVal if missing or invalid.
//
// Accepts a time.ParseDuration string, a time.Duration, or a number of
// seconds (int, int64, float64, or a numeric string).
func (c Config) Duration(key string, defaultVal time.Duration) time.Duration {
	switch val := c.Any(key, nil).(type) {
	case time.Duration:
		return val
	case int:
		return time.Duration(val) * time.Second
	case int64:
		return time.Duration(val) * time.Second
	case float64:
		return time.Duration(val * float64(time.Second))
	case string:
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return time.Duration(f * float64(time.Second))
		}
	}
	return defaultVal
}

// Bool returns the boolean value for key, or defaultVal if missing or
// invalid. Strings are parsed with strconv.ParseBool, which is how
// expanded environment values arrive.
func (c Config) Bool(key string, defaultVal bool) bool {
	switch val := c.Any(key, nil).(type) {
	case bool:
		return val
	case string:
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// Int returns the integer value for key, or defaultVal if missing or not convertible.
// float64 values are accepted only without a fractional part, and strings
// must parse as base-10 integers.
func (c Config) Int(key string, defaultVal int) int {
	switch val := c.Any(key, nil).(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		if val == float64(int(val)) {
			return int(val)
		}
	case string:
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

// Any returns the raw value for key, or defaultVal if missing.
func (c Config) Any(key string, defaultVal any) any {
	if v, ok := c.lookup(key); ok {
		return v
	}
	return defaultVal
}

// Sub returns the nested section under key, or an empty Config if the
// key is missing or not a map.
func (c Config) Sub(key string) Config {
	v, _ := c.lookup(key)
	if sub, ok := section(v); ok {
		return sub
	}
	return New(nil)
}

// Has reports whether key resolves to a value.
func (c Config) Has(key string) bool {
	_, ok := c.lookup(key)
	return ok
}

// Raw returns the underlying map.
// The returned map should not be modified.
func (c Config) Raw() map[string]any {
	return c.data
}
