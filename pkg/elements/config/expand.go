package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	// bracePattern matches ${NAME}.
	bracePattern = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

	// dollarPattern matches $NAME up to the next non-word character, so $RUN
	// does not match inside $RUN_ID.
	dollarPattern = regexp.MustCompile(`\$([a-zA-Z_][a-zA-Z0-9_]*)(?:\b|$)`)
)

// MissingAction specifies how Expand treats a variable with no value.
type MissingAction int

const (
	// MissingKeep leaves the placeholder in place. This is the default.
	MissingKeep MissingAction = iota

	// MissingEmpty replaces the placeholder with an empty string.
	MissingEmpty

	// MissingError fails the expansion with an UndefinedVariableError.
	MissingError
)

// ExpandOption configures Expand.
type ExpandOption func(*expander)

// WithMissingAction sets how undefined variables are handled.
func WithMissingAction(action MissingAction) ExpandOption {
	return func(e *expander) {
		e.missing = action
	}
}

// WithDollarStyle enables or disables bare $NAME expansion. ${NAME} is
// always expanded.
func WithDollarStyle(enabled bool) ExpandOption {
	return func(e *expander) {
		e.dollar = enabled
	}
}

// UndefinedVariableError is returned under MissingError when one or more
// variables have no value.
type UndefinedVariableError struct {
	Names []string
}

func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined variable: %s", e.Names[0])
	}
	return fmt.Sprintf("undefined variables: %s", strings.Join(e.Names, ", "))
}

// Environ returns the process environment as expansion variables.
func Environ() map[string]string {
	env := os.Environ()
	vars := make(map[string]string, len(env))
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	return vars
}

type expander struct {
	vars    map[string]string
	missing MissingAction
	dollar  bool
	undef   []string
}

// Expand returns a copy of c with ${NAME} and $NAME placeholders in every
// string value replaced from vars. Nested sections and string lists are
// expanded too; other values are copied as-is.
//
//	cfg, err := cfg.Expand(config.Environ(), config.WithMissingAction(config.MissingError))
func (c Config) Expand(vars map[string]string, opts ...ExpandOption) (Config, error) {
	e := &expander{vars: vars, dollar: true}
	for _, opt := range opts {
		opt(e)
	}
	out := e.expandMap(c.data)
	if len(e.undef) > 0 {
		return Config{}, &UndefinedVariableError{Names: e.undef}
	}
	return New(out), nil
}

func (e *expander) expandMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = e.expandValue(v)
	}
	return out
}

func (e *expander) expandValue(v any) any {
	switch val := v.(type) {
	case string:
		return e.expand(val)
	case map[string]any:
		return e.expandMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = e.expandValue(item)
		}
		return out
	default:
		return v
	}
}

func (e *expander) expand(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	s = bracePattern.ReplaceAllStringFunc(s, func(match string) string {
		return e.lookup(match, match[2:len(match)-1])
	})
	if e.dollar {
		s = dollarPattern.ReplaceAllStringFunc(s, func(match string) string {
			return e.lookup(match, match[1:])
		})
	}
	return s
}

func (e *expander) lookup(match, name string) string {
	if val, ok := e.vars[name]; ok {
		return val
	}
	switch e.missing {
	case MissingEmpty:
		return ""
	case MissingError:
		e.undef = append(e.undef, name)
	}
	return match
}
