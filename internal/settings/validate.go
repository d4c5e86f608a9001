package settings

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

var (
	ErrUnknownKey        = errors.New("unknown setting")
	ErrInvalidValue      = errors.New("invalid value")
	ErrNotBoolean        = errors.New("setting is not a boolean")
	ErrUnknownPreset     = errors.New("unknown preset")
	ErrBackupNotFound    = errors.New("backup not found")
	ErrInvalidBackupName = errors.New("invalid backup name")
)

type Violation struct {
	Field  string
	Reason string
}

func (v Violation) String() string {
	return v.Field + ": " + v.Reason
}

// ValidationError is returned by Save when the record breaks one or more field rules.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return "invalid settings: " + strings.Join(parts, "; ")
}

// Validate checks every field rule and returns all violations in table order.
func Validate(r Record) []Violation {
	var out []Violation
	rv := reflect.ValueOf(r)
	for _, f := range Fields {
		v := rv.Field(fieldIndex[f.Key])
		switch f.Kind {
		case KindInt:
			n := int(v.Int())
			if f.Bounded && (n < f.Min || n > f.Max) {
				out = append(out, Violation{f.Key, fmt.Sprintf("must be between %d and %d, got %d", f.Min, f.Max, n)})
			}
		case KindString:
			if f.NonEmpty && strings.TrimSpace(v.String()) == "" {
				out = append(out, Violation{f.Key, "must not be empty"})
			}
		case KindEnum:
			if !slices.Contains(f.Enum, v.String()) {
				out = append(out, Violation{f.Key, fmt.Sprintf("must be one of %s, got %q", strings.Join(f.Enum, ", "), v.String())})
			}
		}
	}
	return out
}
