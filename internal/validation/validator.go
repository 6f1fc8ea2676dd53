// Package validation turns raw, caller-supplied field maps into validated
// domain.Fields. Each entity kind registers a Schema: an ordered list of
// typed fields with presence rules and go-playground/validator tags that
// are checked after the raw value has been cast to its column type.
//
// Validation never touches storage. A failure is reported as a single
// *domain.ValidationError naming the first offending field in schema order,
// so repeated calls with the same input yield the same error.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"

	"github.com/tbourn/go-chat-sync/internal/domain"
)

// Mode selects create or update semantics. On Create every Required field
// must be present; on Update only the fields present are checked and the
// identifier is dropped.
type Mode int

const (
	Create Mode = iota
	Update
)

// Type is the column type a raw value is cast to.
type Type int

const (
	String Type = iota
	Int
	Bool
	Time
	Map
)

// Field describes one column of a Schema.
type Field struct {
	Name     string
	Type     Type
	Required bool
	Nullable bool
	// Rules is a validator tag string applied to the cast value, e.g.
	// "oneof=private group" or "omitempty,url".
	Rules string
}

// Schema is the ordered field list for one entity kind.
type Schema struct {
	Kind   domain.Kind
	Fields []Field
}

// Validator validates raw fields against registered schemas. It is safe for
// concurrent use.
type Validator struct {
	v *validator.Validate

	mu      sync.RWMutex
	schemas map[domain.Kind]Schema
}

// New returns a Validator preloaded with the schemas of every known kind.
func New() *Validator {
	val := &Validator{
		v:       validator.New(),
		schemas: make(map[domain.Kind]Schema),
	}
	for _, s := range DefaultSchemas() {
		val.Register(s)
	}
	return val
}

// Register adds or replaces the schema for s.Kind.
func (val *Validator) Register(s Schema) {
	val.mu.Lock()
	val.schemas[s.Kind] = s
	val.mu.Unlock()
}

// Validate casts and checks raw against the schema for kind. Keys that are
// not part of the schema are dropped, as is "id" in Update mode. The
// returned Fields never alias raw.
func (val *Validator) Validate(kind domain.Kind, mode Mode, raw domain.Fields) (domain.Fields, error) {
	val.mu.RLock()
	schema, ok := val.schemas[kind]
	val.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("validation: no schema for kind %q", kind)
	}

	out := make(domain.Fields, len(schema.Fields))
	for _, f := range schema.Fields {
		if mode == Update && f.Name == "id" {
			continue
		}
		rv, present := raw[f.Name]
		if !present {
			if mode == Create && f.Required {
				return nil, invalid(kind, f.Name, "can't be blank")
			}
			continue
		}

		v, err := cast(f, rv)
		if err != nil {
			return nil, invalid(kind, f.Name, err.Error())
		}
		if v == nil {
			if f.Required {
				return nil, invalid(kind, f.Name, "can't be blank")
			}
			out[f.Name] = nil
			continue
		}
		if f.Required && isBlank(v) {
			return nil, invalid(kind, f.Name, "can't be blank")
		}
		if f.Rules != "" {
			if err := val.v.Var(v, f.Rules); err != nil {
				return nil, invalid(kind, f.Name, reason(err))
			}
		}
		out[f.Name] = v
	}
	return out, nil
}

func invalid(kind domain.Kind, field, why string) error {
	return &domain.ValidationError{Kind: kind, Field: field, Reason: why}
}

// cast converts rv to the Go type of f. A nil result means SQL NULL for
// nullable fields; non-nullable optional fields fall back to the zero value.
func cast(f Field, rv any) (any, error) {
	if rv == nil {
		if f.Nullable || f.Required {
			return nil, nil
		}
		return zero(f.Type), nil
	}

	switch f.Type {
	case String:
		switch s := rv.(type) {
		case string:
			return strings.TrimSpace(s), nil
		case fmt.Stringer:
			return s.String(), nil
		}
		return nil, errors.New("must be a string")

	case Int:
		return castInt(rv)

	case Bool:
		switch b := rv.(type) {
		case bool:
			return b, nil
		case string:
			if p, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
				return p, nil
			}
		}
		return nil, errors.New("must be a boolean")

	case Time:
		switch t := rv.(type) {
		case time.Time:
			return t.UTC(), nil
		case *time.Time:
			if t == nil {
				if f.Nullable {
					return nil, nil
				}
				return time.Time{}, nil
			}
			return t.UTC(), nil
		case string:
			if strings.TrimSpace(t) == "" && f.Nullable {
				return nil, nil
			}
			p, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(t))
			if err != nil {
				return nil, errors.New("must be an RFC3339 timestamp")
			}
			return p.UTC(), nil
		}
		return nil, errors.New("must be a timestamp")

	case Map:
		return castFlags(rv)
	}
	return nil, fmt.Errorf("unsupported field type %d", f.Type)
}

func castInt(rv any) (any, error) {
	switch n := rv.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return nil, errors.New("is out of range")
		}
		return int64(n), nil
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return nil, errors.New("must be an integer")
		}
		return i, nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return nil, errors.New("must be an integer")
		}
		return i, nil
	}
	return nil, errors.New("must be an integer")
}

func floatToInt(f float64) (any, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, errors.New("must be an integer")
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return nil, errors.New("is out of range")
	}
	return int64(f), nil
}

// castFlags accepts any string-keyed map whose values are booleans.
func castFlags(rv any) (any, error) {
	var src map[string]any
	switch m := rv.(type) {
	case map[string]any:
		src = m
	case datatypes.JSONMap:
		src = m
	case map[string]bool:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, nil
	default:
		return nil, errors.New("must be an object")
	}

	out := make(map[string]any, len(src))
	for k, v := range src {
		if strings.TrimSpace(k) == "" {
			return nil, errors.New("has an empty key")
		}
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%s must be a boolean", k)
		}
		out[k] = b
	}
	return out, nil
}

func zero(t Type) any {
	switch t {
	case Int:
		return int64(0)
	case Bool:
		return false
	case Time:
		return time.Time{}
	case Map:
		return map[string]any{}
	}
	return ""
}

func isBlank(v any) bool {
	switch x := v.(type) {
	case string:
		return x == ""
	case time.Time:
		return x.IsZero()
	}
	return false
}

// reason renders the first validator failure as a short phrase.
func reason(err error) string {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return err.Error()
	}
	fe := ves[0]
	switch fe.Tag() {
	case "required":
		return "can't be blank"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "max":
		if fe.Kind() == reflect.String {
			return "is too long (maximum is " + fe.Param() + " characters)"
		}
		return "must be less than or equal to " + fe.Param()
	case "min":
		if fe.Kind() == reflect.String {
			return "is too short (minimum is " + fe.Param() + " characters)"
		}
		return "must be greater than or equal to " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "url":
		return "is not a valid URL"
	case "uuid":
		return "is not a valid UUID"
	case "ne":
		return "must not be " + fe.Param()
	}
	return "failed " + fe.Tag() + " check"
}
