package schema

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

// Struct validates snapshots by decoding them into T and checking T's
// `validate` struct tags. Field names in issues are json names.
type Struct[T any] struct {
	name     string
	validate *validator.Validate
}

// NewStruct creates a validator for T.
func NewStruct[T any](name string) *Struct[T] {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if tag == "-" {
			return ""
		}
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return &Struct[T]{name: name, validate: v}
}

// RegisterValidation adds a custom validation tag.
func (s *Struct[T]) RegisterValidation(tag string, fn validator.Func) error {
	return s.validate.RegisterValidation(tag, fn)
}

// Validate decodes state into T and runs the struct tag checks.
func (s *Struct[T]) Validate(ctx context.Context, state map[string]any) error {
	var out T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &out,
		TagName:     "json",
		ErrorUnused: true,
		DecodeHook:  mapstructure.DecodeHookFuncType(integralNumbers),
	})
	if err != nil {
		return fmt.Errorf("schema %s: %w", s.name, err)
	}
	if err := decoder.Decode(state); err != nil {
		return &ValidationError{Schema: s.name, Issues: []Issue{{Message: err.Error(), Code: ErrCodeType}}}
	}

	err = s.validate.StructCtx(ctx, &out)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("schema %s: %w", s.name, err)
	}
	issues := make([]Issue, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		code := ErrCodeConstraint
		if fe.Tag() == "required" {
			code = ErrCodeIncomplete
		}
		issues = append(issues, Issue{
			Field:   fieldPath(fe.Namespace()),
			Message: fmt.Sprintf("failed %q check", fe.Tag()),
			Code:    code,
		})
	}
	return &ValidationError{Schema: s.name, Issues: issues}
}

// integralNumbers rejects fractional floats headed for integer fields, which
// mapstructure would otherwise truncate. JSON-decoded snapshots carry every
// number as float64, so whole floats must still pass.
func integralNumbers(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.Float32 && from.Kind() != reflect.Float64 {
		return data, nil
	}
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f := reflect.ValueOf(data).Float()
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%v is not an integer", f)
		}
	}
	return data, nil
}

// fieldPath drops the root type name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
