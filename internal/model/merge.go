package model

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Patch is a partial state keyed by json field name.
type Patch map[string]any

// nextState computes the proposed state for a Set call.
//
// Accepted arguments:
//   - func(T) Patch: the result is merged into cur, even when replace is true
//   - Patch or map[string]any: merged into cur, or into the zero T when replace
//   - T: becomes the whole next state
func nextState[T any](cur T, arg any, replace bool) (T, error) {
	switch v := arg.(type) {
	case func(T) Patch:
		return applyPatch(cur, v(cur), false)
	case Patch:
		return applyPatch(cur, v, replace)
	case map[string]any:
		return applyPatch(cur, Patch(v), replace)
	case T:
		return v, nil
	default:
		var zero T
		return zero, &Error{
			Code:    ErrCodeUnsupportedArg,
			Message: fmt.Sprintf("cannot set %T from %T", zero, arg),
		}
	}
}

// applyPatch merges patch into base at the top level. Nested values are
// replaced wholesale. base is never modified; a new value is returned.
func applyPatch[T any](base T, patch Patch, replace bool) (T, error) {
	var zero T
	if replace {
		base = zero
	}

	rt := reflect.TypeFor[T]()
	switch {
	case rt.Kind() == reflect.Map && rt.Key().Kind() == reflect.String:
		return patchMap(base, patch, rt)
	case rt.Kind() == reflect.Struct:
		out := reflect.New(rt).Elem()
		out.Set(reflect.ValueOf(&base).Elem())
		if err := patchStruct(out, patch); err != nil {
			return zero, err
		}
		return out.Interface().(T), nil
	case rt.Kind() == reflect.Pointer && rt.Elem().Kind() == reflect.Struct:
		out := reflect.New(rt.Elem())
		if src := reflect.ValueOf(&base).Elem(); !src.IsNil() {
			out.Elem().Set(src.Elem())
		}
		if err := patchStruct(out.Elem(), patch); err != nil {
			return zero, err
		}
		return out.Interface().(T), nil
	default:
		return zero, &Error{
			Code:    ErrCodeUnsupportedArg,
			Message: fmt.Sprintf("cannot merge a patch into %s", rt),
		}
	}
}

func patchMap[T any](base T, patch Patch, rt reflect.Type) (T, error) {
	var zero T
	src := reflect.ValueOf(&base).Elem()
	out := reflect.MakeMapWithSize(rt, src.Len()+len(patch))
	if !src.IsNil() {
		iter := src.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), iter.Value())
		}
	}
	for k, v := range patch {
		val, err := convert(v, rt.Elem())
		if err != nil {
			return zero, &Error{Code: ErrCodeDecode, Message: fmt.Sprintf("key %q", k), Err: err}
		}
		out.SetMapIndex(reflect.ValueOf(k).Convert(rt.Key()), val)
	}
	return out.Interface().(T), nil
}

func patchStruct(out reflect.Value, patch Patch) error {
	fields := fieldsOf(out.Type())
	for k, v := range patch {
		idx, ok := fields[k]
		if !ok {
			return &Error{
				Code:    ErrCodeUnknownField,
				Message: fmt.Sprintf("%s has no field %q", out.Type(), k),
			}
		}
		f := out.Field(idx)
		val, err := convert(v, f.Type())
		if err != nil {
			return &Error{Code: ErrCodeDecode, Message: fmt.Sprintf("field %q", k), Err: err}
		}
		f.Set(val)
	}
	return nil
}

// convert turns v into a value of type typ. Assignable values are used as-is;
// anything else is decoded with mapstructure using json tag names.
func convert(v any, typ reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(typ), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(typ) {
		return rv, nil
	}

	out := reflect.New(typ)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out.Interface(),
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return reflect.Value{}, err
	}
	if err := decoder.Decode(v); err != nil {
		return reflect.Value{}, err
	}
	return out.Elem(), nil
}

var fieldCache sync.Map // reflect.Type -> map[string]int

// fieldsOf maps json names of the exported top-level fields of rt to their
// index. Untagged fields use their Go name; fields tagged "-" are skipped.
func fieldsOf(rt reflect.Type) map[string]int {
	if cached, ok := fieldCache.Load(rt); ok {
		return cached.(map[string]int)
	}
	fields := make(map[string]int, rt.NumField())
	for i := range rt.NumField() {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := sf.Name
		if tag, ok := sf.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		fields[name] = i
	}
	fieldCache.Store(rt, fields)
	return fields
}
