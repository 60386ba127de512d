package binder

import (
	"encoding"
	"fmt"
	"reflect"
	"strconv"
)

// bindValues fills struct fields carrying the given tag from a multivalued
// source. Unknown tags and missing values are ignored; type conversion
// failures surface as errors so malformed input is rejected, not zeroed.
func bindValues(v any, tag string, values func(name string) ([]string, bool)) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return ErrTargetMustBeStructPtr
	}

	rv = rv.Elem()
	rt := rv.Type()

	for i := range rt.NumField() {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		name, ok := field.Tag.Lookup(tag)
		if !ok || name == "-" || name == "" {
			continue
		}

		vals, ok := values(name)
		if !ok || len(vals) == 0 {
			continue
		}

		if err := setField(rv.Field(i), vals); err != nil {
			return fmt.Errorf("binder: field %s: %w", field.Name, err)
		}
	}

	return nil
}

func setField(fv reflect.Value, vals []string) error {
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}
		return setField(fv.Elem(), vals)
	}

	// Types like uuid.UUID and time.Time bind through TextUnmarshaler.
	if fv.CanAddr() {
		if u, ok := fv.Addr().Interface().(encoding.TextUnmarshaler); ok {
			return u.UnmarshalText([]byte(vals[0]))
		}
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(vals[0])
	case reflect.Bool:
		b, err := strconv.ParseBool(vals[0])
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(vals[0], 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(vals[0], 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(vals[0], fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetFloat(f)
	case reflect.Slice:
		slice := reflect.MakeSlice(fv.Type(), len(vals), len(vals))
		for i, val := range vals {
			if err := setField(slice.Index(i), []string{val}); err != nil {
				return err
			}
		}
		fv.Set(slice)
	default:
		return fmt.Errorf("unsupported field type %s", fv.Type())
	}

	return nil
}
