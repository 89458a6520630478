package runtime

import (
	"fmt"
	"reflect"
	"strings"

	"opcrdt/pkg/crdt"

	"github.com/pkg/errors"
)

// visitor inspects one node of a message tree. When handled is true the node
// is replaced by out and its children are not visited.
type visitor func(v any) (out any, handled bool, err error)

// rewrite copies v depth-first, applying visit to every node. Messages that
// implement crdt.Walker, []any and map[string]any are descended into directly;
// other slices, arrays, maps, pointers and the exported fields of structs are
// walked by reflection. v must be acyclic.
func rewrite(v any, visit visitor) (any, error) {
	if out, handled, err := visit(v); err != nil || handled {
		return out, err
	}

	switch t := v.(type) {
	case nil:
		return nil, nil
	case crdt.Walker:
		return t.Walk(func(child any) (any, error) {
			return rewrite(child, visit)
		})
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			r, err := rewrite(child, visit)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			r, err := rewrite(child, visit)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	}
	return rewriteValue(reflect.ValueOf(v), visit)
}

// rewriteValue walks typed containers. The copy keeps the original type when
// every rewritten child still fits it; otherwise slices and arrays become
// []any, maps and structs become map[string]any and pointers are dropped.
func rewriteValue(rv reflect.Value, visit visitor) (any, error) {
	typ := rv.Type()

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if isScalar(typ.Elem()) || (rv.Kind() == reflect.Slice && rv.IsNil()) {
			return rv.Interface(), nil
		}
		children := make([]any, rv.Len())
		for i := range children {
			r, err := rewrite(rv.Index(i).Interface(), visit)
			if err != nil {
				return nil, err
			}
			children[i] = r
		}

		var out reflect.Value
		if rv.Kind() == reflect.Slice {
			out = reflect.MakeSlice(typ, len(children), len(children))
		} else {
			out = reflect.New(typ).Elem()
		}
		for i, child := range children {
			cv, ok := fits(child, typ.Elem())
			if !ok {
				return children, nil
			}
			out.Index(i).Set(cv)
		}
		return out.Interface(), nil

	case reflect.Map:
		if isScalar(typ.Elem()) || rv.IsNil() {
			return rv.Interface(), nil
		}
		keys := rv.MapKeys()
		children := make([]any, len(keys))
		typed := true
		for i, k := range keys {
			r, err := rewrite(rv.MapIndex(k).Interface(), visit)
			if err != nil {
				return nil, err
			}
			children[i] = r
			if _, ok := fits(r, typ.Elem()); !ok {
				typed = false
			}
		}

		if typed {
			out := reflect.MakeMapWithSize(typ, len(keys))
			for i, k := range keys {
				cv, _ := fits(children[i], typ.Elem())
				out.SetMapIndex(k, cv)
			}
			return out.Interface(), nil
		}
		out := make(map[string]any, len(keys))
		for i, k := range keys {
			out[fmt.Sprint(k.Interface())] = children[i]
		}
		return out, nil

	case reflect.Pointer:
		elem := typ.Elem()
		if rv.IsNil() || isScalar(elem) || (elem.Kind() == reflect.Struct && !hasExportedFields(elem)) {
			return rv.Interface(), nil
		}
		r, err := rewrite(rv.Elem().Interface(), visit)
		if err != nil {
			return nil, err
		}
		cv, ok := fits(r, elem)
		if !ok {
			return r, nil
		}
		out := reflect.New(elem)
		out.Elem().Set(cv)
		return out.Interface(), nil

	case reflect.Struct:
		if !hasExportedFields(typ) {
			return rv.Interface(), nil
		}
		out := reflect.New(typ).Elem()
		out.Set(rv)
		fields := make(map[string]any, typ.NumField())
		typed := true
		for i := 0; i < typ.NumField(); i++ {
			f := typ.Field(i)
			if !f.IsExported() {
				continue
			}
			r, err := rewrite(rv.Field(i).Interface(), visit)
			if err != nil {
				return nil, err
			}
			if name, ok := fieldName(f); ok {
				fields[name] = r
			}
			if cv, ok := fits(r, f.Type); ok && typed {
				out.Field(i).Set(cv)
			} else {
				typed = false
			}
		}
		if typed {
			return out.Interface(), nil
		}
		return fields, nil
	}
	return rv.Interface(), nil
}

// fits converts v to a value assignable to t.
func fits(v any, t reflect.Type) (reflect.Value, bool) {
	if v == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), true
		}
		return reflect.Value{}, false
	}
	cv := reflect.ValueOf(v)
	if !cv.Type().AssignableTo(t) {
		return reflect.Value{}, false
	}
	return cv, true
}

func isScalar(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	}
	return false
}

func hasExportedFields(t reflect.Type) bool {
	if t.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			return true
		}
	}
	return false
}

// fieldName follows the json tag so a struct rebuilt as a map encodes the
// same way.
func fieldName(f reflect.StructField) (string, bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name, true
	}
	return f.Name, true
}

// toReferences replaces every live object with its Reference. A nil object
// or one without an identity cannot be sent.
func toReferences(v any) (out any, handled bool, err error) {
	switch t := v.(type) {
	case crdt.Reference:
		return t, true, nil
	case crdt.Object:
		if isNil(t) {
			return nil, true, errors.Wrapf(crdt.ErrInvalidArguments, "nil %T in message", t)
		}
		ref := t.Ref()
		if ref.ID == "" || ref.Type == "" {
			return nil, true, errors.Wrapf(crdt.ErrInvalidArguments, "object %q has no identity", ref)
		}
		return ref, true, nil
	}
	return v, false, nil
}

func isNil(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
