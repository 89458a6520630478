package crdt

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// canonicalKey encodes v deterministically. It identifies set elements and
// orders values when timestamps tie. Objects are encoded as their Reference.
func canonicalKey(v any) string {
	if o, ok := v.(Object); ok {
		v = o.Ref()
	} else if r, ok := AsReference(v); ok {
		v = r
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%T:%v", v, v)
	}
	return string(b)
}

// Elements maps canonical keys to the original values. It is treated as
// immutable once published in a state.
type Elements map[string]any

func (e Elements) clone() Elements {
	res := make(Elements, len(e)+1)
	for k, v := range e {
		res[k] = v
	}
	return res
}

func (e Elements) keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sorted returns the values ordered by canonical key.
func (e Elements) sorted() []any {
	res := make([]any, 0, len(e))
	for _, k := range e.keys() {
		res = append(res, e[k])
	}
	return res
}

func sortValues(values []any) []any {
	sort.SliceStable(values, func(i, j int) bool {
		return canonicalKey(values[i]) < canonicalKey(values[j])
	})
	return values
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func keyArg(args []any, i int) (string, error) {
	if len(args) <= i {
		return "", fmt.Errorf("%w: missing argument %d", ErrInvalidArguments, i)
	}
	switch k := args[i].(type) {
	case string:
		return k, nil
	case fmt.Stringer:
		return k.String(), nil
	}
	return "", fmt.Errorf("%w: key must be a string, got %T", ErrInvalidArguments, args[i])
}

func arity(name string, args []any, n int) error {
	if len(args) != n {
		return fmt.Errorf("%w: %s expects %d argument(s), got %d", ErrInvalidArguments, name, n, len(args))
	}
	return nil
}

func invalidMessage(typ string, msg Message) error {
	return fmt.Errorf("%w: %s cannot apply %T", ErrInvalidMessage, typ, msg)
}

// Contains reports whether v is an element.
func (e Elements) Contains(v any) bool {
	_, ok := e[canonicalKey(v)]
	return ok
}
