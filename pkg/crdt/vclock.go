package crdt

import (
	"golang.org/x/exp/constraints"
)

// Ordering of two vector clocks.
type Ordering int

const (
	Before Ordering = iota
	After
	Same
	Concurrent
)

func (o Ordering) String() string {
	switch o {
	case Before:
		return "before"
	case After:
		return "after"
	case Same:
		return "same"
	}
	return "concurrent"
}

// Vector — векторные часы: счётчик событий на каждую реплику.
// Отсутствующая реплика эквивалентна нулю.
type Vector[V constraints.Integer] map[string]V

// VClock is the vector clock used by MVRegister.
type VClock = Vector[uint64]

// Compare returns how v relates to other causally.
func (v Vector[V]) Compare(other Vector[V]) Ordering {
	less, greater := false, false
	for id, n := range v {
		switch m := other[id]; {
		case n < m:
			less = true
		case n > m:
			greater = true
		}
	}
	for id, m := range other {
		if _, ok := v[id]; !ok && m > 0 {
			less = true
		}
	}
	switch {
	case less && greater:
		return Concurrent
	case less:
		return Before
	case greater:
		return After
	}
	return Same
}

// Merge returns the pointwise maximum of v and other.
func (v Vector[V]) Merge(other Vector[V]) Vector[V] {
	res := v.Clone()
	for id, n := range other {
		if n > res[id] {
			res[id] = n
		}
	}
	return res
}

// Increment returns a copy of v with the entry of id advanced by one.
func (v Vector[V]) Increment(id string) Vector[V] {
	res := v.Clone()
	res[id]++
	return res
}

func (v Vector[V]) Clone() Vector[V] {
	res := make(Vector[V], len(v)+1)
	for id, n := range v {
		res[id] = n
	}
	return res
}
