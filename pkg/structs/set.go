package structs

import "iter"

type empty = struct{}

// Set — простое множество для значений типа T
type Set[T comparable] map[T]empty

// NewSet создаёт множество из переданных значений
func NewSet[T comparable](values ...T) Set[T] {
	res := make(Set[T], len(values))
	for _, v := range values {
		res[v] = empty{}
	}
	return res
}

// Add добавляет элемент в множество
func (s Set[T]) Add(value T) {
	s[value] = empty{}
}

// Remove удаляет элемент из множества
func (s Set[T]) Remove(value T) {
	delete(s, value)
}

// Contains проверяет наличие элемента
func (s Set[T]) Contains(value T) bool {
	_, exists := s[value]
	return exists
}

// Size возвращает количество элементов
func (s Set[T]) Size() int {
	return len(s)
}

func (s Set[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for v := range s {
			if !yield(v) {
				return
			}
		}
	}
}

// Clone создаёт копию множества
func (s Set[T]) Clone() Set[T] {
	clone := make(Set[T], len(s))
	for v := range s {
		clone[v] = empty{}
	}
	return clone
}

// Union возвращает новое множество: объединение s и other. Исходные
// множества не меняются.
func (s Set[T]) Union(other Set[T]) Set[T] {
	result := s.Clone()
	for v := range other {
		result[v] = empty{}
	}
	return result
}
