package crdt

import (
	"fmt"
	"sort"
)

// Store maps type names to their algorithms.
type Store map[string]Type

// NewStore registers types under their own names.
func NewStore(types ...Type) Store {
	s := make(Store, len(types))
	for _, t := range types {
		s[t.Name()] = t
	}
	return s
}

// DefaultStore returns a store with every built-in type.
func DefaultStore() Store {
	return NewStore(
		GCounter{},
		PNCounter{},
		GSet{},
		TwoPSet{},
		LWWRegister{},
		MVRegister{},
		ORSet{},
		LWWSet{},
	)
}

func (s Store) Lookup(name string) (Type, error) {
	t, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return t, nil
}

// Names returns the registered names in sorted order.
func (s Store) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
