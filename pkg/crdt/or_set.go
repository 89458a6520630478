package crdt

import (
	"encoding/json"
	"maps"
	"sort"

	"opcrdt/pkg/structs"

	"github.com/google/uuid"
)

const ORSetName = "or-set"

// ORTagged is an element with the tags it was added under.
type ORTagged struct {
	Elem any
	Tags structs.Set[string]
}

// ORSetState keeps every add tag ever seen per element and every removed tag.
type ORSetState struct {
	Adds    map[string]ORTagged
	Removed structs.Set[string]
}

// live returns the tags of key that have not been removed.
func (s ORSetState) live(key string) []string {
	var tags []string
	for tag := range s.Adds[key].Tags.All() {
		if !s.Removed.Contains(tag) {
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return tags
}

// ORSetMessage either adds Elem under the single tag in Tags, or removes
// the tags observed for Elem.
type ORSetMessage struct {
	Op   string   `json:"op"`
	Elem any      `json:"elem"`
	Tags []string `json:"tags"`
}

const (
	orAdd    = "add"
	orRemove = "remove"
)

func (m ORSetMessage) Walk(fn func(any) (any, error)) (Message, error) {
	elem, err := fn(m.Elem)
	if err != nil {
		return nil, err
	}
	m.Elem = elem
	return m, nil
}

// ORSet is an observed-remove set. A remove only retracts the adds its
// replica had seen; concurrent adds carry fresh tags and survive.
type ORSet struct{}

func (ORSet) Name() string { return ORSetName }

func (ORSet) First() State {
	return ORSetState{Adds: map[string]ORTagged{}, Removed: structs.NewSet[string]()}
}

func (s ORSet) Reduce(msg Message, prev State, emit func(Change)) (State, error) {
	state, ok := prev.(ORSetState)
	if !ok {
		return prev, invalidMessage(s.Name(), prev)
	}
	m, ok := msg.(ORSetMessage)
	if !ok {
		return prev, invalidMessage(s.Name(), msg)
	}

	switch m.Op {
	case orAdd:
		if len(m.Tags) == 0 {
			return prev, invalidMessage(s.Name(), msg)
		}
		key := canonicalKey(m.Elem)
		tagged, exists := state.Adds[key]
		if !exists {
			tagged = ORTagged{Elem: m.Elem, Tags: structs.NewSet[string]()}
		}
		tags := tagged.Tags.Union(structs.NewSet(m.Tags...))
		if tags.Size() == tagged.Tags.Size() {
			return state, nil
		}
		next := ORSetState{Adds: maps.Clone(state.Adds), Removed: state.Removed}
		next.Adds[key] = ORTagged{Elem: tagged.Elem, Tags: tags}
		for _, tag := range m.Tags {
			emit(Change{Op: "add", Value: m.Elem, Tag: tag})
		}
		return next, nil

	case orRemove:
		removed := state.Removed.Union(structs.NewSet(m.Tags...))
		if removed.Size() == state.Removed.Size() {
			return state, nil
		}
		for _, tag := range m.Tags {
			if !state.Removed.Contains(tag) {
				emit(Change{Op: "remove", Value: m.Elem, Tag: tag})
			}
		}
		return ORSetState{Adds: state.Adds, Removed: removed}, nil
	}
	return prev, invalidMessage(s.Name(), msg)
}

func (ORSet) ValueOf(state State) Value {
	s := state.(ORSetState)
	present := make(Elements, len(s.Adds))
	for key, tagged := range s.Adds {
		if len(s.live(key)) > 0 {
			present[key] = tagged.Elem
		}
	}
	return present.sorted()
}

func (ORSet) Mutators() map[string]Mutator {
	return map[string]Mutator{
		"add": func(_ State, args ...any) (Messages, error) {
			if err := arity("add", args, 1); err != nil {
				return nil, err
			}
			return One(ORSetMessage{Op: orAdd, Elem: args[0], Tags: []string{uuid.NewString()}}), nil
		},
		// remove is a no-op when the element is not present locally.
		"remove": func(state State, args ...any) (Messages, error) {
			if err := arity("remove", args, 1); err != nil {
				return nil, err
			}
			tags := state.(ORSetState).live(canonicalKey(args[0]))
			if len(tags) == 0 {
				return None(), nil
			}
			return One(ORSetMessage{Op: orRemove, Elem: args[0], Tags: tags}), nil
		},
	}
}

func (ORSet) DecodeMessage(data []byte) (Message, error) {
	var m ORSetMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
