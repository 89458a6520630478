package structs

import (
	"slices"
	"testing"
)

func TestSet_UnionDoesNotModifyOperands(t *testing.T) {
	a := NewSet("x", "y")
	b := NewSet("y", "z")

	u := a.Union(b)

	if u.Size() != 3 {
		t.Fatalf("expected union of size 3, got %d", u.Size())
	}
	for _, v := range []string{"x", "y", "z"} {
		if !u.Contains(v) {
			t.Errorf("union is missing %q", v)
		}
	}
	if a.Size() != 2 || b.Size() != 2 {
		t.Fatalf("operands changed: a=%v b=%v", a, b)
	}
}

func TestSet_AddRemove(t *testing.T) {
	s := NewSet[int]()
	s.Add(1)
	s.Add(1)
	s.Add(2)
	s.Remove(1)

	if s.Contains(1) || !s.Contains(2) || s.Size() != 1 {
		t.Fatalf("unexpected set %v", s)
	}
}

func TestSet_All(t *testing.T) {
	s := NewSet(3, 1, 2)
	got := slices.Sorted(s.All())
	if !slices.Equal(got, []int{1, 2, 3}) {
		t.Fatalf("All() = %v", got)
	}
}
