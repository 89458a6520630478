package crdt

import (
	"testing"
)

func TestVClock_Compare(t *testing.T) {
	tests := []struct {
		name string
		a, b VClock
		want Ordering
	}{
		{name: "both empty", a: VClock{}, b: VClock{}, want: Same},
		{name: "zero entry equals missing", a: VClock{"r": 0}, b: VClock{}, want: Same},
		{name: "equal", a: VClock{"r": 1, "q": 2}, b: VClock{"q": 2, "r": 1}, want: Same},
		{name: "before", a: VClock{"r": 1}, b: VClock{"r": 2}, want: Before},
		{name: "before with missing replica", a: VClock{"r": 1}, b: VClock{"r": 1, "q": 1}, want: Before},
		{name: "after", a: VClock{"r": 3, "q": 1}, b: VClock{"r": 2}, want: After},
		{name: "concurrent", a: VClock{"r": 1}, b: VClock{"q": 1}, want: Concurrent},
		{name: "concurrent mixed", a: VClock{"r": 2, "q": 1}, b: VClock{"r": 1, "q": 2}, want: Concurrent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Compare(tc.b); got != tc.want {
				t.Errorf("Compare(%v, %v) = %s, want %s", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestVClock_MergeIncrement(t *testing.T) {
	a := VClock{"r": 2, "q": 1}
	b := VClock{"r": 1, "p": 4}

	merged := a.Merge(b)
	if merged.Compare(VClock{"r": 2, "q": 1, "p": 4}) != Same {
		t.Fatalf("merge = %v", merged)
	}
	if a.Compare(merged) != Before || b.Compare(merged) != Before {
		t.Errorf("inputs must precede the merge")
	}

	next := merged.Increment("q")
	if next["q"] != 2 || merged["q"] != 1 {
		t.Errorf("increment must copy: next=%v merged=%v", next, merged)
	}
	if len(a) != 2 || a["r"] != 2 {
		t.Errorf("merge modified its receiver: %v", a)
	}
}

func TestVector_OtherIntegers(t *testing.T) {
	a := Vector[int32]{"r": 1}
	if got := a.Increment("r").Compare(a); got != After {
		t.Errorf("Compare = %s, want after", got)
	}
}
