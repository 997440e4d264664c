package vm

import "testing"

func TestPmapnOneWorkerPreservesSourceOrder(t *testing.T) {
	// spec.md §5/§8: pmapn with a single worker behaves like a
	// deterministic, in-order map.
	got := run(t, `(1 2 3 4) [10 *] 1 pmapn; take-all; println`)
	want := "(\n    0: 10\n    1: 20\n    2: 30\n    3: 40\n)\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPmapAppliesCalleeToEveryElement(t *testing.T) {
	got := run(t, `(1 2 3) [dup *] pmap; take-all; len; print`)
	if got != "3" {
		t.Errorf("got %q, want %q", got, "3")
	}
}
