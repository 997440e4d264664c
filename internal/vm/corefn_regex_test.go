package vm

import "testing"

func TestMatchReturnsBoolean(t *testing.T) {
	got := run(t, `"asdf asdf" "asdf" m; print`)
	if got != "#t" {
		t.Errorf("got %q, want %q", got, "#t")
	}
	got = run(t, `"asdf asdf" "qwer" m; print`)
	if got != "#f" {
		t.Errorf("got %q, want %q", got, "#f")
	}
}

func TestGrepWithRegexMatch(t *testing.T) {
	// spec.md §8 scenario 6's `[o.toml m] grep` shape.
	got := run(t, `("Cargo.toml" "README.md" "Makefile") ["o.toml" m] grep; println`)
	want := "(\n    0: Cargo.toml\n)\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSubstituteFirstOccurrenceOnly(t *testing.T) {
	got := run(t, `"asdf asdf" "asdf" "qwer" s; print`)
	if got != "qwer asdf" {
		t.Errorf("got %q, want %q", got, "qwer asdf")
	}
}

func TestSubstituteGlobalFlag(t *testing.T) {
	got := run(t, `"asdf asdf" "asdf/g" "qwer" s; print`)
	if got != "qwer qwer" {
		t.Errorf("got %q, want %q", got, "qwer qwer")
	}
}

func TestSubstituteWithBackreferences(t *testing.T) {
	got := run(t, `"asdf" '(as)(df)' 'as\2\1df' s; print`)
	if got != "asdfasdf" {
		t.Errorf("got %q, want %q", got, "asdfasdf")
	}
}
