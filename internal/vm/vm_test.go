package vm

import (
	"bytes"
	"strings"
	"testing"
)

// run compiles and executes src against a fresh VM, returning everything
// written through `print`/`println` (spec.md §8's end-to-end scenarios
// are phrased as literal-input-to-stdout pairs, so these tests exercise
// the compiler and VM together exactly the way the CLI's file-run mode
// does).
func run(t *testing.T, src string) string {
	t.Helper()
	chunk, err := Compile("<test>", []byte(src))
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	var buf bytes.Buffer
	v := NewVM()
	v.SetOutput(&buf)
	if err := v.Run(chunk); err != nil {
		t.Fatalf("run error: %v", err)
	}
	v.Out.Flush()
	return buf.String()
}

func TestArithmeticPrint(t *testing.T) {
	got := run(t, `1 2 + print`)
	if got != "3" {
		t.Errorf("got %q, want %q", got, "3")
	}
}

func TestGlobalVarRoundTrip(t *testing.T) {
	// spec.md §8 scenario 2: `x var; 10 x !; x @; 5 +;`
	got := run(t, `x var; 10 x !; x @; 5 + print`)
	if got != "15" {
		t.Errorf("got %q, want %q", got, "15")
	}
}

func TestBeginUntilLoop(t *testing.T) {
	// spec.md §8 scenario 3.
	src := `x var; 5 x !; begin; x @; println; x @; 1 -; x !; x @; 0 =; until`
	got := run(t, src)
	want := "5\n4\n3\n2\n1\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestIfElseThen(t *testing.T) {
	got := run(t, `1 if "yes" else "no" then print`)
	if got != "yes" {
		t.Errorf("got %q, want %q", got, "yes")
	}
	got = run(t, `0 if "yes" else "no" then print`)
	if got != "no" {
		t.Errorf("got %q, want %q", got, "no")
	}
}

func TestAnonFunctionMapOverList(t *testing.T) {
	// spec.md §8 scenario 4: `(1 2 3) [2 +] map; take-all`
	got := run(t, `(1 2 3) [2 +] map; take-all; println`)
	want := "(\n    0: 3\n    1: 4\n    2: 5\n)\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestGeneratorShiftYield(t *testing.T) {
	// spec.md §8 scenario 5, run verbatim (including the ",," generator
	// terminator, cosh's real surface syntax).
	src := `:~ gen 0 0 drop; 1 yield; 2 yield; 3 yield; ,, gen; dup; shift; println; dup; shift; println; shift; println;`
	got := run(t, src)
	want := "1\n2\n3\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBigIntPromotionOnOverflow(t *testing.T) {
	// spec.md §8 scenario 8.
	got := run(t, `1000000000000000000 1 + print`)
	if got != "1000000000000000001" {
		t.Errorf("got %q, want %q", got, "1000000000000000001")
	}
}

func TestIntStaysIntWithinRange(t *testing.T) {
	got := run(t, `100 1 + print`)
	if got != "101" {
		t.Errorf("got %q, want %q", got, "101")
	}
}

func TestFromJSONGet(t *testing.T) {
	// spec.md §8 scenario 7.
	got := run(t, `'{"3":4,"1":2}' from-json; 3 get; print`)
	if got != "4" {
		t.Errorf("got %q, want %q", got, "4")
	}
}

func TestNamedFunctionCallAndReturn(t *testing.T) {
	src := `
: double
  2 *
::
21 double; print
`
	got := run(t, src)
	if got != "42" {
		t.Errorf("got %q, want %q", got, "42")
	}
}

func TestExplicitCallUnresolvedNameFails(t *testing.T) {
	chunk, err := Compile("<test>", []byte(`totally-unbound-name;`))
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	v := NewVM()
	var buf bytes.Buffer
	v.SetOutput(&buf)
	if err := v.Run(chunk); err == nil {
		t.Fatalf("expected a resolution error for an explicit call to an unbound name")
	}
}

func TestImplicitCallUnresolvedNamePushesString(t *testing.T) {
	got := run(t, "totally-unbound-name\nprint")
	if got != "totally-unbound-name" {
		t.Errorf("got %q, want %q", got, "totally-unbound-name")
	}
}

func TestDupSwapDropStack(t *testing.T) {
	got := run(t, `1 2 swap print print`)
	if got != "12" {
		t.Errorf("got %q, want %q", got, "12")
	}
	got = run(t, `5 dup + print`)
	if got != "10" {
		t.Errorf("got %q, want %q", got, "10")
	}
	got = run(t, `1 2 drop print`)
	if got != "1" {
		t.Errorf("got %q, want %q", got, "1")
	}
}

func TestGrepFiltersByPredicate(t *testing.T) {
	got := run(t, `(1 2 3 4 5 6) [dup 2 / 2 * =] grep; println`)
	want := "(\n    0: 2\n    1: 4\n    2: 6\n)\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTakeLimitsLength(t *testing.T) {
	got := run(t, `(1 2 3 4 5) 2 take; len; print`)
	if got != "2" {
		t.Errorf("got %q, want %q", got, "2")
	}
}

func TestSetPushAndRejectsMixedVariant(t *testing.T) {
	// Pushing a same-variant element grows the set; pushing a
	// differently-typed element is a silent no-op, not a failure
	// (spec.md §3/§8's testable property).
	got := run(t, `s( 1 2 ) 3 push; len; print`)
	if got != "3" {
		t.Errorf("got %q, want %q", got, "3")
	}
	got = run(t, `s( 1 2 ) "three" push; len; print`)
	if got != "2" {
		t.Errorf("got %q, want %q", got, "2")
	}
}

func TestClosureOverPoppedFrameFails(t *testing.T) {
	// A closure captured inside a function body outlives that function's
	// own call (the frame is popped the moment makeClosure returns), so
	// invoking it afterwards must fail cleanly with a "stack has gone
	// away"-style diagnostic rather than dereference freed locals
	// (spec.md §3/§9).
	src := `
: makeClosure
  x var;
  5 x !;
  [x @]
::
makeClosure; funcall; print
`
	chunk, err := Compile("<test>", []byte(src))
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	v := NewVM()
	var buf bytes.Buffer
	v.SetOutput(&buf)
	err = v.Run(chunk)
	if err == nil {
		t.Fatalf("expected calling a closure whose owning frame already returned to fail")
	}
	if !strings.Contains(err.Error(), "gone away") {
		t.Errorf("expected a 'stack has gone away' style error, got %v", err)
	}
}

func TestClosureWhileFrameStillLive(t *testing.T) {
	// The same closure shape, but invoked from inside the defining
	// function (so its frame is still on top) must succeed.
	src := `
: withClosure
  x var;
  5 x !;
  [x @] funcall
::
withClosure; print
`
	got := run(t, src)
	if got != "5" {
		t.Errorf("got %q, want %q", got, "5")
	}
}

func TestUnbalancedControlIsCompileError(t *testing.T) {
	if _, err := Compile("<test>", []byte(`1 then`)); err == nil {
		t.Fatalf("expected compile error for 'then' without matching 'if'")
	}
	if _, err := Compile("<test>", []byte(`until`)); err == nil {
		t.Fatalf("expected compile error for 'until' without matching 'begin'")
	}
}

func TestStackUnderflowIsRuntimeError(t *testing.T) {
	chunk, err := Compile("<test>", []byte(`+`))
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	v := NewVM()
	var buf bytes.Buffer
	v.SetOutput(&buf)
	if err := v.Run(chunk); err == nil {
		t.Fatalf("expected a stack-underflow runtime error")
	}
}
