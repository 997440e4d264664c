package vm

import (
	"bytes"
	"strings"
	"testing"
)

func TestDisassembleListsEveryInstructionAndNestedFunction(t *testing.T) {
	src := `
: double
  2 *
::
21 double; print
`
	chunk, err := Compile("<test>", []byte(src))
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	var buf bytes.Buffer
	Disassemble(&buf, chunk)
	out := buf.String()
	if !strings.Contains(out, "== <test> ==") {
		t.Errorf("expected a top-level header, got:\n%s", out)
	}
	if !strings.Contains(out, "-- nested: double --") {
		t.Errorf("expected the nested function to be listed, got:\n%s", out)
	}
	if !strings.Contains(out, "MUL") {
		t.Errorf("expected the nested function's multiply instruction to be disassembled, got:\n%s", out)
	}
}
