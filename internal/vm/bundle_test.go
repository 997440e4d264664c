package vm

import (
	"bytes"
	"testing"
)

// TestSerializeRoundTrip exercises spec.md §8's bundle law:
// serialize(compile(P)) is byte-identical to
// serialize(deserialize(serialize(compile(P)))).
func TestSerializeRoundTrip(t *testing.T) {
	src := `
: double
  2 *
::
x var;
5 x !;
begin;
  x @; double; println;
  x @; 1 -; x !;
  x @; 0 =;
until
(1 2 3) [2 +] map; take-all; println;
`
	chunk, err := Compile("<test>", []byte(src))
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	first, err := SerializeChunk(chunk)
	if err != nil {
		t.Fatalf("serialize error: %v", err)
	}
	back, err := DeserializeChunk(first)
	if err != nil {
		t.Fatalf("deserialize error: %v", err)
	}
	second, err := SerializeChunk(back)
	if err != nil {
		t.Fatalf("re-serialize error: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("round trip is not byte-identical: %d bytes vs %d bytes", len(first), len(second))
	}
}

// TestDeserializedChunkStillRuns confirms the round trip preserves
// behavior, not merely bytes.
func TestDeserializedChunkStillRuns(t *testing.T) {
	chunk, err := Compile("<test>", []byte(`1 2 + print`))
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	data, err := SerializeChunk(chunk)
	if err != nil {
		t.Fatalf("serialize error: %v", err)
	}
	back, err := DeserializeChunk(data)
	if err != nil {
		t.Fatalf("deserialize error: %v", err)
	}
	got := captureOutput(t, back)
	if got != "3" {
		t.Errorf("got %q, want %q", got, "3")
	}
}

func TestDeserializeRejectsBadMagic(t *testing.T) {
	if _, err := DeserializeChunk([]byte("NOTCOSHDATA")); err == nil {
		t.Fatalf("expected an error for a bundle with the wrong magic header")
	}
}

func captureOutput(t *testing.T, chunk *Chunk) string {
	t.Helper()
	v := NewVM()
	var buf bytes.Buffer
	v.SetOutput(&buf)
	if err := v.Run(chunk); err != nil {
		t.Fatalf("run error: %v", err)
	}
	v.Out.Flush()
	return buf.String()
}
