package vm

import "testing"

func TestMD5Digest(t *testing.T) {
	got := run(t, `"abc" md5; print`)
	want := "900150983cd24fb0d6963f7d28e17f72"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestHashLiteralAndGet(t *testing.T) {
	got := run(t, `h( "a" 1 "b" 2 ) "b" get; print`)
	if got != "2" {
		t.Errorf("got %q, want %q", got, "2")
	}
}

func TestHashKeysGenerator(t *testing.T) {
	got := run(t, `h( "a" 1 "b" 2 ) keys; take-all; len; print`)
	if got != "2" {
		t.Errorf("got %q, want %q", got, "2")
	}
}

func TestHashEachYieldsPairs(t *testing.T) {
	got := run(t, `h( "a" 1 ) each; shift; 0 get; print`)
	if got != "a" {
		t.Errorf("got %q, want %q", got, "a")
	}
}

func TestSortAscendingLexical(t *testing.T) {
	got := run(t, `(3 1 2) sort; println`)
	want := "(\n    0: 1\n    1: 2\n    2: 3\n)\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNsortNumeric(t *testing.T) {
	got := run(t, `(10 2 33) nsort; println`)
	want := "(\n    0: 2\n    1: 10\n    2: 33\n)\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRsortDescending(t *testing.T) {
	got := run(t, `(1 2 3) rsort; println`)
	want := "(\n    0: 3\n    1: 2\n    2: 1\n)\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestJoinFormatsListWithSeparator(t *testing.T) {
	got := run(t, `(1 2 3) "," join; print`)
	if got != "1,2,3" {
		t.Errorf("got %q, want %q", got, "1,2,3")
	}
}

func TestGnthReturnsNthElement(t *testing.T) {
	got := run(t, `(10 20 30) 1 gnth; print`)
	if got != "20" {
		t.Errorf("got %q, want %q", got, "20")
	}
}

func TestListUnshiftPrepends(t *testing.T) {
	got := run(t, `(2 3) 1 unshift; println`)
	want := "(\n    0: 1\n    1: 2\n    2: 3\n)\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestListLenAndSet(t *testing.T) {
	got := run(t, `(1 2 3) len; print`)
	if got != "3" {
		t.Errorf("got %q, want %q", got, "3")
	}
	got = run(t, `(1 2 3) 1 99 set; 1 get; print`)
	if got != "99" {
		t.Errorf("got %q, want %q", got, "99")
	}
}

func TestFromJSONToJSONRoundTrip(t *testing.T) {
	got := run(t, `h( "k" 1 ) to-json; print`)
	if got != `{"k":1}` {
		t.Errorf("got %q, want %q", got, `{"k":1}`)
	}
	got = run(t, `'{"k":1}' from-json; to-json; print`)
	if got != `{"k":1}` {
		t.Errorf("got %q, want %q", got, `{"k":1}`)
	}
}

func TestGetenvSetenv(t *testing.T) {
	got := run(t, `"COSH_TEST_VAR" "hello" setenv; "COSH_TEST_VAR" getenv; print`)
	if got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}
