package vm

import "testing"

func TestDBOpenPrepareExecFetch(t *testing.T) {
	src := `
c var;
":memory:" db-open; c !;
c @; "create table t (id integer, name text)" db-prepare;
() db-exec; drop;
c @; "insert into t (id, name) values (?, ?)" db-prepare;
(1 "alice") db-exec; print;
c @; "select id, name from t" db-prepare;
() db-fetch; len; print;
`
	got := run(t, src)
	if got != "11" {
		t.Errorf("got %q, want %q", got, "11")
	}
}
