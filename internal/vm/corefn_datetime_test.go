package vm

import "testing"

func TestStrptimeStrftimeRoundTrip(t *testing.T) {
	got := run(t, `"2026-07-31" "2006-01-02" strptime; "2006-01-02" strftime; print`)
	if got != "2026-07-31" {
		t.Errorf("got %q, want %q", got, "2026-07-31")
	}
}

func TestStrftimeReformatsLayout(t *testing.T) {
	got := run(t, `"2026-07-31" "2006-01-02" strptime; "02 Jan 2006" strftime; print`)
	if got != "31 Jul 2026" {
		t.Errorf("got %q, want %q", got, "31 Jul 2026")
	}
}
