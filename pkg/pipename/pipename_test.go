package pipename

import "testing"

func TestName(t *testing.T) {
	cases := map[string]string{
		`\\.\pipe\substrate-agent`:   "substrate-agent",
		`.\pipe\substrate-agent`:     "substrate-agent",
		`\pipe\substrate-agent`:      "substrate-agent",
		`//./pipe/substrate-agent`:   "substrate-agent",
		`"\\.\pipe\substrate-agent"`: "substrate-agent",
		`\\.\PIPE\Substrate-Agent`:   "Substrate-Agent",
		`substrate-agent`:            "substrate-agent",
		`  substrate-agent  `:        "substrate-agent",
	}
	for in, want := range cases {
		if got := Name(in); got != want {
			t.Errorf("Name(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCanonical(t *testing.T) {
	got := Canonical(`.\pipe\substrate-agent`)
	want := `\\.\pipe\substrate-agent`
	if got != want {
		t.Errorf("Canonical = %q, want %q", got, want)
	}
}
