package entity

import "testing"

func TestSeverityLadder(t *testing.T) {
	order := []string{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for i := 1; i < len(order); i++ {
		if SeverityRank(order[i]) <= SeverityRank(order[i-1]) {
			t.Errorf("Expected %s > %s on the ladder", order[i], order[i-1])
		}
	}
	if SeverityRank("unknown") != 0 {
		t.Errorf("Unknown severity should rank 0, got %d", SeverityRank("unknown"))
	}
}

func TestNextSeverity(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{SeverityLow, SeverityMedium, true},
		{SeverityMedium, SeverityHigh, true},
		{SeverityHigh, SeverityCritical, true},
		{SeverityCritical, "", false},
		{"unknown", "", false},
	}
	for _, c := range cases {
		got, ok := NextSeverity(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("NextSeverity(%s) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestIsValidItemResult(t *testing.T) {
	for _, valid := range []string{ItemResultPass, ItemResultFail, ItemResultNA} {
		if !IsValidItemResult(valid) {
			t.Errorf("Expected %q to be valid", valid)
		}
	}
	for _, invalid := range []string{"", "PASS", "maybe"} {
		if IsValidItemResult(invalid) {
			t.Errorf("Expected %q to be invalid", invalid)
		}
	}
}
