package core

import (
	"encoding/json"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{"1.004", 100, true},
		{" 2.50 ", 250, true},
		{"$7.10", 710, true},
		{"-1", -100, true},
		{"-2.345", -235, true},
		{"0", 0, false},
		{"0.001", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
		{"999999999999.99", 99999999999999, true},
		{"-999999999999.99", -99999999999999, true},
		{"1000000000000", 0, false},
		{"1000000000000000", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestParseAmountSafe(t *testing.T) {
	if got := ParseAmountSafe("nope"); got.Cents != 0 {
		t.Fatalf("expected zero for garbage, got %d", got.Cents)
	}
	if got := ParseAmountSafe("0"); got.Cents != 0 {
		t.Fatalf("expected zero, got %d", got.Cents)
	}
	if got := ParseAmountSafe("12.5"); got.Cents != 1250 {
		t.Fatalf("expected 1250, got %d", got.Cents)
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{
		0:      "$0.00",
		1234:   "$12.34",
		5:      "$0.05",
		-300:   "-$3.00",
		100000: "$1000.00",
	}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).String(); got != want {
			t.Errorf("%d: expected %q, got %q", cents, want, got)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{Money{Cents: 1250}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"amount":12.50}` {
		t.Fatalf("unexpected encoding %s", b)
	}

	for in, want := range map[string]int64{`12.5`: 1250, `"3,10"`: 310, `null`: 0, `-1`: -100} {
		var m Money
		if err := json.Unmarshal([]byte(in), &m); err != nil {
			t.Fatalf("%s: unexpected error %v", in, err)
		}
		if m.Cents != want {
			t.Fatalf("%s: expected %d, got %d", in, want, m.Cents)
		}
	}

	var m Money
	if err := json.Unmarshal([]byte(`"ten"`), &m); err == nil {
		t.Fatalf("expected error for non-numeric string")
	}
}
