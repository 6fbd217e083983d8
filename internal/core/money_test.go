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
		{".5", 50, true},
		{"0", 0, true},
		{"-0", 0, true},
		{"-4.50", -450, true},
		{"+7", 700, true},
		{"1.005", 101, true},   // half away from zero
		{"-1.005", -101, true}, // half away from zero
		{"1.004", 100, true},
		{" 2.50 ", 250, true},
		{"0099999999.99", MaxAmountCents, true},
		{"100000000", 0, false},
		{"99999999.995", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"1e3", 100000, true},
		{"1E2", 10000, true},
		{"1.5e-1", 15, true},
		{"-2.5e+1", -2500, true},
		{"5e-3", 1, true},
		{"4e-3", 0, true},
		{"1e-400", 0, true},
		{"0e999", 0, true},
		{"9.999999999e7", MaxAmountCents, true},
		{"1e8", 0, false},
		{"1e99999999999999999999", 0, false},
		{"1e", 0, false},
		{"e5", 0, false},
		{"1e2.5", 0, false},
		{"1e+-2", 0, false},
		{"-", 0, false},
		{".", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{
		0:     "0.00",
		5:     "0.05",
		-5:    "-0.05",
		-450:  "-4.50",
		12345: "123.45",
	}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).String(); got != want {
			t.Fatalf("%d: expected %s, got %s", cents, want, got)
		}
	}
}

func TestMoneyUnmarshalJSON(t *testing.T) {
	var m Money
	if err := json.Unmarshal([]byte(`-4.5`), &m); err != nil || m.Cents != -450 {
		t.Fatalf("number: got %d err=%v", m.Cents, err)
	}
	if err := json.Unmarshal([]byte(`"12.34"`), &m); err != nil || m.Cents != 1234 {
		t.Fatalf("string: got %d err=%v", m.Cents, err)
	}
	if err := json.Unmarshal([]byte(`1e2`), &m); err != nil || m.Cents != 10000 {
		t.Fatalf("exponent: got %d err=%v", m.Cents, err)
	}
	if err := json.Unmarshal([]byte(`"abc"`), &m); err == nil {
		t.Fatalf("expected error for non-numeric string")
	}
}
