package util

import (
	"encoding/json"
	"math"
	"testing"
)

func TestFiniteExamples(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want float64
	}{
		{"nan", math.NaN(), 0},
		{"pos inf", math.Inf(1), 0},
		{"neg inf", math.Inf(-1), 0},
		{"garbage string", "abc", 0},
		{"decimal string", "3.5", 3.5},
		{"padded string", "  42.25 ", 42.25},
		{"nan string", "NaN", 0},
		{"inf string", "Inf", 0},
		{"empty string", "", 0},
		{"nil", nil, 0},
		{"float", 12.75, 12.75},
		{"negative float", -4.2, -4.2},
		{"int", 7, 7},
		{"json number", json.Number("1e3"), 1000},
		{"hex string", "0x10", 0},
		{"hex float string", "0x1p-2", 0},
		{"signed hex string", "-0X1A", 0},
		{"hex json number", json.Number("0x10"), 0},
		{"bool", true, 0},
		{"map", map[string]any{"a": 1}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Finite(tc.in)
			if got != tc.want {
				t.Fatalf("Finite(%v) = %v, want %v", tc.in, got, tc.want)
			}
			if math.IsNaN(got) || math.IsInf(got, 0) {
				t.Fatalf("Finite(%v) returned non-finite %v", tc.in, got)
			}
		})
	}
}

func TestFiniteAlwaysFinite(t *testing.T) {
	inputs := []any{
		math.MaxFloat64, -math.MaxFloat64, math.SmallestNonzeroFloat64,
		"1e400", "-1e400", "0x1p-2", "+7", ".5", "5.", "1_000",
	}
	for _, in := range inputs {
		got := Finite(in)
		if math.IsNaN(got) || math.IsInf(got, 0) {
			t.Fatalf("Finite(%v) returned non-finite %v", in, got)
		}
	}
}

func TestNonNegative(t *testing.T) {
	if got := NonNegative("-12"); got != 0 {
		t.Fatalf("expected clamp to 0, got %v", got)
	}
	if got := NonNegative("12"); got != 12 {
		t.Fatalf("expected 12, got %v", got)
	}
}

func TestParseIntDefault(t *testing.T) {
	if got := ParseIntDefault("", 5); got != 5 {
		t.Fatalf("expected default, got %d", got)
	}
	if got := ParseIntDefault("x", 5); got != 5 {
		t.Fatalf("expected default on garbage, got %d", got)
	}
	if got := ParseIntDefault("17", 5); got != 17 {
		t.Fatalf("expected 17, got %d", got)
	}
}
