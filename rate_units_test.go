package main

import (
	"math"
	"testing"
)

func TestFormatRateUnits(t *testing.T) {
	cases := []struct {
		rate float64
		want string
	}{
		{0, "0.0 H/s"},
		{-5, "0.0 H/s"},
		{1, "1.0 H/s"},
		{999, "999.0 H/s"},
		{1000, "1.00 KH/s"},
		{1250, "1.25 KH/s"},
		{32500, "32.50 KH/s"},
		{1_000_000, "1.00 MH/s"},
		{2_500_000_000, "2.50 GH/s"},
		{7_200_000_000_000, "7.20 TH/s"},
	}
	for _, tc := range cases {
		if got := formatRate(tc.rate); got != tc.want {
			t.Errorf("formatRate(%v) = %q, want %q", tc.rate, got, tc.want)
		}
	}
}

func TestParseRateRoundTrip(t *testing.T) {
	rates := []float64{1, 42, 999, 1000, 32500, 1.25e6, 4.2e9, 999e12}
	for _, rate := range rates {
		text := formatRate(rate)
		back := parseRate(text)
		if back <= 0 {
			t.Fatalf("parseRate(%q) = %v, want > 0", text, back)
		}
		// Formatting rounds the mantissa to two decimals; allow 1%.
		if diff := math.Abs(back-rate) / rate; diff > 0.01 {
			t.Errorf("round trip %v -> %q -> %v drifted %.4f", rate, text, back, diff)
		}
	}
}

func TestParseRateVariants(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"1.25 MH/s", 1.25e6},
		{"1.25MH/s", 1.25e6},
		{"1.25 mh/s", 1.25e6},
		{"  900 H/s  ", 900},
		{"750", 750}, // bare number is base units
	}
	for _, tc := range cases {
		if got := parseRate(tc.in); math.Abs(got-tc.want) > 1e-6 {
			t.Errorf("parseRate(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseRateGarbage(t *testing.T) {
	for _, in := range []string{"", "   ", "fast", "MH/s", "-3 KH/s", "1.2.3 GH/s"} {
		if got := parseRate(in); got != 0 {
			t.Errorf("parseRate(%q) = %v, want 0", in, got)
		}
	}
}

func TestParseByteSize(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"512 B", 512},
		{"1 KB", 1000},
		{"2.5 MB", 2.5e6},
		{"0.5 TB", 0.5e12},
		{"junk", 0},
	}
	for _, tc := range cases {
		if got := parseByteSize(tc.in); math.Abs(got-tc.want) > 1e-6 {
			t.Errorf("parseByteSize(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
