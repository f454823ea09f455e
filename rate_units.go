package main

import (
	"strconv"
	"strings"
)

// rateUnits is ordered smallest to largest; formatRate picks the largest unit
// whose mantissa is still >= 1.
var rateUnits = []struct {
	suffix string
	scale  float64
}{
	{"H/s", 1},
	{"KH/s", 1e3},
	{"MH/s", 1e6},
	{"GH/s", 1e9},
	{"TH/s", 1e12},
}

var byteUnits = []struct {
	suffix string
	scale  float64
}{
	{"B", 1},
	{"KB", 1e3},
	{"MB", 1e6},
	{"GB", 1e9},
	{"TB", 1e12},
}

// formatRate renders a hashrate in the largest unit with mantissa >= 1.
// Base unit keeps one decimal, scaled units two.
func formatRate(v float64) string {
	if v <= 0 {
		return "0.0 " + rateUnits[0].suffix
	}
	idx := 0
	for i := len(rateUnits) - 1; i > 0; i-- {
		if v >= rateUnits[i].scale {
			idx = i
			break
		}
	}
	mantissa := v / rateUnits[idx].scale
	if idx == 0 {
		return strconv.FormatFloat(mantissa, 'f', 1, 64) + " " + rateUnits[0].suffix
	}
	return strconv.FormatFloat(mantissa, 'f', 2, 64) + " " + rateUnits[idx].suffix
}

// parseRate converts a textual rate back to base H/s. Unrecognized input
// yields 0; callers must treat 0 as "no data", never as a measured zero.
func parseRate(text string) float64 {
	return parseScaled(text, rateUnits)
}

// formatByteSize renders a byte count the same way formatRate renders rates.
func formatByteSize(v float64) string {
	if v <= 0 {
		return "0.0 " + byteUnits[0].suffix
	}
	idx := 0
	for i := len(byteUnits) - 1; i > 0; i-- {
		if v >= byteUnits[i].scale {
			idx = i
			break
		}
	}
	mantissa := v / byteUnits[idx].scale
	if idx == 0 {
		return strconv.FormatFloat(mantissa, 'f', 1, 64) + " " + byteUnits[0].suffix
	}
	return strconv.FormatFloat(mantissa, 'f', 2, 64) + " " + byteUnits[idx].suffix
}

// parseByteSize converts a textual size back to bytes; 0 on unrecognized input.
func parseByteSize(text string) float64 {
	return parseScaled(text, byteUnits)
}

func parseScaled(text string, units []struct {
	suffix string
	scale  float64
}) float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}

	scale := 0.0
	numPart := text
	// Match longest suffix first so "KH/s" never matches the bare base unit.
	for i := len(units) - 1; i >= 0; i-- {
		if strings.HasSuffix(strings.ToUpper(text), strings.ToUpper(units[i].suffix)) {
			scale = units[i].scale
			numPart = strings.TrimSpace(text[:len(text)-len(units[i].suffix)])
			break
		}
	}
	if scale == 0 {
		// A bare number is taken as base units; engines frequently report
		// hashrate as a plain decimal string.
		scale = 1
	}
	if numPart == "" {
		return 0
	}
	v, err := strconv.ParseFloat(numPart, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v * scale
}
