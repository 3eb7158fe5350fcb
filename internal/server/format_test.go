package server

import (
	"math"
	"testing"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0.00 B"},
		{10, "10.00 B"},
		{1023, "1023.00 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{1 << 20, "1.00 MB"},
		{5 << 30, "5.00 GB"},
		{1 << 40, "1.00 TB"},
		{1 << 50, "1.00 PB"},
		{1 << 60, "1024.00 PB"},
		{-5, "0.00 B"},
	}

	for _, tt := range tests {
		if got := FormatSize(tt.in); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestScaleSizeMonotonicUnits(t *testing.T) {
	rank := map[string]int{"B": 0, "KB": 1, "MB": 2, "GB": 3, "TB": 4, "PB": 5}

	prev := 0
	for n := int64(1); n > 0 && n < math.MaxInt64/3; n = n*3 + 1 {
		v, unit := scaleSize(n)
		r := rank[unit]
		if r < prev {
			t.Fatalf("unit for %d went down to %s", n, unit)
		}
		prev = r
		if unit != "PB" && v >= 1024 {
			t.Fatalf("scaleSize(%d) = %f %s, want < 1024", n, v, unit)
		}
	}
}
