package main

import (
	"math"
	"testing"
)

func TestNormalizeAngle(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi / 2, math.Pi / 2},
		{-math.Pi / 2, -math.Pi / 2},
		{2*math.Pi + 1, 1},
		{-2*math.Pi - 1, -1},
		{7 * math.Pi / 2, -math.Pi / 2},
	}
	for _, tt := range tests {
		if got := NormalizeAngle(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("NormalizeAngle(%f): expected %f, got %f", tt.in, tt.want, got)
		}
	}
}

func TestNormalizeAngleHuge(t *testing.T) {
	for _, a := range []float64{1e17, -1e17, 1e300, -math.MaxFloat64} {
		got := NormalizeAngle(a)
		if math.IsNaN(got) || got < -math.Pi || got > math.Pi {
			t.Errorf("NormalizeAngle(%g): expected a value in [-pi, pi], got %f", a, got)
		}
	}
}

func TestSanitizeName(t *testing.T) {
	if got := sanitizeName("   "); got != "Player" {
		t.Errorf("expected Player, got %q", got)
	}
	if got := sanitizeName("abcdefghijklmnopqrstuvwxyz"); len([]rune(got)) != maxNameLen {
		t.Errorf("expected %d runes, got %q", maxNameLen, got)
	}
}
