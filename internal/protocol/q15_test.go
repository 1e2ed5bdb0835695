package protocol

import "testing"

func TestQ15_RoundTrip_WithinBound(t *testing.T) {
	const epsilon = 1.0 / 32767
	samples := []float64{-1, -0.999, -0.5, -0.0001, 0, 0.0001, 0.33333, 0.5, 0.999, 1}
	for _, s := range samples {
		q := SpeedToQ15(s)
		back := Q15ToSpeed(q)
		diff := back - s
		if diff < 0 {
			diff = -diff
		}
		if diff > epsilon+1e-12 {
			t.Fatalf("speed %v round-tripped to %v (q15=%d), diff %v exceeds %v", s, back, q, diff, epsilon)
		}
	}
}

func TestQ15_ClampsOutOfRange(t *testing.T) {
	if got := SpeedToQ15(2.0); got != 32767 {
		t.Fatalf("expected clamp to 32767, got %d", got)
	}
	if got := SpeedToQ15(-2.0); got != -32767 {
		t.Fatalf("expected clamp to -32767, got %d", got)
	}
}
