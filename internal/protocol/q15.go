package protocol

import "math"

// SpeedToQ15 maps a normalized speed in [-1,1] to a Q15 fixed-point integer:
// q15 = round(clamp(x,-1,1) * 32767).
func SpeedToQ15(x float64) int16 {
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}
	return int16(math.Round(x * 32767))
}

// Q15ToSpeed is the inverse mapping, accurate to within 1/32767 of the
// original input (invariant 3, spec.md §8).
func Q15ToSpeed(q int16) float64 {
	return float64(q) / 32767
}
