package biometric

import "math"

// EyeLineAngle derives the in-plane face rotation in degrees from the slope
// of the line through the outer eye corners. Positive angles tilt clockwise.
// Returns false when the landmark set is incomplete.
func (l Landmarks) EyeLineAngle() (float64, bool) {
	if !l.Complete() {
		return 0, false
	}

	left := l[landmarkLeftEyeOuter]
	right := l[landmarkRightEyeOuter]

	dx := float64(right.X - left.X)
	dy := float64(right.Y - left.Y)
	return math.Atan2(dy, dx) * 180 / math.Pi, true
}
