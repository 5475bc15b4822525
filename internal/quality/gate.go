// Package quality implements the objective checks a face sample must pass
// before it is trusted for enrollment: sharpness, lighting, in-plane rotation
// and face size. The gate is a pure function of its inputs and configuration.
package quality

import (
	"fmt"
	"image"
	"math"

	"github.com/kozaktomas/facegate/internal/biometric"
)

// Lighting acceptance window on the luminance channel.
const (
	minMeanLuminance = 30
	maxMeanLuminance = 220
	minLuminanceStd  = 15

	optimalLuminance = 125 // brightness-centering optimum
	stdNormalizer    = 50  // spread score saturates at this stddev
)

// Gate evaluates face crops against configurable quality thresholds.
type Gate struct {
	sharpnessThreshold float64 // minimum Laplacian variance
	angleThreshold     float64 // maximum absolute rotation in degrees
	minFaceSize        int     // minimum face edge in pixels
}

// Report is the outcome of running all quality checks on one face sample.
// IsValid is the conjunction of the four per-check booleans. Issues holds one
// human-readable entry per failed check, in check order. AngleChecked is
// false when no angle source was available; the angle check is then treated
// as passed, and the weakening stays observable here.
type Report struct {
	SharpnessOK bool
	LightingOK  bool
	AngleOK     bool
	SizeOK      bool

	SharpnessScore float64
	LightingScore  float64
	Angle          float64
	AngleChecked   bool

	IsValid bool
	Issues  []string
}

// NewGate creates a quality gate with the given thresholds.
func NewGate(sharpnessThreshold, angleThreshold float64, minFaceSize int) *Gate {
	return &Gate{
		sharpnessThreshold: sharpnessThreshold,
		angleThreshold:     angleThreshold,
		minFaceSize:        minFaceSize,
	}
}

// CheckSharpness measures focus blur as the variance of a 3x3 Laplacian
// response over the grayscale crop. Valid iff the variance reaches the
// configured threshold.
func (g *Gate) CheckSharpness(crop image.Image) (bool, float64) {
	gray := toGrayscale(crop)
	variance := laplacianVariance(gray)
	return variance >= g.sharpnessThreshold, variance
}

// CheckLighting validates mean luminance and luminance spread, and returns a
// normalized score combining a brightness-centering term and a spread term.
func (g *Gate) CheckLighting(crop image.Image) (bool, float64) {
	gray := toGrayscale(crop)
	mean, std := luminanceStats(gray)

	brightnessScore := clamp01(1 - math.Abs(mean-optimalLuminance)/optimalLuminance)
	spreadScore := clamp01(std / stdNormalizer)
	score := (brightnessScore + spreadScore) / 2

	valid := mean >= minMeanLuminance && mean <= maxMeanLuminance && std >= minLuminanceStd
	return valid, score
}

// CheckAngle validates an in-plane rotation angle against the threshold.
func (g *Gate) CheckAngle(angle float64) bool {
	return math.Abs(angle) <= g.angleThreshold
}

// CheckSize validates that the smaller face edge meets the minimum size.
func (g *Gate) CheckSize(box biometric.BoundingBox) bool {
	return min(box.Width(), box.Height()) >= g.minFaceSize
}

// ValidateAll runs every check and accumulates failure reasons. The angle is
// taken from the precomputed value when available, derived from the landmark
// eye line otherwise; with neither source the angle check is skipped and
// counted as passed (AngleChecked = false).
func (g *Gate) ValidateAll(crop image.Image, box biometric.BoundingBox, landmarks biometric.Landmarks, angle *float64) Report {
	var report Report

	var sharpness, lighting float64
	report.SharpnessOK, sharpness = g.CheckSharpness(crop)
	report.SharpnessScore = sharpness
	if !report.SharpnessOK {
		report.Issues = append(report.Issues, fmt.Sprintf("low sharpness (score: %.2f)", sharpness))
	}

	report.LightingOK, lighting = g.CheckLighting(crop)
	report.LightingScore = lighting
	if !report.LightingOK {
		report.Issues = append(report.Issues, fmt.Sprintf("poor lighting (score: %.2f)", lighting))
	}

	switch {
	case angle != nil:
		report.Angle = *angle
		report.AngleChecked = true
	default:
		if derived, ok := landmarks.EyeLineAngle(); ok {
			report.Angle = derived
			report.AngleChecked = true
		}
	}

	if report.AngleChecked {
		report.AngleOK = g.CheckAngle(report.Angle)
		if !report.AngleOK {
			report.Issues = append(report.Issues, fmt.Sprintf("face angle too large (%.1f degrees)", report.Angle))
		}
	} else {
		// No angle source. The check is skipped, not silently failed.
		report.AngleOK = true
	}

	report.SizeOK = g.CheckSize(box)
	if !report.SizeOK {
		report.Issues = append(report.Issues, fmt.Sprintf("face too small (min: %dpx)", g.minFaceSize))
	}

	report.IsValid = report.SharpnessOK && report.LightingOK && report.AngleOK && report.SizeOK
	return report
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
