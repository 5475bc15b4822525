package vision

import (
	"image"
	stddraw "image/draw"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/kozaktomas/facegate/internal/biometric"
)

// RegionPadding is the margin added around a detected face before extraction.
const RegionPadding = 20

// ExtractRegion copies the face area out of the frame with RegionPadding
// pixels of margin, clamped to the frame bounds. Returns false when the
// clamped region is empty.
func ExtractRegion(frame image.Image, box biometric.BoundingBox) (image.Image, bool) {
	bounds := frame.Bounds()

	top := max(bounds.Min.Y, box.Top-RegionPadding)
	left := max(bounds.Min.X, box.Left-RegionPadding)
	bottom := min(bounds.Max.Y, box.Bottom+RegionPadding)
	right := min(bounds.Max.X, box.Right+RegionPadding)

	if right <= left || bottom <= top {
		return nil, false
	}

	rect := image.Rect(left, top, right, bottom)
	region := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	stddraw.Draw(region, region.Bounds(), frame, rect.Min, stddraw.Src)
	return region, true
}

// Resize scales an image to the given dimensions with bilinear filtering.
func Resize(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// Landmark ranges for the two eyes in the 68-point scheme.
const (
	leftEyeStart  = 36
	leftEyeEnd    = 42
	rightEyeStart = 42
	rightEyeEnd   = 48
)

// AlignFace rotates the frame so the eye line is level, then crops a face
// region around the eye center scaled to the desired square size. The crop
// width spans 2.5 eye distances. Returns false without a complete landmark
// set or when the eyes coincide.
func AlignFace(frame image.Image, landmarks biometric.Landmarks, size int) (*image.RGBA, bool) {
	if !landmarks.Complete() || size <= 0 {
		return nil, false
	}

	lx, ly := eyeCenter(landmarks[leftEyeStart:leftEyeEnd])
	rx, ry := eyeCenter(landmarks[rightEyeStart:rightEyeEnd])

	dx := rx - lx
	dy := ry - ly
	eyeDistance := math.Hypot(dx, dy)
	if eyeDistance == 0 {
		return nil, false
	}

	cx := (lx + rx) / 2
	cy := (ly + ry) / 2
	angle := math.Atan2(dy, dx)
	scale := float64(size) / (eyeDistance * 2.5)

	// Map source coordinates into the destination: translate the eye center
	// to the crop center, undoing the in-plane rotation.
	cos := math.Cos(-angle) * scale
	sin := math.Sin(-angle) * scale
	half := float64(size) / 2

	s2d := f64.Aff3{
		cos, -sin, half - cos*cx + sin*cy,
		sin, cos, half - sin*cx - cos*cy,
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Transform(dst, s2d, frame, frame.Bounds(), draw.Src, nil)
	return dst, true
}

func eyeCenter(points biometric.Landmarks) (float64, float64) {
	var sx, sy float64
	for _, p := range points {
		sx += float64(p.X)
		sy += float64(p.Y)
	}
	n := float64(len(points))
	return sx / n, sy / n
}
