// Package biometric provides the core face descriptor types and the
// distance-based matching engine shared by enrollment and identification.
package biometric

// DescriptorDim is the fixed length of a face descriptor vector.
const DescriptorDim = 128

// Descriptor is a fixed-length face descriptor vector. Two descriptors are
// comparable only when both have the same length.
type Descriptor []float32

// Valid reports whether the descriptor has the expected dimension.
func (d Descriptor) Valid() bool {
	return len(d) == DescriptorDim
}

// BoundingBox is a face location in frame coordinates (pixel edges).
type BoundingBox struct {
	Top    int
	Right  int
	Bottom int
	Left   int
}

// Width returns the box width in pixels.
func (b BoundingBox) Width() int {
	return b.Right - b.Left
}

// Height returns the box height in pixels.
func (b BoundingBox) Height() int {
	return b.Bottom - b.Top
}

// Center returns the box center coordinates.
func (b BoundingBox) Center() (int, int) {
	return (b.Left + b.Right) / 2, (b.Top + b.Bottom) / 2
}

// Valid reports whether the box has positive area (right > left, bottom > top).
func (b BoundingBox) Valid() bool {
	return b.Right > b.Left && b.Bottom > b.Top
}

// LandmarkCount is the number of points in the 68-point facial landmark scheme.
const LandmarkCount = 68

// Point is a 2-D landmark coordinate in frame space.
type Point struct {
	X int
	Y int
}

// Landmarks is an ordered sequence of facial landmark points. A complete set
// has exactly LandmarkCount points; anything shorter is treated as absent.
type Landmarks []Point

// Landmark indices in the 68-point scheme.
const (
	landmarkLeftEyeOuter  = 36
	landmarkRightEyeOuter = 45
)

// Complete reports whether the full 68-point set is present.
func (l Landmarks) Complete() bool {
	return len(l) == LandmarkCount
}

// Candidate is one enrolled descriptor in a matching population.
// Several candidates may share a subject ID (one per enrollment sample).
type Candidate struct {
	SubjectID  int64
	Descriptor Descriptor
}

// Match is the outcome of comparing a probe descriptor against a population.
type Match struct {
	SubjectID int64
	Distance  float64
}
