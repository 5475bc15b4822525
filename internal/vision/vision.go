// Package vision defines the narrow seams to the external vision models
// (face detector, landmark predictor, descriptor extractor) and to the frame
// source, plus the image plumbing between them. The matching core depends
// only on these interfaces, never on a concrete model.
package vision

import (
	"errors"
	"image"

	"github.com/kozaktomas/facegate/internal/biometric"
)

// ErrSourceExhausted is returned by frame sources that have no more frames.
var ErrSourceExhausted = errors.New("frame source exhausted")

// Detector locates faces in a frame. Results come back in detector order;
// the slice is empty when no face is present.
type Detector interface {
	Detect(frame image.Image) []biometric.BoundingBox
}

// LandmarkPredictor computes the 68-point landmark set for a detected face.
// Returns false when the landmark model is unavailable or prediction fails.
type LandmarkPredictor interface {
	Predict(frame image.Image, box biometric.BoundingBox) (biometric.Landmarks, bool)
}

// Extractor computes a fixed-length descriptor for an aligned face region.
// Returns false on failure; it never panics across this boundary.
type Extractor interface {
	Extract(region image.Image) (biometric.Descriptor, bool)
}

// FrameSource yields frames in acquisition order. Read blocks up to a
// driver-defined timeout and returns ErrSourceExhausted once no more frames
// will ever arrive. Close releases the underlying device or files.
type FrameSource interface {
	Read() (image.Image, error)
	Close() error
}
