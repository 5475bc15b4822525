package vision

import (
	"image"
	"time"
)

// PacedSource throttles another frame source to a fixed frame rate. It is
// used when replaying recorded frames so the pipeline sees camera-like
// timing.
type PacedSource struct {
	source   FrameSource
	interval time.Duration
	last     time.Time
}

// NewPacedSource wraps a source at the given frames per second. A non-positive
// fps disables pacing.
func NewPacedSource(source FrameSource, fps int) *PacedSource {
	var interval time.Duration
	if fps > 0 {
		interval = time.Second / time.Duration(fps)
	}
	return &PacedSource{source: source, interval: interval}
}

// Read returns the next frame, sleeping to keep the configured rate.
func (p *PacedSource) Read() (image.Image, error) {
	if p.interval > 0 && !p.last.IsZero() {
		if wait := p.interval - time.Since(p.last); wait > 0 {
			time.Sleep(wait)
		}
	}
	frame, err := p.source.Read()
	p.last = time.Now()
	return frame, err
}

// Close releases the wrapped source.
func (p *PacedSource) Close() error {
	return p.source.Close()
}
