// Package enroll drives the capture of face samples from a frame source and
// persists the resulting descriptors as a new subject.
package enroll

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"sync"

	"github.com/kozaktomas/facegate/internal/biometric"
	"github.com/kozaktomas/facegate/internal/quality"
	"github.com/kozaktomas/facegate/internal/vision"
)

// State represents the lifecycle state of a capture session.
type State string

// Capture session states. A session moves from Idle to Capturing and ends in
// either Completed or Aborted.
const (
	StateIdle      State = "idle"
	StateCapturing State = "capturing"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
)

// EventType identifies what happened during a capture session.
type EventType string

// Event types emitted while capturing.
const (
	EventSampleCaptured EventType = "sample_captured"
	EventQualityReject  EventType = "quality_rejected"
	EventNoFace         EventType = "no_face"
	EventMultipleFaces  EventType = "multiple_faces"
	EventReadFailure    EventType = "read_failure"
	EventExtractFailure EventType = "extract_failure"
	EventCompleted      EventType = "completed"
	EventAborted        EventType = "aborted"
)

// Event carries capture progress to listeners.
type Event struct {
	Type     EventType `json:"type"`
	Message  string    `json:"message,omitempty"`
	Captured int       `json:"captured"`
	Target   int       `json:"target"`
	Issues   []string  `json:"issues,omitempty"`
}

// Sample is one accepted face capture.
type Sample struct {
	Descriptor biometric.Descriptor
	Frame      image.Image
	Box        biometric.BoundingBox
	Quality    quality.Report
}

// Result summarizes a finished capture session.
type Result struct {
	State   State
	Samples []Sample
	Reason  string
}

// Options configures a capture session.
type Options struct {
	MinSamples      int
	MaxSamples      int
	FrameSkip       int
	MaxReadFailures int
}

// ErrAlreadyStarted is returned when Run is called on a session that is not idle.
var ErrAlreadyStarted = errors.New("capture session already started")

// Orchestrator runs a single capture session. It reads frames, applies the
// quality gate and collects descriptor samples. Each orchestrator is single
// use; create a new one per enrollment.
type Orchestrator struct {
	source    vision.FrameSource
	detector  vision.Detector
	landmarks vision.LandmarkPredictor
	extractor vision.Extractor
	gate      *quality.Gate
	opts      Options

	mu     sync.Mutex
	state  State
	events chan Event
}

// NewOrchestrator creates an idle capture session.
func NewOrchestrator(
	source vision.FrameSource,
	detector vision.Detector,
	landmarks vision.LandmarkPredictor,
	extractor vision.Extractor,
	gate *quality.Gate,
	opts Options,
) *Orchestrator {
	if opts.FrameSkip < 1 {
		opts.FrameSkip = 1
	}
	return &Orchestrator{
		source:    source,
		detector:  detector,
		landmarks: landmarks,
		extractor: extractor,
		gate:      gate,
		opts:      opts,
		state:     StateIdle,
		events:    make(chan Event, 64),
	}
}

// Events returns the progress channel. It is closed when Run returns.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// State returns the current session state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) emit(ev Event) {
	select {
	case o.events <- ev:
	default:
		// Listener fell behind, drop the event.
	}
}

// Run executes the capture loop until enough samples are collected, the
// source is exhausted or the context is cancelled. It always returns a
// Result describing how the session ended.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	o.state = StateCapturing
	o.mu.Unlock()

	defer close(o.events)

	samples, reason := o.captureLoop(ctx)

	result := &Result{Samples: samples}
	if len(samples) >= o.opts.MinSamples {
		result.State = StateCompleted
		o.setState(StateCompleted)
		o.emit(Event{
			Type:     EventCompleted,
			Message:  fmt.Sprintf("captured %d samples", len(samples)),
			Captured: len(samples),
			Target:   o.opts.MinSamples,
		})
		return result, nil
	}

	if reason == "" {
		reason = fmt.Sprintf("captured %d of minimum %d samples", len(samples), o.opts.MinSamples)
	}
	result.State = StateAborted
	result.Reason = reason
	o.setState(StateAborted)
	o.emit(Event{
		Type:     EventAborted,
		Message:  reason,
		Captured: len(samples),
		Target:   o.opts.MinSamples,
	})
	return result, nil
}

// captureLoop collects samples until the max is reached or the session has to
// stop. It returns the samples and a non-empty reason when the stop was
// abnormal (cancellation or too many read failures).
func (o *Orchestrator) captureLoop(ctx context.Context) ([]Sample, string) {
	var (
		samples      []Sample
		frameIndex   int
		readFailures int
	)

	for len(samples) < o.opts.MaxSamples {
		select {
		case <-ctx.Done():
			return samples, "capture cancelled"
		default:
		}

		frame, err := o.source.Read()
		if err != nil {
			if errors.Is(err, vision.ErrSourceExhausted) {
				return samples, ""
			}
			readFailures++
			o.emit(Event{
				Type:     EventReadFailure,
				Message:  err.Error(),
				Captured: len(samples),
				Target:   o.opts.MinSamples,
			})
			if readFailures >= o.opts.MaxReadFailures {
				return samples, fmt.Sprintf("aborted after %d consecutive read failures", readFailures)
			}
			continue
		}
		readFailures = 0

		process := frameIndex%o.opts.FrameSkip == 0
		frameIndex++
		if !process {
			continue
		}

		if sample, ok := o.processFrame(frame, len(samples)); ok {
			samples = append(samples, sample)
			o.emit(Event{
				Type:     EventSampleCaptured,
				Message:  fmt.Sprintf("sample %d of %d", len(samples), o.opts.MinSamples),
				Captured: len(samples),
				Target:   o.opts.MinSamples,
			})
		}
	}

	return samples, ""
}

func (o *Orchestrator) processFrame(frame image.Image, captured int) (Sample, bool) {
	boxes := o.detector.Detect(frame)
	switch {
	case len(boxes) == 0:
		o.emit(Event{
			Type:     EventNoFace,
			Message:  "no face in frame",
			Captured: captured,
			Target:   o.opts.MinSamples,
		})
		return Sample{}, false
	case len(boxes) > 1:
		o.emit(Event{
			Type:     EventMultipleFaces,
			Message:  fmt.Sprintf("%d faces in frame, expected one", len(boxes)),
			Captured: captured,
			Target:   o.opts.MinSamples,
		})
		return Sample{}, false
	}
	box := boxes[0]

	crop, ok := vision.ExtractRegion(frame, box)
	if !ok {
		o.emit(Event{
			Type:     EventQualityReject,
			Message:  "face region outside frame",
			Captured: captured,
			Target:   o.opts.MinSamples,
		})
		return Sample{}, false
	}

	var landmarks biometric.Landmarks
	if o.landmarks != nil {
		landmarks, _ = o.landmarks.Predict(frame, box)
	}

	report := o.gate.ValidateAll(crop, box, landmarks, nil)
	if !report.IsValid {
		o.emit(Event{
			Type:     EventQualityReject,
			Message:  "quality checks failed",
			Captured: captured,
			Target:   o.opts.MinSamples,
			Issues:   report.Issues,
		})
		return Sample{}, false
	}

	descriptor, ok := o.extractor.Extract(crop)
	if !ok {
		o.emit(Event{
			Type:     EventExtractFailure,
			Message:  "descriptor extraction failed",
			Captured: captured,
			Target:   o.opts.MinSamples,
		})
		return Sample{}, false
	}
	if !descriptor.Valid() {
		log.Printf("Extractor returned descriptor with %d dimensions, want %d",
			len(descriptor), biometric.DescriptorDim)
		return Sample{}, false
	}

	return Sample{
		Descriptor: descriptor,
		Frame:      frame,
		Box:        box,
		Quality:    report,
	}, true
}
