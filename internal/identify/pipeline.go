// Package identify matches faces from a frame source against the enrolled
// population and records every attempt in the access log.
package identify

import (
	"context"
	"errors"
	"image"
	"log"
	"sync"
	"time"

	"github.com/kozaktomas/facegate/internal/biometric"
	"github.com/kozaktomas/facegate/internal/cache"
	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/vision"
)

// MatchResult is the outcome of matching one detected face.
type MatchResult struct {
	SubjectID  *int64    `json:"subject_id,omitempty"`
	Distance   float64   `json:"distance"`
	Confidence float64   `json:"confidence"`
	Success    bool      `json:"success"`
	Timestamp  time.Time `json:"timestamp"`

	Box biometric.BoundingBox `json:"box"`
}

// Options configures the identification loop.
type Options struct {
	FrameSkip        int
	MaxFacesPerFrame int
	MaxReadFailures  int
}

// defaultMaxReadFailures bounds consecutive frame-read retries when the
// caller leaves Options.MaxReadFailures unset.
const defaultMaxReadFailures = 10

// Identifier matches single descriptors against the population snapshot and
// records each attempt in the access log.
type Identifier struct {
	cache   *cache.DescriptorCache
	matcher *biometric.Matcher
	logs    database.AccessLogStore
}

// NewIdentifier creates an identifier. The access log store may be nil to
// disable audit records.
func NewIdentifier(descriptorCache *cache.DescriptorCache, matcher *biometric.Matcher, logs database.AccessLogStore) *Identifier {
	return &Identifier{cache: descriptorCache, matcher: matcher, logs: logs}
}

// Identify matches a descriptor against the current population snapshot.
// The nearest enrolled subject within the threshold wins; every attempt is
// logged, successful or not. The scan is always linear over the full
// snapshot: the approximate index stays reserved for top-K lookups where a
// near-miss is acceptable.
func (i *Identifier) Identify(ctx context.Context, descriptor biometric.Descriptor) (MatchResult, error) {
	snap, err := i.cache.Current(ctx)
	if err != nil {
		return MatchResult{}, err
	}

	result := MatchResult{Timestamp: time.Now()}
	for _, match := range biometric.IdentifyTopK(descriptor, snap.Entries, 1) {
		result.Distance = match.Distance
		if match.Distance <= i.matcher.Threshold() {
			id := match.SubjectID
			result.SubjectID = &id
			result.Confidence = i.matcher.Confidence(match.Distance)
			result.Success = true
		}
	}

	i.logAttempt(ctx, result)
	return result, nil
}

func (i *Identifier) logAttempt(ctx context.Context, result MatchResult) {
	if i.logs == nil {
		return
	}
	entry := database.AccessLogEntry{
		AccessType: database.AccessIdentification,
		Result:     database.AccessFailure,
	}
	if result.Success {
		entry.SubjectID = result.SubjectID
		entry.Result = database.AccessSuccess
		confidence := result.Confidence
		entry.Confidence = &confidence
	}
	if err := i.logs.CreateAccessLog(ctx, entry); err != nil {
		log.Printf("Failed to write access log: %v", err)
	}
}

// Pipeline runs continuous identification on a frame source. Results are
// published on a channel; access log writes happen inline so a slow consumer
// cannot lose audit records.
type Pipeline struct {
	*Identifier

	source    vision.FrameSource
	detector  vision.Detector
	extractor vision.Extractor
	opts      Options

	results  chan MatchResult
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewPipeline creates a pipeline over the given source. The access log store
// may be nil to disable audit records.
func NewPipeline(
	source vision.FrameSource,
	detector vision.Detector,
	extractor vision.Extractor,
	descriptorCache *cache.DescriptorCache,
	matcher *biometric.Matcher,
	logs database.AccessLogStore,
	opts Options,
) *Pipeline {
	if opts.FrameSkip < 1 {
		opts.FrameSkip = 1
	}
	if opts.MaxFacesPerFrame < 1 {
		opts.MaxFacesPerFrame = 1
	}
	if opts.MaxReadFailures < 1 {
		opts.MaxReadFailures = defaultMaxReadFailures
	}
	return &Pipeline{
		Identifier: NewIdentifier(descriptorCache, matcher, logs),
		source:     source,
		detector:   detector,
		extractor:  extractor,
		opts:       opts,
		results:    make(chan MatchResult, 64),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Results returns the match channel. It is closed when the loop exits.
func (p *Pipeline) Results() <-chan MatchResult {
	return p.results
}

// Start launches the identification loop in a worker goroutine.
func (p *Pipeline) Start(ctx context.Context) {
	go p.run(ctx)
}

// Stop asks the loop to exit and waits for the frame source to be released.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
}

func (p *Pipeline) run(ctx context.Context) {
	defer close(p.done)
	defer close(p.results)
	defer func() {
		if err := p.source.Close(); err != nil {
			log.Printf("Failed to close frame source: %v", err)
		}
	}()

	frameIndex := 0
	readFailures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		default:
		}

		frame, err := p.source.Read()
		if err != nil {
			if errors.Is(err, vision.ErrSourceExhausted) {
				return
			}
			readFailures++
			log.Printf("Frame read failed: %v", err)
			if readFailures >= p.opts.MaxReadFailures {
				log.Printf("Stopping identification after %d consecutive read failures", readFailures)
				return
			}
			continue
		}
		readFailures = 0

		process := frameIndex%p.opts.FrameSkip == 0
		frameIndex++
		if !process {
			continue
		}

		p.processFrame(ctx, frame)
	}
}

func (p *Pipeline) processFrame(ctx context.Context, frame image.Image) {
	boxes := p.detector.Detect(frame)
	if len(boxes) == 0 {
		return
	}
	if len(boxes) > p.opts.MaxFacesPerFrame {
		boxes = boxes[:p.opts.MaxFacesPerFrame]
	}

	for _, box := range boxes {
		crop, ok := vision.ExtractRegion(frame, box)
		if !ok {
			continue
		}
		descriptor, ok := p.extractor.Extract(crop)
		if !ok || !descriptor.Valid() {
			continue
		}

		result, err := p.Identify(ctx, descriptor)
		if err != nil {
			log.Printf("Identification failed: %v", err)
			continue
		}
		result.Box = box

		select {
		case p.results <- result:
		default:
			// Consumer fell behind, drop the result. The access log
			// entry was already written.
		}
	}
}
