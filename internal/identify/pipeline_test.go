package identify

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/kozaktomas/facegate/internal/biometric"
	"github.com/kozaktomas/facegate/internal/cache"
	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/database/mock"
	"github.com/kozaktomas/facegate/internal/vision"
)

func descriptorAt(offset float32) biometric.Descriptor {
	d := make(biometric.Descriptor, biometric.DescriptorDim)
	d[0] = offset
	return d
}

func testFrame(size int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for x := range size {
		for y := range size {
			img.Set(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	return img
}

type frameSource struct {
	frames []image.Image
	closed bool
}

func (s *frameSource) Read() (image.Image, error) {
	if len(s.frames) == 0 {
		return nil, vision.ErrSourceExhausted
	}
	frame := s.frames[0]
	s.frames = s.frames[1:]
	return frame, nil
}

func (s *frameSource) Close() error {
	s.closed = true
	return nil
}

type fixedDetector struct {
	boxes []biometric.BoundingBox
}

func (d *fixedDetector) Detect(frame image.Image) []biometric.BoundingBox {
	return d.boxes
}

type sequenceExtractor struct {
	descriptors []biometric.Descriptor
	idx         int
}

func (e *sequenceExtractor) Extract(region image.Image) (biometric.Descriptor, bool) {
	if e.idx >= len(e.descriptors) {
		return nil, false
	}
	d := e.descriptors[e.idx]
	e.idx++
	if d == nil {
		return nil, false
	}
	return d, true
}

func populatedCache(t *testing.T, store *mock.MockStore) *cache.DescriptorCache {
	t.Helper()
	return cache.NewDescriptorCache(store, 300*time.Second, false)
}

func TestIdentify_MatchesNearestSubject(t *testing.T) {
	store := mock.NewMockStore()
	d1 := descriptorAt(0.1)
	d2 := descriptorAt(0.9)
	store.AddTemplate(1, d1)
	store.AddTemplate(2, d2)

	p := NewIdentifier(populatedCache(t, store), biometric.NewMatcher(0.6), store)

	result, err := p.Identify(context.Background(), d1)
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if !result.Success {
		t.Fatal("expected a successful match")
	}
	if result.SubjectID == nil || *result.SubjectID != 1 {
		t.Errorf("expected subject 1, got %v", result.SubjectID)
	}
	if result.Distance != 0 {
		t.Errorf("expected exact match distance 0, got %v", result.Distance)
	}
	if result.Confidence != 1 {
		t.Errorf("expected confidence 1 for exact match, got %v", result.Confidence)
	}
}

func TestIdentify_ExactScanWithIndexedCache(t *testing.T) {
	store := mock.NewMockStore()
	shared := descriptorAt(0.5)
	store.AddTemplate(1, shared)
	store.AddTemplate(2, shared)
	store.AddTemplate(3, descriptorAt(0.9))

	indexed := cache.NewDescriptorCache(store, 300*time.Second, true)
	p := NewIdentifier(indexed, biometric.NewMatcher(0.6), store)

	result, err := p.Identify(context.Background(), shared)
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if !result.Success {
		t.Fatal("expected a successful match")
	}
	if result.SubjectID == nil || *result.SubjectID != 1 {
		t.Errorf("tie must go to the first enrolled subject, got %v", result.SubjectID)
	}
	if result.Distance != 0 {
		t.Errorf("expected exact match distance 0, got %v", result.Distance)
	}
}

func TestIdentify_NoMatchBeyondThreshold(t *testing.T) {
	store := mock.NewMockStore()
	store.AddTemplate(1, descriptorAt(0))

	p := NewIdentifier(populatedCache(t, store), biometric.NewMatcher(0.6), store)

	result, err := p.Identify(context.Background(), descriptorAt(2.0))
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if result.Success {
		t.Error("expected no match beyond the threshold")
	}
	if result.SubjectID != nil {
		t.Errorf("expected nil subject, got %v", *result.SubjectID)
	}
}

func TestIdentify_EmptyPopulation(t *testing.T) {
	store := mock.NewMockStore()
	p := NewIdentifier(populatedCache(t, store), biometric.NewMatcher(0.6), store)

	result, err := p.Identify(context.Background(), descriptorAt(0.1))
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if result.Success {
		t.Error("expected no match against an empty population")
	}
}

func TestIdentify_WritesAccessLog(t *testing.T) {
	store := mock.NewMockStore()
	store.AddTemplate(7, descriptorAt(0.1))

	p := NewIdentifier(populatedCache(t, store), biometric.NewMatcher(0.6), store)
	ctx := context.Background()

	if _, err := p.Identify(ctx, descriptorAt(0.1)); err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if _, err := p.Identify(ctx, descriptorAt(3.0)); err != nil {
		t.Fatalf("Identify: %v", err)
	}

	entries, err := store.RecentAccessLogs(ctx, 10)
	if err != nil {
		t.Fatalf("RecentAccessLogs: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	// Newest first: the failed attempt.
	if entries[0].Result != database.AccessFailure || entries[0].SubjectID != nil {
		t.Errorf("unexpected failure entry: %+v", entries[0])
	}
	if entries[1].Result != database.AccessSuccess {
		t.Errorf("expected success entry, got %+v", entries[1])
	}
	if entries[1].SubjectID == nil || *entries[1].SubjectID != 7 {
		t.Errorf("expected subject 7 in log, got %v", entries[1].SubjectID)
	}
	if entries[1].Confidence == nil || *entries[1].Confidence != 1 {
		t.Errorf("expected confidence 1 in log, got %v", entries[1].Confidence)
	}
	if entries[1].AccessType != database.AccessIdentification {
		t.Errorf("expected identification type, got %s", entries[1].AccessType)
	}
}

func TestPipeline_RunMatchesAndReleasesSource(t *testing.T) {
	store := mock.NewMockStore()
	enrolled := descriptorAt(0.1)
	store.AddTemplate(1, enrolled)

	source := &frameSource{frames: []image.Image{testFrame(64), testFrame(64)}}
	detector := &fixedDetector{boxes: []biometric.BoundingBox{{Top: 0, Right: 64, Bottom: 64, Left: 0}}}
	extractor := &sequenceExtractor{descriptors: []biometric.Descriptor{enrolled, descriptorAt(3.0)}}

	p := NewPipeline(source, detector, extractor, populatedCache(t, store), biometric.NewMatcher(0.6), store, Options{FrameSkip: 1, MaxFacesPerFrame: 10})
	p.Start(context.Background())

	var results []MatchResult
	for r := range p.Results() {
		results = append(results, r)
	}
	p.Stop()

	if !source.closed {
		t.Error("expected frame source to be released")
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Success || results[0].SubjectID == nil || *results[0].SubjectID != 1 {
		t.Errorf("expected first face to match subject 1, got %+v", results[0])
	}
	if results[1].Success {
		t.Errorf("expected second face to miss, got %+v", results[1])
	}
	if store.AccessLogCount() != 2 {
		t.Errorf("expected 2 access log entries, got %d", store.AccessLogCount())
	}
}

type flakySource struct {
	script []error // nil entry yields a frame, non-nil a read error
	reads  int
	closed bool
}

func (s *flakySource) Read() (image.Image, error) {
	if s.reads >= len(s.script) {
		return nil, vision.ErrSourceExhausted
	}
	err := s.script[s.reads]
	s.reads++
	if err != nil {
		return nil, err
	}
	return testFrame(64), nil
}

func (s *flakySource) Close() error {
	s.closed = true
	return nil
}

func TestPipeline_StopsAfterConsecutiveReadFailures(t *testing.T) {
	store := mock.NewMockStore()
	readErr := errors.New("device lost")

	script := make([]error, 10)
	for i := range script {
		script[i] = readErr
	}
	source := &flakySource{script: script}

	p := NewPipeline(source, &fixedDetector{}, &sequenceExtractor{}, populatedCache(t, store), biometric.NewMatcher(0.6), store,
		Options{FrameSkip: 1, MaxFacesPerFrame: 1, MaxReadFailures: 3})
	p.Start(context.Background())

	for range p.Results() {
		t.Error("expected no results from a failing source")
	}
	p.Stop()

	if source.reads != 3 {
		t.Errorf("expected the loop to stop after 3 failed reads, got %d", source.reads)
	}
	if !source.closed {
		t.Error("expected frame source to be released")
	}
}

func TestPipeline_ReadFailureCounterResets(t *testing.T) {
	store := mock.NewMockStore()
	readErr := errors.New("device lost")

	// Two failures, a good frame, two more failures: never three in a row.
	source := &flakySource{script: []error{readErr, readErr, nil, readErr, readErr}}

	p := NewPipeline(source, &fixedDetector{}, &sequenceExtractor{}, populatedCache(t, store), biometric.NewMatcher(0.6), store,
		Options{FrameSkip: 1, MaxFacesPerFrame: 1, MaxReadFailures: 3})
	p.Start(context.Background())

	for range p.Results() {
	}
	p.Stop()

	if source.reads != 5 {
		t.Errorf("expected the source to be drained, got %d reads", source.reads)
	}
}

func TestPipeline_FrameSkipAndFaceCap(t *testing.T) {
	store := mock.NewMockStore()
	store.AddTemplate(1, descriptorAt(0.1))

	frames := make([]image.Image, 6)
	for i := range frames {
		frames[i] = testFrame(64)
	}
	source := &frameSource{frames: frames}

	// Three faces per frame, capped at two.
	box := biometric.BoundingBox{Top: 0, Right: 64, Bottom: 64, Left: 0}
	detector := &fixedDetector{boxes: []biometric.BoundingBox{box, box, box}}

	descriptors := make([]biometric.Descriptor, 4)
	for i := range descriptors {
		descriptors[i] = descriptorAt(0.1)
	}
	extractor := &sequenceExtractor{descriptors: descriptors}

	p := NewPipeline(source, detector, extractor, populatedCache(t, store), biometric.NewMatcher(0.6), store, Options{FrameSkip: 3, MaxFacesPerFrame: 2})
	p.Start(context.Background())

	count := 0
	for range p.Results() {
		count++
	}
	p.Stop()

	// Frames 0 and 3 are processed, two faces each.
	if count != 4 {
		t.Errorf("expected 4 results, got %d", count)
	}
}

func TestPipeline_ExtractionFailureSkipsFace(t *testing.T) {
	store := mock.NewMockStore()
	store.AddTemplate(1, descriptorAt(0.1))

	source := &frameSource{frames: []image.Image{testFrame(64)}}
	box := biometric.BoundingBox{Top: 0, Right: 64, Bottom: 64, Left: 0}
	detector := &fixedDetector{boxes: []biometric.BoundingBox{box, box}}
	extractor := &sequenceExtractor{descriptors: []biometric.Descriptor{nil, descriptorAt(0.1)}}

	p := NewPipeline(source, detector, extractor, populatedCache(t, store), biometric.NewMatcher(0.6), store, Options{FrameSkip: 1, MaxFacesPerFrame: 10})
	p.Start(context.Background())

	count := 0
	for range p.Results() {
		count++
	}
	p.Stop()

	if count != 1 {
		t.Errorf("expected failed extraction to be skipped, got %d results", count)
	}
	if store.AccessLogCount() != 1 {
		t.Errorf("expected 1 access log entry, got %d", store.AccessLogCount())
	}
}

func TestVerifySubject(t *testing.T) {
	store := mock.NewMockStore()
	id := store.AddSubject(database.Subject{Name: "Jan", Surname: "Novák"})
	store.AddTemplate(id, descriptorAt(0.1))
	store.AddTemplate(id, descriptorAt(0.3))

	v := NewVerifier(store, biometric.NewMatcher(0.6))
	ctx := context.Background()

	t.Run("matches best template", func(t *testing.T) {
		result, err := v.VerifySubject(ctx, id, descriptorAt(0.3))
		if err != nil {
			t.Fatalf("VerifySubject: %v", err)
		}
		if !result.Match {
			t.Fatal("expected a match")
		}
		if result.Distance != 0 {
			t.Errorf("expected best distance 0, got %v", result.Distance)
		}
		if result.Subject == nil || result.Subject.ID != id {
			t.Errorf("expected subject %d, got %+v", id, result.Subject)
		}
	})

	t.Run("rejects distant probe", func(t *testing.T) {
		result, err := v.VerifySubject(ctx, id, descriptorAt(3.0))
		if err != nil {
			t.Fatalf("VerifySubject: %v", err)
		}
		if result.Match {
			t.Error("expected no match for a distant probe")
		}
		if result.Confidence != 0 {
			t.Errorf("expected zero confidence, got %v", result.Confidence)
		}
	})

	t.Run("unknown subject", func(t *testing.T) {
		if _, err := v.VerifySubject(ctx, 9999, descriptorAt(0.1)); !errors.Is(err, database.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("records verification attempts", func(t *testing.T) {
		entries, err := store.RecentAccessLogs(ctx, 10)
		if err != nil {
			t.Fatalf("RecentAccessLogs: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("expected 2 log entries, got %d", len(entries))
		}
		for _, entry := range entries {
			if entry.AccessType != database.AccessVerification {
				t.Errorf("expected verification type, got %s", entry.AccessType)
			}
		}
	})
}
