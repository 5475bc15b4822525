package enroll

import (
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/kozaktomas/facegate/internal/biometric"
	"github.com/kozaktomas/facegate/internal/cache"
	"github.com/kozaktomas/facegate/internal/database"
)

// ErrNoSamples is returned when an enrollment has nothing to persist.
var ErrNoSamples = errors.New("no samples to enroll")

const referencePhotoQuality = 90

// Enroller persists completed capture sessions. The subject and all its
// templates are written in one transaction; the reference photo is saved
// to disk before the database write.
type Enroller struct {
	store     database.SubjectStore
	cache     *cache.DescriptorCache
	matcher   *biometric.Matcher
	photosDir string
}

// NewEnroller creates an enroller writing photos under photosDir.
func NewEnroller(store database.SubjectStore, descriptorCache *cache.DescriptorCache, matcher *biometric.Matcher, photosDir string) *Enroller {
	return &Enroller{
		store:     store,
		cache:     descriptorCache,
		matcher:   matcher,
		photosDir: photosDir,
	}
}

// Enroll stores a new subject with the descriptors from the given samples.
// A likely duplicate of an already enrolled subject is logged as a warning
// but does not block the enrollment.
func (e *Enroller) Enroll(ctx context.Context, name, surname string, accessLevel int, samples []Sample) (*database.Subject, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	e.warnOnDuplicate(ctx, samples[0].Descriptor)

	photoPath, err := e.saveReferencePhoto(name, surname, samples[0])
	if err != nil {
		return nil, fmt.Errorf("failed to save reference photo: %w", err)
	}

	subject := &database.Subject{
		Name:        name,
		Surname:     surname,
		PhotoPath:   photoPath,
		AccessLevel: accessLevel,
	}

	descriptors := make([]biometric.Descriptor, len(samples))
	for i, sample := range samples {
		descriptors[i] = sample.Descriptor
	}

	id, err := e.store.CreateSubjectWithTemplates(ctx, subject, descriptors)
	if err != nil {
		if photoPath != "" {
			os.Remove(photoPath)
		}
		return nil, fmt.Errorf("failed to store subject: %w", err)
	}
	subject.ID = id

	if e.cache != nil {
		e.cache.Invalidate()
	}

	log.Printf("Enrolled subject %d (%s %s) with %d templates", id, name, surname, len(samples))
	return subject, nil
}

// warnOnDuplicate checks the first sample against the enrolled population.
func (e *Enroller) warnOnDuplicate(ctx context.Context, descriptor biometric.Descriptor) {
	if e.cache == nil || e.matcher == nil {
		return
	}
	snap, err := e.cache.Current(ctx)
	if err != nil {
		log.Printf("Duplicate check skipped: %v", err)
		return
	}
	for _, match := range snap.Nearest(descriptor, 1) {
		if match.Distance <= e.matcher.Threshold() {
			log.Printf("Warning: new enrollment matches existing subject %d (distance %.3f)",
				match.SubjectID, match.Distance)
		}
	}
}

// saveReferencePhoto writes the first sample frame as a JPEG and returns its
// path. A missing photos directory configuration disables the photo.
func (e *Enroller) saveReferencePhoto(name, surname string, sample Sample) (string, error) {
	if e.photosDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(e.photosDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create photos directory: %w", err)
	}

	slug := strings.ReplaceAll(biometric.NormalizeSubjectName(name+" "+surname), " ", "-")
	filename := fmt.Sprintf("%s-%s.jpg", slug, uuid.New().String())
	path := filepath.Join(e.photosDir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := jpeg.Encode(f, sample.Frame, &jpeg.Options{Quality: referencePhotoQuality}); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}
