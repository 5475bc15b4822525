package cmd

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/facegate/internal/biometric"
	"github.com/kozaktomas/facegate/internal/cache"
	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/database/postgres"
	"github.com/kozaktomas/facegate/internal/enroll"
	"github.com/kozaktomas/facegate/internal/quality"
	"github.com/kozaktomas/facegate/internal/vision"
)

// openStore connects to PostgreSQL and applies pending migrations.
func openStore(cfg *config.Config) (*postgres.Pool, *postgres.Repository, error) {
	if cfg.Database.URL == "" {
		return nil, nil, errors.New("DATABASE_URL environment variable is required")
	}
	pool, err := postgres.Connect(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return pool, postgres.NewRepository(pool), nil
}

// buildGate creates the quality gate from the configured profile.
func buildGate(cfg *config.Config) *quality.Gate {
	profile := cfg.GetQualityProfile(cfg.Recognition.QualityProfile)
	return quality.NewGate(profile.SharpnessThreshold, profile.AngleThreshold, profile.MinFaceSize)
}

// buildCache creates the descriptor cache over the repository.
func buildCache(cfg *config.Config, repo *postgres.Repository) *cache.DescriptorCache {
	return cache.NewDescriptorCache(repo, cfg.Recognition.CacheTTL, cfg.Recognition.HNSWEnabled)
}

// buildMatcher creates the matcher, optionally overriding the configured
// threshold (a non-positive value keeps the configuration).
func buildMatcher(cfg *config.Config, threshold float64) *biometric.Matcher {
	if threshold <= 0 {
		threshold = cfg.Recognition.Threshold
	}
	return biometric.NewMatcher(threshold)
}

// enrollOptions maps the enrollment configuration to capture options.
func enrollOptions(cfg *config.Config) enroll.Options {
	return enroll.Options{
		MinSamples:      cfg.Enrollment.MinSamples,
		MaxSamples:      cfg.Enrollment.MaxSamples,
		FrameSkip:       cfg.Recognition.FrameSkip,
		MaxReadFailures: cfg.Enrollment.MaxReadFailures,
	}
}

// openFrames opens a directory frame source, paced at the camera FPS when
// realtime is requested.
func openFrames(dir string, cfg *config.Config, realtime bool) (vision.FrameSource, error) {
	if dir == "" {
		return nil, errors.New("--frames directory is required (camera capture is handled by the frame recorder)")
	}
	source, err := vision.NewDirSource(dir)
	if err != nil {
		return nil, err
	}
	if realtime {
		return vision.NewPacedSource(source, cfg.Camera.FPS), nil
	}
	return source, nil
}
