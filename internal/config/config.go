package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var profilesYAML []byte

type Config struct {
	Recognition RecognitionConfig
	Enrollment  EnrollmentConfig
	Camera      CameraConfig
	Database    DatabaseConfig
	Extractor   ExtractorConfig
	Profiles    ProfilesConfig
}

type RecognitionConfig struct {
	Threshold        float64       // maximum descriptor distance accepted as a match (lower = stricter)
	FrameSkip        int           // process every Nth frame
	MaxFacesPerFrame int           // cap on faces matched per frame
	CacheTTL         time.Duration // descriptor cache time-to-live
	HNSWEnabled      bool          // build an in-memory ANN index on cache reload
	QualityProfile   string        // name of the quality profile to apply during enrollment
}

type EnrollmentConfig struct {
	MinSamples      int    // minimum valid samples to complete a session
	MaxSamples      int    // hard cap on accumulated samples
	MaxReadFailures int    // consecutive frame read failures before abort
	PhotosDir       string // directory for reference photos
}

type CameraConfig struct {
	ID     int
	Width  int
	Height int
	FPS    int
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type ExtractorConfig struct {
	URL string // descriptor model service, defaults to http://localhost:8000
}

// ProfilesConfig holds the named quality presets loaded from the embedded
// profiles.yaml.
type ProfilesConfig struct {
	Profiles map[string]QualityProfile `yaml:"profiles"`
}

// QualityProfile bundles the thresholds the quality gate runs with.
type QualityProfile struct {
	SharpnessThreshold float64 `yaml:"sharpness_threshold"`
	AngleThreshold     float64 `yaml:"angle_threshold"`
	MinFaceSize        int     `yaml:"min_face_size"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var profiles ProfilesConfig
	if err := yaml.Unmarshal(profilesYAML, &profiles); err != nil {
		// Embedded file, this should never happen in practice.
		panic("failed to unmarshal embedded profiles.yaml: " + err.Error())
	}

	return &Config{
		Recognition: RecognitionConfig{
			Threshold:        envFloat("FACE_RECOGNITION_THRESHOLD", 0.6),
			FrameSkip:        envInt("FRAME_SKIP", 3),
			MaxFacesPerFrame: envInt("MAX_FACES_PER_FRAME", 10),
			CacheTTL:         time.Duration(envInt("DESCRIPTOR_CACHE_TTL", 300)) * time.Second,
			HNSWEnabled:      os.Getenv("HNSW_ENABLED") == "true",
			QualityProfile:   envString("QUALITY_PROFILE", "default"),
		},
		Enrollment: EnrollmentConfig{
			MinSamples:      envInt("MIN_ENROLLMENT_SAMPLES", 5),
			MaxSamples:      envInt("MAX_ENROLLMENT_SAMPLES", 10),
			MaxReadFailures: envInt("MAX_READ_FAILURES", 10),
			PhotosDir:       envString("PHOTOS_DIR", "data/photos"),
		},
		Camera: CameraConfig{
			ID:     envInt("CAMERA_ID", 0),
			Width:  envInt("CAMERA_WIDTH", 1280),
			Height: envInt("CAMERA_HEIGHT", 720),
			FPS:    envInt("CAMERA_FPS", 30),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Extractor: ExtractorConfig{
			URL: os.Getenv("EXTRACTOR_URL"),
		},
		Profiles: profiles,
	}
}

// GetQualityProfile returns the named quality profile, falling back to the
// default profile for unknown names.
func (c *Config) GetQualityProfile(name string) QualityProfile {
	if profile, ok := c.Profiles.Profiles[name]; ok {
		return profile
	}
	return c.Profiles.Profiles["default"]
}
