package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/facegate/internal/biometric"
)

const (
	defaultExtractorURL     = "http://localhost:8000"
	defaultExtractorTimeout = 15 * time.Second
)

// HTTPExtractor computes face descriptors by posting the face crop to a
// descriptor model service.
type HTTPExtractor struct {
	baseURL string
	client  *http.Client
}

// NewHTTPExtractor creates an extractor client for the given service URL.
func NewHTTPExtractor(baseURL string) *HTTPExtractor {
	if baseURL == "" {
		baseURL = defaultExtractorURL
	}
	return &HTTPExtractor{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: defaultExtractorTimeout},
	}
}

// descriptorResponse represents the response from the descriptor service.
type descriptorResponse struct {
	Dim        int       `json:"dim"`
	Descriptor []float32 `json:"descriptor"`
	Model      string    `json:"model"`
}

// Extract implements Extractor. Failures are logged and reported as a
// missing descriptor; they never abort the calling loop.
func (c *HTTPExtractor) Extract(region image.Image) (biometric.Descriptor, bool) {
	descriptor, err := c.extract(context.Background(), region)
	if err != nil {
		log.Printf("descriptor extraction failed: %v", err)
		return nil, false
	}
	return descriptor, true
}

func (c *HTTPExtractor) extract(ctx context.Context, region image.Image) (biometric.Descriptor, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "face.jpg")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := jpeg.Encode(part, region, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode face crop: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/descriptor", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post face crop: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("descriptor service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed descriptorResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	descriptor := biometric.Descriptor(parsed.Descriptor)
	if !descriptor.Valid() {
		return nil, fmt.Errorf("unexpected descriptor dimension %d, want %d", len(descriptor), biometric.DescriptorDim)
	}
	return descriptor, nil
}
