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
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/facegate/internal/biometric"
)

const defaultDetectorTimeout = 15 * time.Second

// HTTPDetector locates faces and their landmarks by posting frames to the
// face model service. It implements both Detector and LandmarkPredictor.
type HTTPDetector struct {
	baseURL string
	client  *http.Client
}

// NewHTTPDetector creates a detector client for the given service URL.
func NewHTTPDetector(baseURL string) *HTTPDetector {
	if baseURL == "" {
		baseURL = defaultExtractorURL
	}
	return &HTTPDetector{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: defaultDetectorTimeout},
	}
}

type faceBox struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

type facesResponse struct {
	Faces []faceBox `json:"faces"`
}

type landmarksResponse struct {
	Points [][2]int `json:"points"`
}

// Detect implements Detector. Failures are logged and reported as no faces;
// they never abort the calling loop.
func (c *HTTPDetector) Detect(frame image.Image) []biometric.BoundingBox {
	boxes, err := c.detect(context.Background(), frame)
	if err != nil {
		log.Printf("face detection failed: %v", err)
		return nil
	}
	return boxes
}

func (c *HTTPDetector) detect(ctx context.Context, frame image.Image) ([]biometric.BoundingBox, error) {
	body, err := c.post(ctx, "/faces", frame, nil)
	if err != nil {
		return nil, err
	}

	var parsed facesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	boxes := make([]biometric.BoundingBox, 0, len(parsed.Faces))
	for _, f := range parsed.Faces {
		box := biometric.BoundingBox{Top: f.Top, Right: f.Right, Bottom: f.Bottom, Left: f.Left}
		if box.Valid() {
			boxes = append(boxes, box)
		}
	}
	return boxes, nil
}

// Predict implements LandmarkPredictor. A failed or incomplete prediction is
// reported as no landmarks so the angle check can be skipped.
func (c *HTTPDetector) Predict(frame image.Image, box biometric.BoundingBox) (biometric.Landmarks, bool) {
	landmarks, err := c.predict(context.Background(), frame, box)
	if err != nil {
		log.Printf("landmark prediction failed: %v", err)
		return nil, false
	}
	return landmarks, landmarks.Complete()
}

func (c *HTTPDetector) predict(ctx context.Context, frame image.Image, box biometric.BoundingBox) (biometric.Landmarks, error) {
	fields := map[string]string{
		"top":    strconv.Itoa(box.Top),
		"right":  strconv.Itoa(box.Right),
		"bottom": strconv.Itoa(box.Bottom),
		"left":   strconv.Itoa(box.Left),
	}
	body, err := c.post(ctx, "/landmarks", frame, fields)
	if err != nil {
		return nil, err
	}

	var parsed landmarksResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	landmarks := make(biometric.Landmarks, 0, len(parsed.Points))
	for _, p := range parsed.Points {
		landmarks = append(landmarks, biometric.Point{X: p[0], Y: p[1]})
	}
	return landmarks, nil
}

// post sends a frame as a multipart JPEG with optional form fields and
// returns the response body.
func (c *HTTPDetector) post(ctx context.Context, path string, frame image.Image, fields map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := jpeg.Encode(part, frame, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("write field %s: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post frame: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("face service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
