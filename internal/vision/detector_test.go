package vision

import (
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kozaktomas/facegate/internal/biometric"
)

func writeTestPNG(t *testing.T, dir, name string) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("create test frame: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, testFrame(8, 8)); err != nil {
		t.Fatalf("encode test frame: %v", err)
	}
}

func TestHTTPDetector_Detect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/faces" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if _, _, err := r.FormFile("file"); err != nil {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"faces": [
			{"top": 10, "right": 120, "bottom": 130, "left": 20},
			{"top": 0, "right": 0, "bottom": 0, "left": 0}
		]}`))
	}))
	defer server.Close()

	d := NewHTTPDetector(server.URL)
	boxes := d.Detect(testFrame(64, 64))

	// The degenerate zero-area box is dropped.
	if len(boxes) != 1 {
		t.Fatalf("expected 1 box, got %d", len(boxes))
	}
	want := biometric.BoundingBox{Top: 10, Right: 120, Bottom: 130, Left: 20}
	if boxes[0] != want {
		t.Errorf("expected %+v, got %+v", want, boxes[0])
	}
}

func TestHTTPDetector_DetectServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer server.Close()

	d := NewHTTPDetector(server.URL)
	if boxes := d.Detect(testFrame(64, 64)); boxes != nil {
		t.Errorf("expected no boxes on server error, got %v", boxes)
	}
}

func TestHTTPDetector_Predict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/landmarks" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if r.FormValue("top") != "10" || r.FormValue("left") != "20" {
			http.Error(w, "missing box fields", http.StatusBadRequest)
			return
		}

		points := make([]byte, 0, 1024)
		points = append(points, []byte(`{"points": [`)...)
		for i := range biometric.LandmarkCount {
			if i > 0 {
				points = append(points, ',')
			}
			points = append(points, []byte(`[1,2]`)...)
		}
		points = append(points, []byte(`]}`)...)

		w.Header().Set("Content-Type", "application/json")
		w.Write(points)
	}))
	defer server.Close()

	d := NewHTTPDetector(server.URL)
	box := biometric.BoundingBox{Top: 10, Right: 120, Bottom: 130, Left: 20}

	landmarks, ok := d.Predict(testFrame(64, 64), box)
	if !ok {
		t.Fatal("expected complete landmarks")
	}
	if len(landmarks) != biometric.LandmarkCount {
		t.Errorf("expected %d points, got %d", biometric.LandmarkCount, len(landmarks))
	}
}

func TestHTTPDetector_PredictIncomplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"points": [[1,2],[3,4]]}`))
	}))
	defer server.Close()

	d := NewHTTPDetector(server.URL)
	if _, ok := d.Predict(testFrame(64, 64), biometric.BoundingBox{Top: 0, Right: 10, Bottom: 10, Left: 0}); ok {
		t.Error("expected incomplete landmark set to be rejected")
	}
}

func TestPacedSource(t *testing.T) {
	dir := t.TempDir()
	writeTestPNG(t, dir, "a.png")
	writeTestPNG(t, dir, "b.png")

	source, err := NewDirSource(dir)
	if err != nil {
		t.Fatalf("NewDirSource: %v", err)
	}
	paced := NewPacedSource(source, 50)
	defer paced.Close()

	start := time.Now()
	if _, err := paced.Read(); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if _, err := paced.Read(); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("expected second read paced to ~20ms, took %v", elapsed)
	}
}
