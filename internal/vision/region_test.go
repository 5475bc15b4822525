package vision

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/facegate/internal/biometric"
)

func testFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}
	return img
}

func TestExtractRegion(t *testing.T) {
	frame := testFrame(640, 480)

	t.Run("interior box gets padding", func(t *testing.T) {
		box := biometric.BoundingBox{Top: 100, Right: 300, Bottom: 260, Left: 140}
		region, ok := ExtractRegion(frame, box)
		if !ok {
			t.Fatal("expected a region")
		}

		wantW := box.Width() + 2*RegionPadding
		wantH := box.Height() + 2*RegionPadding
		if region.Bounds().Dx() != wantW || region.Bounds().Dy() != wantH {
			t.Errorf("region size = %dx%d, want %dx%d",
				region.Bounds().Dx(), region.Bounds().Dy(), wantW, wantH)
		}
	})

	t.Run("padding clamps at frame edges", func(t *testing.T) {
		box := biometric.BoundingBox{Top: 0, Right: 100, Bottom: 100, Left: 0}
		region, ok := ExtractRegion(frame, box)
		if !ok {
			t.Fatal("expected a region")
		}
		if region.Bounds().Dx() != 100+RegionPadding {
			t.Errorf("clamped width = %d, want %d", region.Bounds().Dx(), 100+RegionPadding)
		}
	})

	t.Run("box outside frame yields nothing", func(t *testing.T) {
		box := biometric.BoundingBox{Top: 1000, Right: 1100, Bottom: 1100, Left: 1000}
		if _, ok := ExtractRegion(frame, box); ok {
			t.Error("expected no region for out-of-frame box")
		}
	})
}

func TestResize(t *testing.T) {
	got := Resize(testFrame(64, 48), 32, 24)
	if got.Bounds().Dx() != 32 || got.Bounds().Dy() != 24 {
		t.Errorf("resized to %dx%d, want 32x24", got.Bounds().Dx(), got.Bounds().Dy())
	}
}

func TestAlignFace(t *testing.T) {
	frame := testFrame(400, 400)

	t.Run("incomplete landmarks", func(t *testing.T) {
		if _, ok := AlignFace(frame, biometric.Landmarks{{X: 1, Y: 1}}, 150); ok {
			t.Error("expected failure for incomplete landmarks")
		}
	})

	t.Run("aligned crop has requested size", func(t *testing.T) {
		landmarks := make(biometric.Landmarks, biometric.LandmarkCount)
		for i := leftEyeStart; i < leftEyeEnd; i++ {
			landmarks[i] = biometric.Point{X: 150, Y: 200}
		}
		for i := rightEyeStart; i < rightEyeEnd; i++ {
			landmarks[i] = biometric.Point{X: 250, Y: 200}
		}

		aligned, ok := AlignFace(frame, landmarks, 150)
		if !ok {
			t.Fatal("expected aligned face")
		}
		if aligned.Bounds().Dx() != 150 || aligned.Bounds().Dy() != 150 {
			t.Errorf("aligned size = %dx%d, want 150x150", aligned.Bounds().Dx(), aligned.Bounds().Dy())
		}
	})

	t.Run("coincident eyes", func(t *testing.T) {
		landmarks := make(biometric.Landmarks, biometric.LandmarkCount)
		if _, ok := AlignFace(frame, landmarks, 150); ok {
			t.Error("expected failure when eye centers coincide")
		}
	})
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"02.png", "01.png"} {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("create test frame: %v", err)
		}
		if err := png.Encode(f, testFrame(8, 8)); err != nil {
			t.Fatalf("encode test frame: %v", err)
		}
		f.Close()
	}
	// Non-image files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := NewDirSource(dir)
	if err != nil {
		t.Fatalf("NewDirSource: %v", err)
	}
	defer src.Close()

	if src.Remaining() != 2 {
		t.Fatalf("expected 2 frames, got %d", src.Remaining())
	}

	for range 2 {
		if _, err := src.Read(); err != nil {
			t.Fatalf("Read: %v", err)
		}
	}

	if _, err := src.Read(); err != ErrSourceExhausted {
		t.Errorf("expected ErrSourceExhausted, got %v", err)
	}
}

func TestNewDirSource_Empty(t *testing.T) {
	if _, err := NewDirSource(t.TempDir()); err == nil {
		t.Error("expected error for directory without frames")
	}
}
