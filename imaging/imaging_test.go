package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"
)

// noisyImage produces an image that compresses poorly, so large dimensions
// reliably exceed the upload limit.
func noisyImage(t *testing.T, width, height int) image.Image {
	t.Helper()

	rng := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestShrinkSmallFilePassesThrough(t *testing.T) {
	data := encodePNG(t, noisyImage(t, 64, 64))
	if len(data) > MaxUploadBytes {
		t.Fatalf("fixture too large: %d bytes", len(data))
	}

	name, out, err := Shrink("tiny.png", data)
	if err != nil {
		t.Fatalf("Shrink() error = %v", err)
	}
	if name != "tiny.png" {
		t.Errorf("Shrink() name = %q, want original kept", name)
	}
	if !bytes.Equal(out, data) {
		t.Error("Shrink() modified a within-policy file")
	}
}

func TestShrinkOversizedFile(t *testing.T) {
	// Random noise at this size encodes well past the byte limit.
	data := encodePNG(t, noisyImage(t, 1600, 1200))
	if len(data) <= MaxUploadBytes {
		t.Fatalf("fixture unexpectedly small: %d bytes", len(data))
	}

	name, out, err := Shrink("vacation.png", data)
	if err != nil {
		t.Fatalf("Shrink() error = %v", err)
	}
	if name != "vacation.jpg" {
		t.Errorf("Shrink() name = %q, want re-encoded extension", name)
	}

	img, format, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode shrunk image: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("shrunk format = %q, want jpeg", format)
	}

	bounds := img.Bounds()
	if bounds.Dx() > MaxDimension || bounds.Dy() > MaxDimension {
		t.Errorf("shrunk dimensions = %dx%d, want within %d", bounds.Dx(), bounds.Dy(), MaxDimension)
	}
	// 4:3 input keeps its aspect ratio against the long side.
	if bounds.Dx() != MaxDimension {
		t.Errorf("long side = %d, want %d", bounds.Dx(), MaxDimension)
	}
	wantShort := MaxDimension * 1200 / 1600
	if diff := bounds.Dy() - wantShort; diff < -1 || diff > 1 {
		t.Errorf("short side = %d, want about %d", bounds.Dy(), wantShort)
	}

	if len(out) > MaxUploadBytes {
		t.Errorf("shrunk size = %d bytes, want <= %d", len(out), MaxUploadBytes)
	}
}

func TestShrinkOversizedSmallDimensions(t *testing.T) {
	// A file can exceed the byte limit without exceeding the dimension
	// bound; it is still re-encoded but not resized.
	img := noisyImage(t, 1000, 1000)
	data := encodePNG(t, img)
	if len(data) <= MaxUploadBytes {
		t.Skipf("fixture too small to exercise re-encode: %d bytes", len(data))
	}

	_, out, err := Shrink("dense.png", data)
	if err != nil {
		t.Fatalf("Shrink() error = %v", err)
	}

	decoded, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode shrunk image: %v", err)
	}
	if decoded.Bounds().Dx() != 1000 || decoded.Bounds().Dy() != 1000 {
		t.Errorf("dimensions changed to %v, want 1000x1000 kept", decoded.Bounds())
	}
}

func TestShrinkGarbageData(t *testing.T) {
	big := make([]byte, MaxUploadBytes+1)
	_, _, err := Shrink("broken.jpg", big)
	if err == nil {
		t.Error("Shrink() error = nil for undecodable data, want error")
	}
}

func TestJPEGInputStaysJPEG(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, noisyImage(t, 2000, 2000), &jpeg.Options{Quality: 100}); err != nil {
		t.Fatalf("encode jpeg fixture: %v", err)
	}
	if buf.Len() <= MaxUploadBytes {
		t.Skipf("fixture too small: %d bytes", buf.Len())
	}

	name, out, err := Shrink("photo.jpeg", buf.Bytes())
	if err != nil {
		t.Fatalf("Shrink() error = %v", err)
	}
	if name != "photo.jpg" {
		t.Errorf("Shrink() name = %q", name)
	}
	if len(out) >= buf.Len() {
		t.Errorf("shrunk size = %d, want smaller than %d", len(out), buf.Len())
	}
}
