package codec

import (
	"errors"
	"image"
	"image/color"
	"io"
	"testing"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 11), B: 128, A: 255})
		}
	}
	return img
}

func TestDetect_NeverEmpty(t *testing.T) {
	reg := Detect(nil)

	formats := reg.Formats()
	if len(formats) == 0 {
		t.Fatal("Expected at least one usable codec")
	}

	if _, ok := reg.Lookup(FormatJPEG); !ok {
		t.Error("Expected baseline JPEG codec to be available")
	}
}

func TestDetect_RankedBestFirst(t *testing.T) {
	reg := Detect(nil)

	formats := reg.Formats()
	if formats[len(formats)-1] != FormatJPEG {
		t.Errorf("Expected JPEG to rank last, got order %v", formats)
	}
}

func TestDefault_CachedAcrossCalls(t *testing.T) {
	first := Default(nil)
	second := Default(nil)

	if first != second {
		t.Error("Expected Default to return the same registry instance")
	}
}

func TestBestEmbeddable(t *testing.T) {
	reg := Detect(nil)

	c, err := reg.BestEmbeddable(FormatJPEG)
	if err != nil {
		t.Fatalf("Expected embeddable codec, got error: %v", err)
	}
	if c.Format() != FormatJPEG {
		t.Errorf("Expected JPEG, got %s", c.Format())
	}
}

func TestBestEmbeddable_NoMatch(t *testing.T) {
	reg := Detect(nil)

	_, err := reg.BestEmbeddable(Format("avif"))
	if err == nil {
		t.Error("Expected error when no registered codec matches")
	}
}

func TestEncodePage(t *testing.T) {
	reg := Detect(nil)
	c, _ := reg.Lookup(FormatJPEG)

	enc, err := NewEncoder(c, EncodeOptions{Quality: 75, FallbackQualities: []int{60}}, nil)
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}

	page, err := enc.EncodePage(0, testImage(32, 48))
	if err != nil {
		t.Fatalf("EncodePage failed: %v", err)
	}

	if page.Format != FormatJPEG {
		t.Errorf("Expected format %s, got %s", FormatJPEG, page.Format)
	}
	if len(page.Data) == 0 {
		t.Error("Expected non-empty payload")
	}
	if page.Width != 32 || page.Height != 48 {
		t.Errorf("Expected pixel dims 32x48, got %dx%d", page.Width, page.Height)
	}

	// JPEG SOI marker
	if page.Data[0] != 0xFF || page.Data[1] != 0xD8 {
		t.Error("Expected JPEG magic bytes at start of payload")
	}
}

func TestNewEncoder_QualityValidation(t *testing.T) {
	c := jpegCodec{}

	if _, err := NewEncoder(c, EncodeOptions{Quality: 101}, nil); err == nil {
		t.Error("Expected error for quality above 100")
	}
	if _, err := NewEncoder(c, EncodeOptions{Quality: -1}, nil); err == nil {
		t.Error("Expected error for negative quality")
	}
	if _, err := NewEncoder(c, EncodeOptions{Quality: 75, FallbackQualities: []int{120}}, nil); err == nil {
		t.Error("Expected error for out-of-range fallback quality")
	}
	if _, err := NewEncoder(nil, EncodeOptions{Quality: 75}, nil); err == nil {
		t.Error("Expected error for nil codec")
	}
}

// failingCodec fails a fixed number of times before succeeding, recording the
// qualities it was asked for.
type failingCodec struct {
	failures  int
	attempts  int
	qualities []int
}

func (f *failingCodec) Format() Format { return Format("fake") }

func (f *failingCodec) Encode(w io.Writer, img image.Image, quality int) error {
	f.attempts++
	f.qualities = append(f.qualities, quality)
	if f.attempts <= f.failures {
		return errors.New("encode failed")
	}
	_, err := w.Write([]byte{0x01})
	return err
}

func TestEncodePage_RetryLadder(t *testing.T) {
	fake := &failingCodec{failures: 1}
	enc, err := NewEncoder(fake, EncodeOptions{Quality: 90, FallbackQualities: []int{60}}, nil)
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}

	page, err := enc.EncodePage(3, testImage(4, 4))
	if err != nil {
		t.Fatalf("Expected fallback attempt to succeed, got %v", err)
	}

	if fake.attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", fake.attempts)
	}
	if fake.qualities[0] != 90 || fake.qualities[1] != 60 {
		t.Errorf("Expected qualities [90 60], got %v", fake.qualities)
	}
	if page.Index != 3 {
		t.Errorf("Expected page index 3, got %d", page.Index)
	}
}

func TestEncodePage_LadderExhausted(t *testing.T) {
	fake := &failingCodec{failures: 10}
	enc, err := NewEncoder(fake, EncodeOptions{Quality: 90, FallbackQualities: []int{60}}, nil)
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}

	_, err = enc.EncodePage(0, testImage(4, 4))
	if err == nil {
		t.Fatal("Expected error after ladder exhaustion")
	}
	if fake.attempts != 2 {
		t.Errorf("Expected exactly 2 attempts, got %d", fake.attempts)
	}
}
