package raster_test

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pdfsqueeze/internal/assemble"
	"pdfsqueeze/internal/codec"
	"pdfsqueeze/internal/raster"
)

// writeFixture builds a small image-based PDF with the given page sizes.
func writeFixture(t *testing.T, sizes []raster.PageSize) string {
	t.Helper()

	reg := codec.Detect(nil)
	c, err := reg.BestEmbeddable(assemble.EmbeddableFormats()...)
	if err != nil {
		t.Fatalf("BestEmbeddable failed: %v", err)
	}
	enc, err := codec.NewEncoder(c, codec.DefaultEncodeOptions(), nil)
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}

	b := assemble.NewBuilder()
	for i, size := range sizes {
		img := image.NewRGBA(image.Rect(0, 0, 40, 52))
		for y := 0; y < 52; y++ {
			for x := 0; x < 40; x++ {
				img.Set(x, y, color.RGBA{R: uint8(40 * i), G: uint8(x * 3), B: uint8(y * 2), A: 255})
			}
		}
		page, err := enc.EncodePage(i, img)
		if err != nil {
			t.Fatalf("EncodePage failed: %v", err)
		}
		if err := b.AddPage(page, size); err != nil {
			t.Fatalf("AddPage failed: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "fixture.pdf")
	if err := b.WriteFile(path); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestOpen_PageGeometry(t *testing.T) {
	sizes := []raster.PageSize{
		{Width: 612, Height: 792},
		{Width: 595, Height: 842},
		{Width: 300, Height: 300},
	}
	path := writeFixture(t, sizes)

	src, err := raster.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	if src.PageCount() != len(sizes) {
		t.Fatalf("Expected %d pages, got %d", len(sizes), src.PageCount())
	}
	for i, want := range sizes {
		got := src.PageSize(i)
		if got != want {
			t.Errorf("Page %d: expected %+v, got %+v", i, want, got)
		}
	}
}

func TestOpen_FractionalPageGeometry(t *testing.T) {
	// A4 is 595.276x841.89pt; the fractional part must survive exactly, not
	// get rounded to whole points.
	sizes := []raster.PageSize{{Width: 595.276, Height: 841.89}}
	path := writeFixture(t, sizes)

	src, err := raster.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	if got := src.PageSize(0); got != sizes[0] {
		t.Errorf("Expected %+v, got %+v", sizes[0], got)
	}
}

func TestMetadata_TrimmedAndSparse(t *testing.T) {
	reg := codec.Detect(nil)
	c, err := reg.BestEmbeddable(assemble.EmbeddableFormats()...)
	if err != nil {
		t.Fatalf("BestEmbeddable failed: %v", err)
	}
	enc, err := codec.NewEncoder(c, codec.DefaultEncodeOptions(), nil)
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	page, err := enc.EncodePage(0, img)
	if err != nil {
		t.Fatalf("EncodePage failed: %v", err)
	}

	b := assemble.NewBuilder()
	b.SetMetadata(map[string]string{"title": "Quarterly Notes"})
	if err := b.AddPage(page, raster.PageSize{Width: 100, Height: 100}); err != nil {
		t.Fatalf("AddPage failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "meta.pdf")
	if err := b.WriteFile(path); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	src, err := raster.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	meta := src.Metadata()
	// MuPDF pads values to fixed-size NUL-filled buffers; values must come
	// back trimmed, and absent fields must not appear at all.
	if meta["title"] != "Quarterly Notes" {
		t.Errorf("Expected trimmed title, got %q", meta["title"])
	}
	for k, v := range meta {
		if strings.ContainsRune(v, 0) {
			t.Errorf("Field %s contains NUL bytes: %q", k, v)
		}
		if v == "" {
			t.Errorf("Field %s is present but empty", k)
		}
	}
	if _, ok := meta["author"]; ok {
		t.Error("Expected absent author field to be dropped")
	}
}

func TestOpen_InvalidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	if err := os.WriteFile(path, []byte("this is not a pdf"), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	if _, err := raster.Open(path); err == nil {
		t.Error("Expected error for invalid document")
	}
}

func TestOpen_MissingFile(t *testing.T) {
	if _, err := raster.Open(filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestPages_RendersAtDPI(t *testing.T) {
	path := writeFixture(t, []raster.PageSize{{Width: 612, Height: 792}})

	src, err := raster.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	iter := src.Pages(context.Background(), 144, 0)
	if !iter.Next() {
		t.Fatalf("Expected a page, err: %v", iter.Err())
	}
	page := iter.Page()

	// 612x792 points at 144 DPI is a 2x scale.
	if page.Width != 1224 || page.Height != 1584 {
		t.Errorf("Expected 1224x1584 raster, got %dx%d", page.Width, page.Height)
	}
	if page.Index != 0 {
		t.Errorf("Expected page index 0, got %d", page.Index)
	}

	if iter.Next() {
		t.Error("Expected iterator to be exhausted after one page")
	}
	if err := iter.Err(); err != nil {
		t.Errorf("Expected no iterator error, got %v", err)
	}
}

func TestPages_OrderPreserved(t *testing.T) {
	sizes := []raster.PageSize{
		{Width: 100, Height: 100},
		{Width: 200, Height: 100},
		{Width: 300, Height: 100},
	}
	path := writeFixture(t, sizes)

	src, err := raster.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	iter := src.Pages(context.Background(), 72, 0)
	var indices []int
	var widths []int
	for iter.Next() {
		indices = append(indices, iter.Page().Index)
		widths = append(widths, iter.Page().Width)
	}
	if err := iter.Err(); err != nil {
		t.Fatalf("Iteration failed: %v", err)
	}

	for i, idx := range indices {
		if idx != i {
			t.Errorf("Expected ascending indices, got %v", indices)
			break
		}
	}
	// At 72 DPI pixel width equals point width.
	for i, w := range widths {
		if w != int(sizes[i].Width) {
			t.Errorf("Page %d: expected width %d, got %d", i, int(sizes[i].Width), w)
		}
	}
}

func TestPages_Cancellation(t *testing.T) {
	path := writeFixture(t, []raster.PageSize{
		{Width: 100, Height: 100},
		{Width: 100, Height: 100},
	})

	src, err := raster.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	iter := src.Pages(ctx, 72, 0)

	if !iter.Next() {
		t.Fatalf("Expected first page, err: %v", iter.Err())
	}
	cancel()
	if iter.Next() {
		t.Error("Expected iteration to stop after cancellation")
	}
	if iter.Err() == nil {
		t.Error("Expected context error after cancellation")
	}
}

func TestPages_DownscaleCap(t *testing.T) {
	path := writeFixture(t, []raster.PageSize{{Width: 612, Height: 792}})

	src, err := raster.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	// At 300 DPI the long side would be 3300px; cap it at 1000.
	iter := src.Pages(context.Background(), 300, 1000)
	if !iter.Next() {
		t.Fatalf("Expected a page, err: %v", iter.Err())
	}
	page := iter.Page()
	if page.Height > 1000 {
		t.Errorf("Expected long side capped at 1000px, got %d", page.Height)
	}
	if page.Width <= 0 || page.Height <= 0 {
		t.Errorf("Expected positive raster dims, got %dx%d", page.Width, page.Height)
	}
}

func TestPages_NoCapBelowLimit(t *testing.T) {
	path := writeFixture(t, []raster.PageSize{{Width: 612, Height: 792}})

	src, err := raster.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	// 792pt at 100 DPI is 1100px, well under the cap: DPI must be untouched.
	iter := src.Pages(context.Background(), 100, 5000)
	if !iter.Next() {
		t.Fatalf("Expected a page, err: %v", iter.Err())
	}
	page := iter.Page()
	if page.Width != 850 || page.Height != 1100 {
		t.Errorf("Expected 850x1100 raster, got %dx%d", page.Width, page.Height)
	}
}
