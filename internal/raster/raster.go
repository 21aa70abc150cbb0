// Package raster opens source PDF documents and renders their pages to RGB
// pixel buffers at a target DPI, one page at a time.
package raster

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PageSize is a page's physical dimensions in PDF points (1/72 inch).
type PageSize struct {
	Width  float64
	Height float64
}

// Page is a single rendered page. The pixel buffer is valid until the next
// call to the iterator's Next.
type Page struct {
	Index  int
	Width  int
	Height int
	Image  image.Image
	Size   PageSize
}

// Source is an open source document. It is read-only and must be closed once
// rendering is done.
type Source struct {
	path  string
	doc   *fitz.Document
	sizes []PageSize
}

// Open opens a PDF document and reads its page geometry. It fails when the
// file is missing, unreadable or not a valid document.
func Open(path string) (*Source, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open document %s: %w", path, err)
	}

	// MuPDF's page bounds are rounded to whole pixels; the physical media box
	// dimensions must stay fractional, so they are read with pdfcpu instead.
	dims, err := api.PageDimsFile(path)
	if err != nil {
		doc.Close()
		return nil, fmt.Errorf("cannot read page dimensions of %s: %w", path, err)
	}
	if len(dims) != doc.NumPage() {
		doc.Close()
		return nil, fmt.Errorf("inconsistent page count for %s: %d vs %d", path, len(dims), doc.NumPage())
	}

	sizes := make([]PageSize, len(dims))
	for i, d := range dims {
		sizes[i] = PageSize{Width: d.Width, Height: d.Height}
	}

	return &Source{path: path, doc: doc, sizes: sizes}, nil
}

// PageCount returns the number of pages in the document.
func (s *Source) PageCount() int {
	return len(s.sizes)
}

// PageSize returns the physical size of page i in points.
func (s *Source) PageSize(i int) PageSize {
	return s.sizes[i]
}

// Metadata returns the document-level metadata fields. MuPDF pads each value
// to a fixed-size NUL-filled buffer, so values are trimmed at the first NUL
// and fields that are empty after trimming are dropped.
func (s *Source) Metadata() map[string]string {
	meta := make(map[string]string)
	for k, v := range s.doc.Metadata() {
		if i := strings.IndexByte(v, 0); i >= 0 {
			v = v[:i]
		}
		if v == "" {
			continue
		}
		meta[k] = v
	}
	return meta
}

// Close releases the underlying document handle.
func (s *Source) Close() error {
	return s.doc.Close()
}

// Pages returns a lazy, order-preserving, single-use iterator over rendered
// pages. Each page's pixel dimensions equal its physical dimensions scaled by
// dpi/72. When maxPixelDim > 0, pages whose longer rendered side would exceed
// it are rendered at a reduced DPI instead.
func (s *Source) Pages(ctx context.Context, dpi, maxPixelDim int) *PageIter {
	return &PageIter{src: s, ctx: ctx, dpi: dpi, maxPixelDim: maxPixelDim}
}

// PageIter renders pages in ascending index order.
type PageIter struct {
	src         *Source
	ctx         context.Context
	dpi         int
	maxPixelDim int
	next        int
	page        Page
	err         error
}

// Next renders the next page. It returns false when the sequence is exhausted
// or rendering failed; check Err afterwards.
func (it *PageIter) Next() bool {
	if it.err != nil || it.next >= it.src.PageCount() {
		return false
	}

	// Cancellation is checked once per page boundary.
	if err := it.ctx.Err(); err != nil {
		it.err = err
		return false
	}

	idx := it.next
	dpi := it.dpi
	if it.maxPixelDim > 0 {
		dpi = capDPI(it.src.sizes[idx], dpi, it.maxPixelDim)
	}

	img, err := it.src.doc.ImageDPI(idx, float64(dpi))
	if err != nil {
		it.err = fmt.Errorf("cannot render page %d: %w", idx+1, err)
		return false
	}

	bounds := img.Bounds()
	it.page = Page{
		Index:  idx,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Image:  img,
		Size:   it.src.sizes[idx],
	}
	it.next++
	return true
}

// Page returns the page rendered by the last successful Next.
func (it *PageIter) Page() Page {
	return it.page
}

// Err returns the error that stopped iteration, if any.
func (it *PageIter) Err() error {
	return it.err
}

// capDPI lowers the render DPI so the page's longer side stays within
// maxPixelDim pixels.
func capDPI(size PageSize, dpi, maxPixelDim int) int {
	longSide := size.Width
	if size.Height > longSide {
		longSide = size.Height
	}
	if longSide <= 0 {
		return dpi
	}

	pixels := longSide * float64(dpi) / 72.0
	if pixels <= float64(maxPixelDim) {
		return dpi
	}

	capped := int(float64(maxPixelDim) * 72.0 / longSide)
	if capped < 1 {
		capped = 1
	}
	return capped
}
