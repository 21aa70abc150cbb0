// Package assemble builds the output document: one page per source page,
// sized exactly like the source page, with the encoded image stretched to
// fill it. Serialization happens in temporary scope; callers copy the result
// to its destination only after the whole run succeeds.
package assemble

import (
	"errors"
	"fmt"

	"pdfsqueeze/internal/codec"
	"pdfsqueeze/internal/raster"
)

// EmbeddableFormats lists the codec formats the builder can embed directly as
// PDF image streams. JPEG maps onto the DCTDecode filter; nothing else does.
func EmbeddableFormats() []codec.Format {
	return []codec.Format{codec.FormatJPEG}
}

// Builder accumulates encoded pages and serializes them as a new document.
type Builder struct {
	pages []pageEntry
	meta  map[string]string
}

type pageEntry struct {
	width  float64
	height float64
	pixelW int
	pixelH int
	data   []byte
}

// NewBuilder creates an empty builder with no metadata.
func NewBuilder() *Builder {
	return &Builder{}
}

// SetMetadata sets the output document's Info dictionary fields. When never
// called (or called with nil), the output carries no metadata.
func (b *Builder) SetMetadata(meta map[string]string) {
	b.meta = meta
}

// AddPage appends a page sized exactly to the source page's physical size,
// filled by the encoded image.
func (b *Builder) AddPage(page codec.EncodedPage, size raster.PageSize) error {
	if len(page.Data) == 0 {
		return fmt.Errorf("page %d: empty image payload", page.Index+1)
	}
	if !isEmbeddable(page.Format) {
		return fmt.Errorf("page %d: format %s cannot be embedded", page.Index+1, page.Format)
	}
	if page.Width <= 0 || page.Height <= 0 {
		return fmt.Errorf("page %d: invalid pixel dimensions %dx%d", page.Index+1, page.Width, page.Height)
	}
	if size.Width <= 0 || size.Height <= 0 {
		return fmt.Errorf("page %d: invalid page size %.2fx%.2f", page.Index+1, size.Width, size.Height)
	}

	b.pages = append(b.pages, pageEntry{
		width:  size.Width,
		height: size.Height,
		pixelW: page.Width,
		pixelH: page.Height,
		data:   page.Data,
	})
	return nil
}

// PageCount returns the number of pages added so far.
func (b *Builder) PageCount() int {
	return len(b.pages)
}

// WriteFile serializes the document to path. At least one page is required.
func (b *Builder) WriteFile(path string) error {
	if len(b.pages) == 0 {
		return errors.New("no pages to assemble")
	}
	return writeDocument(path, b.pages, infoFields(b.meta))
}

func isEmbeddable(f codec.Format) bool {
	for _, e := range EmbeddableFormats() {
		if f == e {
			return true
		}
	}
	return false
}

// infoFields maps source metadata keys onto Info dictionary names, dropping
// fields that are not document metadata (format, encryption).
func infoFields(meta map[string]string) map[string]string {
	if len(meta) == 0 {
		return nil
	}

	names := map[string]string{
		"title":        "Title",
		"author":       "Author",
		"subject":      "Subject",
		"keywords":     "Keywords",
		"creator":      "Creator",
		"producer":     "Producer",
		"creationDate": "CreationDate",
		"modDate":      "ModDate",
	}

	fields := make(map[string]string)
	for key, name := range names {
		if v := meta[key]; v != "" {
			fields[name] = v
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}
