// Package codec holds the lossy image codecs used to re-encode rendered
// pages, the process-wide capability probe that ranks them, and the encoder
// that materializes pages with a bounded quality-downgrade retry ladder.
package codec

import (
	"image"
	"io"
)

// Format identifies a lossy image codec.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
)

// Codec encodes an image into a compressed payload at a given quality (0-100).
type Codec interface {
	Format() Format
	Encode(w io.Writer, img image.Image, quality int) error
}

// EncodedPage is the compressed payload of a single rendered page.
type EncodedPage struct {
	Index  int
	Format Format
	Data   []byte
	Width  int
	Height int
}
