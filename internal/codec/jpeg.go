package codec

import (
	"image"
	"image/jpeg"
	"io"
)

// jpegCodec is the baseline interchange codec. It is always available and is
// the only format the assembler can embed directly as a PDF image stream.
type jpegCodec struct{}

func (jpegCodec) Format() Format { return FormatJPEG }

func (jpegCodec) Encode(w io.Writer, img image.Image, quality int) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}
