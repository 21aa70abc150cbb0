package codec

import (
	"image"
	"io"

	"github.com/chai2010/webp"
)

// webpCodec compresses better than JPEG and ranks first in the probe, but PDF
// image streams cannot carry it, so the embed policy never selects it today.
type webpCodec struct{}

func (webpCodec) Format() Format { return FormatWebP }

func (webpCodec) Encode(w io.Writer, img image.Image, quality int) error {
	return webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
}
