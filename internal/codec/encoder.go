package codec

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
)

// EncodeOptions holds page encoding options
type EncodeOptions struct {
	// Quality is the primary encode quality (0-100).
	Quality int
	// FallbackQualities are tried in order when an encode attempt fails.
	FallbackQualities []int
}

// DefaultEncodeOptions returns default encoding options
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{
		Quality:           75,
		FallbackQualities: []int{60},
	}
}

// Encoder materializes rendered pages as a single interchange format.
type Encoder struct {
	codec  Codec
	opts   EncodeOptions
	logger *slog.Logger
}

// NewEncoder creates a new encoder for the given codec
func NewEncoder(c Codec, opts EncodeOptions, logger *slog.Logger) (*Encoder, error) {
	if c == nil {
		return nil, fmt.Errorf("no codec provided")
	}

	if opts.Quality == 0 {
		opts.Quality = DefaultEncodeOptions().Quality
	}
	if opts.Quality < 0 || opts.Quality > 100 {
		return nil, fmt.Errorf("quality %d out of range 0-100", opts.Quality)
	}
	for _, q := range opts.FallbackQualities {
		if q < 0 || q > 100 {
			return nil, fmt.Errorf("fallback quality %d out of range 0-100", q)
		}
	}

	return &Encoder{codec: c, opts: opts, logger: logger}, nil
}

// Format returns the interchange format the encoder produces.
func (e *Encoder) Format() Format {
	return e.codec.Format()
}

// EncodePage compresses a rendered page. The primary quality is tried first,
// then each fallback quality once; the last attempt's error is returned when
// the ladder is exhausted.
func (e *Encoder) EncodePage(index int, img image.Image) (EncodedPage, error) {
	qualities := append([]int{e.opts.Quality}, e.opts.FallbackQualities...)

	var lastErr error
	for attempt, quality := range qualities {
		var buf bytes.Buffer
		if err := e.codec.Encode(&buf, img, quality); err != nil {
			lastErr = err
			if e.logger != nil {
				e.logger.Warn("page encode failed",
					"page", index+1,
					"quality", quality,
					"attempt", attempt+1,
					"error", err)
			}
			continue
		}

		bounds := img.Bounds()
		return EncodedPage{
			Index:  index,
			Format: e.codec.Format(),
			Data:   buf.Bytes(),
			Width:  bounds.Dx(),
			Height: bounds.Dy(),
		}, nil
	}

	return EncodedPage{}, fmt.Errorf("encoding page %d failed after %d attempts: %w", index+1, len(qualities), lastErr)
}
