package codec

import (
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
)

// Registry is the immutable result of the codec capability probe: the usable
// codecs ordered best-first. Capabilities cannot change mid-process, so the
// registry is computed once and never re-queried per page.
type Registry struct {
	available []Codec
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide registry, probing on first call. Later
// calls return the cached result and ignore the logger.
func Default(logger *slog.Logger) *Registry {
	defaultOnce.Do(func() {
		defaultReg = Detect(logger)
	})
	return defaultReg
}

// Detect probes each candidate codec by encoding a one-pixel image and keeps
// the survivors in best-first order. The baseline JPEG codec cannot fail the
// probe, so the result is never empty.
func Detect(logger *slog.Logger) *Registry {
	candidates := []Codec{webpCodec{}, jpegCodec{}}

	reg := &Registry{}
	sample := image.NewRGBA(image.Rect(0, 0, 1, 1))

	for _, c := range candidates {
		if err := c.Encode(io.Discard, sample, 75); err != nil {
			if logger != nil {
				logger.Warn("codec unavailable", "format", c.Format(), "error", err)
			}
			continue
		}
		reg.available = append(reg.available, c)
	}

	if logger != nil {
		logger.Info("codec capabilities detected", "formats", reg.Formats())
	}

	return reg
}

// Available returns the usable codecs, best-first.
func (r *Registry) Available() []Codec {
	out := make([]Codec, len(r.available))
	copy(out, r.available)
	return out
}

// Formats returns the usable codec formats, best-first.
func (r *Registry) Formats() []Format {
	formats := make([]Format, len(r.available))
	for i, c := range r.available {
		formats[i] = c.Format()
	}
	return formats
}

// Lookup returns the codec for a format, if usable.
func (r *Registry) Lookup(f Format) (Codec, bool) {
	for _, c := range r.available {
		if c.Format() == f {
			return c, true
		}
	}
	return nil, false
}

// BestEmbeddable returns the highest-ranked codec whose format appears in
// embeddable. This is the policy boundary between the probe's ranking and the
// assembler's interchange contract: the assembler declares what it can embed
// and the probe decides which of those it can produce.
func (r *Registry) BestEmbeddable(embeddable ...Format) (Codec, error) {
	for _, c := range r.available {
		for _, f := range embeddable {
			if c.Format() == f {
				return c, nil
			}
		}
	}
	return nil, fmt.Errorf("no usable codec among embeddable formats %v", embeddable)
}
