// Package pipeline sequences the raster-recompression run: render each
// source page, re-encode it, assemble a new image-per-page document, verify
// the result actually shrank and copy it to the destination, reporting
// staged progress over an ordered event stream.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pdfsqueeze/internal/assemble"
	"pdfsqueeze/internal/codec"
	"pdfsqueeze/internal/common"
	"pdfsqueeze/internal/config"
	"pdfsqueeze/internal/history"
	"pdfsqueeze/internal/raster"
)

const (
	// fallbackQuality is the reduced quality used when a page encode fails.
	fallbackQuality = 60

	// maxRasterDimension caps a page's longer raster side when the
	// downscale option is set. Normal page sizes never reach it, so the
	// fixed DPI table holds for them verbatim.
	maxRasterDimension = 5000

	// staleRunMaxAge is how long leftover run directories survive in the
	// working dir before the next run sweeps them.
	staleRunMaxAge = 24 * time.Hour
)

// State identifies the orchestrator's current phase.
type State string

const (
	StateIdle        State = "idle"
	StateRasterizing State = "rasterizing"
	StateEncoding    State = "encoding"
	StateAssembling  State = "assembling"
	StateGuarding    State = "guarding"
	StateFinalizing  State = "finalizing"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Request describes one compression run.
type Request struct {
	InputPath  string
	OutputPath string
	Options    Options
}

// Pipeline executes compression runs. One run at a time per instance; the
// only state shared across runs is the write-once codec registry.
type Pipeline struct {
	workingDir string
	registry   *codec.Registry
	store      *history.Store
	logger     *slog.Logger

	mu      sync.Mutex
	running bool
	state   State
}

// New creates a pipeline. The history store may be nil, in which case runs
// are not recorded.
func New(cfg *config.Config, registry *codec.Registry, store *history.Store) *Pipeline {
	return &Pipeline{
		workingDir: cfg.WorkingDir,
		registry:   registry,
		store:      store,
		logger:     cfg.Logger,
		state:      StateIdle,
	}
}

// State returns the orchestrator's current phase.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Run validates the request and executes it on a background worker, returning
// the run's ordered event stream. The channel delivers zero or more progress
// events followed by exactly one success or failure event, then closes.
func (p *Pipeline) Run(ctx context.Context, req Request) (<-chan Event, error) {
	if req.InputPath == "" {
		return nil, errors.New("no input path provided")
	}
	if req.OutputPath == "" {
		return nil, errors.New("no output path provided")
	}
	if _, _, ok := req.Options.Level.Params(); !ok {
		return nil, fmt.Errorf("invalid compression level %q", req.Options.Level)
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil, errors.New("a run is already in progress")
	}
	p.running = true
	p.state = StateIdle
	p.mu.Unlock()

	events := make(chan Event, 16)
	go func() {
		defer close(events)
		defer func() {
			p.mu.Lock()
			p.running = false
			p.mu.Unlock()
		}()
		p.execute(ctx, req, events)
	}()

	return events, nil
}

// encodedRef points at one encoded page staged on disk between the encoding
// and assembly phases.
type encodedRef struct {
	path   string
	format codec.Format
	pixelW int
	pixelH int
	size   raster.PageSize
}

func (p *Pipeline) execute(ctx context.Context, req Request, events chan<- Event) {
	reporter := &progressReporter{emit: func(e Event) { events <- e }}

	quality, dpi, _ := req.Options.Level.Params()
	p.logger.Info("starting compression run",
		"input", req.InputPath,
		"level", req.Options.Level,
		"quality", quality,
		"dpi", dpi)

	cleanupStaleRuns(p.workingDir, staleRunMaxAge)

	// The input must open before any progress is reported.
	p.setState(StateRasterizing)
	src, err := raster.Open(req.InputPath)
	if err != nil {
		p.fail(events, newError(KindDocumentOpen, "Cannot open PDF: %v", err))
		return
	}
	srcClosed := false
	defer func() {
		if !srcClosed {
			src.Close()
		}
	}()

	inputInfo, err := os.Stat(req.InputPath)
	if err != nil {
		p.fail(events, newError(KindDocumentOpen, "Cannot read input file: %v", err))
		return
	}
	originalSize := inputInfo.Size()

	totalPages := src.PageCount()
	if totalPages == 0 {
		p.fail(events, newError(KindDocumentOpen, "Document has no pages"))
		return
	}

	// Temporary scope for the whole run, removed on every exit path.
	runID := common.GenerateUUID()
	tempDir := filepath.Join(p.workingDir, runID)
	if err := os.MkdirAll(tempDir, common.DefaultFilePermissions); err != nil {
		p.fail(events, newError(KindAssembly, "Cannot create temporary directory: %v", err))
		return
	}
	defer os.RemoveAll(tempDir)

	interchange, err := p.registry.BestEmbeddable(assemble.EmbeddableFormats()...)
	if err != nil {
		p.fail(events, newError(KindEncode, "No usable image codec: %v", err))
		return
	}
	encoder, err := codec.NewEncoder(interchange, codec.EncodeOptions{
		Quality:           quality,
		FallbackQualities: []int{fallbackQuality},
	}, p.logger)
	if err != nil {
		p.fail(events, newError(KindEncode, "Cannot configure encoder: %v", err))
		return
	}

	var sourceMeta map[string]string
	if !req.Options.RemoveMetadata {
		sourceMeta = src.Metadata()
	}

	maxPixelDim := 0
	if req.Options.DownscaleImages {
		maxPixelDim = maxRasterDimension
	}

	// Phase 1: rasterize and encode each page in order, staging payloads in
	// the temp dir.
	staged := make([]encodedRef, 0, totalPages)
	iter := src.Pages(ctx, dpi, maxPixelDim)
	for iter.Next() {
		page := iter.Page()

		p.setState(StateEncoding)
		encoded, err := encoder.EncodePage(page.Index, page.Image)
		if err != nil {
			p.fail(events, newError(KindEncode, "Cannot encode page %d: %v", page.Index+1, err))
			return
		}

		name := filepath.Join(tempDir, fmt.Sprintf("page_%04d.%s", page.Index, encoded.Format))
		if err := os.WriteFile(name, encoded.Data, 0644); err != nil {
			p.fail(events, newError(KindEncode, "Cannot stage page %d: %v", page.Index+1, err))
			return
		}
		staged = append(staged, encodedRef{
			path:   name,
			format: encoded.Format,
			pixelW: encoded.Width,
			pixelH: encoded.Height,
			size:   page.Size,
		})

		reporter.report(pageProgress(page.Index+1, totalPages))
		p.setState(StateRasterizing)
	}
	if err := iter.Err(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			p.fail(events, err)
			return
		}
		p.fail(events, newError(KindEncode, "Cannot render page: %v", err))
		return
	}

	// The source handle is released before assembly begins; no progress is
	// reported during this window.
	src.Close()
	srcClosed = true

	// Phase 2: assemble the output document in temporary scope.
	p.setState(StateAssembling)
	builder := assemble.NewBuilder()
	builder.SetMetadata(sourceMeta)

	for i, ref := range staged {
		data, err := os.ReadFile(ref.path)
		if err != nil {
			p.fail(events, newError(KindAssembly, "Cannot read staged page %d: %v", i+1, err))
			return
		}
		err = builder.AddPage(codec.EncodedPage{
			Index:  i,
			Format: ref.format,
			Data:   data,
			Width:  ref.pixelW,
			Height: ref.pixelH,
		}, ref.size)
		if err != nil {
			p.fail(events, newError(KindAssembly, "Cannot embed page %d: %v", i+1, err))
			return
		}
		reporter.report(embedProgress(i+1, totalPages))
	}

	assembled := filepath.Join(tempDir, "compressed_output.pdf")
	if err := builder.WriteFile(assembled); err != nil {
		p.fail(events, newError(KindAssembly, "Cannot write output document: %v", err))
		return
	}

	compacted := filepath.Join(tempDir, "compressed_output_opt.pdf")
	if err := assemble.Compact(assembled, compacted, sourceMeta); err != nil {
		p.fail(events, newError(KindAssembly, "Cannot optimize output document: %v", err))
		return
	}
	reporter.report(serializedProgress)

	// Phase 3: size guard, then atomic copy to the destination.
	p.setState(StateGuarding)
	compactedInfo, err := os.Stat(compacted)
	if err != nil {
		p.fail(events, newError(KindAssembly, "Cannot read output document: %v", err))
		return
	}
	compressedSize := compactedInfo.Size()

	if err := guardSize(originalSize, compressedSize); err != nil {
		p.fail(events, err)
		return
	}

	p.setState(StateFinalizing)
	if err := common.CopyFile(compacted, req.OutputPath); err != nil {
		p.fail(events, newError(KindAssembly, "Cannot write destination file: %v", err))
		return
	}
	reporter.report(finishedProgress)

	savings := (1 - float64(compressedSize)/float64(originalSize)) * 100
	message := fmt.Sprintf("Compression complete! File size reduced by %.1f%%", savings)

	p.recordRun(runID, req, originalSize, compressedSize, savings)

	p.setState(StateDone)
	p.logger.Info("compression run finished",
		"original_size", originalSize,
		"compressed_size", compressedSize,
		"savings_percent", fmt.Sprintf("%.1f", savings))

	events <- Event{
		Type:           EventSuccess,
		Percent:        finishedProgress,
		Message:        message,
		OriginalSize:   originalSize,
		CompressedSize: compressedSize,
	}
}

func (p *Pipeline) fail(events chan<- Event, err error) {
	p.setState(StateFailed)
	p.logger.Error("compression run failed", "error", err)
	events <- Event{
		Type:    EventFailure,
		Message: err.Error(),
		Err:     err,
	}
}

func (p *Pipeline) recordRun(runID string, req Request, originalSize, compressedSize int64, savings float64) {
	if p.store == nil {
		return
	}
	err := p.store.RecordRun(history.Run{
		RunID:          runID,
		InputPath:      req.InputPath,
		OutputPath:     req.OutputPath,
		Level:          string(req.Options.Level),
		OriginalSize:   originalSize,
		CompressedSize: compressedSize,
		SavedBytes:     originalSize - compressedSize,
		Ratio:          savings,
	})
	if err != nil {
		p.logger.Warn("failed to record run history", "error", err)
	}
}

// cleanupStaleRuns removes leftover run directories older than maxAge.
func cleanupStaleRuns(workingDir string, maxAge time.Duration) {
	entries, err := os.ReadDir(workingDir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.RemoveAll(filepath.Join(workingDir, entry.Name()))
		}
	}
}
