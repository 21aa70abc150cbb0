package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"pdfsqueeze/internal/codec"
	"pdfsqueeze/internal/common"
	"pdfsqueeze/internal/config"
	"pdfsqueeze/internal/history"
	"pdfsqueeze/internal/pipeline"
)

func main() {
	level := flag.String("level", "", "compression level: Low, Medium, High, Very High (default from preferences)")
	output := flag.String("o", "", "output path (default <input>_compressed.pdf)")
	keepMetadata := flag.Bool("keep-metadata", false, "copy document metadata into the output")
	noDownscale := flag.Bool("no-downscale", false, "disable capping of oversized page rasters")
	saveDefaults := flag.Bool("save-defaults", false, "persist the given options as preferences")
	showHistory := flag.Bool("history", false, "print recent runs and lifetime stats, then exit")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] input.pdf\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg := config.New()
	logger := cfg.Logger

	// The run itself does not need the history store; open it best-effort.
	store, err := history.Open(cfg.DatabasePath)
	if err != nil {
		logger.Warn("history database unavailable", "path", cfg.DatabasePath, "error", err)
		store = nil
	}

	if *showHistory {
		if store == nil {
			fmt.Fprintln(os.Stderr, "Error: history database unavailable")
			os.Exit(1)
		}
		if err := printHistory(store); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	input := flag.Arg(0)

	opts := resolveOptions(store, *level, *keepMetadata, *noDownscale)
	if _, _, ok := opts.Level.Params(); !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown compression level %q\n", opts.Level)
		os.Exit(2)
	}

	if *saveDefaults && store != nil {
		err := store.UpdatePreferences(history.UserPreferencesData{
			DefaultCompressionLevel: string(opts.Level),
			RemoveMetadata:          opts.RemoveMetadata,
			DownscaleImages:         opts.DownscaleImages,
		})
		if err != nil {
			logger.Warn("failed to save preferences", "error", err)
		}
	}

	dest := *output
	if dest == "" {
		dest = common.SuggestedOutputPath(input)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p := pipeline.New(cfg, codec.Default(logger), store)
	events, err := p.Run(ctx, pipeline.Request{
		InputPath:  input,
		OutputPath: dest,
		Options:    opts,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	for e := range events {
		switch e.Type {
		case pipeline.EventProgress:
			fmt.Printf("\r%5.1f%%", e.Percent)
		case pipeline.EventSuccess:
			fmt.Printf("\n%s\n", e.Message)
			fmt.Printf("Original: %s -> Compressed: %s\n",
				common.FormatFileSize(e.OriginalSize),
				common.FormatFileSize(e.CompressedSize))
			fmt.Printf("Saved to %s\n", dest)
		case pipeline.EventFailure:
			fmt.Printf("\n")
			fmt.Fprintf(os.Stderr, "Error: %s\n", e.Message)
			os.Exit(1)
		}
	}
}

// resolveOptions layers CLI flags over stored preferences. An explicit -level
// wins; otherwise the stored default level applies.
func resolveOptions(store *history.Store, level string, keepMetadata, noDownscale bool) pipeline.Options {
	prefs := history.DefaultPreferences()
	if store != nil {
		if stored, err := store.GetPreferences(); err == nil {
			prefs = *stored
		}
	}

	if level == "" {
		level = prefs.DefaultCompressionLevel
	}

	return pipeline.Options{
		Level:           pipeline.Level(level),
		RemoveMetadata:  !keepMetadata,
		DownscaleImages: !noDownscale,
	}
}

func printHistory(store *history.Store) error {
	stats, err := store.GetStats()
	if err != nil {
		return err
	}
	fmt.Printf("Runs: %d, saved %s (%s -> %s)\n",
		stats.TotalRuns,
		common.FormatFileSize(stats.TotalDataSaved),
		common.FormatFileSize(stats.TotalOriginal),
		common.FormatFileSize(stats.TotalCompressed))

	runs, err := store.RecentRuns(10)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Printf("%s  %-9s  %s -> %s  %s\n",
			r.CreatedAt.Format("2006-01-02 15:04"),
			r.Level,
			common.FormatFileSize(r.OriginalSize),
			common.FormatFileSize(r.CompressedSize),
			r.OutputPath)
	}
	return nil
}
