package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Lllllllleong/ocrgrabber/internal/config"
	"github.com/Lllllllleong/ocrgrabber/internal/gcp"
	"github.com/Lllllllleong/ocrgrabber/internal/logging"
	"github.com/Lllllllleong/ocrgrabber/internal/models"
	"github.com/Lllllllleong/ocrgrabber/internal/services"
	"github.com/Lllllllleong/ocrgrabber/internal/source"
)

type options struct {
	locations []string
	engine    string
	language  string
	workers   int
	scale     float64
	jsonOut   bool
	quiet     bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ocrgrab: %v\n", err)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code, err := run(ctx, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ocrgrab: %v\n", err)
		os.Exit(1)
	}
	os.Exit(code)
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: ocrgrab [flags] <path|gs://bucket/object|s3://bucket/key>...\n")
		flag.PrintDefaults()
	}
	flag.StringVar(&opts.engine, "engine", "", "OCR engine: tesseract or vertex (default from OCRGRAB_OCR_ENGINE)")
	flag.StringVar(&opts.language, "lang", "", "OCR language(s), e.g. eng or eng+deu")
	flag.IntVar(&opts.workers, "workers", 0, "Concurrent recognition tasks (default: number of CPUs)")
	flag.Float64Var(&opts.scale, "scale", 0, "PDF render scale, 1.0 = 72 DPI")
	flag.BoolVar(&opts.jsonOut, "json", false, "Print the final snapshot as JSON")
	flag.BoolVar(&opts.quiet, "quiet", false, "Do not print progress")
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		return options{}, fmt.Errorf("missing input location")
	}
	opts.locations = flag.Args()
	return opts, nil
}

func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.engine != "" {
		cfg.OCR.Engine = opts.engine
	}
	if opts.language != "" {
		cfg.Pipeline.Language = opts.language
	}
	if opts.workers > 0 {
		cfg.Pipeline.Workers = opts.workers
		cfg.Pipeline.RasterWorkers = max(1, opts.workers/2)
	}
	if opts.scale > 0 {
		cfg.Pipeline.Scale = opts.scale
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLoader(ctx context.Context, cfg *config.Config, locations []string) (*source.Loader, error) {
	schemes := source.Schemes(locations)
	var fetchers []source.Option
	if schemes[source.SchemeGCS] {
		client, err := gcp.NewStorageClient(ctx)
		if err != nil {
			return nil, err
		}
		fetchers = append(fetchers, source.WithFetcher(source.SchemeGCS, source.NewGCS(client, cfg.Pipeline.MaxSizeBytes)))
	}
	if schemes[source.SchemeS3] {
		client, err := source.NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		fetchers = append(fetchers, source.WithFetcher(source.SchemeS3, source.NewS3(client, cfg.Pipeline.MaxSizeBytes)))
	}
	return source.NewLoader(cfg.Pipeline.MaxSizeBytes, fetchers...), nil
}

func run(ctx context.Context, opts options) (int, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return 0, fmt.Errorf("load config: %w", err)
	}
	// Progress goes to stderr, results to stdout.
	logging.SetupWithWriter(os.Stderr, cfg.Log)

	loader, err := newLoader(ctx, cfg, opts.locations)
	if err != nil {
		return 0, fmt.Errorf("create loader: %w", err)
	}
	inputs, err := loader.Load(ctx, opts.locations...)
	if err != nil {
		return 0, err
	}

	pipeline, err := services.NewPipeline(ctx, cfg)
	if err != nil {
		return 0, err
	}
	defer pipeline.Close()

	changes, unsubscribe := pipeline.Subscribe()
	defer unsubscribe()

	receipt, err := pipeline.Submit(ctx, inputs)
	if err != nil {
		return 0, err
	}
	for _, r := range receipt.Rejections {
		fmt.Fprintf(os.Stderr, "rejected %s: %s\n", r.FileName, r.Reason)
	}

	state, err := waitWithProgress(ctx, pipeline, changes, opts.quiet)
	if err != nil {
		_ = pipeline.Cancel(receipt.RunID)
		return 0, err
	}

	snap := pipeline.Snapshot()
	if opts.jsonOut {
		err = writeJSON(os.Stdout, receipt, state, snap)
	} else {
		err = writeText(os.Stdout, snap)
	}
	if err != nil {
		return 0, err
	}
	if sum := pipeline.Summary(); sum.Failed > 0 || sum.DocumentFailures > 0 || len(receipt.Rejections) > 0 {
		return 3, nil
	}
	return 0, nil
}

func waitWithProgress(ctx context.Context, pipeline *services.Pipeline, changes <-chan struct{}, quiet bool) (models.RunState, error) {
	done := make(chan struct{})
	var state models.RunState
	var waitErr error
	go func() {
		defer close(done)
		state, waitErr = pipeline.Wait(ctx)
	}()

	for {
		select {
		case <-done:
			if !quiet {
				printProgress(pipeline.Summary(), true)
			}
			return state, waitErr
		case <-changes:
			if !quiet {
				printProgress(pipeline.Summary(), false)
			}
		}
	}
}

func printProgress(s models.Summary, final bool) {
	end := "\r"
	if final {
		end = "\n"
	}
	fmt.Fprintf(os.Stderr, "rendering %d  recognizing %d  done %d  failed %d  undecodable %d%s",
		s.Rendering, s.Recognizing, s.Done, s.Failed, s.DocumentFailures, end)
}

func writeText(w io.Writer, snap models.Snapshot) error {
	for _, f := range snap.Failures {
		if _, err := fmt.Fprintf(w, "== %s: %s ==\n\n", f.Name, f.Error.Error()); err != nil {
			return err
		}
	}
	for _, p := range snap.Pages {
		var err error
		switch {
		case p.Result != nil:
			_, err = fmt.Fprintf(w, "== %s page %d (confidence %.1f, %d lines, %d words, %d paragraphs, %d symbols) ==\n%s\n\n",
				p.Name, p.PageIndex, p.Result.Confidence, p.Result.LineCount, p.Result.WordCount,
				p.Result.ParagraphCount, p.Result.SymbolCount, p.Result.Text)
		case p.Error != nil:
			_, err = fmt.Fprintf(w, "== %s page %d: %s ==\n\n", p.Name, p.PageIndex, p.Error.Error())
		default:
			_, err = fmt.Fprintf(w, "== %s page %d: %s ==\n\n", p.Name, p.PageIndex, p.Status)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, receipt models.Receipt, state models.RunState, snap models.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(models.ExtractTextResponse{Receipt: receipt, State: state, Snapshot: snap})
}
