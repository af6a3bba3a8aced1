package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/hazetools/dehaze/internal/batch"
	"github.com/hazetools/dehaze/internal/codec"
	"github.com/hazetools/dehaze/internal/config"
	"github.com/hazetools/dehaze/internal/dcp"
	"github.com/hazetools/dehaze/internal/render"
	"github.com/hazetools/dehaze/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "--version", "-v", "version":
		fmt.Printf("dehaze %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	case "--help", "-h", "help":
		printUsage()
		return
	}

	log := newLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "run":
		err = runSingle(ctx, log, os.Args[2:])
	case "batch":
		err = runBatch(ctx, log, os.Args[2:])
	case "serve":
		err = runServe(ctx, log, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func printUsage() {
	fmt.Println("dehaze - single image haze removal with the dark channel prior")
	fmt.Println()
	fmt.Println("Usage: dehaze <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run      Dehaze one image and write the results to a directory")
	fmt.Println("  batch    Sweep a parameter grid over one image")
	fmt.Println("  serve    Start the HTTP server with SSE progress streaming")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  DEHAZE_LOG_LEVEL=debug    Enable debug logging")
	fmt.Println()
	fmt.Println("Run 'dehaze <command> -h' for command options.")
}

// newLogger builds the process logger: human-readable console output on
// stderr, leveled via DEHAZE_LOG_LEVEL.
func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if os.Getenv("DEHAZE_LOG_LEVEL") == "debug" {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).With().Timestamp().Logger()
}

// logSink forwards pipeline progress to the process logger.
type logSink struct {
	log zerolog.Logger
}

func (s logSink) Progress(stage, message string) {
	s.log.Info().Str("stage", stage).Msg(message)
}

func (s logSink) Artifact(stage, message string, a dcp.Artifact) {
	s.log.Info().Str("stage", stage).Str("artifact", a.Name).Msg(message)
}

func runSingle(ctx context.Context, log zerolog.Logger, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	in := fs.String("in", "", "input image path (required)")
	out := fs.String("out", "out", "output directory")
	cfgPath := fs.String("config", "", "pipeline config YAML (optional)")
	method := fs.String("method", "", "refinement method override: guided_filter, soft_matting, or all")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		fs.Usage()
		return fmt.Errorf("run: -in is required")
	}

	cfg := dcp.DefaultConfig()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			return err
		}
	}
	if *method != "" {
		cfg.Refinement.Method = dcp.Method(*method)
	}

	img, err := codec.Load(*in)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	res, err := dcp.Run(ctx, img, cfg, logSink{log})
	if err != nil {
		return err
	}
	return writeRunArtifacts(*out, img, res)
}

// writeRunArtifacts saves every artifact of one pipeline run: the shared
// intermediates, per-method transmission heatmaps and dehazed outputs, and
// a side-by-side comparison figure.
func writeRunArtifacts(dir string, img *dcp.Image, res *dcp.Result) error {
	if err := codec.SaveGray(filepath.Join(dir, "dark_channel.png"), res.DarkChannel); err != nil {
		return err
	}
	heat := render.TransmissionHeatmap(res.InitialTransmission)
	if err := codec.SavePNG(filepath.Join(dir, "initial_transmission.png"), heat); err != nil {
		return err
	}
	for _, run := range res.Runs {
		m := string(run.Method)
		if err := codec.Save(filepath.Join(dir, "dehazed_"+m+".png"), run.Radiance); err != nil {
			return err
		}
		heat := render.TransmissionHeatmap(run.Transmission)
		if err := codec.SavePNG(filepath.Join(dir, "transmission_"+m+".png"), heat); err != nil {
			return err
		}
	}

	fig, err := render.ComparisonFigure(img, res)
	if err != nil {
		return err
	}
	return codec.SavePNG(filepath.Join(dir, "comparison.png"), fig)
}

func runBatch(ctx context.Context, log zerolog.Logger, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	in := fs.String("in", "", "input image path (required)")
	out := fs.String("out", "out", "output directory")
	expPath := fs.String("experiment", "", "experiment YAML with parameter_grid (required)")
	workers := fs.Int("workers", 0, "worker count (0 = one per CPU)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *expPath == "" {
		fs.Usage()
		return fmt.Errorf("batch: -in and -experiment are required")
	}

	base, grid, err := config.LoadExperiment(*expPath)
	if err != nil {
		return err
	}
	variants, err := batch.Expand(base, grid)
	if err != nil {
		return err
	}
	img, err := codec.Load(*in)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	log.Info().Int("variants", len(variants)).Int("workers", *workers).Msg("starting batch")
	results := batch.Execute(ctx, img, variants, *workers, log)

	for _, r := range results {
		if r.Err != nil {
			continue
		}
		runDir := filepath.Join(*out, r.Variant.Name)
		if err := os.MkdirAll(runDir, 0o755); err != nil {
			return fmt.Errorf("failed to create run directory: %w", err)
		}
		if err := writeRunArtifacts(runDir, img, r.Result); err != nil {
			return err
		}
	}

	f, err := os.Create(filepath.Join(*out, "summary.csv"))
	if err != nil {
		return fmt.Errorf("failed to create summary: %w", err)
	}
	defer f.Close()
	if err := batch.WriteSummary(f, results); err != nil {
		return err
	}
	log.Info().Str("dir", *out).Msg("batch finished")
	return ctx.Err()
}

func runServe(ctx context.Context, log zerolog.Logger, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", ":8080", "listen address")
	workers := fs.Int("workers", 0, "experiment worker count (0 = one per CPU)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	srv := server.New(log, server.WithWorkers(*workers))
	return srv.ListenAndServe(ctx, *addr)
}
