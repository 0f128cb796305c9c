package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/Tutortoise/dog-breed-detector/assets"
	"github.com/Tutortoise/dog-breed-detector/config"
	"github.com/Tutortoise/dog-breed-detector/detections"
	"github.com/Tutortoise/dog-breed-detector/engines"
)

var commonFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Usage:   "Path to a YAML config file",
		Aliases: []string{"c"},
	},
	&cli.StringFlag{
		Name:    "assets",
		Usage:   "Directory or URL (e.g. s3://bucket/prefix) holding labels.txt and the model (default: resources)",
		Aliases: []string{"a"},
	},
	&cli.StringFlag{
		Name:  "model",
		Usage: "Model file name inside the assets location",
	},
	&cli.StringFlag{
		Name:    "backend",
		Usage:   "Inference backend: onnxruntime or gonnx",
		Aliases: []string{"b"},
	},
	&cli.StringFlag{
		Name:    "onnxruntimeSharedLibrary",
		Usage:   "Path to the onnxruntime shared library",
		Aliases: []string{"s"},
	},
	&cli.StringFlag{
		Name:  "scaler",
		Usage: "Resize filter: nearest, nfnt-nearest, linear or lanczos",
	},
	&cli.StringFlag{
		Name:  "layout",
		Usage: "Input tensor layout: nhwc or nchw",
	},
}

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Serve breed classification over HTTP",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:  "addr",
			Usage: "Listen address",
		},
		&cli.IntFlag{
			Name:    "poolSize",
			Usage:   "Number of detectors, each with its own inference session",
			Aliases: []string{"p"},
		},
		&cli.IntFlag{
			Name:    "topK",
			Usage:   "Number of predictions returned per image",
			Aliases: []string{"k"},
		},
	}, commonFlags...),
	Action: func(c *cli.Context) error {
		cfg, logger, err := setup(c)
		if err != nil {
			return err
		}
		return serve(c.Context, cfg, logger)
	},
}

var classifyCommand = &cli.Command{
	Name:      "classify",
	Usage:     "Classify dog photos",
	ArgsUsage: "<image path or URL>...",
	Flags: append([]cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Write JSON lines. Default when stdout is not a terminal",
		},
	}, commonFlags...),
	Action: func(c *cli.Context) error {
		if c.NArg() == 0 {
			return cli.Exit("at least one image is required", 2)
		}
		cfg, logger, err := setup(c)
		if err != nil {
			return err
		}

		backend, err := newBackend(cfg)
		if err != nil {
			return err
		}
		defer backend.Close()

		detector, err := newDetector(c.Context, cfg, backend, logger)
		if err != nil {
			return err
		}
		defer detector.Close()

		asJSON := c.Bool("json") || (!isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()))
		return classifyImages(c.Context, detector, c.Args().Slice(), os.Stdout, asJSON)
	},
}

func main() {
	app := &cli.App{
		Name:     "dogbreed",
		Usage:    "Detect dog breeds in photos with a pre-trained model",
		Commands: []*cli.Command{serveCommand, classifyCommand},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error("dogbreed failed", "error", err)
		os.Exit(1)
	}
}

// setup loads the config file, applies flag overrides and builds the logger.
func setup(c *cli.Context) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, nil, err
	}
	applyFlags(c, &cfg)
	if os.Getenv("DEBUG") == "true" {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("assets") {
		cfg.Assets.Location = c.String("assets")
	}
	if c.IsSet("model") {
		cfg.Assets.Model = c.String("model")
	}
	if c.IsSet("backend") {
		cfg.Engine.Backend = c.String("backend")
	}
	if c.IsSet("onnxruntimeSharedLibrary") {
		cfg.Engine.LibraryPath = c.String("onnxruntimeSharedLibrary")
	}
	if c.IsSet("scaler") {
		cfg.Image.Scaler = c.String("scaler")
	}
	if c.IsSet("layout") {
		cfg.Image.Layout = c.String("layout")
	}
	if c.IsSet("addr") {
		cfg.Server.Addr = c.String("addr")
	}
	if c.IsSet("poolSize") {
		cfg.Server.PoolSize = c.Int("poolSize")
	}
	if c.IsSet("topK") {
		cfg.Image.TopK = c.Int("topK")
	}
}

func newBackend(cfg config.Config) (engines.Backend, error) {
	opts := cfg.EngineOptions()
	if cfg.Engine.Backend == engines.BackendONNXRuntime || cfg.Engine.Backend == "" {
		opts.LibraryPath = resolveLibraryPath(opts.LibraryPath)
	}
	return engines.New(cfg.Engine.Backend, opts)
}

func newDetector(ctx context.Context, cfg config.Config, backend engines.Backend, logger *slog.Logger) (*detections.Detector, error) {
	prep, err := cfg.Preprocessor()
	if err != nil {
		return nil, err
	}

	source := assets.NewLocation(cfg.Assets.Location)
	detector, err := detections.NewDetector(ctx, source, backend,
		detections.WithLabelsName(cfg.Assets.Labels),
		detections.WithModelName(cfg.Assets.Model),
		detections.WithPreprocessor(prep),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize detector from %s: %w", source.URL(cfg.Assets.Model), err)
	}

	logger.Debug("detector loaded",
		"backend", detector.Backend(),
		"model", source.URL(cfg.Assets.Model),
		"model_size", humanize.Bytes(uint64(detector.ModelSize())),
		"labels", detector.Labels().Len(),
		"layout", detector.Preprocessor().Layout(),
	)
	return detector, nil
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	backend, err := newBackend(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	var labels detections.LabelSet
	pool, err := NewDetectorPool(cfg.Server.PoolSize, cfg.Server.AcquireTimeout, func() (recognizer, error) {
		d, err := newDetector(ctx, cfg, backend, logger)
		if err != nil {
			return nil, err
		}
		labels = d.Labels()
		return d, nil
	})
	if err != nil {
		return fmt.Errorf("failed to create detector pool: %w", err)
	}
	defer pool.Destroy()

	server := NewServer(pool, labels.Labels(), cfg.Image.TopK, cfg.Server.MaxUploadBytes, logger)
	srv := &http.Server{
		Handler:      server.Routes(),
		Addr:         cfg.Server.Addr,
		WriteTimeout: cfg.Server.WriteTimeout,
		ReadTimeout:  cfg.Server.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"addr", srv.Addr,
			"backend", backend.Name(),
			"pool_size", cfg.Server.PoolSize,
			"labels", labels.Len(),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
