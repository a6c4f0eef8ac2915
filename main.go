package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"upscale_backend/autosplit"
	"upscale_backend/core"
	"upscale_backend/db"
	"upscale_backend/imaging"
	"upscale_backend/logging"
	"upscale_backend/pixruntime"
	"upscale_backend/shutdown"
)

// historyTimeout bounds each run-history write, which happens after the
// run's own context may already be cancelled.
const historyTimeout = 5 * time.Second

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// cliOptions holds the parsed command line.
type cliOptions struct {
	source      string
	guide       string
	out         string
	preview     string
	configPath  string
	mode        string
	iterationsK float64
	showVersion bool

	// Set when the flag appeared on the command line, so an explicit
	// zero or empty value is validated instead of ignored.
	modeSet       bool
	iterationsSet bool
}

func parseFlags(args []string, output io.Writer) (*cliOptions, error) {
	opts := &cliOptions{}
	flags := flag.NewFlagSet("guided-upscale", flag.ContinueOnError)
	flags.SetOutput(output)

	flags.StringVar(&opts.source, "source", "", "low-resolution source image")
	flags.StringVar(&opts.guide, "guide", "", "high-resolution guide image (k times the source)")
	flags.StringVar(&opts.out, "out", "", "output image (.png, .tif, .bmp)")
	flags.StringVar(&opts.preview, "preview", "", "also write a nearest-neighbor upscale of the source here")
	flags.StringVar(&opts.configPath, "config", "", "YAML config file (default $"+core.ConfigFileEnv+")")
	flags.StringVar(&opts.mode, "mode", "", "working color space: lab or rgb (default from config)")
	flags.Float64Var(&opts.iterationsK, "iterations", 0, "iterations in thousands, 0.1 to 100 (default from config)")
	flags.BoolVar(&opts.showVersion, "version", false, "print version and exit")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if flags.NArg() > 0 {
		fmt.Fprintf(output, "unexpected arguments: %v\n", flags.Args())
		flags.Usage()
		return nil, fmt.Errorf("unexpected arguments: %v", flags.Args())
	}
	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			opts.modeSet = true
		case "iterations":
			opts.iterationsSet = true
		}
	})
	return opts, nil
}

// loadConfig layers flags over the file and environment configuration and
// checks the paths the run needs.
func loadConfig(opts *cliOptions) (*core.Config, error) {
	cfg, err := core.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	if opts.modeSet {
		cfg.SplitMode = opts.mode
	}
	if opts.iterationsSet {
		cfg.Runtime.IterationsK = opts.iterationsK
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for _, required := range []struct{ flag, value string }{
		{"source", opts.source},
		{"guide", opts.guide},
		{"out", opts.out},
	} {
		if required.value == "" {
			return nil, core.ErrMissingInput(required.flag)
		}
	}
	if err := imaging.CheckOutputPath(opts.out); err != nil {
		return nil, core.ErrInvalidOutput(opts.out, err)
	}
	if opts.preview != "" {
		if err := imaging.CheckOutputPath(opts.preview); err != nil {
			return nil, core.ErrInvalidOutput(opts.preview, err)
		}
	}
	return cfg, nil
}

// run executes one CLI invocation and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return core.ExitCodeSuccess
	}
	if err != nil {
		return core.ExitCodeConfig
	}
	if opts.showVersion {
		fmt.Fprintln(stdout, core.GetVersionInfo())
		return core.ExitCodeSuccess
	}

	// A missing .env is normal
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(stderr, "Warning: failed to load .env: %v\n", err)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		printConfigError(stderr, err)
		return core.ExitCodeForError(err)
	}

	logCfg := cfg.LoggingConfig()
	logCfg.Console = zapcore.AddSync(stderr)
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return core.ExitCodeError
	}

	manager := shutdown.NewManager(logger.Zap().Named("shutdown"))
	manager.Register("logger", shutdown.PriorityLogger, func(context.Context) error {
		// Sync on a terminal returns EINVAL on some platforms.
		_ = logger.Sync()
		return nil
	})

	a, err := newApp(cfg, logger, manager)
	if err != nil {
		logger.Error("Failed to start", zap.Error(err))
		_ = manager.Shutdown()
		return core.ExitCodeError
	}

	manager.Start()

	var report *runReport
	runErr := manager.Do("upscale", func(ctx context.Context) error {
		var err error
		report, err = a.upscale(ctx, opts)
		return err
	})
	if report == nil {
		report = &runReport{Options: opts, Params: cfg.Runtime.Params(), Mode: a.mode}
	}
	a.record(report, runErr)
	printSummary(stdout, report, runErr)

	if err := manager.Shutdown(); err != nil {
		fmt.Fprintf(stderr, "Shutdown: %v\n", err)
	}
	return manager.ExitCode(runErr)
}

// app holds everything one invocation builds from the configuration.
type app struct {
	cfg      *core.Config
	mode     imaging.SplitMode
	logger   *logging.Logger
	upscaler *autosplit.Upscaler
	history  *db.Database // nil when history is disabled or unavailable
}

func newApp(cfg *core.Config, logger *logging.Logger, manager *shutdown.Manager) (*app, error) {
	mode, err := cfg.Mode()
	if err != nil {
		return nil, err
	}

	pool, err := pixruntime.NewDevicePool(cfg.Runtime.PoolSize, cfg.Runtime.DeviceBytes())
	if err != nil {
		return nil, fmt.Errorf("failed to create device pool: %w", err)
	}
	upscaler, err := autosplit.NewUpscaler(pool, pixruntime.NewGuidedLinearExecutor(), cfg.Split, logger.Zap().Named("upscaler"))
	if err != nil {
		pool.Close()
		return nil, err
	}
	manager.Register("devices", shutdown.PriorityDevices, func(context.Context) error {
		return upscaler.Close()
	})

	a := &app{cfg: cfg, mode: mode, logger: logger, upscaler: upscaler}

	if cfg.HistoryDB != "" {
		history, err := db.NewDatabase(cfg.HistoryDB)
		if err != nil {
			// History is a side record; the upscale still runs without it.
			logger.Warn("Run history disabled",
				zap.String("path", cfg.HistoryDB),
				zap.Error(err))
		} else {
			a.history = history
			manager.Register("history", shutdown.PriorityHistory, func(context.Context) error {
				return history.Close()
			})
		}
	}

	logger.Debug("Configuration loaded",
		zap.Object("split", cfg.Split),
		zap.Stringer("mode", mode),
		zap.Int("device_pool_size", cfg.Runtime.PoolSize),
		zap.String("device_memory", core.FormatBytes(cfg.Runtime.DeviceBytes())),
		zap.Float64("iterations_k", cfg.Runtime.IterationsK),
		zap.String("history_db", cfg.HistoryDB),
	)
	return a, nil
}

// runReport collects what the summary and the history record need.
type runReport struct {
	ID       string
	Options  *cliOptions
	Source   *imaging.Image
	Guide    *imaging.Image
	Params   pixruntime.Params
	Mode     imaging.SplitMode
	Result   *autosplit.Result
	Duration time.Duration
}

func (a *app) upscale(ctx context.Context, opts *cliOptions) (*runReport, error) {
	start := time.Now()
	report := &runReport{Options: opts, Params: a.cfg.Runtime.Params(), Mode: a.mode}
	defer func() { report.Duration = time.Since(start) }()

	var source, guide *imaging.Image
	var g errgroup.Group
	g.Go(func() (err error) {
		source, err = imaging.ReadFile(opts.source)
		return err
	})
	g.Go(func() (err error) {
		guide, err = imaging.ReadFile(opts.guide)
		return err
	})
	err := g.Wait()
	report.Source, report.Guide = source, guide
	if err != nil {
		return report, err
	}

	acquireCtx, cancel := context.WithTimeout(ctx, a.cfg.Runtime.AcquireTimeout)
	defer cancel()
	res, err := a.upscaler.Upscale(acquireCtx, source, guide, report.Params, a.mode)
	report.Result = res
	if err != nil {
		return report, err
	}

	// An interrupt during the run leaves no output behind.
	if err := ctx.Err(); err != nil {
		return report, err
	}

	if err := imaging.WriteFile(opts.out, res.Image); err != nil {
		return report, fmt.Errorf("write output: %w", err)
	}
	a.logger.Info("Output written",
		zap.String("path", opts.out),
		logging.ShapeField("shape", res.Image))

	if opts.preview != "" {
		preview, err := imaging.ScaleNearest(source, guide.Height, guide.Width)
		if err != nil {
			return report, fmt.Errorf("preview: %w", err)
		}
		if err := imaging.WriteFile(opts.preview, preview); err != nil {
			return report, fmt.Errorf("write preview: %w", err)
		}
	}
	return report, nil
}

// record stores the run in the history database and applies retention.
// Failures are logged, never returned.
func (a *app) record(report *runReport, runErr error) {
	if a.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()

	id, err := a.history.InsertRun(ctx, report.record(runErr))
	if err != nil {
		a.logger.Warn("Failed to record run", zap.Error(err))
		return
	}
	report.ID = id
	a.logger.Debug("Run recorded", zap.String("run_id", id))

	if days := a.cfg.HistoryRetentionDays; days > 0 {
		result, err := a.history.Cleanup(ctx, days)
		if err != nil {
			a.logger.Warn("History cleanup failed", zap.Error(err))
			return
		}
		if result.RunsDeleted > 0 {
			a.logger.Info("History cleanup",
				zap.Int64("runs_deleted", result.RunsDeleted),
				zap.Int("retention_days", days),
				zap.Duration("duration", result.Duration))
		}
	}
}

// record converts the report into a history row.
func (r *runReport) record(runErr error) db.RunRecord {
	rec := db.RunRecord{
		SplitMode:    r.Mode.String(),
		Iterations:   r.Params.Iterations,
		LearningRate: r.Params.LearningRate,
		DurationMS:   r.Duration.Milliseconds(),
		Status:       db.RunStatusSuccess,
	}
	if r.Options != nil {
		rec.SourcePath = r.Options.source
		rec.GuidePath = r.Options.guide
		rec.OutputPath = r.Options.out
	}
	if r.Source != nil {
		rec.SourceHeight, rec.SourceWidth, rec.SourceChannels = r.Source.Shape()
	}
	if r.Guide != nil {
		rec.GuideHeight, rec.GuideWidth, _ = r.Guide.Shape()
	}
	if r.Result != nil {
		s := r.Result.Stats
		rec.Device = r.Result.Device
		rec.Attempts = s.Attempts
		rec.OutOfMemory = s.OutOfMemory
		rec.Splits = s.Splits
		rec.PreSplits = s.PreSplits
		rec.Tiles = s.Tiles
		rec.MaxDepth = s.MaxDepth
		rec.PeakBytes = s.PeakBytes
	}
	if runErr != nil {
		rec.Status = db.RunStatusError
		rec.ErrorMessage = runErr.Error()
	}
	return rec
}
