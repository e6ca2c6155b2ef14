// Command choreo orders, plays and exports tactics board choreographies.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/tacticsboard/choreo/internal/api"
	"github.com/tacticsboard/choreo/internal/config"
	"github.com/tacticsboard/choreo/internal/engine"
	"github.com/tacticsboard/choreo/internal/export"
	"github.com/tacticsboard/choreo/internal/influx"
	"github.com/tacticsboard/choreo/internal/logging"
	intOtel "github.com/tacticsboard/choreo/internal/otel"
	"github.com/tacticsboard/choreo/internal/render"
	"github.com/tacticsboard/choreo/internal/scheduler"
	"github.com/tacticsboard/choreo/internal/storage"
)

const appName = "choreo"

var (
	// Logger is the global logger, replaced once the session log is open
	Logger *slog.Logger = slog.Default()

	// SlogManager builds Logger
	SlogManager *logging.SlogManager = logging.NewSlogManager()

	// ConnLogger is the zerolog logger used by the database and influx managers
	ConnLogger zerolog.Logger = zerolog.Nop()

	// OTelProvider handles OpenTelemetry, nil when disabled
	OTelProvider *intOtel.Provider

	// LogFile is the session log file
	LogFile *os.File

	SessionStartTime time.Time = time.Now()

	influxManager  *influx.Manager
	storageBackend storage.Backend
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: %s [-config dir] <command> [flags] [scene.yaml]

commands:
  order   propose (or with -apply write) the step of every annotation
  export  render the keyframe sequence or the annotations to a video file
  play    terminal viewer
  serve   read bridge commands from stdin, one per line
`, appName)
}

func main() {
	configDir := flag.String("config", ".", "directory holding "+config.FileName)
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]
	interactive := cmd == "play"
	if err := setup(*configDir, interactive); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	var err error
	switch cmd {
	case "order":
		err = runOrder(args)
	case "export":
		err = runExport(ctx, args)
	case "play":
		err = runPlay(args)
	case "serve":
		err = runServe(ctx, args)
	default:
		usage()
		err = fmt.Errorf("unknown command %q", cmd)
	}
	stop()

	shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the config and builds the logging stack. The terminal viewer
// owns the screen, so it always logs to the session file.
func setup(configDir string, interactive bool) error {
	if err := config.Load(configDir); err != nil {
		// config.Load has already registered the defaults
		Logger.Debug("No config file, using defaults", "error", err)
	}

	var err error
	LogFile, err = logging.OpenLogFile(viper.GetString("logsDir"), appName, SessionStartTime)
	if err != nil {
		if interactive {
			return err
		}
		Logger.Warn("Failed to open log file, logging to stdout only", "error", err)
	}

	var logWriter io.Writer
	if LogFile != nil {
		logWriter = LogFile
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(context.Background(), intOtel.FromConfig(otelCfg, logWriter))
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
			OTelProvider = nil
		}
	}

	setupLogger(nil)

	connOut := io.Writer(os.Stderr)
	if logWriter != nil {
		connOut = logWriter
	}
	ConnLogger = logging.NewZerolog(connOut, SlogManager.Level())
	Logger.Info("Starting up", "logFile", logFilePath())
	return nil
}

// setupLogger (re)builds Logger; ctx adds the engine state to every record.
func setupLogger(ctx logging.ContextProvider) {
	var provider *sdklog.LoggerProvider
	if OTelProvider != nil {
		provider = OTelProvider.LoggerProvider()
	}
	var w io.Writer
	if LogFile != nil {
		w = LogFile
	}
	SlogManager.Setup(w, viper.GetString("logLevel"), provider, ctx)
	Logger = SlogManager.Logger()
	slog.SetDefault(Logger)
}

func logFilePath() string {
	if LogFile == nil {
		return ""
	}
	return LogFile.Name()
}

func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if storageBackend != nil {
		if err := storageBackend.Close(); err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
		}
	}
	if influxManager != nil {
		if err := influxManager.Close(); err != nil {
			Logger.Error("Failed to close influx manager", "error", err)
		}
	}
	if err := SlogManager.Flush(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "flush logs:", err)
	}
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "shutdown otel:", err)
		}
	}
	if LogFile != nil {
		LogFile.Close()
	}
}

// newService builds an engine from the config, with the storage backend and
// the influx manager the config asks for.
func newService(withStorage bool) (*engine.Service, error) {
	var current atomic.Pointer[engine.Service]
	setupLogger(func() []slog.Attr {
		if svc := current.Load(); svc != nil {
			return svc.LogContext()
		}
		return nil
	})

	deps := engine.Dependencies{
		Logger: Logger,
		Timing: timingFromConfig(config.GetTimingConfig()),
		Export: config.GetExportConfig(),
		Pitch:  pitchFromConfig(config.GetPitchConfig()),
	}

	if withStorage {
		backend, err := createStorageBackend(config.GetStorageConfig())
		if err != nil {
			return nil, fmt.Errorf("create storage backend: %w", err)
		}
		if err := backend.Init(); err != nil {
			Logger.Error("Failed to initialize storage backend, frames will not be recorded", "error", err)
			backend = storage.Nop{}
		}
		storageBackend = backend
		deps.Recorder = backend
	}

	influxManager = connectInflux()
	if influxManager != nil {
		m := influxManager
		deps.OnExport = func(res export.Result) {
			point := influx.RunPoint(res.Name, string(res.Status), res.Frames, res.FPS, res.Elapsed, time.Now())
			if err := m.WritePoint(point); err != nil {
				Logger.Warn("Failed to write export point", "error", err)
			}
		}
	}

	svc, err := engine.NewService(deps)
	if err != nil {
		return nil, err
	}
	svc.SetSpeed(config.GetPlaybackConfig().Speed)
	current.Store(svc)
	return svc, nil
}

func connectInflux() *influx.Manager {
	cfg := influx.ConfigFromViper()
	m := influx.NewManager(ConnLogger, filepath.Join(viper.GetString("logsDir"), "influx_backup.log.gz"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Connect(ctx, cfg); err != nil {
		if !errors.Is(err, influx.ErrDisabled) {
			Logger.Warn("Export metrics disabled", "error", err)
		}
		return nil
	}
	return m
}

func timingFromConfig(c config.TimingConfig) scheduler.Timing {
	return scheduler.Timing{
		RunMs:          c.RunMs,
		CurvedRunMs:    c.CurvedRunMs,
		PassMs:         c.PassMs,
		OneTouchPassMs: c.OneTouchPassMs,
		DribbleMs:      c.DribbleMs,
		GhostMs:        c.GhostMs,
	}
}

func pitchFromConfig(c config.PitchConfig) render.Pitch {
	if c.Length <= 0 || c.Width <= 0 {
		return render.DefaultPitch
	}
	return render.Pitch{Length: c.Length, Width: c.Width}
}

// loadScene builds a service with the scene at path loaded.
func loadScene(path string, withStorage bool) (*engine.Service, error) {
	svc, err := newService(withStorage)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return svc, nil
	}
	if err := svc.LoadFile(path); err != nil {
		return nil, err
	}
	return svc, nil
}

func runOrder(args []string) error {
	fs := flag.NewFlagSet("order", flag.ExitOnError)
	apply := fs.Bool("apply", false, "write the proposed steps")
	out := fs.String("out", "", "where -apply writes the scene (default: in place)")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("order: scene file required")
	}
	path := fs.Arg(0)

	svc, err := loadScene(path, false)
	if err != nil {
		return err
	}
	res, changed := svc.Order(*apply)
	if res.Steps == nil {
		fmt.Printf("no order proposed: %s\n", res.Ambiguity)
		return nil
	}
	for i, id := range res.IDs {
		fmt.Printf("%-12s step %d\n", id, res.Steps[i])
	}
	if !*apply || !changed {
		return nil
	}
	if *out == "" {
		*out = path
	}
	if err := svc.SaveFile(*out); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", *out)
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	source := fs.String("source", engine.SourceSequence, "sequence or annotations")
	name := fs.String("name", "", "output file name without extension")
	upload := fs.Bool("upload", false, "upload the clip to the configured board server")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("export: scene file required")
	}

	svc, err := loadScene(fs.Arg(0), true)
	if err != nil {
		return err
	}
	if err := svc.StartExport(engine.ExportRequest{Name: *name, Source: *source}); err != nil {
		return err
	}

	// progress line while the export runs
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if st := svc.Status().Export; st != nil && st.Running {
					fmt.Fprintf(os.Stderr, "\r%s %3.0f%% (%d/%d)", st.Name, st.Progress*100, st.Frames, st.Estimated)
				}
			}
		}
	}()
	res, err := svc.WaitExport(ctx)
	close(done)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d frames in %s\n", res.Path, res.Frames, res.Elapsed.Round(time.Millisecond))
	if !*upload {
		return nil
	}
	return uploadClip(ctx, svc.Status().Scene, *source, res)
}

func uploadClip(ctx context.Context, scene, source string, res export.Result) error {
	cfg := config.GetUploadConfig()
	if cfg.URL == "" {
		return errors.New("export: -upload needs upload.url in the config")
	}
	client := api.New(cfg.URL, cfg.APIKey)
	if err := client.Healthcheck(ctx); err != nil {
		return err
	}
	if err := client.Upload(ctx, res.Path, api.MetadataFromResult(scene, source, res)); err != nil {
		return err
	}
	Logger.Info("Clip uploaded", "path", res.Path, "server", cfg.URL)
	return nil
}
