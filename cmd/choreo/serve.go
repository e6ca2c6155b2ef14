package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tacticsboard/choreo/internal/config"
	"github.com/tacticsboard/choreo/internal/dispatcher"
	"github.com/tacticsboard/choreo/internal/engine"
	"github.com/tacticsboard/choreo/internal/logging"
	"github.com/tacticsboard/choreo/internal/monitor"
	"github.com/tacticsboard/choreo/internal/playback"
)

// runServe is the editor host bridge: one command per stdin line, one reply
// per stdout line (":OK: <result>" or ":ERROR: <message>").
func runServe(ctx context.Context, args []string) error {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	svc, err := loadScene(path, true)
	if err != nil {
		return err
	}

	d, err := dispatcher.New(logging.NewDispatcherLogger(ConnLogger))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	defer d.Close()
	svc.RegisterCommands(d)
	Logger.Info("Bridge ready", "commands", len(d.Commands()))

	mon := newMonitor(svc)
	mon.Start()
	defer mon.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go driveLive(ctx, svc, config.GetPlaybackConfig().TickInterval)

	return bridge(ctx, d, os.Stdin, os.Stdout)
}

// newMonitor samples the engine and the recorder backlog into
// <logsDir>/status.json and, when influx is up, the metrics bucket.
func newMonitor(svc *engine.Service) *monitor.Service {
	backlogs := map[string]func() int{}
	switch b := storageBackend.(type) {
	case interface{ Pending() int }:
		backlogs["pending"] = b.Pending
	case interface{ Dropped() uint64 }:
		backlogs["dropped"] = func() int { return int(b.Dropped()) }
	}
	deps := monitor.Dependencies{
		Status:     svc.Status,
		Backlogs:   backlogs,
		Logger:     Logger,
		StatusPath: filepath.Join(viper.GetString("logsDir"), "status.json"),
	}
	if influxManager != nil {
		deps.WritePoint = influxManager.WritePoint
	}
	return monitor.NewService(deps)
}

// driveLive advances the engine on wall-clock time whenever something is
// animating.
func driveLive(ctx context.Context, svc *engine.Service, interval time.Duration) {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	live := playback.NewLive(svc)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if svc.Done() {
				live.Reset()
				continue
			}
			live.Tick(now)
		}
	}
}

func bridge(ctx context.Context, d *dispatcher.Dispatcher, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			e, err := dispatcher.ParseLine(line)
			if errors.Is(err, dispatcher.ErrEmptyLine) {
				continue
			}
			if err == nil && e.Command == ":QUIT:" {
				fmt.Fprintln(out, ":OK: bye")
				return nil
			}
			var result any
			if err == nil {
				result, err = d.Dispatch(e)
			}
			if err != nil {
				fmt.Fprintf(out, ":ERROR: %s\n", oneLine(err.Error()))
				continue
			}
			if result == nil {
				fmt.Fprintln(out, ":OK:")
				continue
			}
			fmt.Fprintf(out, ":OK: %v\n", result)
		}
	}
}

func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", "; ")
}
