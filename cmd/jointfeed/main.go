// Command jointfeed hosts the OpenVR adapter outside a skeletal-tracking
// application: it drives the frame loop, and forwards joints and status to
// the configured journal, InfluxDB and MQTT sinks.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jointfeed/openvr-adapter/internal/adapter"
	"github.com/jointfeed/openvr-adapter/internal/config"
	"github.com/jointfeed/openvr-adapter/internal/dispatcher"
	"github.com/jointfeed/openvr-adapter/internal/elevation"
	"github.com/jointfeed/openvr-adapter/internal/logging"
)

// BuildDate can be set at build time via ldflags
var (
	Version   = "0.0.1"
	BuildDate = "unknown"

	AppName = "jointfeed"
)

func main() {
	flags := pflag.NewFlagSet(AppName, pflag.ExitOnError)
	configDir := flags.StringP("config", "c", ".", "directory containing "+config.FileName)
	runFor := flags.Duration("run-for", 0, "exit after this long; 0 runs until interrupted")
	flags.String("log-level", "info", "debug, info, warn or error")
	_ = flags.Parse(os.Args[1:])
	_ = viper.BindPFlag("logLevel", flags.Lookup("log-level"))

	os.Exit(run(*configDir, *runFor))
}

func run(configDir string, runFor time.Duration) int {
	start := time.Now()

	slogManager := logging.NewSlogManager()
	slogManager.Setup(nil, "info")
	logger := slogManager.Logger()

	if err := config.Load(configDir); err != nil {
		logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		logger.Info("Loaded config", "file", viper.ConfigFileUsed())
	}

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		logger.Error("Failed to create logs dir", "error", err, "path", logsDir)
		return 1
	}
	logPath := logging.LogFilePath(logsDir, AppName, start)
	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		logger.Error("Failed to create/open log file!", "error", err, "path", logPath)
		return 1
	}
	defer logFile.Close()

	var current atomic.Pointer[adapter.Adapter]
	statusAttrs := func() []slog.Attr {
		a := current.Load()
		if a == nil {
			return nil
		}
		st := a.Status()
		return []slog.Attr{slog.Int("status", st.Code), slog.String("detail", st.Detail.String())}
	}

	level := config.GetString("logLevel")
	var extra []slog.Handler
	if config.GetBool("graylog.enabled") {
		gelfHandler, gelfWriter, err := slogManager.NewGELFHandler(config.GetString("graylog.address"))
		if err != nil {
			logger.Error("Graylog disabled", "error", err)
		} else {
			defer gelfWriter.Close()
			extra = append(extra, logging.NewStatusHandler(gelfHandler, statusAttrs))
		}
	}
	slogManager.Setup(io.MultiWriter(logFile, os.Stdout), level, extra...)
	logger = slogManager.Logger()
	logger.Info("Starting", "version", Version, "buildDate", BuildDate, "log", logPath)

	zlog := logging.NewZerolog(logFile, level).With().Str("component", "sinks").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runFor)
		defer cancel()
	}

	journalDump := filepath.Join(logsDir, fmt.Sprintf("%s_%s.db", AppName, start.Format("20060102_150405")))
	out := openSinks(ctx, zlog, journalDump)
	defer func() {
		if err := out.Close(); err != nil {
			logger.Error("Failed to close sinks", "error", err)
		}
	}()

	cfg := config.GetAdapterConfig()
	rt := newDemoRuntime()
	go animate(ctx, rt, cfg.TickInterval)

	h := newAppHost(logging.NewSlogLogger(logger.With("component", "adapter")), cfg.DocsLanguage)
	a, err := adapter.New(adapter.Dependencies{
		Host:    h,
		Runtime: rt,
		// the simulated runtime has no server process to inspect
		Inspector: elevation.Static{},
		Observer:  out,
	}, cfg)
	if err != nil {
		logger.Error("Failed to create adapter", "error", err)
		return 1
	}
	current.Store(a)
	h.onRefresh = func() { out.publishStatus(a) }

	d, err := dispatcher.New(logging.NewSlogLogger(logger.With("component", "dispatcher")))
	if err != nil {
		logger.Error("Failed to create dispatcher", "error", err)
		return 1
	}
	defer d.Close()
	a.RegisterCommands(d)
	if out.feed != nil {
		if err := out.feed.ServeCommands(d); err != nil {
			logger.Error("Command intake disabled", "error", err)
		}
	}

	a.OnLoad()
	a.Initialize()
	logger.Info("Adapter status", "status", a.Status().String(), "message", a.StatusMessage(), "docs", a.ErrorDocsURI())

	tickLoop(ctx, a, out, cfg.TickInterval)

	a.Shutdown()
	logger.Info("Stopped", "uptime", time.Since(start).Round(time.Millisecond))
	return 0
}

// tickLoop drives Update at the configured rate until ctx ends.
func tickLoop(ctx context.Context, a *adapter.Adapter, out *sinks, interval time.Duration) {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			a.Update()
			if a.State() == adapter.StateConnected {
				out.publishFrame(a, now)
			}
		}
	}
}
