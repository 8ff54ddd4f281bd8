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
	"syscall"
	"time"

	"golang.org/x/term"

	"procwatch/internal/collector"
	"procwatch/internal/config"
	"procwatch/internal/database"
	"procwatch/internal/database/relational"
	"procwatch/internal/flagger"
	"procwatch/internal/mcpserver"
	"procwatch/internal/output"
	"procwatch/internal/publisher"
	"procwatch/ui/console"
	"procwatch/ui/tui"
)

type options struct {
	configPath string
	interval   time.Duration
	pageSize   int
	once       bool
	mcp        bool
	record     string
	logPath    string
	network    bool
	dumpConfig bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "YAML configuration file")
	flag.DurationVar(&o.interval, "interval", 0, "sampling cadence, overrides the config file")
	flag.IntVar(&o.pageSize, "page-size", 0, "rows per page, overrides the config file")
	flag.BoolVar(&o.once, "once", false, "print one table and exit")
	flag.BoolVar(&o.mcp, "mcp", false, "serve the process table over MCP on stdio")
	flag.StringVar(&o.record, "record", "", `record ticks to this DuckDB file (":memory:" keeps them in memory)`)
	flag.StringVar(&o.logPath, "log", "", "write logs to this file instead of stderr")
	flag.BoolVar(&o.network, "net", false, "read per-process network counters")
	flag.BoolVar(&o.dumpConfig, "dump-config", false, "print the effective configuration and exit")
	flag.Parse()

	if err := run(o); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "procwatch: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(o options) (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, err
	}
	if o.interval > 0 {
		cfg.Collector = cfg.Collector.WithCadence(o.interval)
	}
	if o.pageSize > 0 {
		cfg.Table = cfg.Table.WithPageSize(o.pageSize)
	}
	if o.network {
		cfg.Collector = cfg.Collector.WithProcessNetwork(true)
	}
	if o.record != "" {
		cfg.History.Enabled = true
		cfg.History.Database.DSN = o.record
		if o.record == ":memory:" {
			cfg.History.Database.DSN = ""
		}
	}
	return cfg, cfg.Validate()
}

// newLogger keeps stdout free for the table and the MCP transport.
func newLogger(path string, interactive bool) (*slog.Logger, func(), error) {
	switch {
	case path != "":
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})), func() { f.Close() }, nil
	case interactive:
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	default:
		return slog.New(slog.NewTextHandler(os.Stderr, nil)), func() {}, nil
	}
}

func run(o options) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	if o.dumpConfig {
		return config.Write(os.Stdout, cfg)
	}

	stdoutTTY := term.IsTerminal(int(os.Stdout.Fd()))
	interactive := stdoutTTY && !o.once && !o.mcp

	logger, closeLog, err := newLogger(o.logPath, interactive)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flg := flagger.NewFlaggerService(cfg.Thresholds)
	source := collector.NewSystemCollector(cfg.Collector)
	sampler := collector.NewSampler(source, cfg.Collector)
	pubOpts := []publisher.Option{publisher.WithLogger(logger)}

	var history mcpserver.HistoryStore
	if cfg.History.Enabled {
		client, err := relational.Open(cfg.History.Database)
		if err != nil {
			return fmt.Errorf("open history database: %w", err)
		}
		defer client.Close()

		repo := relational.NewRepo(client.DB())
		if err := repo.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate history database: %w", err)
		}

		host, err := sampler.HostInfo(ctx)
		if err != nil {
			logger.Warn("host facts unavailable", "error", err)
		}
		session, err := repo.StartSession(ctx, relational.Session{
			Hostname:      host.Hostname,
			OS:            host.OS,
			Platform:      host.Platform,
			KernelVersion: host.KernelVersion,
			Arch:          host.Arch,
			CPUModel:      host.CPUModel,
			Cores:         host.LogicalCores,
			TotalMemory:   host.TotalMemory,
		})
		if err != nil {
			return err
		}

		rec, err := database.NewRecorder(repo, flg, session, cfg.History.Recorder, logger)
		if err != nil {
			return err
		}
		if err := rec.Start(ctx); err != nil {
			return err
		}
		defer rec.Stop()

		pubOpts = append(pubOpts, publisher.WithObserver(rec))
		history = repo
		logger.Info("recording history", "dsn", cfg.History.Database.DSN, "session", session)
	}

	pub, err := publisher.New(sampler, cfg.Collector, cfg.Table, cfg.Publisher, pubOpts...)
	if err != nil {
		return err
	}

	if o.once {
		return printOnce(ctx, pub, flg, cfg.Collector.Cadence, stdoutTTY)
	}

	if err := pub.Start(ctx); err != nil {
		return err
	}
	defer pub.Stop()

	switch {
	case o.mcp:
		srv, err := mcpserver.NewServer(cfg.MCP, pub, history, flg, logger)
		if err != nil {
			return err
		}
		return srv.Start(ctx)
	case interactive:
		return tui.Start(pub, flg, 0)
	default:
		return printLoop(ctx, pub, flg, cfg.Collector.Cadence)
	}
}

// printOnce takes two samples one cadence apart so the rates are real.
func printOnce(ctx context.Context, pub *publisher.Publisher, flg output.RowFlagger, cadence time.Duration, color bool) error {
	if _, err := pub.RefreshOnce(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(cadence):
	}
	v, err := pub.RefreshOnce(ctx)
	if err != nil {
		return err
	}
	console.Printer{Color: color, Host: pub.Host()}.Print(os.Stdout, output.BuildReport(v, flg))
	return nil
}

func printLoop(ctx context.Context, pub *publisher.Publisher, flg output.RowFlagger, cadence time.Duration) error {
	t := time.NewTicker(cadence)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			p := console.Printer{Host: pub.Host()}
			p.Print(os.Stdout, output.BuildReport(pub.CurrentView(), flg))
		}
	}
}
