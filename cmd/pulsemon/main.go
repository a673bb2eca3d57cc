// Package main is a terminal monitor for a pulse event bus.
//
// It feeds synthetic sensor events through a bus and renders live
// counters for a raw, a debounced, and a throttled subscription, which
// makes the coalescing behavior of the call-rate wrappers visible.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/pulsebus/pulse"
	"github.com/pulsebus/pulse/provider"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

const keyReading = "sensor.reading"

type options struct {
	interval time.Duration
	debounce time.Duration
	throttle time.Duration
	logPath  string
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	logger, err := newLogger(opts.logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open log: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	bus := pulse.New(pulse.WithLogger(logger))
	prov := provider.New(bus, provider.WithLogger(logger))
	scope := prov.Scope()
	defer scope.Close()

	var raw, debounced, throttled atomic.Uint64

	count := func(c *atomic.Uint64) pulse.HandlerFunc {
		return func(context.Context, ...any) error {
			c.Add(1)
			return nil
		}
	}
	if _, err := scope.Subscribe(keyReading, count(&raw)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: subscribe failed: %v\n", err)
		return 1
	}
	if _, err := scope.Subscribe(keyReading, count(&debounced),
		provider.WithDebounce(opts.debounce)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: subscribe failed: %v\n", err)
		return 1
	}
	if _, err := scope.Subscribe(keyReading, count(&throttled),
		provider.WithThrottle(opts.throttle)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: subscribe failed: %v\n", err)
		return 1
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create screen: %v\n", err)
		return 1
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to init screen: %v\n", err)
		return 1
	}
	defer screen.Fini()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-signals:
			cancel()
			_ = screen.PostEvent(tcell.NewEventInterrupt(nil))
		case <-ctx.Done():
		}
	}()

	go emitReadings(ctx, prov, opts.interval, logger)
	go redrawTicker(ctx, screen)

	for {
		draw(screen, opts, raw.Load(), debounced.Load(), throttled.Load(), bus.Stats())

		switch ev := screen.PollEvent().(type) {
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
				return 0
			}
		case *tcell.EventResize:
			screen.Sync()
		case *tcell.EventInterrupt:
			if ctx.Err() != nil {
				return 0
			}
		}
	}
}

func parseFlags() options {
	opts := options{}
	flag.DurationVar(&opts.interval, "interval", 20*time.Millisecond, "synthetic event period")
	flag.DurationVar(&opts.debounce, "debounce", 250*time.Millisecond, "debounce delay for the coalesced counter")
	flag.DurationVar(&opts.throttle, "throttle", 500*time.Millisecond, "throttle window for the rate-limited counter")
	flag.StringVar(&opts.logPath, "log", "", "append diagnostics to this file (disabled when empty)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("pulsemon %s (%s)\n", version, commit)
		os.Exit(0)
	}
	return opts
}

func newLogger(path string) (*zap.Logger, error) {
	if path == "" {
		return zap.NewNop(), nil
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	return cfg.Build()
}

// emitReadings triggers a synthetic reading every interval.
func emitReadings(ctx context.Context, prov *provider.Provider, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	seq := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			seq++
			if _, err := prov.Trigger(ctx, keyReading, seq); err != nil {
				logger.Error("trigger failed", zap.Error(err))
				return
			}
		}
	}
}

// redrawTicker wakes the event loop so counters refresh without input.
func redrawTicker(ctx context.Context, screen tcell.Screen) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = screen.PostEvent(tcell.NewEventInterrupt(nil))
		}
	}
}

func draw(screen tcell.Screen, opts options, raw, debounced, throttled uint64, stats pulse.Stats) {
	screen.Clear()

	style := tcell.StyleDefault
	bold := style.Bold(true)

	lines := []struct {
		text  string
		style tcell.Style
	}{
		{"pulsemon — event bus monitor (q to quit)", bold},
		{"", style},
		{fmt.Sprintf("key %q every %s", keyReading, opts.interval), style},
		{"", style},
		{fmt.Sprintf("raw listener        %8d", raw), style},
		{fmt.Sprintf("debounced (%s) %8d", opts.debounce, debounced), style},
		{fmt.Sprintf("throttled (%s) %8d", opts.throttle, throttled), style},
		{"", style},
		{fmt.Sprintf("triggers %d  delivered %d  failures %d",
			stats.Triggers, stats.Delivered, stats.Failures), style},
	}

	for y, line := range lines {
		for x, r := range line.text {
			screen.SetContent(x+1, y+1, r, nil, line.style)
		}
	}
	screen.Show()
}
