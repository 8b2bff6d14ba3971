// Package main implements othd-describe, which validates an OTHD hash
// database and reports its header, schema and contents.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/othd/othd/internal/hashdb"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "othd-describe: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	var (
		showVersion bool
		jsonOut     bool
		logLevel    string
	)

	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&jsonOut, "json", false, "Print JSON rather than human readable")
	flag.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "othd-describe - Describe an Opentext forensic equipment compatible file hash database\n\n")
		fmt.Fprintf(os.Stderr, "Usage: othd-describe [options] DBPATH\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  othd-describe out.db\n")
		fmt.Fprintf(os.Stderr, "  othd-describe -json out.db\n")
	}
	flag.Parse()

	if showVersion {
		fmt.Printf("othd-describe version %s (commit: %s)\n", version, commit)
		return nil
	}
	if flag.NArg() != 1 {
		flag.Usage()
		return fmt.Errorf("expected DBPATH argument, got %d", flag.NArg())
	}
	path := flag.Arg(0)

	setupLogging(logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("database file %s does not exist", path)
	}

	info, err := hashdb.Inspect(ctx, path)
	if err != nil {
		return err
	}

	if jsonOut {
		return info.WriteJSON(os.Stdout)
	}
	return info.WriteReport(os.Stdout)
}

func setupLogging(level string) {
	ll := &slog.LevelVar{}
	switch level {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		ll.Set(slog.LevelInfo)
	}
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)
}
