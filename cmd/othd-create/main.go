// Package main implements othd-create, which builds an OTHD hash
// database for Opentext forensic imaging equipment from one of several
// hash record sources.
package main

import (
	"context"
	goerrors "errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/othd/othd/internal/config"
	"github.com/othd/othd/internal/errors"
	"github.com/othd/othd/internal/hashdb"
	"github.com/othd/othd/internal/schema"
	"github.com/othd/othd/internal/source"
	"github.com/othd/othd/internal/stage"
)

var (
	version = "dev"
	commit  = "unknown"
)

// sourceTypes lists the accepted -type values.
var sourceTypes = []string{"folder", "md5_list", "sha1_list", "nsrl_rds", "nsrl_caid", "csv"}

func main() {
	if err := mainImpl(); err != nil && !goerrors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "othd-create: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	var (
		showVersion    bool
		sourceType     string
		name           string
		description    string
		csvDialect     string
		caidCategories string
		progress       bool
		configFile     string
		logLevel       string
	)

	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.StringVar(&sourceType, "type", "folder", "Input type: "+strings.Join(sourceTypes, ", "))
	flag.StringVar(&name, "name", "", fmt.Sprintf("Name stored in the database header (%d characters max)", hashdb.MaxNameLength))
	flag.StringVar(&description, "description", "", fmt.Sprintf("Description stored in the database header (%d characters max)", hashdb.MaxDescriptionLength))
	flag.StringVar(&csvDialect, "csv-dialect", "", "CSV dialect: "+strings.Join(source.CSVDialects(), ", "))
	flag.StringVar(&caidCategories, "caid-categories", "", "Comma separated CAID categories to keep (default: keep all)")
	flag.BoolVar(&progress, "progress", isatty.IsTerminal(os.Stderr.Fd()), "Report progress to stderr")
	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "othd-create - Build an Opentext forensic equipment compatible file hash database\n\n")
		fmt.Fprintf(os.Stderr, "Usage: othd-create [options] INPUT OUTPUT\n\n")
		fmt.Fprintf(os.Stderr, "INPUT is a path, or an s3:// URL for file inputs. OUTPUT must not exist.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  othd-create -type folder -name evidence /mnt/image out.db\n")
		fmt.Fprintf(os.Stderr, "  othd-create -type md5_list hashes.txt.gz out.db\n")
		fmt.Fprintf(os.Stderr, "  othd-create -type nsrl_rds s3://nsrl/RDS_2024.03.1.db out.db\n")
		fmt.Fprintf(os.Stderr, "  othd-create -type nsrl_caid -caid-categories 1,2 NSRL-CAID.json out.db\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  OTHD_LOG_LEVEL          Log level (debug, info, warn, error)\n")
		fmt.Fprintf(os.Stderr, "  OTHD_CSV_DIALECT        Default CSV dialect\n")
		fmt.Fprintf(os.Stderr, "  OTHD_PROGRESS_INTERVAL  Time between progress reports\n")
		fmt.Fprintf(os.Stderr, "  OTHD_S3_REGION          AWS region for s3:// inputs\n")
		fmt.Fprintf(os.Stderr, "  OTHD_S3_ENDPOINT        Custom S3 endpoint\n")
	}
	flag.Parse()

	if showVersion {
		fmt.Printf("othd-create version %s (commit: %s)\n", version, commit)
		return nil
	}
	if flag.NArg() != 2 {
		flag.Usage()
		return fmt.Errorf("expected INPUT and OUTPUT arguments, got %d", flag.NArg())
	}
	input, output := flag.Arg(0), flag.Arg(1)

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if csvDialect != "" {
		cfg.Import.CSVDialect = csvDialect
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	if err := hashdb.ValidateHeader(name, description); err != nil {
		return err
	}
	if _, err := os.Stat(output); err == nil {
		return errors.NewValidationError(errors.CodeDestExists,
			fmt.Sprintf("output file %s already exists", output))
	}

	categories, err := parseCategories(caidCategories)
	if err != nil {
		return err
	}

	src, cleanup, err := buildSource(ctx, sourceType, input, categories, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	defer src.Close()

	opts := hashdb.Options{
		Name:             name,
		Description:      description,
		ProgressInterval: cfg.Import.ProgressInterval,
		ExpectedRecords:  cfg.Import.ExpectedRecords,
	}
	if progress {
		opts.Progress = func(n int64) {
			fmt.Fprintf(os.Stderr, "Entries processed: %s\r", hashdb.FormatCount(n))
		}
	}

	summary, err := hashdb.Create(ctx, output, src, opts)
	if progress {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Database created",
		"path", summary.Path,
		"columns", schema.Names(summary.Columns),
		"records", summary.Records,
		"probable_duplicates", summary.ProbableDuplicates,
		"elapsed", summary.Elapsed)
	return nil
}

// buildSource constructs the record source for the requested type,
// staging remote inputs first. The returned cleanup removes any staged
// copy and is always safe to call.
func buildSource(ctx context.Context, sourceType, input string, categories []int, cfg *config.Config) (source.Source, func(), error) {
	noCleanup := func() {}

	switch sourceType {
	case "folder", "md5_list", "sha1_list", "nsrl_rds", "nsrl_caid", "csv":
	default:
		return nil, noCleanup, fmt.Errorf("unknown input type %q (must be one of %s)", sourceType, strings.Join(sourceTypes, ", "))
	}

	if sourceType == "folder" {
		if stage.IsRemote(input) {
			return nil, noCleanup, errors.NewValidationError(errors.CodeBadInputURL,
				"folder input must be a local directory")
		}
		src, err := source.NewFolder(input, nil)
		return src, noCleanup, err
	}

	stager := stage.NewStager(stage.Options{
		Region:       cfg.Staging.Region,
		Endpoint:     cfg.Staging.Endpoint,
		UsePathStyle: cfg.Staging.UsePathStyle,
	})
	path, cleanup, err := stager.Resolve(ctx, input)
	if err != nil {
		return nil, noCleanup, err
	}
	if path != input {
		slog.DebugContext(ctx, "Staged remote input", "url", input, "path", path)
	}

	var src source.Source
	switch sourceType {
	case "md5_list":
		src, err = source.NewHashList(path, schema.ColumnMD5)
	case "sha1_list":
		src, err = source.NewHashList(path, schema.ColumnSHA1)
	case "nsrl_rds":
		src, err = source.NewNSRLRDS(ctx, path)
	case "nsrl_caid":
		src, err = source.NewNSRLCAID(path, categories)
	case "csv":
		src, err = source.NewCSV(path, cfg.Import.CSVDialect)
	}
	if err != nil {
		cleanup()
		return nil, noCleanup, err
	}
	return src, cleanup, nil
}

// parseCategories turns "1,2,3" into CAID category numbers. An empty
// flag keeps every category.
func parseCategories(raw string) ([]int, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	categories := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid CAID category %q", part)
		}
		categories = append(categories, n)
	}
	return categories, nil
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
