package hashdb

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/othd/othd/internal/bloom"
	"github.com/othd/othd/internal/errors"
	"github.com/othd/othd/internal/schema"
	"github.com/othd/othd/internal/source"
)

const (
	defaultProgressInterval = 500 * time.Millisecond
	defaultExpectedRecords  = 1 << 20
	duplicateFalsePositive  = 0.001
)

// Options configures Create.
type Options struct {
	// Name and Description populate the header table. When Description
	// is empty and the source provides a default, the default is used.
	Name        string
	Description string

	// Columns overrides the source's advertised column set. Nil means
	// store every column the source advertises.
	Columns []schema.Column

	// Progress, when non-nil, receives the running record count on
	// every ProgressInterval and once more after the last record.
	Progress         func(records int64)
	ProgressInterval time.Duration

	// ExpectedRecords sizes the duplicate filter. Zero selects a
	// default suitable for reference sets around a million entries.
	ExpectedRecords int
}

// ImportSummary reports what Create wrote.
type ImportSummary struct {
	Path        string
	Name        string
	Description string
	UUID        uuid.UUID
	Columns     []schema.Column
	Records     int64

	// ProbableDuplicates estimates how many records repeated an
	// earlier record's stored values. The count comes from a Bloom
	// filter, so it may slightly overstate the truth.
	ProbableDuplicates int64

	Elapsed time.Duration
}

// ValidateHeader checks the name and description against the header
// field limits.
func ValidateHeader(name, description string) error {
	if len(name) > MaxNameLength {
		return errors.NewValidationError(errors.CodeNameTooLong,
			fmt.Sprintf("name is longer than %d characters", MaxNameLength))
	}
	if len(description) > MaxDescriptionLength {
		return errors.NewValidationError(errors.CodeDescriptionTooLong,
			fmt.Sprintf("description is longer than %d characters", MaxDescriptionLength))
	}
	return nil
}

// Create builds an OTHD database at path from the records of src. The
// file is written inside a single transaction; on any failure the
// partial file is removed. The destination must not already exist.
func Create(ctx context.Context, path string, src source.Source, opts Options) (*ImportSummary, error) {
	if err := ValidateHeader(opts.Name, opts.Description); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err == nil {
		return nil, errors.NewValidationError(errors.CodeDestExists,
			fmt.Sprintf("output file %s already exists", path))
	}

	columns := opts.Columns
	if columns == nil {
		columns = src.Columns()
	}
	columns, err := schema.Canonicalize(columns)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeCreateFailed,
			"failed to create "+path, err)
	}

	summary, err := write(ctx, db, path, src, columns, opts)
	if err != nil {
		db.Close()
		os.Remove(path)
		return nil, err
	}
	return summary, nil
}

// write performs the whole import on an open connection. The caller
// removes the partial file when it fails.
func write(ctx context.Context, db *sql.DB, path string, src source.Source, columns []schema.Column, opts Options) (*ImportSummary, error) {
	start := time.Now()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeCreateFailed,
			"failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA application_id = %d", Magic)); err != nil {
		return nil, errors.NewStorageError(errors.CodeWriteFailed,
			"failed to set application id", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", FormatVersion)); err != nil {
		return nil, errors.NewStorageError(errors.CodeWriteFailed,
			"failed to set database version", err)
	}

	description := opts.Description
	if description == "" {
		if d, ok := src.(source.DescriptionDefaulter); ok {
			description = d.DefaultDescription()
		}
	}
	id := uuid.New()
	if err := writeHeader(ctx, tx, opts.Name, description, id); err != nil {
		return nil, err
	}

	records, duplicates, err := fillFiles(ctx, tx, src, columns, opts)
	if err != nil {
		return nil, err
	}

	names := strings.Join(schema.Names(columns), ", ")
	indexSQL := fmt.Sprintf("CREATE INDEX %s ON files (%s)", IndexName, names)
	if _, err := tx.ExecContext(ctx, indexSQL); err != nil {
		return nil, errors.NewStorageError(errors.CodeWriteFailed,
			"failed to create index", err)
	}
	if _, err := tx.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return nil, errors.NewStorageError(errors.CodeWriteFailed,
			"failed to optimize", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewStorageError(errors.CodeWriteFailed,
			"failed to commit", err)
	}
	if err := db.Close(); err != nil {
		return nil, errors.NewStorageError(errors.CodeWriteFailed,
			"failed to close database", err)
	}

	return &ImportSummary{
		Path:               path,
		Name:               opts.Name,
		Description:        description,
		UUID:               id,
		Columns:            columns,
		Records:            records,
		ProbableDuplicates: duplicates,
		Elapsed:            time.Since(start),
	}, nil
}

func writeHeader(ctx context.Context, tx *sql.Tx, name, description string, id uuid.UUID) error {
	if _, err := tx.ExecContext(ctx,
		"CREATE TABLE header (name TEXT, description TEXT, uuid BLOB)"); err != nil {
		return errors.NewStorageError(errors.CodeWriteFailed,
			"failed to create header table", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO header (name, description, uuid) VALUES (?, ?, ?)",
		name, description, id[:]); err != nil {
		return errors.NewStorageError(errors.CodeWriteFailed,
			"failed to write header", err)
	}
	return nil
}

// fillFiles creates the files table and streams every source record
// into it, reporting progress and tallying probable duplicates.
func fillFiles(ctx context.Context, tx *sql.Tx, src source.Source, columns []schema.Column, opts Options) (int64, int64, error) {
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = col.Definition()
	}
	createSQL := fmt.Sprintf("CREATE TABLE files (%s)", strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, createSQL); err != nil {
		return 0, 0, errors.NewStorageError(errors.CodeWriteFailed,
			"failed to create files table", err)
	}

	names := schema.Names(columns)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	insertSQL := fmt.Sprintf("INSERT INTO files (%s) VALUES (%s)",
		strings.Join(names, ", "), placeholders)
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return 0, 0, errors.NewStorageError(errors.CodeWriteFailed,
			"failed to prepare insert", err)
	}
	defer stmt.Close()

	expected := opts.ExpectedRecords
	if expected <= 0 {
		expected = defaultExpectedRecords
	}
	seen := bloom.NewWithEstimates(expected, duplicateFalsePositive)

	interval := opts.ProgressInterval
	if interval <= 0 {
		interval = defaultProgressInterval
	}

	it, err := src.Records(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer it.Close()

	var records, duplicates int64
	lastReport := time.Now()
	for it.Next() {
		rec := it.Record()
		values := make([]any, len(columns))
		for i, col := range columns {
			v, err := rec.Get(col)
			if err != nil {
				return 0, 0, err
			}
			values[i] = v
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return 0, 0, errors.NewStorageError(errors.CodeWriteFailed,
				"failed to insert record", err)
		}
		if seen.TestAndAdd(fingerprint(values)) {
			duplicates++
		}
		records++
		if opts.Progress != nil && time.Since(lastReport) >= interval {
			opts.Progress(records)
			lastReport = time.Now()
		}
	}
	if err := it.Err(); err != nil {
		return 0, 0, err
	}
	if opts.Progress != nil {
		opts.Progress(records)
	}
	return records, duplicates, nil
}

// fingerprint flattens a record's stored values into a stable byte
// string for the duplicate filter.
func fingerprint(values []any) []byte {
	buf := make([]byte, 0, 64)
	for _, v := range values {
		switch x := v.(type) {
		case int64:
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], uint64(x))
			buf = append(buf, b[:]...)
		case []byte:
			buf = append(buf, x...)
		}
		buf = append(buf, 0)
	}
	return buf
}
