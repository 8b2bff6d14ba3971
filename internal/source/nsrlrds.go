package source

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/othd/othd/internal/errors"
	"github.com/othd/othd/internal/schema"
)

// NSRLRDS reads an NSRL Reference Data Set: a SQLite database whose FILE
// table carries file_size plus hex sha1 and md5 columns. Duplicate
// triples are collapsed by the query itself. The RDS VERSION table, when
// populated, supplies a default header description.
type NSRLRDS struct {
	db   *sql.DB
	desc string
	once oneShot
}

// NewNSRLRDS opens the RDS database at path read-only.
func NewNSRLRDS(ctx context.Context, path string) (*NSRLRDS, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.NewValidationError(errors.CodeInputMissing,
			fmt.Sprintf("database %s does not exist", path))
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeOpenFailed,
			fmt.Sprintf("cannot open RDS database %s", path), err)
	}

	src := &NSRLRDS{db: db}
	if err := src.loadDescription(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return src, nil
}

// loadDescription derives the default description from the VERSION
// table. An empty VERSION table means no default; a missing or
// unreadable one means this is not an RDS database.
func (s *NSRLRDS) loadDescription(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, "SELECT release_date, description FROM VERSION LIMIT 1")
	if err != nil {
		return errors.NewFormatError(errors.CodeBadHeader,
			"RDS database has no readable VERSION table", err)
	}
	defer rows.Close()

	if rows.Next() {
		var releaseDate, description string
		if err := rows.Scan(&releaseDate, &description); err != nil {
			return errors.NewFormatError(errors.CodeBadHeader,
				"RDS VERSION row is malformed", err)
		}
		s.desc = fmt.Sprintf("Built from %s released on %s", description, releaseDate)
	}
	if err := rows.Err(); err != nil {
		return errors.NewStorageError(errors.CodeReadFailed, "RDS VERSION query failed", err)
	}
	return nil
}

func (s *NSRLRDS) Columns() []schema.Column {
	return []schema.Column{schema.ColumnSize, schema.ColumnSHA1, schema.ColumnMD5}
}

// DefaultDescription returns the description derived from the VERSION
// table, or empty when the table had no rows.
func (s *NSRLRDS) DefaultDescription() string {
	return s.desc
}

func (s *NSRLRDS) Records(ctx context.Context) (Iterator, error) {
	if err := s.once.begin("nsrl_rds"); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT file_size, sha1, md5 FROM FILE")
	if err != nil {
		return nil, errors.NewFormatError(errors.CodeBadHeader,
			"RDS database has no readable FILE table", err)
	}
	return &rdsIterator{rows: rows}, nil
}

func (s *NSRLRDS) Close() error {
	return s.db.Close()
}

type rdsIterator struct {
	rows *sql.Rows
	cur  *rdsRecord
	err  error
}

func (it *rdsIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if !it.rows.Next() {
		if err := it.rows.Err(); err != nil {
			it.err = errors.NewStorageError(errors.CodeReadFailed, "RDS FILE query failed", err)
		}
		return false
	}
	var rec rdsRecord
	if err := it.rows.Scan(&rec.size, &rec.sha1Hex, &rec.md5Hex); err != nil {
		it.err = errors.NewFormatError(errors.CodeMissingField, "RDS FILE row is malformed", err)
		return false
	}
	it.cur = &rec
	return true
}

func (it *rdsIterator) Record() Record {
	return it.cur
}

func (it *rdsIterator) Err() error {
	return it.err
}

func (it *rdsIterator) Close() error {
	return it.rows.Close()
}

type rdsRecord struct {
	size    int64
	sha1Hex string
	md5Hex  string
}

func (r *rdsRecord) Get(col schema.Column) (any, error) {
	switch col {
	case schema.ColumnSize:
		if r.size < 0 {
			return nil, errors.NewFormatError(errors.CodeBadInteger,
				fmt.Sprintf("RDS file_size %d is negative", r.size), nil)
		}
		return r.size, nil
	case schema.ColumnSHA1:
		return parseDigest(r.sha1Hex, col)
	case schema.ColumnMD5:
		return parseDigest(r.md5Hex, col)
	}
	return nil, unsupportedColumn("nsrl_rds", col)
}
