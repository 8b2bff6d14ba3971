package hashdb

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/othd/othd/internal/errors"
)

// sampleLimit caps how many recent rows Inspect reads back.
const sampleLimit = 20

// IndexInfo names one index over the files table and the columns it
// covers, in index order.
type IndexInfo struct {
	Name    string
	Columns []string
}

// Info describes an OTHD database as found on disk. The marker fields
// hold whatever the file contains; the predicate methods say whether
// those values are the expected ones.
type Info struct {
	Path          string
	ApplicationID int64
	UserVersion   int64
	Name          string
	Description   string
	UUID          uuid.UUID
	Columns       []string
	Indexes       []IndexInfo
	Entries       int64

	// Sample holds up to sampleLimit of the most recently inserted
	// rows, one string per column, digests hex encoded.
	Sample [][]string
}

// FormatIDCorrect reports whether the file carries the OTHD
// application id.
func (i *Info) FormatIDCorrect() bool {
	return i.ApplicationID == Magic
}

// VersionUnderstood reports whether this toolkit understands the
// file's format version.
func (i *Info) VersionUnderstood() bool {
	return i.UserVersion == FormatVersion
}

// HasIdealIndex reports whether some index covers every stored column,
// with size leading whenever size is stored. Lookups on consuming
// equipment stay fast only when such an index exists.
func (i *Info) HasIdealIndex() bool {
	for _, idx := range i.Indexes {
		if len(idx.Columns) != len(i.Columns) {
			continue
		}
		if hasColumn(i.Columns, "size") && idx.Columns[0] != "size" {
			continue
		}
		return true
	}
	return false
}

func hasColumn(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}

// Inspect opens the database at path read-only and collects its
// header, schema, markers, entry count and a sample of recent rows.
// Structural problems are format errors; wrong marker values are not
// errors and are left for the predicates to report.
func Inspect(ctx context.Context, path string) (*Info, error) {
	if _, err := PeekMarkers(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeOpenFailed,
			"failed to open "+path, err)
	}
	defer db.Close()

	info := &Info{Path: path}
	if err := readHeader(ctx, db, info); err != nil {
		return nil, err
	}
	if err := readSchema(ctx, db, info); err != nil {
		return nil, err
	}
	if err := readMarkers(ctx, db, info); err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, "SELECT COUNT(1) FROM files")
	if err := row.Scan(&info.Entries); err != nil {
		return nil, errors.NewStorageError(errors.CodeReadFailed,
			"failed to count entries", err)
	}

	if err := readSample(ctx, db, info); err != nil {
		return nil, err
	}
	return info, nil
}

func readHeader(ctx context.Context, db *sql.DB, info *Info) error {
	row := db.QueryRowContext(ctx,
		"SELECT name, description, uuid FROM header ORDER BY rowid DESC LIMIT 1")

	var name, description sql.NullString
	var rawUUID []byte
	if err := row.Scan(&name, &description, &rawUUID); err != nil {
		if err == sql.ErrNoRows {
			return errors.NewFormatError(errors.CodeBadHeader,
				"header table is empty", nil)
		}
		return errors.NewFormatError(errors.CodeBadHeader,
			"database has no readable header table", err)
	}
	id, err := uuid.FromBytes(rawUUID)
	if err != nil {
		return errors.NewFormatError(errors.CodeBadHeader,
			"header uuid is not 16 bytes", err)
	}
	info.Name = name.String
	info.Description = description.String
	info.UUID = id
	return nil
}

func readSchema(ctx context.Context, db *sql.DB, info *Info) error {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info(files)")
	if err != nil {
		return errors.NewStorageError(errors.CodeReadFailed,
			"failed to read files schema", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cid, notNull, pk int
		var name, colType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return errors.NewStorageError(errors.CodeReadFailed,
				"failed to read files schema", err)
		}
		info.Columns = append(info.Columns, name)
	}
	if err := rows.Err(); err != nil {
		return errors.NewStorageError(errors.CodeReadFailed,
			"failed to read files schema", err)
	}
	if len(info.Columns) == 0 {
		return errors.NewFormatError(errors.CodeNotOTHD,
			"database has no files table", nil)
	}
	return readIndexes(ctx, db, info)
}

func readIndexes(ctx context.Context, db *sql.DB, info *Info) error {
	rows, err := db.QueryContext(ctx, "PRAGMA index_list(files)")
	if err != nil {
		return errors.NewStorageError(errors.CodeReadFailed,
			"failed to list indexes", err)
	}
	names := []string{}
	for rows.Next() {
		var seq, unique, partial int
		var name, origin string
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			rows.Close()
			return errors.NewStorageError(errors.CodeReadFailed,
				"failed to list indexes", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return errors.NewStorageError(errors.CodeReadFailed,
			"failed to list indexes", err)
	}
	rows.Close()

	for _, name := range names {
		columns, err := readIndexColumns(ctx, db, name)
		if err != nil {
			return err
		}
		info.Indexes = append(info.Indexes, IndexInfo{Name: name, Columns: columns})
	}
	return nil
}

func readIndexColumns(ctx context.Context, db *sql.DB, index string) ([]string, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA index_info("+index+")")
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeReadFailed,
			"failed to read index "+index, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var seqno, cid int
		var name sql.NullString
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, errors.NewStorageError(errors.CodeReadFailed,
				"failed to read index "+index, err)
		}
		columns = append(columns, name.String)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError(errors.CodeReadFailed,
			"failed to read index "+index, err)
	}
	return columns, nil
}

func readMarkers(ctx context.Context, db *sql.DB, info *Info) error {
	row := db.QueryRowContext(ctx, "PRAGMA application_id")
	if err := row.Scan(&info.ApplicationID); err != nil {
		return errors.NewStorageError(errors.CodeReadFailed,
			"failed to read application id", err)
	}
	row = db.QueryRowContext(ctx, "PRAGMA user_version")
	if err := row.Scan(&info.UserVersion); err != nil {
		return errors.NewStorageError(errors.CodeReadFailed,
			"failed to read database version", err)
	}
	return nil
}

// readSample pulls the most recently inserted rows so a report can show
// what the data looks like without scanning the whole table.
func readSample(ctx context.Context, db *sql.DB, info *Info) error {
	query := "SELECT " + strings.Join(info.Columns, ", ") +
		" FROM files ORDER BY rowid DESC LIMIT " + strconv.Itoa(sampleLimit)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return errors.NewStorageError(errors.CodeReadFailed,
			"failed to read sample rows", err)
	}
	defer rows.Close()

	for rows.Next() {
		values := make([]any, len(info.Columns))
		ptrs := make([]any, len(info.Columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return errors.NewStorageError(errors.CodeReadFailed,
				"failed to read sample rows", err)
		}
		info.Sample = append(info.Sample, renderRow(values))
	}
	if err := rows.Err(); err != nil {
		return errors.NewStorageError(errors.CodeReadFailed,
			"failed to read sample rows", err)
	}
	return nil
}

func renderRow(values []any) []string {
	out := make([]string, len(values))
	for i, v := range values {
		switch x := v.(type) {
		case int64:
			out[i] = strconv.FormatInt(x, 10)
		case []byte:
			out[i] = hex.EncodeToString(x)
		case nil:
			out[i] = "None"
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}
