package source

import (
	"context"
	csvpkg "encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/othd/othd/internal/errors"
	"github.com/othd/othd/internal/schema"
)

// csvDialects maps the supported dialect names to their delimiter. The
// unix dialect differs from excel only when writing, so they read the
// same way.
var csvDialects = map[string]rune{
	"excel":     ',',
	"excel-tab": '\t',
	"unix":      ',',
}

// CSVDialects returns the supported dialect names.
func CSVDialects() []string {
	return []string{"excel", "excel-tab", "unix"}
}

// CSV reads a delimited logical-imaging report with the header fields
// Type, Filesize, "SHA1 Hash" and "MD5 Hash". Rows whose Type is
// Directory are excluded. The available columns are decided once, at
// construction, by the first accepted row's non-empty fields; later rows
// with a different shape fail at access time rather than changing the
// schema.
type CSV struct {
	path    string
	comma   rune
	columns []schema.Column
	once    oneShot
}

// NewCSV creates a CSV source over path using the named dialect.
func NewCSV(path, dialect string) (*CSV, error) {
	comma, ok := csvDialects[dialect]
	if !ok {
		return nil, errors.NewValidationError(errors.CodeBadDialect,
			fmt.Sprintf("unknown CSV dialect %q", dialect))
	}
	if _, err := os.Stat(path); err != nil {
		return nil, errors.NewValidationError(errors.CodeInputMissing,
			fmt.Sprintf("CSV file %s does not exist", path))
	}

	src := &CSV{path: path, comma: comma}
	if err := src.inferColumns(); err != nil {
		return nil, err
	}
	return src, nil
}

// csvLayout maps the recognized header names to field positions.
// A duplicated header keeps its last occurrence.
type csvLayout struct {
	typeIdx int
	sizeIdx int
	sha1Idx int
	md5Idx  int
}

func layoutFromHeader(header []string) csvLayout {
	l := csvLayout{typeIdx: -1, sizeIdx: -1, sha1Idx: -1, md5Idx: -1}
	for i, name := range header {
		switch name {
		case "Type":
			l.typeIdx = i
		case "Filesize":
			l.sizeIdx = i
		case "SHA1 Hash":
			l.sha1Idx = i
		case "MD5 Hash":
			l.md5Idx = i
		}
	}
	return l
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func (c *CSV) openReader() (*os.File, *csvpkg.Reader, csvLayout, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, nil, csvLayout{}, errors.NewStorageError(errors.CodeOpenFailed,
			fmt.Sprintf("cannot open CSV file %s", c.path), err)
	}
	r := csvpkg.NewReader(f)
	r.Comma = c.comma
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		f.Close()
		if err == io.EOF {
			return nil, nil, csvLayout{}, errors.NewValidationError(errors.CodeNoCSVColumns,
				"no usable columns found; check that the file has the expected header")
		}
		return nil, nil, csvLayout{}, errors.NewFormatError(errors.CodeBadCSV,
			"cannot read CSV header", err)
	}
	return f, r, layoutFromHeader(header), nil
}

// inferColumns reads up to the first accepted row and freezes the
// column set from its non-empty fields.
func (c *CSV) inferColumns() error {
	f, r, layout, err := c.openReader()
	if err != nil {
		return err
	}
	defer f.Close()

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.NewFormatError(errors.CodeBadCSV, "cannot parse CSV row", err)
		}
		if field(row, layout.typeIdx) == "Directory" {
			continue
		}

		var cols []schema.Column
		if field(row, layout.sizeIdx) != "" {
			cols = append(cols, schema.ColumnSize)
		}
		if field(row, layout.sha1Idx) != "" {
			cols = append(cols, schema.ColumnSHA1)
		}
		if field(row, layout.md5Idx) != "" {
			cols = append(cols, schema.ColumnMD5)
		}
		c.columns = cols
		break
	}

	if len(c.columns) == 0 {
		return errors.NewValidationError(errors.CodeNoCSVColumns,
			"no usable columns found; check that the file has the expected header")
	}
	return nil
}

func (c *CSV) Columns() []schema.Column {
	return c.columns
}

func (c *CSV) Records(ctx context.Context) (Iterator, error) {
	if err := c.once.begin("csv"); err != nil {
		return nil, err
	}
	f, r, layout, err := c.openReader()
	if err != nil {
		return nil, err
	}
	return &csvIterator{
		ctx:     ctx,
		f:       f,
		r:       r,
		layout:  layout,
		columns: c.columns,
	}, nil
}

func (c *CSV) Close() error {
	return nil
}

type csvIterator struct {
	ctx     context.Context
	f       *os.File
	r       *csvpkg.Reader
	layout  csvLayout
	columns []schema.Column
	cur     *csvRecord
	line    int
	err     error
}

func (it *csvIterator) Next() bool {
	if it.err != nil {
		return false
	}
	for {
		if err := it.ctx.Err(); err != nil {
			it.err = errors.NewStorageError(errors.CodeReadFailed, "CSV read canceled", err)
			return false
		}
		row, err := it.r.Read()
		if err == io.EOF {
			return false
		}
		if err != nil {
			it.err = errors.NewFormatError(errors.CodeBadCSV, "cannot parse CSV row", err)
			return false
		}
		it.line++
		if field(row, it.layout.typeIdx) == "Directory" {
			continue
		}
		it.cur = &csvRecord{
			columns: it.columns,
			size:    field(row, it.layout.sizeIdx),
			sha1:    field(row, it.layout.sha1Idx),
			md5:     field(row, it.layout.md5Idx),
			line:    it.line,
		}
		return true
	}
}

func (it *csvIterator) Record() Record {
	return it.cur
}

func (it *csvIterator) Err() error {
	return it.err
}

func (it *csvIterator) Close() error {
	return it.f.Close()
}

type csvRecord struct {
	columns []schema.Column
	size    string
	sha1    string
	md5     string
	line    int
}

func (r *csvRecord) Get(col schema.Column) (any, error) {
	if !schema.Contains(r.columns, col) {
		return nil, unsupportedColumn("csv", col)
	}

	var raw string
	switch col {
	case schema.ColumnSize:
		raw = r.size
	case schema.ColumnSHA1:
		raw = r.sha1
	case schema.ColumnMD5:
		raw = r.md5
	}
	if raw == "" {
		return nil, errors.NewFormatError(errors.CodeMissingField,
			fmt.Sprintf("CSV row %d has no %s value", r.line, col), nil)
	}

	if col == schema.ColumnSize {
		return parseSize(raw)
	}
	return parseDigest(raw, col)
}
