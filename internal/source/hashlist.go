package source

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/golang/snappy"

	"github.com/othd/othd/internal/errors"
	"github.com/othd/othd/internal/schema"
)

// HashList reads one hex digest per line and serves exactly one column.
// Files ending in .gz or .sz are decompressed transparently (gzip and
// framed snappy). Every line must hold a well-formed value; blank lines
// are format errors, not separators.
type HashList struct {
	path   string
	column schema.Column
	once   oneShot
}

// NewHashList creates a hash list source over path serving column.
// The column must be a digest column; a size-only list could never be
// written anyway.
func NewHashList(path string, column schema.Column) (*HashList, error) {
	if err := schema.Validate([]schema.Column{column}); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, errors.NewValidationError(errors.CodeInputMissing,
			fmt.Sprintf("hash list %s does not exist", path))
	}
	return &HashList{path: path, column: column}, nil
}

func (h *HashList) Columns() []schema.Column {
	return []schema.Column{h.column}
}

func (h *HashList) Records(ctx context.Context) (Iterator, error) {
	if err := h.once.begin("hash list"); err != nil {
		return nil, err
	}

	f, err := os.Open(h.path)
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeOpenFailed,
			fmt.Sprintf("cannot open hash list %s", h.path), err)
	}

	var r io.Reader = f
	closers := []io.Closer{f}
	switch {
	case strings.HasSuffix(h.path, ".gz"):
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.NewFormatError(errors.CodeBadMarker,
				fmt.Sprintf("%s is not a gzip stream", h.path), err)
		}
		closers = append(closers, zr)
		r = zr
	case strings.HasSuffix(h.path, ".sz"):
		r = snappy.NewReader(f)
	}

	return &hashListIterator{
		ctx:     ctx,
		column:  h.column,
		scanner: bufio.NewScanner(r),
		closers: closers,
	}, nil
}

func (h *HashList) Close() error {
	return nil
}

type hashListIterator struct {
	ctx     context.Context
	column  schema.Column
	scanner *bufio.Scanner
	closers []io.Closer
	line    string
	lineNo  int
	err     error
}

func (it *hashListIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if err := it.ctx.Err(); err != nil {
		it.err = errors.NewStorageError(errors.CodeReadFailed, "hash list read canceled", err)
		return false
	}
	if !it.scanner.Scan() {
		if err := it.scanner.Err(); err != nil {
			it.err = errors.NewStorageError(errors.CodeReadFailed, "cannot read hash list", err)
		}
		return false
	}
	it.line = strings.TrimSpace(it.scanner.Text())
	it.lineNo++
	return true
}

func (it *hashListIterator) Record() Record {
	return &hashListRecord{column: it.column, value: it.line, lineNo: it.lineNo}
}

func (it *hashListIterator) Err() error {
	return it.err
}

func (it *hashListIterator) Close() error {
	var firstErr error
	// Wrapping readers close before the file they wrap.
	for i := len(it.closers) - 1; i >= 0; i-- {
		if err := it.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	it.closers = nil
	return firstErr
}

type hashListRecord struct {
	column schema.Column
	value  string
	lineNo int
}

func (r *hashListRecord) Get(col schema.Column) (any, error) {
	if col != r.column {
		return nil, unsupportedColumn("hash list", col)
	}
	v, err := parseDigest(r.value, col)
	if err != nil {
		return nil, fmt.Errorf("hash list line %d: %w", r.lineNo, err)
	}
	return v, nil
}
