package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/othd/othd/internal/errors"
	"github.com/othd/othd/internal/schema"
)

// caidDataPrefix marks the lines of a CAID export that carry a media
// record: six spaces, a closing bracket, a comma.
const caidDataPrefix = "      ],"

// NSRLCAID reads an NSRL CAID export. Data lines are comma-separated
// "Key":Value pairs; MediaSize, SHA1, MD5 and Category are extracted.
// An optional category allow-list suppresses records whose category is
// not listed; a nil list accepts everything. Category is decoded for
// every data line, filter or not, so a record with a missing or
// malformed category always fails the run.
type NSRLCAID struct {
	path       string
	categories map[int]bool // nil accepts all; empty rejects all
	once       oneShot
}

// NewNSRLCAID creates a CAID source over path. categories nil means no
// filtering; an empty non-nil slice admits nothing.
func NewNSRLCAID(path string, categories []int) (*NSRLCAID, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.NewValidationError(errors.CodeInputMissing,
			fmt.Sprintf("database %s does not exist", path))
	}
	var set map[int]bool
	if categories != nil {
		set = make(map[int]bool, len(categories))
		for _, c := range categories {
			set[c] = true
		}
	}
	return &NSRLCAID{path: path, categories: set}, nil
}

func (s *NSRLCAID) Columns() []schema.Column {
	return []schema.Column{schema.ColumnSize, schema.ColumnSHA1, schema.ColumnMD5}
}

func (s *NSRLCAID) Records(ctx context.Context) (Iterator, error) {
	if err := s.once.begin("nsrl_caid"); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeOpenFailed,
			fmt.Sprintf("cannot open CAID export %s", s.path), err)
	}
	return &caidIterator{
		ctx:    ctx,
		f:      f,
		r:      bufio.NewReader(f),
		filter: s.categories,
	}, nil
}

func (s *NSRLCAID) Close() error {
	return nil
}

type caidIterator struct {
	ctx    context.Context
	f      *os.File
	r      *bufio.Reader
	filter map[int]bool
	cur    *caidRecord
	err    error
	done   bool
}

func (it *caidIterator) Next() bool {
	if it.err != nil || it.done {
		return false
	}
	for {
		if err := it.ctx.Err(); err != nil {
			it.err = errors.NewStorageError(errors.CodeReadFailed, "CAID read canceled", err)
			return false
		}
		line, readErr := it.r.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			it.err = errors.NewStorageError(errors.CodeReadFailed, "cannot read CAID export", readErr)
			return false
		}
		if readErr == io.EOF {
			it.done = true
			if line == "" {
				return false
			}
		}
		if strings.HasPrefix(line, caidDataPrefix) {
			meat := line[len(caidDataPrefix):]
			// The payload always drops its last byte: the newline on
			// terminated lines, a data byte on an unterminated final line.
			if len(meat) > 0 {
				meat = meat[:len(meat)-1]
			}
			meat = strings.TrimSuffix(meat, "\r")

			rec, err := parseCAIDLine(meat)
			if err != nil {
				it.err = err
				return false
			}
			if it.filter == nil || it.filter[rec.category] {
				it.cur = rec
				return true
			}
		}
		if it.done {
			return false
		}
	}
}

func (it *caidIterator) Record() Record {
	return it.cur
}

func (it *caidIterator) Err() error {
	return it.err
}

func (it *caidIterator) Close() error {
	return it.f.Close()
}

// parseCAIDLine splits a data line into its key/value pairs and decodes
// the category. Values keep their surrounding quotes until accessed.
func parseCAIDLine(meat string) (*caidRecord, error) {
	fields := make(map[string]string)
	for _, pair := range strings.Split(meat, ",") {
		parts := strings.Split(pair, ":")
		if len(parts) < 2 {
			return nil, errors.NewFormatError(errors.CodeMissingField,
				fmt.Sprintf("malformed CAID field %q", pair), nil)
		}
		key := strings.Trim(parts[0], `"`)
		fields[key] = parts[1]
	}

	catRaw, ok := fields["Category"]
	if !ok {
		return nil, errors.NewFormatError(errors.CodeMissingField,
			"CAID record has no Category", nil)
	}
	category, err := strconv.Atoi(strings.TrimSpace(catRaw))
	if err != nil {
		return nil, errors.NewFormatError(errors.CodeBadInteger,
			fmt.Sprintf("CAID category %q is not an integer", catRaw), err)
	}
	return &caidRecord{fields: fields, category: category}, nil
}

type caidRecord struct {
	fields   map[string]string
	category int
}

func (r *caidRecord) Get(col schema.Column) (any, error) {
	var key string
	switch col {
	case schema.ColumnSize:
		key = "MediaSize"
	case schema.ColumnSHA1:
		key = "SHA1"
	case schema.ColumnMD5:
		key = "MD5"
	default:
		return nil, unsupportedColumn("nsrl_caid", col)
	}

	raw, ok := r.fields[key]
	if !ok {
		return nil, errors.NewFormatError(errors.CodeMissingField,
			fmt.Sprintf("CAID record has no %s", key), nil)
	}
	value := strings.Trim(raw, `"`)
	if col == schema.ColumnSize {
		return parseSize(value)
	}
	return parseDigest(value, col)
}
