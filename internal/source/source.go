// Package source provides the record sources that feed hash database
// creation: directory walks, plain hash lists, NSRL RDS databases, NSRL
// CAID exports, and delimited imaging reports. Every source advertises
// the columns it can serve and yields records through a lazy, single-pass
// iterator.
package source

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/othd/othd/internal/errors"
	"github.com/othd/othd/internal/schema"
)

// Record is one file entry. Get returns int64 for the size column and
// []byte for digest columns. Asking for a column the source does not
// advertise is a capability error; a value that cannot be decoded is a
// format error.
type Record interface {
	Get(col schema.Column) (any, error)
}

// Iterator walks a source's records in the sql.Rows style: Next
// advances, Record returns the current entry, Err reports what stopped
// a short iteration. Close releases the iterator's resources and is
// safe to call at any point.
type Iterator interface {
	Next() bool
	Record() Record
	Err() error
	Close() error
}

// Source is a collection of hash records. Records may be called once;
// sources are not restartable and a second call is a capability error.
type Source interface {
	// Columns lists the columns this source can serve, in canonical order.
	Columns() []schema.Column
	// Records begins the source's single pass.
	Records(ctx context.Context) (Iterator, error)
	// Close releases any resources held by the source itself.
	Close() error
}

// DescriptionDefaulter is implemented by sources that can propose a
// header description when the caller supplies none.
type DescriptionDefaulter interface {
	DefaultDescription() string
}

// oneShot enforces the single-pass contract shared by every source.
type oneShot struct {
	consumed bool
}

func (o *oneShot) begin(name string) error {
	if o.consumed {
		return errors.NewCapabilityError(errors.CodeSourceConsumed,
			fmt.Sprintf("%s source records may only be iterated once", name))
	}
	o.consumed = true
	return nil
}

func unsupportedColumn(name string, col schema.Column) error {
	return errors.NewCapabilityError(errors.CodeUnsupportedColumn,
		fmt.Sprintf("%s source does not provide column %q", name, col))
}

// parseSize decodes a decimal file size. Sizes are unsigned and must
// fit a signed 64-bit integer, the widest value SQLite stores.
func parseSize(s string) (int64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 63)
	if err != nil {
		return 0, errors.NewFormatError(errors.CodeBadInteger,
			fmt.Sprintf("size %q is not an unsigned integer", s), err)
	}
	return int64(v), nil
}

// parseDigest decodes a hex digest, insisting on the exact character
// count for the column: 32 for md5, 40 for sha1.
func parseDigest(s string, col schema.Column) ([]byte, error) {
	want := col.DigestLength() * 2
	if len(s) != want {
		return nil, errors.NewFormatError(errors.CodeBadHex,
			fmt.Sprintf("%s value %q is not %d characters long", col, s, want), nil)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.NewFormatError(errors.CodeBadHex,
			fmt.Sprintf("%s value %q is not valid hex", col, s), err)
	}
	return b, nil
}
