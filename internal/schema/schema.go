// Package schema defines the OTHD column vocabulary and the validation
// and canonicalization rules for column subsets.
package schema

import (
	"fmt"

	"github.com/othd/othd/internal/errors"
)

// Column names a storable file property.
type Column string

const (
	ColumnSize Column = "size"
	ColumnSHA1 Column = "sha1"
	ColumnMD5  Column = "md5"
)

// Canonical is the storage order of the files table. Every negotiated
// subset is stored in this order regardless of how a source listed it.
var Canonical = []Column{ColumnSize, ColumnSHA1, ColumnMD5}

// ParseColumn converts a column name into a Column. Names are exact and
// lowercase; anything else is a validation error.
func ParseColumn(s string) (Column, error) {
	switch c := Column(s); c {
	case ColumnSize, ColumnSHA1, ColumnMD5:
		return c, nil
	}
	return "", errors.NewValidationError(errors.CodeUnknownColumn,
		fmt.Sprintf("unknown column %q", s))
}

// SQLType returns the SQLite storage type for the column.
func (c Column) SQLType() string {
	if c == ColumnSize {
		return "INT"
	}
	return "BLOB"
}

// Definition returns the column's DDL fragment, e.g. "size INT NOT NULL".
// Every stored column is NOT NULL.
func (c Column) Definition() string {
	return fmt.Sprintf("%s %s NOT NULL", string(c), c.SQLType())
}

// DigestLength returns the decoded digest length in bytes, or 0 for
// non-digest columns.
func (c Column) DigestLength() int {
	switch c {
	case ColumnMD5:
		return 16
	case ColumnSHA1:
		return 20
	}
	return 0
}

// Validate checks a column subset against the format rules: non-empty,
// only known columns, and never size alone (a size-only database cannot
// identify anything).
func Validate(cols []Column) error {
	if len(cols) == 0 {
		return errors.NewValidationError(errors.CodeEmptyColumns, "column list is empty")
	}
	set := make(map[Column]bool, len(cols))
	for _, c := range cols {
		switch c {
		case ColumnSize, ColumnSHA1, ColumnMD5:
			set[c] = true
		default:
			return errors.NewValidationError(errors.CodeUnknownColumn,
				fmt.Sprintf("unknown column %q", string(c)))
		}
	}
	if len(set) == 1 && set[ColumnSize] {
		return errors.NewValidationError(errors.CodeSizeOnly,
			"column list must contain at least one hash")
	}
	return nil
}

// Canonicalize validates cols and returns the distinct columns in
// canonical order. The input order and any duplicates are irrelevant.
func Canonicalize(cols []Column) ([]Column, error) {
	if err := Validate(cols); err != nil {
		return nil, err
	}
	set := make(map[Column]bool, len(cols))
	for _, c := range cols {
		set[c] = true
	}
	out := make([]Column, 0, len(Canonical))
	for _, c := range Canonical {
		if set[c] {
			out = append(out, c)
		}
	}
	return out, nil
}

// Names converts a column slice to plain strings, preserving order.
func Names(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = string(c)
	}
	return out
}

// Contains reports whether cols includes c.
func Contains(cols []Column, c Column) bool {
	for _, have := range cols {
		if have == c {
			return true
		}
	}
	return false
}
