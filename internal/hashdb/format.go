// Package hashdb reads and writes OTHD hash databases.
//
// An OTHD database is a SQLite file stamped with the OTHD application
// id. It carries a single-row header table (name, description, uuid), a
// files table over a canonical subset of the size, sha1 and md5 columns,
// and one index covering every stored column. Create builds a database
// from any record source in a single transaction; Inspect reads one back
// for validation and reporting.
package hashdb

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/othd/othd/internal/errors"
)

const (
	// Magic is the value stored in SQLite's application_id pragma: the
	// bytes "OTHD" read as a big-endian 32-bit integer.
	Magic = 0x4f544844

	// FormatVersion is stamped into SQLite's user_version pragma.
	// Inspect reports other values as not understood.
	FormatVersion = 1

	// MaxNameLength and MaxDescriptionLength bound the header fields.
	// Consuming equipment allocates fixed buffers for both.
	MaxNameLength        = 63
	MaxDescriptionLength = 1023

	// IndexName is the covering index created over the files table.
	IndexName = "all_index"
)

// sqliteMagic opens every SQLite database file.
var sqliteMagic = []byte("SQLite format 3\x00")

// Fixed offsets within the 100-byte SQLite database header.
const (
	sqliteHeaderSize    = 100
	userVersionOffset   = 60
	applicationIDOffset = 68
)

// RawMarkers holds the format markers read straight from the SQLite
// file header, before any driver touches the file.
type RawMarkers struct {
	ApplicationID uint32
	UserVersion   uint32
}

// IsOTHD reports whether both markers match the OTHD format.
func (m *RawMarkers) IsOTHD() bool {
	return m.ApplicationID == Magic && m.UserVersion == FormatVersion
}

// PeekMarkers reads the first 100 bytes of path and extracts the
// application id and user version without opening the file as a
// database. It fails with a format error if the file is not SQLite.
func PeekMarkers(path string) (*RawMarkers, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeOpenFailed,
			"failed to open "+path, err)
	}
	defer f.Close()

	buf := make([]byte, sqliteHeaderSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, errors.NewFormatError(errors.CodeNotOTHD,
			path+" is too short to be a database file", err)
	}
	if !bytes.Equal(buf[:len(sqliteMagic)], sqliteMagic) {
		return nil, errors.NewFormatError(errors.CodeNotOTHD,
			path+" is not a SQLite database", nil)
	}
	return &RawMarkers{
		ApplicationID: binary.BigEndian.Uint32(buf[applicationIDOffset:]),
		UserVersion:   binary.BigEndian.Uint32(buf[userVersionOffset:]),
	}, nil
}
