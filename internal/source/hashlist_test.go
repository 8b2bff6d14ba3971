package source

import (
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/snappy"

	"github.com/othd/othd/internal/errors"
	"github.com/othd/othd/internal/schema"
)

const (
	md5HexA  = "900150983cd24fb0d6963f7d28e17f72"
	md5HexB  = "D41D8CD98F00B204E9800998ECF8427E"
	sha1HexA = "a9993e364706816aba3e25717850c26c9cd0d89d"
)

func TestHashListMD5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	writeFile(t, path, md5HexA+"\n"+md5HexB+"\n")

	src, err := NewHashList(path, schema.ColumnMD5)
	if err != nil {
		t.Fatalf("new hash list: %v", err)
	}
	defer src.Close()

	recs := collectRecords(t, src)
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	for i, r := range recs {
		if got := getBytes(t, r, schema.ColumnMD5); len(got) != 16 {
			t.Errorf("record %d md5 length = %d, want 16", i, len(got))
		}
	}
}

func TestHashListSHA1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	writeFile(t, path, sha1HexA+"\n")

	src, err := NewHashList(path, schema.ColumnSHA1)
	if err != nil {
		t.Fatalf("new hash list: %v", err)
	}
	defer src.Close()

	recs := collectRecords(t, src)
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if got := getBytes(t, recs[0], schema.ColumnSHA1); len(got) != 20 {
		t.Errorf("sha1 length = %d, want 20", len(got))
	}
}

func TestHashListRejectsWrongLength(t *testing.T) {
	tests := []struct {
		name   string
		column schema.Column
		line   string
	}{
		{"31 char md5", schema.ColumnMD5, md5HexA[:31]},
		{"33 char md5", schema.ColumnMD5, md5HexA + "0"},
		{"39 char sha1", schema.ColumnSHA1, sha1HexA[:39]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "list.txt")
			writeFile(t, path, tt.line+"\n")

			src, err := NewHashList(path, tt.column)
			if err != nil {
				t.Fatalf("new hash list: %v", err)
			}
			defer src.Close()

			recs := collectRecords(t, src)
			if len(recs) != 1 {
				t.Fatalf("got %d records, want 1", len(recs))
			}
			if _, err := recs[0].Get(tt.column); !errors.IsFormat(err) {
				t.Errorf("got %v, want format error", err)
			}
		})
	}
}

func TestHashListBlankLineIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	writeFile(t, path, md5HexA+"\n\n")

	src, err := NewHashList(path, schema.ColumnMD5)
	if err != nil {
		t.Fatalf("new hash list: %v", err)
	}
	defer src.Close()

	recs := collectRecords(t, src)
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2 (blank lines are not skipped)", len(recs))
	}
	if _, err := recs[1].Get(schema.ColumnMD5); errors.GetCode(err) != errors.CodeBadHex {
		t.Errorf("blank line: got %v, want BAD_HEX", err)
	}
}

func TestHashListWrongColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	writeFile(t, path, md5HexA+"\n")

	src, err := NewHashList(path, schema.ColumnMD5)
	if err != nil {
		t.Fatalf("new hash list: %v", err)
	}
	defer src.Close()

	recs := collectRecords(t, src)
	if _, err := recs[0].Get(schema.ColumnSHA1); !errors.IsCapability(err) {
		t.Errorf("got %v, want capability error", err)
	}
}

func TestHashListSizeColumnRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	writeFile(t, path, "123\n")

	if _, err := NewHashList(path, schema.ColumnSize); errors.GetCode(err) != errors.CodeSizeOnly {
		t.Errorf("got %v, want SIZE_ONLY", err)
	}
}

func TestHashListMissingFile(t *testing.T) {
	_, err := NewHashList(filepath.Join(t.TempDir(), "nope.txt"), schema.ColumnMD5)
	if errors.GetCode(err) != errors.CodeInputMissing {
		t.Errorf("got %v, want INPUT_MISSING", err)
	}
}

func TestHashListGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write([]byte(md5HexA + "\n" + md5HexB + "\n")); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	src, err := NewHashList(path, schema.ColumnMD5)
	if err != nil {
		t.Fatalf("new hash list: %v", err)
	}
	defer src.Close()

	recs := collectRecords(t, src)
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if got := getBytes(t, recs[0], schema.ColumnMD5); len(got) != 16 {
		t.Errorf("md5 length = %d, want 16", len(got))
	}
}

func TestHashListSnappy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.sz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	sw := snappy.NewBufferedWriter(f)
	if _, err := sw.Write([]byte(sha1HexA + "\n")); err != nil {
		t.Fatalf("snappy write: %v", err)
	}
	if err := sw.Close(); err != nil {
		t.Fatalf("snappy close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	src, err := NewHashList(path, schema.ColumnSHA1)
	if err != nil {
		t.Fatalf("new hash list: %v", err)
	}
	defer src.Close()

	recs := collectRecords(t, src)
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if got := getBytes(t, recs[0], schema.ColumnSHA1); len(got) != 20 {
		t.Errorf("sha1 length = %d, want 20", len(got))
	}
}

func TestHashListNotGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.gz")
	writeFile(t, path, md5HexA+"\n")

	src, err := NewHashList(path, schema.ColumnMD5)
	if err != nil {
		t.Fatalf("new hash list: %v", err)
	}
	defer src.Close()

	if _, err := src.Records(context.Background()); errors.GetCode(err) != errors.CodeBadMarker {
		t.Errorf("got %v, want BAD_MARKER", err)
	}
}
