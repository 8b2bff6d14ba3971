package schema

import (
	"testing"

	"github.com/othd/othd/internal/errors"
)

func TestParseColumn(t *testing.T) {
	tests := []struct {
		in      string
		want    Column
		wantErr bool
	}{
		{"size", ColumnSize, false},
		{"sha1", ColumnSHA1, false},
		{"md5", ColumnMD5, false},
		{"SIZE", "", true},
		{"sha256", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseColumn(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseColumn(%q) should fail", tt.in)
			} else if !errors.IsValidation(err) {
				t.Errorf("ParseColumn(%q) error category = %q, want validation", tt.in, errors.GetCategory(err))
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseColumn(%q) failed: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseColumn(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		cols     []Column
		wantCode string
	}{
		{"empty", nil, errors.CodeEmptyColumns},
		{"size alone", []Column{ColumnSize}, errors.CodeSizeOnly},
		{"size duplicated", []Column{ColumnSize, ColumnSize}, errors.CodeSizeOnly},
		{"unknown", []Column{Column("crc32")}, errors.CodeUnknownColumn},
		{"unknown among known", []Column{ColumnMD5, Column("crc32")}, errors.CodeUnknownColumn},
		{"md5 only", []Column{ColumnMD5}, ""},
		{"sha1 only", []Column{ColumnSHA1}, ""},
		{"size with hash", []Column{ColumnSize, ColumnMD5}, ""},
		{"all three", []Column{ColumnSize, ColumnSHA1, ColumnMD5}, ""},
		{"reversed order", []Column{ColumnMD5, ColumnSHA1, ColumnSize}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cols)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("Validate(%v) failed: %v", tt.cols, err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate(%v) should fail with %s", tt.cols, tt.wantCode)
			}
			if errors.GetCode(err) != tt.wantCode {
				t.Errorf("Validate(%v) code = %q, want %q", tt.cols, errors.GetCode(err), tt.wantCode)
			}
		})
	}
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		cols []Column
		want []Column
	}{
		{"md5 then size", []Column{ColumnMD5, ColumnSize}, []Column{ColumnSize, ColumnMD5}},
		{"sha1 only", []Column{ColumnSHA1}, []Column{ColumnSHA1}},
		{"all reversed", []Column{ColumnMD5, ColumnSHA1, ColumnSize}, []Column{ColumnSize, ColumnSHA1, ColumnMD5}},
		{"duplicates collapse", []Column{ColumnMD5, ColumnMD5, ColumnSHA1}, []Column{ColumnSHA1, ColumnMD5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize(tt.cols)
			if err != nil {
				t.Fatalf("Canonicalize(%v) failed: %v", tt.cols, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Canonicalize(%v) = %v, want %v", tt.cols, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Canonicalize(%v) = %v, want %v", tt.cols, got, tt.want)
				}
			}
		})
	}
}

func TestCanonicalizeRejectsInvalid(t *testing.T) {
	if _, err := Canonicalize(nil); errors.GetCode(err) != errors.CodeEmptyColumns {
		t.Errorf("empty list: got %v", err)
	}
	if _, err := Canonicalize([]Column{ColumnSize}); errors.GetCode(err) != errors.CodeSizeOnly {
		t.Errorf("size only: got %v", err)
	}
}

func TestColumnSQL(t *testing.T) {
	if got := ColumnSize.Definition(); got != "size INT NOT NULL" {
		t.Errorf("size definition = %q", got)
	}
	if got := ColumnSHA1.Definition(); got != "sha1 BLOB NOT NULL" {
		t.Errorf("sha1 definition = %q", got)
	}
	if got := ColumnMD5.Definition(); got != "md5 BLOB NOT NULL" {
		t.Errorf("md5 definition = %q", got)
	}
}

func TestDigestLength(t *testing.T) {
	if ColumnMD5.DigestLength() != 16 {
		t.Error("md5 digest length should be 16")
	}
	if ColumnSHA1.DigestLength() != 20 {
		t.Error("sha1 digest length should be 20")
	}
	if ColumnSize.DigestLength() != 0 {
		t.Error("size has no digest length")
	}
}

func TestNamesAndContains(t *testing.T) {
	cols := []Column{ColumnSize, ColumnMD5}
	names := Names(cols)
	if len(names) != 2 || names[0] != "size" || names[1] != "md5" {
		t.Errorf("Names(%v) = %v", cols, names)
	}
	if !Contains(cols, ColumnSize) || Contains(cols, ColumnSHA1) {
		t.Errorf("Contains misbehaves on %v", cols)
	}
}
