package source

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"

	"github.com/othd/othd/internal/errors"
	"github.com/othd/othd/internal/schema"
)

// Folder walks a directory tree and yields one record per regular file.
// Sizes come from stat; digests are computed by streaming each file once
// through every advertised hash, on first access.
type Folder struct {
	root    string
	columns []schema.Column
	once    oneShot
}

// NewFolder creates a folder source rooted at root. A nil columns slice
// advertises all three columns.
func NewFolder(root string, columns []schema.Column) (*Folder, error) {
	if columns == nil {
		columns = schema.Canonical
	}
	canonical, err := schema.Canonicalize(columns)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.NewValidationError(errors.CodeInputMissing,
			fmt.Sprintf("folder %s does not exist", root))
	}
	if !info.IsDir() {
		return nil, errors.NewValidationError(errors.CodeInputMissing,
			fmt.Sprintf("%s is not a directory", root))
	}
	return &Folder{root: root, columns: canonical}, nil
}

func (f *Folder) Columns() []schema.Column {
	return f.columns
}

func (f *Folder) Records(ctx context.Context) (Iterator, error) {
	if err := f.once.begin("folder"); err != nil {
		return nil, err
	}
	return &folderIterator{
		ctx:     ctx,
		columns: f.columns,
		stack:   []string{f.root},
	}, nil
}

func (f *Folder) Close() error {
	return nil
}

// folderIterator performs an iterative depth-first walk: a directory's
// files are yielded in name order before any of its subdirectories are
// entered. No goroutines; the walk state is an explicit stack.
type folderIterator struct {
	ctx     context.Context
	columns []schema.Column
	stack   []string // directories not yet read, top at the end
	pending []string // file paths from the directory most recently read
	cur     *fileRecord
	err     error
}

func (it *folderIterator) Next() bool {
	if it.err != nil {
		return false
	}
	for {
		if err := it.ctx.Err(); err != nil {
			it.err = errors.NewStorageError(errors.CodeReadFailed, "folder walk canceled", err)
			return false
		}
		if len(it.pending) > 0 {
			path := it.pending[0]
			it.pending = it.pending[1:]
			it.cur = &fileRecord{path: path, columns: it.columns}
			return true
		}
		if len(it.stack) == 0 {
			return false
		}
		dir := it.stack[len(it.stack)-1]
		it.stack = it.stack[:len(it.stack)-1]
		if err := it.readDir(dir); err != nil {
			it.err = err
			return false
		}
	}
}

// readDir queues dir's regular files and pushes its subdirectories.
// Symlinks are resolved: links to regular files are yielded, links to
// directories are not descended into, and anything else is skipped.
func (it *folderIterator) readDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.NewStorageError(errors.CodeReadFailed,
			fmt.Sprintf("cannot read directory %s", dir), err)
	}
	var subdirs []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			subdirs = append(subdirs, path)
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			return errors.NewStorageError(errors.CodeReadFailed,
				fmt.Sprintf("cannot stat %s", path), err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		it.pending = append(it.pending, path)
	}
	// Push in reverse so the first subdirectory is walked first.
	for i := len(subdirs) - 1; i >= 0; i-- {
		it.stack = append(it.stack, subdirs[i])
	}
	return nil
}

func (it *folderIterator) Record() Record {
	return it.cur
}

func (it *folderIterator) Err() error {
	return it.err
}

func (it *folderIterator) Close() error {
	it.stack = nil
	it.pending = nil
	return nil
}

// fileRecord computes its column values on demand. All advertised
// digests are produced in one streaming pass over the file and cached,
// so asking for md5 and sha1 reads the file once.
type fileRecord struct {
	path    string
	columns []schema.Column
	digests map[schema.Column][]byte
}

func (r *fileRecord) Get(col schema.Column) (any, error) {
	if !schema.Contains(r.columns, col) {
		return nil, unsupportedColumn("folder", col)
	}
	if col == schema.ColumnSize {
		info, err := os.Stat(r.path)
		if err != nil {
			return nil, errors.NewStorageError(errors.CodeReadFailed,
				fmt.Sprintf("cannot stat %s", r.path), err)
		}
		return info.Size(), nil
	}
	if r.digests == nil {
		if err := r.computeDigests(); err != nil {
			return nil, err
		}
	}
	return r.digests[col], nil
}

func (r *fileRecord) computeDigests() error {
	hashers := make(map[schema.Column]hash.Hash)
	writers := make([]io.Writer, 0, 2)
	for _, col := range r.columns {
		switch col {
		case schema.ColumnMD5:
			h := md5.New()
			hashers[col] = h
			writers = append(writers, h)
		case schema.ColumnSHA1:
			h := sha1.New()
			hashers[col] = h
			writers = append(writers, h)
		}
	}

	f, err := os.Open(r.path)
	if err != nil {
		return errors.NewStorageError(errors.CodeReadFailed,
			fmt.Sprintf("cannot open %s", r.path), err)
	}
	defer f.Close()

	if _, err := io.Copy(io.MultiWriter(writers...), f); err != nil {
		return errors.NewStorageError(errors.CodeReadFailed,
			fmt.Sprintf("cannot read %s", r.path), err)
	}

	r.digests = make(map[schema.Column][]byte, len(hashers))
	for col, h := range hashers {
		r.digests[col] = h.Sum(nil)
	}
	return nil
}
