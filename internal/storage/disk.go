package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// tmpPrefix marks in-flight uploads. Temporary files live in the same
// directory as their final name so the rename is a same-filesystem
// atomic operation.
const tmpPrefix = ".upload-"

// Disk is an Engine backed by a single flat local directory. The
// directory handle is owned exclusively by this engine; no other
// component writes to the storage root.
type Disk struct {
	root   string
	policy Policy
}

// NewDisk creates the storage root if needed and returns an engine
// rooted there.
func NewDisk(root string, policy Policy) (*Disk, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Disk{root: abs, policy: policy}, nil
}

// Root returns the absolute storage root path.
func (d *Disk) Root() string { return d.root }

// Write streams r into a temporary file and atomically renames it
// into place, so a crash mid-write never leaves a partial file
// visible under its final name. The temporary file is removed on any
// failure, including client disconnects surfacing as read errors.
func (d *Disk) Write(ctx context.Context, name string, r io.Reader, declaredSize int64) (StoredFile, error) {
	if err := d.policy.CheckExtension(name); err != nil {
		return StoredFile{}, err
	}
	if declaredSize >= 0 {
		if err := d.policy.CheckSize(declaredSize); err != nil {
			return StoredFile{}, err
		}
	}
	final, err := rootedPath(d.root, name)
	if err != nil {
		return StoredFile{}, err
	}

	tmp := filepath.Join(d.root, tmpPrefix+uuid.NewString())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return StoredFile{}, fmt.Errorf("create temp file: %w", err)
	}

	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmp)
	}

	src := r
	if d.policy.MaxSize > 0 {
		// One byte of headroom so an oversized stream is detected
		// rather than silently truncated.
		src = io.LimitReader(r, d.policy.MaxSize+1)
	}
	n, err := io.Copy(f, src)
	if err != nil {
		cleanup()
		if cerr := ctx.Err(); cerr != nil {
			return StoredFile{}, fmt.Errorf("upload canceled: %w", cerr)
		}
		return StoredFile{}, fmt.Errorf("write file: %w", err)
	}
	if err := d.policy.CheckSize(n); err != nil {
		cleanup()
		return StoredFile{}, err
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return StoredFile{}, fmt.Errorf("sync file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return StoredFile{}, fmt.Errorf("close file: %w", err)
	}

	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return StoredFile{}, fmt.Errorf("rename into place: %w", err)
	}

	// The file is fully persisted at this point; a failed stat must
	// not turn the upload into an error the client would retry.
	created := time.Now()
	if fi, err := os.Stat(final); err == nil {
		created = fi.ModTime()
	}
	return StoredFile{Name: name, Size: n, CreatedAt: created}, nil
}

// Read opens a stored file. The name must already have passed
// CleanName; the rooted join re-proves containment regardless.
func (d *Disk) Read(ctx context.Context, name string) (io.ReadCloser, StoredFile, error) {
	p, err := rootedPath(d.root, name)
	if err != nil {
		return nil, StoredFile{}, err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, StoredFile{}, ErrNotFound
		}
		return nil, StoredFile{}, fmt.Errorf("open stored file: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, StoredFile{}, fmt.Errorf("stat stored file: %w", err)
	}
	if fi.IsDir() {
		_ = f.Close()
		return nil, StoredFile{}, ErrNotFound
	}
	return f, StoredFile{Name: name, Size: fi.Size(), CreatedAt: fi.ModTime()}, nil
}

// List enumerates the storage root non-recursively, newest first.
// Directories, symlinks, and temporary or hidden entries are skipped.
func (d *Disk) List(ctx context.Context) ([]StoredFile, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("read storage root: %w", err)
	}

	files := make([]StoredFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || e.Type()&fs.ModeSymlink != 0 || !e.Type().IsRegular() {
			continue
		}
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			// Raced with a concurrent delete; the file is simply gone.
			continue
		}
		files = append(files, StoredFile{
			Name:      e.Name(),
			Size:      fi.Size(),
			CreatedAt: fi.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if !files[i].CreatedAt.Equal(files[j].CreatedAt) {
			return files[i].CreatedAt.After(files[j].CreatedAt)
		}
		return files[i].Name > files[j].Name
	})
	return files, nil
}

// Delete unlinks a stored file. Deleting an absent name is a
// reported ErrNotFound, not a failure of the engine.
func (d *Disk) Delete(ctx context.Context, name string) error {
	p, err := rootedPath(d.root, name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete stored file: %w", err)
	}
	return nil
}
