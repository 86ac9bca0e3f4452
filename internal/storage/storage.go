// Package storage owns the mapping from stored names to bytes on the
// backing store. It provides the stored-name generator, the sanitizer
// that defends the storage root against path traversal, and two
// Engine implementations: a flat local directory and an S3-compatible
// object store.
package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// StoredFile describes one file persisted under the storage root.
// All metadata is derived from backing-store attributes; there is no
// separate metadata record.
type StoredFile struct {
	// Name is the generated stored name, unique within the store and
	// immutable once created.
	Name string
	// OriginalName is the client-supplied name. It is informational
	// only and must never be used for path construction.
	OriginalName string
	// Size is the actual persisted byte count.
	Size int64
	// CreatedAt is set at write completion.
	CreatedAt time.Time
}

var (
	// ErrNotFound signals an operation on a name with no stored file.
	ErrNotFound = errors.New("file not found")
	// ErrTooLarge signals a declared or actual size over the limit.
	ErrTooLarge = errors.New("file too large")
	// ErrTypeNotAllowed signals an extension outside the permitted set.
	ErrTypeNotAllowed = errors.New("file type not allowed")
	// ErrInvalidName signals a name that failed sanitation.
	ErrInvalidName = errors.New("invalid file name")
)

// Engine is the backing-store contract. A file is either fully
// present or fully absent; partially written data is never observable
// under its final name.
type Engine interface {
	// Write persists the stream under name. declaredSize is the
	// client-declared byte count (-1 when unknown); both the declared
	// and the actual count are checked against the configured
	// maximum before the file becomes visible. On any failure the
	// temporary artifact is removed.
	Write(ctx context.Context, name string, r io.Reader, declaredSize int64) (StoredFile, error)

	// Read returns the file's bytes. name must already have passed
	// CleanName. Absence is reported as ErrNotFound.
	Read(ctx context.Context, name string) (io.ReadCloser, StoredFile, error)

	// List enumerates entries directly under the storage root,
	// newest first. Symlinks and temporary artifacts are skipped.
	List(ctx context.Context) ([]StoredFile, error)

	// Delete removes the file. Deleting an absent name reports
	// ErrNotFound.
	Delete(ctx context.Context, name string) error
}

// Policy carries the configured size and type limits shared by all
// engine implementations.
type Policy struct {
	// MaxSize is the largest accepted file in bytes. Zero or negative
	// means unlimited.
	MaxSize int64
	// Allowed, when non-empty, is the allow-list of permitted
	// extensions (with leading dot, lower case). Empty means any
	// extension not in Blocked.
	Allowed map[string]struct{}
	// Blocked extensions are rejected even when allow-listed.
	Blocked map[string]struct{}
}

// NewPolicy builds a Policy from configuration slices.
func NewPolicy(maxSize int64, allowed, blocked []string) Policy {
	p := Policy{
		MaxSize: maxSize,
		Allowed: make(map[string]struct{}, len(allowed)),
		Blocked: make(map[string]struct{}, len(blocked)),
	}
	for _, ext := range allowed {
		p.Allowed[normalizeExt(ext)] = struct{}{}
	}
	for _, ext := range blocked {
		p.Blocked[normalizeExt(ext)] = struct{}{}
	}
	return p
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// CheckSize validates a byte count against the configured maximum.
// A count exactly at the maximum is accepted.
func (p Policy) CheckSize(n int64) error {
	if p.MaxSize > 0 && n > p.MaxSize {
		return ErrTooLarge
	}
	return nil
}

// CheckExtension validates the extension of a stored name. The
// block-list wins over the allow-list so an operator-widened
// allow-list can never re-enable executables.
func (p Policy) CheckExtension(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	if _, blocked := p.Blocked[ext]; blocked {
		return ErrTypeNotAllowed
	}
	if len(p.Allowed) > 0 {
		if _, ok := p.Allowed[ext]; !ok {
			return ErrTypeNotAllowed
		}
	}
	return nil
}
