// Package service orchestrates the core file-store pipeline: the
// authentication gate, name generation, sanitation, and the storage
// engine. It is transport-free; the HTTP layer translates requests
// into these calls and serializes the results.
package service

import (
	"context"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"fileserver/internal/auth"
	"fileserver/internal/storage"
)

// File is a stored file together with its derived public URL.
type File struct {
	storage.StoredFile
	URL string
}

// Service exposes the operations of the store: upload, list, delete,
// and read. Each request is handled independently; the service holds
// no cross-request state.
type Service struct {
	auth       *auth.Authenticator
	engine     storage.Engine
	baseURL    string
	publicRead bool
	log        *logrus.Logger
}

// New wires the service. baseURL is used only to derive public URLs;
// publicRead controls whether Read requires the shared secret.
func New(a *auth.Authenticator, engine storage.Engine, baseURL string, publicRead bool, log *logrus.Logger) *Service {
	return &Service{
		auth:       a,
		engine:     engine,
		baseURL:    strings.TrimRight(baseURL, "/"),
		publicRead: publicRead,
		log:        log,
	}
}

func (s *Service) fileURL(name string) string {
	return s.baseURL + "/files/" + name
}

// Upload verifies the secret, derives a fresh unique stored name from
// the untrusted original name, and persists the stream. Validation
// (size, type) happens before any byte becomes visible; a failure at
// any stage leaves no partial file behind. Duplicate original names
// always get a fresh name, never an overwrite.
func (s *Service) Upload(ctx context.Context, secret, originalName string, body io.Reader, declaredSize int64) (File, error) {
	if !s.auth.Verify(secret) {
		s.log.WithField("original_name", originalName).Warn("upload rejected: bad credential")
		return File{}, errAuth()
	}

	name := storage.NewName(originalName)
	sf, err := s.engine.Write(ctx, name, body, declaredSize)
	if err != nil {
		serr := fromStorage(err)
		if serr.Kind == KindStorage {
			s.log.WithError(err).WithField("stored_name", name).Error("upload failed")
		}
		return File{}, serr
	}
	sf.OriginalName = originalName

	s.log.WithFields(logrus.Fields{
		"stored_name": sf.Name,
		"size":        sf.Size,
	}).Info("file uploaded")
	return File{StoredFile: sf, URL: s.fileURL(sf.Name)}, nil
}

// List verifies the secret and returns all stored files, newest
// first.
func (s *Service) List(ctx context.Context, secret string) ([]File, error) {
	if !s.auth.Verify(secret) {
		return nil, errAuth()
	}
	stored, err := s.engine.List(ctx)
	if err != nil {
		s.log.WithError(err).Error("list failed")
		return nil, errStorage(err)
	}
	files := make([]File, 0, len(stored))
	for _, sf := range stored {
		files = append(files, File{StoredFile: sf, URL: s.fileURL(sf.Name)})
	}
	return files, nil
}

// Delete verifies the secret, sanitizes the target name, and removes
// the file. Deleting an absent name reports not-found on every call.
func (s *Service) Delete(ctx context.Context, secret, target string) error {
	if !s.auth.Verify(secret) {
		return errAuth()
	}
	name, err := storage.CleanName(target)
	if err != nil {
		s.log.WithField("target", target).Warn("delete rejected: invalid name")
		return errInvalidName(err)
	}
	if err := s.engine.Delete(ctx, name); err != nil {
		serr := fromStorage(err)
		if serr.Kind == KindStorage {
			s.log.WithError(err).WithField("stored_name", name).Error("delete failed")
		}
		return serr
	}
	s.log.WithField("stored_name", name).Info("file deleted")
	return nil
}

// Read sanitizes the target name and returns the file's byte stream.
// When public reads are disabled the shared secret is enforced. A
// read racing a delete reports not-found, never truncated data.
func (s *Service) Read(ctx context.Context, secret, target string) (io.ReadCloser, File, error) {
	if !s.publicRead && !s.auth.Verify(secret) {
		return nil, File{}, errAuth()
	}
	name, err := storage.CleanName(target)
	if err != nil {
		return nil, File{}, errInvalidName(err)
	}
	rc, sf, err := s.engine.Read(ctx, name)
	if err != nil {
		return nil, File{}, fromStorage(err)
	}
	return rc, File{StoredFile: sf, URL: s.fileURL(sf.Name)}, nil
}
