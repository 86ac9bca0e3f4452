package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"fileserver/internal/service"
)

// Multipart boundaries and form fields add a little on top of the
// file bytes; the transport-level body cap leaves room so a file of
// exactly the configured maximum still fits. The engine enforces the
// exact limit on the file bytes themselves.
const multipartOverhead = 64 * 1024

// passwordFieldLimit caps how much of a password form field is read.
const passwordFieldLimit = 1024

type uploadResp struct {
	URL           string `json:"url"`
	Filename      string `json:"filename"`
	Size          int64  `json:"size"`
	SizeFormatted string `json:"size_formatted"`
	Message       string `json:"message"`
}

type listEntry struct {
	Name          string `json:"name"`
	URL           string `json:"url"`
	Size          int64  `json:"size"`
	SizeFormatted string `json:"size_formatted"`
	Icon          string `json:"icon"`
	Created       string `json:"created"`
}

type listResp struct {
	Files []listEntry `json:"files"`
	Total int         `json:"total"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorCode maps a service error kind to its stable response
// category.
func errorCode(kind service.Kind) (int, string) {
	switch kind {
	case service.KindAuth:
		return http.StatusUnauthorized, "auth"
	case service.KindValidation:
		return http.StatusBadRequest, "validation"
	case service.KindInvalidName:
		return http.StatusBadRequest, "invalid_name"
	case service.KindNotFound:
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "storage"
	}
}

// writeError serializes a service error. Only the stable message and
// category leave the process; wrapped causes stay in the logs.
func writeError(w http.ResponseWriter, err error) {
	status, code := errorCode(service.KindOf(err))
	msg := "internal error"
	var serr *service.Error
	if errors.As(err, &serr) {
		msg = serr.Message
	}
	writeJSON(w, status, map[string]string{"error": msg, "code": code})
}

// spoolPart copies a multipart part into a temp file in the OS temp
// directory and rewinds it for reading. The caller removes the file.
func spoolPart(r io.Reader) (*os.File, error) {
	f, err := os.CreateTemp("", "upload-spool-")
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, err
	}
	return f, nil
}

// passwordFromRequest extracts the submitted secret from the query
// string or header. Upload additionally accepts a multipart form
// field, which overrides these.
func passwordFromRequest(r *http.Request) string {
	if p := r.URL.Query().Get("password"); p != "" {
		return p
	}
	return r.Header.Get("X-Upload-Password")
}

// handleUpload accepts POST multipart uploads with a "password" field
// and a "file" field. An optional "size" field (or query parameter)
// declares the file size so oversized uploads are rejected before any
// byte is persisted.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.cfg.MaxFileSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+multipartOverhead)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad multipart body", "code": "validation"})
		return
	}

	password := passwordFromRequest(r)
	declaredSize := int64(-1)
	if raw := r.URL.Query().Get("size"); raw != "" {
		if n, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			declaredSize = n
		}
	}

	// Walk the form fields in any order. When the password is already
	// known by the time the file part arrives it is streamed straight
	// through; otherwise the part is spooled outside the storage root
	// so a password field following the file still authenticates the
	// upload. Nothing touches the store before the secret is verified.
	var filePart io.Reader
	var spool *os.File
	var originalName string
	defer func() {
		if spool != nil {
			_ = spool.Close()
			_ = os.Remove(spool.Name())
		}
	}()
	for filePart == nil {
		part, perr := mr.NextPart()
		if perr == io.EOF {
			break
		}
		if perr != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad multipart body", "code": "validation"})
			return
		}

		switch part.FormName() {
		case "password":
			b, _ := io.ReadAll(io.LimitReader(part, passwordFieldLimit))
			password = strings.TrimSpace(string(b))
			_ = part.Close()
		case "size":
			b, _ := io.ReadAll(io.LimitReader(part, 32))
			if n, perr := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64); perr == nil {
				declaredSize = n
			}
			_ = part.Close()
		case "file":
			// Only the first file field is accepted.
			if spool != nil {
				_ = part.Close()
				continue
			}
			originalName = part.FileName()
			if password != "" {
				filePart = part
				continue
			}
			spool, err = spoolPart(part)
			_ = part.Close()
			if err != nil {
				var mbe *http.MaxBytesError
				if errors.As(err, &mbe) {
					writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "file too large", "code": "validation"})
					return
				}
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad multipart body", "code": "validation"})
				return
			}
		default:
			_ = part.Close()
		}
	}

	if filePart == nil && spool != nil {
		if declaredSize < 0 {
			if fi, serr := spool.Stat(); serr == nil {
				declaredSize = fi.Size()
			}
		}
		filePart = spool
	}
	if filePart == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing file field", "code": "validation"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	f, err := s.cfg.Service.Upload(ctx, password, originalName, filePart, declaredSize)
	if err != nil {
		// If MaxBytesReader tripped, surface 413.
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "file too large", "code": "validation"})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResp{
		URL:           f.URL,
		Filename:      f.Name,
		Size:          f.Size,
		SizeFormatted: formatSize(f.Size),
		Message:       "upload successful",
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	files, err := s.cfg.Service.List(r.Context(), passwordFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	resp := listResp{Files: make([]listEntry, 0, len(files)), Total: len(files)}
	for _, f := range files {
		resp.Files = append(resp.Files, listEntry{
			Name:          f.Name,
			URL:           f.URL,
			Size:          f.Size,
			SizeFormatted: formatSize(f.Size),
			Icon:          fileIcon(f.Name),
			Created:       f.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	target := strings.TrimPrefix(r.URL.Path, "/delete/")
	if err := s.cfg.Service.Delete(r.Context(), passwordFromRequest(r), target); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted: " + target})
}

// handleRead streams a stored file. Whether this endpoint requires
// the shared secret is the service's PublicRead policy.
func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	target := strings.TrimPrefix(r.URL.Path, "/files/")
	rc, f, err := s.cfg.Service.Read(r.Context(), passwordFromRequest(r), target)
	if err != nil {
		writeError(w, err)
		return
	}
	defer func() { _ = rc.Close() }()

	ct := mime.TypeByExtension(filepath.Ext(f.Name))
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	if f.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"version":   s.cfg.Build.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleAPIInfo describes the endpoints and limits for clients.
func (s *Server) handleAPIInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "File Server API",
		"version": s.cfg.Build.Version,
		"endpoints": map[string]any{
			"upload": map[string]string{"method": "POST", "path": "/upload", "auth": "password"},
			"list":   map[string]string{"method": "GET", "path": "/list", "auth": "password"},
			"delete": map[string]string{"method": "DELETE", "path": "/delete/{filename}", "auth": "password"},
			"read":   map[string]string{"method": "GET", "path": "/files/{filename}", "auth": "configurable"},
			"health": map[string]string{"method": "GET", "path": "/health", "auth": "none"},
		},
		"limits": map[string]any{
			"max_file_size":           s.cfg.MaxFileSize,
			"max_file_size_formatted": formatSize(s.cfg.MaxFileSize),
		},
	})
}
