package storage

import (
	"fmt"
	"path/filepath"
	"strings"
)

const maxNameLen = 255

// CleanName validates a client-supplied stored name before it is used
// to look up or delete a file. It rejects path separators, null
// bytes, ".." segments, hidden names, empty and overlong names.
// Lexical checks alone are not the traversal defense: every engine
// additionally proves, after joining and normalizing, that the
// resulting path stays under the storage root (see rootedPath).
func CleanName(candidate string) (string, error) {
	if candidate == "" {
		return "", fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	if len(candidate) > maxNameLen {
		return "", fmt.Errorf("%w: name too long", ErrInvalidName)
	}
	if strings.ContainsAny(candidate, "/\\") {
		return "", fmt.Errorf("%w: path separator in name", ErrInvalidName)
	}
	if strings.ContainsRune(candidate, '\x00') {
		return "", fmt.Errorf("%w: null byte in name", ErrInvalidName)
	}
	if candidate == "." || candidate == ".." {
		return "", fmt.Errorf("%w: relative path segment", ErrInvalidName)
	}
	// Hidden files are reserved for temporary upload artifacts.
	if strings.HasPrefix(candidate, ".") {
		return "", fmt.Errorf("%w: hidden name", ErrInvalidName)
	}
	return candidate, nil
}

// rootedPath joins name to root and proves the normalized result is a
// strict descendant of root. This is the containment check the
// traversal guarantee rests on, independent of what CleanName caught.
func rootedPath(root, name string) (string, error) {
	joined := filepath.Join(root, name)
	rel, err := filepath.Rel(root, joined)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: escapes storage root", ErrInvalidName)
	}
	// Stored files live directly under the root, never in subdirectories.
	if strings.ContainsRune(rel, filepath.Separator) {
		return "", fmt.Errorf("%w: nested path", ErrInvalidName)
	}
	return joined, nil
}
