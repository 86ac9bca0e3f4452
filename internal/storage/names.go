package storage

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

// Stored names follow <timePrefix>_<randomToken>_<fragment>.<ext>.
// The time prefix keeps directory listings sortable, the random token
// makes collisions negligible under concurrent uploads, and the
// fragment keeps a small recognizable piece of the original name.
const nameTimeLayout = "20060102150405"

const (
	maxFragmentLen = 8
	maxExtLen      = 10
)

// NewName derives a fresh stored name from a client-supplied original
// name. Only a sanitized fragment and extension of the original
// survive; a new unique name is generated on every call, so uploads
// with identical original names never overwrite each other.
func NewName(originalName string) string {
	var b strings.Builder
	b.WriteString(time.Now().UTC().Format(nameTimeLayout))
	b.WriteByte('_')
	b.WriteString(randomToken())

	if frag := nameFragment(originalName); frag != "" {
		b.WriteByte('_')
		b.WriteString(frag)
	}
	if ext := nameExtension(originalName); ext != "" {
		b.WriteByte('.')
		b.WriteString(ext)
	}
	return b.String()
}

// randomToken returns 4 bytes of crypto randomness as 8 hex chars,
// a 2^32 token space. crypto/rand.Read never fails as of Go 1.24.
func randomToken() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// nameExtension extracts the substring after the final dot, lowered
// and restricted to [a-z0-9]{1,10}. Anything else yields no
// extension.
func nameExtension(originalName string) string {
	idx := strings.LastIndexByte(originalName, '.')
	if idx < 0 || idx == len(originalName)-1 {
		return ""
	}
	ext := strings.ToLower(originalName[idx+1:])
	if len(ext) > maxExtLen {
		return ""
	}
	for _, c := range ext {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}

// nameFragment keeps up to 8 allow-listed characters of the original
// stem. The fragment passes through the same character filter as the
// rest of the stored name; arbitrary original text is never embedded
// verbatim.
func nameFragment(originalName string) string {
	stem := originalName
	if idx := strings.LastIndexByte(stem, '.'); idx >= 0 {
		stem = stem[:idx]
	}
	var b strings.Builder
	for _, c := range stem {
		if b.Len() >= maxFragmentLen {
			break
		}
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			b.WriteRune(c)
		}
	}
	return b.String()
}
