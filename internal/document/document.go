// Package document defines the data model shared by the retrieval pipeline:
// documents identified by content hash, their chunks, and the indexed bundle
// that is cached per document.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"unicode"
)

// Document is an identified source of text. Identity is Hash; Name is
// whatever the caller used to refer to it (usually a cleaned file path).
type Document struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
}

// Hash returns the lowercase hex SHA-256 of raw.
func Hash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Stem returns the base name of name without its extension, reduced to
// characters that are safe in a directory name. It never returns "".
func Stem(name string) string {
	base := filepath.Base(filepath.ToSlash(strings.TrimSpace(name)))
	base = strings.TrimSuffix(base, filepath.Ext(base))

	var sb strings.Builder
	for _, r := range base {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '.':
			sb.WriteRune(r)
		case r == '_' || unicode.IsSpace(r):
			sb.WriteRune('_')
		}
		if sb.Len() >= 64 {
			break
		}
	}

	stem := strings.Trim(sb.String(), "._")
	if stem == "" {
		return "document"
	}
	return stem
}

// ShortHash returns the first 12 characters of a content hash for display.
func ShortHash(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}
