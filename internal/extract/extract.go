// Package extract turns raw document bytes into text for chunking.
package extract

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"

	"github.com/Aman-CERP/docrag/internal/errors"
)

const mimePDF = "application/pdf"

// Detect returns the MIME type of raw, sniffed from content rather than name.
func Detect(raw []byte) string {
	if len(raw) == 0 {
		return "application/octet-stream"
	}
	return mimetype.Detect(raw).String()
}

// IsText reports whether a sniffed MIME type is some form of text.
func IsText(raw []byte) bool {
	for m := mimetype.Detect(raw); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// Text extracts the text of a PDF (pages in order) or returns plain text
// with line endings normalised. name is only used in error messages.
func Text(name string, raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}

	mt := mimetype.Detect(raw)
	switch {
	case mt.Is(mimePDF):
		return pdfText(name, raw)
	case IsText(raw):
		if !utf8.Valid(raw) {
			return "", errors.New(errors.ErrCodeUnsupportedDocument,
				fmt.Sprintf("%s is not valid UTF-8 text", name), nil)
		}
		return normalize(string(raw)), nil
	default:
		return "", errors.New(errors.ErrCodeUnsupportedDocument,
			fmt.Sprintf("%s has unsupported content type %s", name, mt.String()), nil).
			WithSuggestion("Only PDF and plain-text documents can be ingested.")
	}
}

func pdfText(name string, raw []byte) (text string, err error) {
	// The PDF reader panics on some malformed object streams.
	defer func() {
		if p := recover(); p != nil {
			text = ""
			err = errors.New(errors.ErrCodeUnsupportedDocument,
				fmt.Sprintf("malformed PDF %s: %v", name, p), nil)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", errors.New(errors.ErrCodeUnsupportedDocument,
			fmt.Sprintf("failed to open PDF %s", name), err)
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		txt, err := page.GetPlainText(nil)
		if err != nil {
			return "", errors.New(errors.ErrCodeUnsupportedDocument,
				fmt.Sprintf("failed to read page %d of %s", i, name), err)
		}
		if strings.TrimSpace(txt) == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(txt)
	}
	return normalize(sb.String()), nil
}

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
