// Package ingest turns uploaded resume files into cleaned raw text.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gen2brain/go-fitz"
	"github.com/google/uuid"
)

var (
	// ErrUnsupportedFormat is returned for files that are neither text nor PDF.
	ErrUnsupportedFormat = errors.New("unsupported resume format")
	// ErrTooLarge is returned when a file exceeds the configured size limit.
	ErrTooLarge = errors.New("resume file is too large")
)

var namespace = uuid.MustParse("6f1c7a52-4b8e-4c1e-9a53-2d3b1f0e8a71")

// Document is one ingested resume.
type Document struct {
	ID       string
	Filename string
	Text     string
}

// NewID derives a stable identifier from the file name and its text.
func NewID(filename, text string) string {
	return uuid.NewSHA1(namespace, []byte(filename+"\x00"+text)).String()
}

// ReadFile loads a resume from disk. maxBytes <= 0 disables the size check.
func ReadFile(path string, maxBytes int64) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return nil, fmt.Errorf("%s: %w (%d bytes, limit %d)", path, ErrTooLarge, info.Size(), maxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return FromBytes(filepath.Base(path), data)
}

// FromBytes extracts and cleans the text of a resume. PDFs are detected by
// extension or by their header; everything else must be valid UTF-8 text.
func FromBytes(filename string, data []byte) (*Document, error) {
	var (
		text string
		err  error
	)

	switch {
	case isPDF(filename, data):
		text, err = pdfText(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
	case isText(filename, data):
		text = string(data)
	default:
		return nil, fmt.Errorf("%s: %w", filename, ErrUnsupportedFormat)
	}

	text = Clean(text)
	return &Document{ID: NewID(filename, text), Filename: filename, Text: text}, nil
}

func isPDF(filename string, data []byte) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf") || bytes.HasPrefix(data, []byte("%PDF-"))
}

func isText(filename string, data []byte) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".text", "":
		return utf8.Valid(data)
	default:
		return false
	}
}

func pdfText(data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pages := make([]string, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("failed to extract text from page %d: %w", i, err)
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}

	return strings.TrimSpace(strings.Join(pages, "\n")), nil
}
