// Package ingest turns user-provided files into validated upload payloads and local previews.
package ingest

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gabriel-vasile/mimetype"
)

// File is a user-selected file handle: its name, declared media type and raw bytes.
// Data is never modified after construction.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// NewFile builds a File from memory. contentType is taken as declared.
func NewFile(name, contentType string, data []byte) *File {
	return &File{Name: name, ContentType: contentType, Data: data}
}

// OpenFile reads path and declares its media type from the content.
func OpenFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read file %s", path)
	}
	return NewFile(filepath.Base(path), DetectContentType(data), data), nil
}

// DetectContentType sniffs the media type of data, without parameters (e.g. "image/jpeg").
func DetectContentType(data []byte) string {
	mt := mimetype.Detect(data).String()
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return mt
}

// IsImage reports whether the declared media type is an image type.
func (f *File) IsImage() bool {
	return f != nil && strings.HasPrefix(strings.ToLower(f.ContentType), "image/")
}

// DataURL encodes the file as a base64 data URL suitable for direct display.
func (f *File) DataURL() string {
	var b strings.Builder
	b.Grow(len("data:;base64,") + len(f.ContentType) + base64.StdEncoding.EncodedLen(len(f.Data)))
	b.WriteString("data:")
	b.WriteString(f.ContentType)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(f.Data))
	return b.String()
}
