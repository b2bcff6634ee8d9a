package imagecodec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const defaultMIMEType = "image/png"

// File is an in-memory image with a logical name and declared type.
type File struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Reader returns a fresh reader over the file contents.
func (f *File) Reader() io.Reader {
	return bytes.NewReader(f.Data)
}

func (f *File) Size() int64 {
	return int64(len(f.Data))
}

// Extension returns the file name extension without the dot, falling back to
// the declared MIME type and then to "png".
func (f *File) Extension() string {
	if ext := strings.TrimPrefix(path.Ext(f.Name), "."); ext != "" {
		return ext
	}
	if m := mimetype.Lookup(f.MIMEType); m != nil && m.Extension() != "" {
		return strings.TrimPrefix(m.Extension(), ".")
	}
	return "png"
}

// InlinePart is a typed binary payload embedded directly in a model request.
type InlinePart struct {
	MIMEType string
	Data     []byte
}

// Base64 is the wire form of the part's payload.
func (p InlinePart) Base64() string {
	return base64.StdEncoding.EncodeToString(p.Data)
}

// ReadError means the image source could not be read into memory.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read image: %v", e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// ReadFile loads r fully into memory. An empty mimeType is sniffed from the content.
func ReadFile(r io.Reader, name, mimeType string) (*File, error) {
	if r == nil {
		return nil, &ReadError{Err: fmt.Errorf("no image source")}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ReadError{Err: err}
	}
	return NewFile(name, mimeType, data), nil
}

// NewFile wraps data as a named, typed blob.
func NewFile(name, mimeType string, data []byte) *File {
	if mimeType == "" {
		mimeType = DetectMIMEType(data)
	}
	return &File{Name: name, MIMEType: mimeType, Data: data}
}

// DetectMIMEType sniffs the content type, defaulting to image/png for
// payloads that are not recognisable images.
func DetectMIMEType(data []byte) string {
	if len(data) == 0 {
		return defaultMIMEType
	}
	m := mimetype.Detect(data)
	if !strings.HasPrefix(m.String(), "image/") {
		return defaultMIMEType
	}
	return m.String()
}

// ToInlinePart reads the image fully and wraps it for a model request.
func ToInlinePart(r io.Reader, mimeType string) (InlinePart, error) {
	f, err := ReadFile(r, "", mimeType)
	if err != nil {
		return InlinePart{}, err
	}
	return InlinePart{MIMEType: f.MIMEType, Data: f.Data}, nil
}

// ToBase64 reads the image fully and returns its standard base64 encoding.
func ToBase64(r io.Reader) (string, error) {
	if r == nil {
		return "", &ReadError{Err: fmt.Errorf("no image source")}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", &ReadError{Err: err}
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// FromBase64 decodes data back into a named, typed blob. A data URL prefix
// ("data:image/png;base64,") is tolerated.
func FromBase64(data, filename, mimeType string) (*File, error) {
	if i := strings.Index(data, ";base64,"); i >= 0 && strings.HasPrefix(data, "data:") {
		data = data[i+len(";base64,"):]
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 image: %w", err)
	}
	return NewFile(filename, mimeType, raw), nil
}
