package domain

import (
	"errors"
	"strings"
	"time"
)

const (
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeWebP = "image/webp"
	MimePDF  = "application/pdf"
)

var supportedMimeTypes = map[string]struct{}{
	MimePNG:  {},
	MimeJPEG: {},
	MimeWebP: {},
	MimePDF:  {},
}

// Document is an uploaded file subject to OCR. Metadata only; the bytes
// live behind the storage key. Immutable after creation except for the
// page-count backfill performed on first load.
type Document struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	MimeType   string    `json:"mime_type"`
	StorageKey string    `json:"storage_key"`
	SizeBytes  int64     `json:"size_bytes"`
	PageCount  int       `json:"page_count"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewDocument(id, filename, mimeType, storageKey string, sizeBytes int64, now time.Time) (*Document, error) {
	if strings.TrimSpace(id) == "" {
		return nil, WrapError(ErrInvalidInput, "new document", errors.New("empty id"))
	}
	if strings.TrimSpace(filename) == "" {
		return nil, WrapError(ErrInvalidInput, "new document", errors.New("empty filename"))
	}
	if !IsSupportedMimeType(mimeType) {
		return nil, WrapError(ErrInvalidInput, "new document", errors.New("unsupported mime type "+mimeType))
	}
	if strings.TrimSpace(storageKey) == "" {
		return nil, WrapError(ErrInvalidInput, "new document", errors.New("empty storage key"))
	}
	return &Document{
		ID:         id,
		Filename:   filename,
		MimeType:   normalizeMimeType(mimeType),
		StorageKey: storageKey,
		SizeBytes:  sizeBytes,
		CreatedAt:  now.UTC(),
	}, nil
}

func IsSupportedMimeType(mimeType string) bool {
	_, ok := supportedMimeTypes[normalizeMimeType(mimeType)]
	return ok
}

func normalizeMimeType(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	// strip parameters like "; charset=binary"
	if idx := strings.IndexByte(mt, ';'); idx >= 0 {
		mt = strings.TrimSpace(mt[:idx])
	}
	if mt == "image/jpg" {
		mt = MimeJPEG
	}
	return mt
}

func (d *Document) IsPDF() bool {
	return d.MimeType == MimePDF
}

func (d *Document) IsImage() bool {
	return strings.HasPrefix(d.MimeType, "image/")
}
