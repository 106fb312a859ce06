// Package loader turns stored documents into page-image sequences for
// recognition. Plain images become a single-page sequence; PDFs are split
// per page, with the embedded text layer used as a no-OCR fast path.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/disintegration/imaging"

	"github.com/artpods56/KUL-OCR/internal/core/domain"
	"github.com/artpods56/KUL-OCR/internal/core/ports"
)

type Loader struct {
	storage ports.FileStorage
}

func New(storage ports.FileStorage) *Loader {
	return &Loader{storage: storage}
}

// Load opens the document as a fresh page iterator. Calling Load again
// restarts the sequence from the first page.
func (l *Loader) Load(ctx context.Context, doc *domain.Document) (ports.PageIterator, error) {
	rc, err := l.storage.Open(ctx, doc.StorageKey)
	if err != nil {
		return nil, domain.WrapError(domain.ErrLoadFailed, "open document bytes", err)
	}
	defer rc.Close()

	switch {
	case doc.IsPDF():
		return newPDFIterator(rc)
	case doc.IsImage():
		return newImageIterator(rc)
	default:
		return nil, domain.WrapError(domain.ErrLoadFailed, "load document",
			fmt.Errorf("unsupported mime type %s", doc.MimeType))
	}
}

// imageIterator yields exactly one page: the decoded, orientation-fixed
// image re-encoded as PNG.
type imageIterator struct {
	data []byte
	done bool
}

func newImageIterator(r io.Reader) (*imageIterator, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, domain.WrapError(domain.ErrLoadFailed, "read image bytes", err)
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, domain.WrapError(domain.ErrLoadFailed, "decode image", err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, domain.WrapError(domain.ErrLoadFailed, "encode page image", err)
	}
	return &imageIterator{data: buf.Bytes()}, nil
}

func (it *imageIterator) Next(_ context.Context) (ports.PageImage, error) {
	if it.done {
		return ports.PageImage{}, io.EOF
	}
	it.done = true
	return ports.PageImage{PageIndex: 1, Data: it.data}, nil
}

func (it *imageIterator) Close() error {
	return nil
}
