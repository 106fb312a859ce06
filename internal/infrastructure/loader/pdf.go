package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	lpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/artpods56/KUL-OCR/internal/core/domain"
	"github.com/artpods56/KUL-OCR/internal/core/ports"
)

// pdfIterator walks a PDF page by page. The source is split into
// single-page files up front (cheap, no rasterization); per page, an
// existing text layer short-circuits OCR, otherwise the embedded page
// image is extracted for the engine. Pages with neither yield an empty
// PageImage, which the executor records as a page-level failure.
type pdfIterator struct {
	workDir   string
	pageCount int
	next      int
}

func newPDFIterator(r io.Reader) (*pdfIterator, error) {
	workDir, err := os.MkdirTemp("", "kul-ocr-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("create pdf work dir: %w", err)
	}

	it := &pdfIterator{workDir: workDir, next: 1}
	if err := it.split(r); err != nil {
		_ = it.Close()
		return nil, err
	}
	return it, nil
}

func (it *pdfIterator) split(r io.Reader) error {
	sourcePath := filepath.Join(it.workDir, "source.pdf")
	f, err := os.Create(sourcePath)
	if err != nil {
		return fmt.Errorf("create source pdf: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write source pdf: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close source pdf: %w", err)
	}

	pageCount, err := api.PageCountFile(sourcePath)
	if err != nil {
		return domain.WrapError(domain.ErrLoadFailed, "count pdf pages", err)
	}
	if pageCount > 0 {
		if err := api.SplitFile(sourcePath, it.workDir, 1, nil); err != nil {
			return domain.WrapError(domain.ErrLoadFailed, "split pdf", err)
		}
	}
	it.pageCount = pageCount
	return nil
}

func (it *pdfIterator) Next(ctx context.Context) (ports.PageImage, error) {
	if err := ctx.Err(); err != nil {
		return ports.PageImage{}, err
	}
	if it.next > it.pageCount {
		return ports.PageImage{}, io.EOF
	}

	pageIndex := it.next
	it.next++

	pagePath := filepath.Join(it.workDir, fmt.Sprintf("source_%d.pdf", pageIndex))
	page := ports.PageImage{PageIndex: pageIndex}

	if text := nativeText(pagePath); text != "" {
		page.NativeText = text
		return page, nil
	}

	page.Data = extractPageImage(pagePath, filepath.Join(it.workDir, fmt.Sprintf("img_%d", pageIndex)))
	return page, nil
}

func (it *pdfIterator) Close() error {
	return os.RemoveAll(it.workDir)
}

// nativeText probes the single-page PDF for an embedded text layer.
// Failures mean "no usable text", never an error: the page falls through
// to image extraction and OCR.
func nativeText(pagePath string) string {
	f, reader, err := lpdf.Open(pagePath)
	if err != nil {
		return ""
	}
	defer f.Close()

	if reader.NumPage() < 1 {
		return ""
	}
	text, err := reader.Page(1).GetPlainText(nil)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// extractPageImage pulls the embedded raster out of a single-page PDF
// (scanned documents carry one image per page) and normalizes it to PNG.
// Returns nil when the page has no decodable image.
func extractPageImage(pagePath, outDir string) []byte {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil
	}
	if err := api.ExtractImagesFile(pagePath, outDir, nil, nil); err != nil {
		return nil
	}

	raw := largestFile(outDir)
	if raw == nil {
		return nil
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil
	}
	return buf.Bytes()
}

// largestFile picks the biggest extracted artifact; pages sometimes carry
// small auxiliary images (masks, logos) beside the scan itself.
func largestFile(dir string) []byte {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var bestPath string
	var bestSize int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Size() > bestSize {
			bestSize = info.Size()
			bestPath = filepath.Join(dir, entry.Name())
		}
	}
	if bestPath == "" {
		return nil
	}

	raw, err := os.ReadFile(bestPath)
	if err != nil {
		return nil
	}
	return raw
}
