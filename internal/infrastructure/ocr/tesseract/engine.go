// Package tesseract binds the OCR engine port to Tesseract via gosseract.
package tesseract

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"github.com/artpods56/KUL-OCR/internal/core/domain"
	"github.com/artpods56/KUL-OCR/internal/core/ports"
)

// Engine recognizes one page per call. A fresh gosseract client is used
// per recognition: the client is not safe for concurrent use and page
// work may be fanned out.
type Engine struct{}

func New() *Engine {
	return &Engine{}
}

func (e *Engine) Recognize(ctx context.Context, page ports.PageImage, lang string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.WrapError(domain.ErrRecognition, "tesseract", err)
	}

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)

	// gosseract has no context support; the call runs to completion in
	// the background while the deadline is enforced here.
	go func() {
		text, err := recognizeBytes(page.Data, lang)
		done <- outcome{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", domain.WrapError(domain.ErrRecognition, "tesseract", ctx.Err())
	case out := <-done:
		if out.err != nil {
			return "", domain.WrapError(domain.ErrRecognition, "tesseract", out.err)
		}
		return out.text, nil
	}
}

func recognizeBytes(data []byte, lang string) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if lang != "" {
		if err := client.SetLanguage(lang); err != nil {
			return "", fmt.Errorf("set language %q: %w", lang, err)
		}
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("set page image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}
