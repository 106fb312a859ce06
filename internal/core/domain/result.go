package domain

import (
	"sort"
	"strings"
	"time"
)

// PageSeparator joins successful page texts in the aggregated result, in
// page order. Form feed is what pdftotext-style tools emit between pages,
// so downstream consumers can split on it.
const PageSeparator = "\n\f\n"

// PageResult is the outcome of OCR for a single page. A page either
// succeeded (ErrorMessage empty) or failed; failed pages contribute no
// text to the aggregate but are counted.
type PageResult struct {
	PageIndex    int    `json:"page_index"`
	Text         string `json:"text,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	ElapsedMS    int64  `json:"elapsed_ms"`
}

func (p PageResult) Succeeded() bool {
	return p.ErrorMessage == ""
}

// Result is the aggregated OCR output for a terminal job. Created exactly
// once, never mutated. Every terminal job owns one Result; a job that
// failed before any page was attempted owns an empty one.
type Result struct {
	ID             string       `json:"id"`
	JobID          string       `json:"job_id"`
	Text           string       `json:"text"`
	SucceededPages int          `json:"succeeded_pages"`
	FailedPages    int          `json:"failed_pages"`
	Pages          []PageResult `json:"pages"`
	CreatedAt      time.Time    `json:"created_at"`
}

// NewResult aggregates per-page outcomes into a Result. Pages are
// re-sorted by page index so the output is identical regardless of the
// order pages were processed in.
func NewResult(id, jobID string, pages []PageResult, now time.Time) *Result {
	sorted := make([]PageResult, len(pages))
	copy(sorted, pages)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].PageIndex < sorted[j].PageIndex
	})

	var texts []string
	succeeded, failed := 0, 0
	for _, page := range sorted {
		if page.Succeeded() {
			succeeded++
			texts = append(texts, page.Text)
		} else {
			failed++
		}
	}

	return &Result{
		ID:             id,
		JobID:          jobID,
		Text:           strings.Join(texts, PageSeparator),
		SucceededPages: succeeded,
		FailedPages:    failed,
		Pages:          sorted,
		CreatedAt:      now.UTC(),
	}
}

func (r *Result) IsEmpty() bool {
	return len(r.Pages) == 0
}
