package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/artpods56/KUL-OCR/internal/core/domain"
	"github.com/artpods56/KUL-OCR/internal/core/ports"
)

func seedPendingJob(t *testing.T, store *memStore) (docID, jobID string) {
	t.Helper()
	now := time.Now()
	doc, err := domain.NewDocument("doc-1", "scan.pdf", domain.MimePDF, "doc-1_scan.pdf", 128, now)
	if err != nil {
		t.Fatalf("NewDocument() error = %v", err)
	}
	job, err := domain.NewJob("job-1", doc.ID, now)
	if err != nil {
		t.Fatalf("NewJob() error = %v", err)
	}
	store.putDoc(*doc)
	store.putJob(*job)
	return doc.ID, job.ID
}

func TestExecuteSinglePageSuccess(t *testing.T) {
	store := newMemStore()
	docID, jobID := seedPendingJob(t, store)

	loader := &loaderFake{pages: []ports.PageImage{
		{PageIndex: 1, Data: []byte("png-bytes")},
	}}
	engine := &engineFake{texts: map[int]string{1: "INVOICE 123"}}
	uc := NewExecuteUseCase(&memTxRunner{store: store}, loader, engine, ExecuteConfig{})

	if err := uc.Execute(context.Background(), jobID); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	job := store.jobs[jobID]
	if job.Status != domain.JobCompleted {
		t.Fatalf("expected completed, got %s (%s)", job.Status, job.ErrorMessage)
	}
	if job.StartedAt == nil || job.CompletedAt == nil {
		t.Fatalf("terminal job missing timestamps: %+v", job)
	}

	result := store.results[jobID]
	if result == nil {
		t.Fatalf("expected a result row")
	}
	if result.Text != "INVOICE 123" || result.SucceededPages != 1 || result.FailedPages != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if store.docs[docID].PageCount != 1 {
		t.Fatalf("expected page count backfill, got %d", store.docs[docID].PageCount)
	}
}

func TestExecutePartialFailureStillCompletes(t *testing.T) {
	store := newMemStore()
	_, jobID := seedPendingJob(t, store)

	loader := &loaderFake{pages: []ports.PageImage{
		{PageIndex: 1, Data: []byte("p1")},
		{PageIndex: 2, Data: []byte("p2")},
		{PageIndex: 3, Data: []byte("p3")},
	}}
	engine := &engineFake{
		texts: map[int]string{1: "A", 3: "C"},
		errs:  map[int]error{2: errors.New("engine crashed on page")},
	}
	uc := NewExecuteUseCase(&memTxRunner{store: store}, loader, engine, ExecuteConfig{})

	if err := uc.Execute(context.Background(), jobID); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	job := store.jobs[jobID]
	if job.Status != domain.JobCompleted {
		t.Fatalf("partial failure must still complete, got %s", job.Status)
	}

	result := store.results[jobID]
	if result.Text != "A"+domain.PageSeparator+"C" {
		t.Fatalf("unexpected aggregate text: %q", result.Text)
	}
	if result.SucceededPages != 2 || result.FailedPages != 1 {
		t.Fatalf("unexpected counts: %d/%d", result.SucceededPages, result.FailedPages)
	}
	if result.Pages[1].ErrorMessage == "" {
		t.Fatalf("expected page 2 failure to be recorded: %+v", result.Pages[1])
	}
}

// blockingEngine never returns on its own; it forces the per-page timeout.
type blockingEngine struct{}

func (blockingEngine) Recognize(ctx context.Context, _ ports.PageImage, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestExecutePageTimeout(t *testing.T) {
	store := newMemStore()
	_, jobID := seedPendingJob(t, store)

	loader := &loaderFake{pages: []ports.PageImage{
		{PageIndex: 1, Data: []byte("p1")},
	}}
	uc := NewExecuteUseCase(&memTxRunner{store: store}, loader, blockingEngine{}, ExecuteConfig{
		PageTimeout: 10 * time.Millisecond,
	})

	if err := uc.Execute(context.Background(), jobID); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	job := store.jobs[jobID]
	if job.Status != domain.JobFailed {
		t.Fatalf("all pages failed, expected failed job, got %s", job.Status)
	}
	page := store.results[jobID].Pages[0]
	if !strings.Contains(page.ErrorMessage, "timed out") {
		t.Fatalf("expected timeout reason, got %q", page.ErrorMessage)
	}
}

func TestExecuteLoadFailure(t *testing.T) {
	store := newMemStore()
	_, jobID := seedPendingJob(t, store)

	loader := &loaderFake{loadErr: errors.New("corrupt pdf header")}
	engine := &engineFake{}
	uc := NewExecuteUseCase(&memTxRunner{store: store}, loader, engine, ExecuteConfig{})

	if err := uc.Execute(context.Background(), jobID); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	job := store.jobs[jobID]
	if job.Status != domain.JobFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if !strings.Contains(job.ErrorMessage, "corrupt pdf header") {
		t.Fatalf("expected load reason in error message, got %q", job.ErrorMessage)
	}

	result := store.results[jobID]
	if result == nil || !result.IsEmpty() {
		t.Fatalf("load failure must still persist an empty result, got %+v", result)
	}
	if engine.calls != 0 {
		t.Fatalf("no page must reach the engine on load failure")
	}
}

func TestExecuteRejectsNonPendingJob(t *testing.T) {
	store := newMemStore()
	_, jobID := seedPendingJob(t, store)
	claimed := *store.jobs[jobID]
	if err := claimed.MarkProcessing(time.Now()); err != nil {
		t.Fatalf("MarkProcessing() error = %v", err)
	}
	store.putJob(claimed)

	loader := &loaderFake{pages: []ports.PageImage{{PageIndex: 1, Data: []byte("p1")}}}
	engine := &engineFake{texts: map[int]string{1: "A"}}
	uc := NewExecuteUseCase(&memTxRunner{store: store}, loader, engine, ExecuteConfig{})

	err := uc.Execute(context.Background(), jobID)
	if !domain.IsKind(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state kind, got %v", err)
	}
	if loader.loads != 0 || engine.calls != 0 {
		t.Fatalf("duplicate delivery must not touch the document: loads=%d calls=%d", loader.loads, engine.calls)
	}
	if store.jobs[jobID].Status != domain.JobProcessing {
		t.Fatalf("rejected delivery must not change the job")
	}
}

func TestExecuteEmptyDocumentFails(t *testing.T) {
	store := newMemStore()
	_, jobID := seedPendingJob(t, store)

	loader := &loaderFake{}
	uc := NewExecuteUseCase(&memTxRunner{store: store}, loader, &engineFake{}, ExecuteConfig{})

	if err := uc.Execute(context.Background(), jobID); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	job := store.jobs[jobID]
	if job.Status != domain.JobFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if !strings.Contains(job.ErrorMessage, "empty document") {
		t.Fatalf("unexpected failure reason: %q", job.ErrorMessage)
	}
	if !store.results[jobID].IsEmpty() {
		t.Fatalf("expected empty result")
	}
}

func TestExecuteNativeTextSkipsEngine(t *testing.T) {
	store := newMemStore()
	_, jobID := seedPendingJob(t, store)

	loader := &loaderFake{pages: []ports.PageImage{
		{PageIndex: 1, NativeText: "embedded text layer"},
	}}
	engine := &engineFake{}
	uc := NewExecuteUseCase(&memTxRunner{store: store}, loader, engine, ExecuteConfig{})

	if err := uc.Execute(context.Background(), jobID); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if engine.calls != 0 {
		t.Fatalf("native text pages must skip recognition, got %d calls", engine.calls)
	}
	if store.results[jobID].Text != "embedded text layer" {
		t.Fatalf("unexpected text: %q", store.results[jobID].Text)
	}
}

func TestExecuteConcurrentPagesKeepOrder(t *testing.T) {
	store := newMemStore()
	_, jobID := seedPendingJob(t, store)

	loader := &loaderFake{pages: []ports.PageImage{
		{PageIndex: 1, Data: []byte("p1")},
		{PageIndex: 2, Data: []byte("p2")},
		{PageIndex: 3, Data: []byte("p3")},
		{PageIndex: 4, Data: []byte("p4")},
	}}
	engine := &engineFake{texts: map[int]string{1: "one", 2: "two", 3: "three", 4: "four"}}
	uc := NewExecuteUseCase(&memTxRunner{store: store}, loader, engine, ExecuteConfig{
		PageConcurrency: 3,
	})

	if err := uc.Execute(context.Background(), jobID); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := strings.Join([]string{"one", "two", "three", "four"}, domain.PageSeparator)
	if got := store.results[jobID].Text; got != want {
		t.Fatalf("fan-out must not reorder pages: got %q", got)
	}
}
