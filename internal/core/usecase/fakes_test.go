package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/artpods56/KUL-OCR/internal/core/domain"
	"github.com/artpods56/KUL-OCR/internal/core/ports"
)

// memStore backs an in-memory Unit of Work for usecase tests. It mimics
// the persistence contract (not-found kinds, expected-status guard) but
// not transactional rollback.
type memStore struct {
	mu      sync.Mutex
	docs    map[string]*domain.Document
	jobs    map[string]*domain.Job
	results map[string]*domain.Result // keyed by job id
}

func newMemStore() *memStore {
	return &memStore{
		docs:    make(map[string]*domain.Document),
		jobs:    make(map[string]*domain.Job),
		results: make(map[string]*domain.Result),
	}
}

func (s *memStore) putDoc(doc domain.Document) { s.docs[doc.ID] = &doc }
func (s *memStore) putJob(job domain.Job)      { s.jobs[job.ID] = &job }

type memTxRunner struct {
	store *memStore
	txErr error
}

func (r *memTxRunner) InTx(_ context.Context, fn func(uow ports.UnitOfWork) error) error {
	if r.txErr != nil {
		return r.txErr
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return fn(&memUow{store: r.store})
}

type memUow struct {
	store *memStore
}

func (u *memUow) Documents() ports.DocumentRepository { return &memDocRepo{store: u.store} }
func (u *memUow) Jobs() ports.JobRepository           { return &memJobRepo{store: u.store} }
func (u *memUow) Results() ports.ResultRepository     { return &memResultRepo{store: u.store} }

type memDocRepo struct {
	store *memStore
}

func (r *memDocRepo) Add(_ context.Context, doc *domain.Document) error {
	copied := *doc
	r.store.docs[doc.ID] = &copied
	return nil
}

func (r *memDocRepo) Get(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := r.store.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get document", fmt.Errorf("document %s", id))
	}
	copied := *doc
	return &copied, nil
}

func (r *memDocRepo) UpdatePageCount(_ context.Context, id string, pageCount int) error {
	doc, ok := r.store.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "update page count", fmt.Errorf("document %s", id))
	}
	doc.PageCount = pageCount
	return nil
}

type memJobRepo struct {
	store *memStore
}

func (r *memJobRepo) Add(_ context.Context, job *domain.Job) error {
	copied := *job
	r.store.jobs[job.ID] = &copied
	return nil
}

func (r *memJobRepo) Get(_ context.Context, id string) (*domain.Job, error) {
	job, ok := r.store.jobs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get job", fmt.Errorf("job %s", id))
	}
	copied := *job
	return &copied, nil
}

func (r *memJobRepo) UpdateStatus(_ context.Context, job *domain.Job, expected domain.JobStatus) error {
	current, ok := r.store.jobs[job.ID]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "update job status", fmt.Errorf("job %s", job.ID))
	}
	if current.Status != expected {
		return domain.WrapError(domain.ErrConflict, "update job status",
			fmt.Errorf("job %s no longer in %s", job.ID, expected))
	}
	copied := *job
	r.store.jobs[job.ID] = &copied
	return nil
}

func (r *memJobRepo) ListByDocument(_ context.Context, documentID string) ([]domain.Job, error) {
	var jobs []domain.Job
	for _, job := range r.store.jobs {
		if job.DocumentID == documentID {
			jobs = append(jobs, *job)
		}
	}
	return jobs, nil
}

func (r *memJobRepo) ListByStatus(_ context.Context, status domain.JobStatus) ([]domain.Job, error) {
	var jobs []domain.Job
	for _, job := range r.store.jobs {
		if job.Status == status {
			jobs = append(jobs, *job)
		}
	}
	return jobs, nil
}

func (r *memJobRepo) ListAll(_ context.Context) ([]domain.Job, error) {
	var jobs []domain.Job
	for _, job := range r.store.jobs {
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

type memResultRepo struct {
	store *memStore
}

func (r *memResultRepo) Add(_ context.Context, result *domain.Result) error {
	if _, exists := r.store.results[result.JobID]; exists {
		return domain.WrapError(domain.ErrConflict, "insert result",
			fmt.Errorf("result for job %s already exists", result.JobID))
	}
	copied := *result
	r.store.results[result.JobID] = &copied
	return nil
}

func (r *memResultRepo) GetByJobID(_ context.Context, jobID string) (*domain.Result, error) {
	result, ok := r.store.results[jobID]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get result", fmt.Errorf("result for job %s", jobID))
	}
	copied := *result
	return &copied, nil
}

type loaderFake struct {
	pages   []ports.PageImage
	loadErr error
	loads   int
}

func (f *loaderFake) Load(_ context.Context, _ *domain.Document) (ports.PageIterator, error) {
	f.loads++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return &sliceIterator{pages: f.pages}, nil
}

type sliceIterator struct {
	pages  []ports.PageImage
	next   int
	closed bool
}

func (it *sliceIterator) Next(_ context.Context) (ports.PageImage, error) {
	if it.next >= len(it.pages) {
		return ports.PageImage{}, io.EOF
	}
	page := it.pages[it.next]
	it.next++
	return page, nil
}

func (it *sliceIterator) Close() error {
	it.closed = true
	return nil
}

type engineFake struct {
	mu    sync.Mutex
	texts map[int]string
	errs  map[int]error
	calls int
}

func (f *engineFake) Recognize(_ context.Context, page ports.PageImage, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[page.PageIndex]; ok {
		return "", err
	}
	return f.texts[page.PageIndex], nil
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishJobEnqueued(_ context.Context, jobID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, jobID)
	return nil
}

func (f *queueFake) SubscribeJobEnqueued(context.Context, func(context.Context, string) error) error {
	return nil
}

type storageFake struct {
	files map[string][]byte
}

func newStorageFake() *storageFake {
	return &storageFake{files: make(map[string][]byte)}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.files[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	raw, ok := f.files[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "open stored file", fmt.Errorf("key %s", key))
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *storageFake) Stat(_ context.Context, key string) (int64, error) {
	raw, ok := f.files[key]
	if !ok {
		return 0, domain.WrapError(domain.ErrNotFound, "stat stored file", fmt.Errorf("key %s", key))
	}
	return int64(len(raw)), nil
}
