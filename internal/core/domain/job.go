package domain

import (
	"errors"
	"fmt"
	"time"
)

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

func ParseJobStatus(s string) (JobStatus, error) {
	switch JobStatus(s) {
	case JobPending, JobProcessing, JobCompleted, JobFailed:
		return JobStatus(s), nil
	default:
		return "", WrapError(ErrInvalidInput, "parse job status", fmt.Errorf("unknown status %q", s))
	}
}

// Job is one OCR execution request bound to a document. Status moves
// strictly PENDING -> PROCESSING -> {COMPLETED, FAILED}; terminal jobs
// reject any further transition.
type Job struct {
	ID           string     `json:"id"`
	DocumentID   string     `json:"document_id"`
	Status       JobStatus  `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

func NewJob(id, documentID string, now time.Time) (*Job, error) {
	if id == "" {
		return nil, WrapError(ErrInvalidInput, "new job", errors.New("empty id"))
	}
	if documentID == "" {
		return nil, WrapError(ErrInvalidInput, "new job", errors.New("empty document id"))
	}
	return &Job{
		ID:         id,
		DocumentID: documentID,
		Status:     JobPending,
		CreatedAt:  now.UTC(),
	}, nil
}

func (j *Job) IsTerminal() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}

func (j *Job) IsActive() bool {
	return j.Status == JobPending || j.Status == JobProcessing
}

func (j *Job) MarkProcessing(now time.Time) error {
	if j.Status != JobPending {
		return WrapError(ErrInvalidState, "mark processing",
			fmt.Errorf("job %s is %s, want %s", j.ID, j.Status, JobPending))
	}
	started := now.UTC()
	j.StartedAt = &started
	j.Status = JobProcessing
	return nil
}

func (j *Job) Complete(now time.Time) error {
	if j.Status != JobProcessing {
		return WrapError(ErrInvalidState, "complete job",
			fmt.Errorf("job %s is %s, want %s", j.ID, j.Status, JobProcessing))
	}
	completed := now.UTC()
	j.CompletedAt = &completed
	j.Status = JobCompleted
	return nil
}

func (j *Job) Fail(reason string, now time.Time) error {
	if j.IsTerminal() {
		return WrapError(ErrInvalidState, "fail job",
			fmt.Errorf("job %s already terminal (%s)", j.ID, j.Status))
	}
	completed := now.UTC()
	j.CompletedAt = &completed
	j.ErrorMessage = reason
	j.Status = JobFailed
	return nil
}

// Duration is defined for terminal jobs only.
func (j *Job) Duration() (time.Duration, error) {
	if !j.IsTerminal() {
		return 0, WrapError(ErrInvalidState, "job duration",
			fmt.Errorf("job %s is still %s", j.ID, j.Status))
	}
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0, WrapError(ErrInvalidState, "job duration",
			fmt.Errorf("job %s is terminal but missing timestamps", j.ID))
	}
	return j.CompletedAt.Sub(*j.StartedAt), nil
}
