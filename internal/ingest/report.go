package ingest

import (
	"errors"
	"fmt"
	"sync"
)

// Failure is one unit of a batch that did not complete.
type Failure struct {
	ID  string `json:"id"`
	Err error  `json:"-"`
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.ID, f.Err)
}

// BatchReport collects the outcome of a batch. Safe for concurrent use
// while the batch runs; read it after the batch returns.
type BatchReport struct {
	mu        sync.Mutex
	Processed int       `json:"processed"`
	Skipped   int       `json:"skipped"`
	Failures  []Failure `json:"failures,omitempty"`
}

func (r *BatchReport) processed() {
	r.mu.Lock()
	r.Processed++
	r.mu.Unlock()
}

func (r *BatchReport) skipped() {
	r.mu.Lock()
	r.Skipped++
	r.mu.Unlock()
}

// Fail records a failed unit.
func (r *BatchReport) Fail(id string, err error) {
	r.mu.Lock()
	r.Failures = append(r.Failures, Failure{ID: id, Err: err})
	r.mu.Unlock()
}

// Record counts a unit by its outcome: an error is a failure, done=false a skip.
func (r *BatchReport) Record(id string, done bool, err error) {
	switch {
	case err != nil:
		r.Fail(id, err)
	case done:
		r.processed()
	default:
		r.skipped()
	}
}

// Err joins every failure, or returns nil for a clean batch.
func (r *BatchReport) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Add folds o's counts and failures into r.
func (r *BatchReport) Add(o *BatchReport) {
	o.mu.Lock()
	processed, skipped := o.Processed, o.Skipped
	failures := append([]Failure(nil), o.Failures...)
	o.mu.Unlock()

	r.mu.Lock()
	r.Processed += processed
	r.Skipped += skipped
	r.Failures = append(r.Failures, failures...)
	r.mu.Unlock()
}
