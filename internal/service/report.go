package service

import (
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sleroy/komea-salesforce-connector/internal/connerr"
)

// BatchReport summarizes a batch operation. Items are counted once each:
// Succeeded, Rejected (invalid data never sent) or Failed (sent or fetched
// without success).
type BatchReport struct {
	Operation string
	RunID     string
	Total     int
	Succeeded int
	Rejected  int
	Failed    int
	Errors    *multierror.Error
}

func newReport(operation string) *BatchReport {
	return &BatchReport{Operation: operation, RunID: uuid.NewString()}
}

func (r *BatchReport) logger() zerolog.Logger {
	return log.With().Str("run_id", r.RunID).Str("operation", r.Operation).Logger()
}

func (r *BatchReport) succeed() {
	r.Total++
	r.Succeeded++
}

// record counts one item from its error, validation errors being rejections.
func (r *BatchReport) record(err error) {
	if err == nil {
		r.succeed()
		return
	}
	r.Total++
	if connerr.IsKind(err, connerr.KindValidation) {
		r.Rejected++
	} else {
		r.Failed++
	}
	r.Errors = multierror.Append(r.Errors, err)
}

// fail counts n items lost to a single error, such as a failed batch call.
func (r *BatchReport) fail(n int, err error) {
	r.Total += n
	r.Failed += n
	r.Errors = multierror.Append(r.Errors, err)
}

// failSucceeded turns every item counted as succeeded into a failure, or
// counts one failure when none succeeded. Used when the output holding
// those items was lost.
func (r *BatchReport) failSucceeded(err error) {
	if r.Succeeded == 0 {
		r.fail(1, err)
		return
	}
	r.Failed += r.Succeeded
	r.Succeeded = 0
	r.Errors = multierror.Append(r.Errors, err)
}

// note keeps an error that does not concern a counted item.
func (r *BatchReport) note(err error) {
	r.Errors = multierror.Append(r.Errors, err)
}

// Err returns every collected error, nil when there is none.
func (r *BatchReport) Err() error {
	return r.Errors.ErrorOrNil()
}

// HasFailures reports whether an item could not be processed for another
// reason than invalid data.
func (r *BatchReport) HasFailures() bool {
	return r.Failed > 0
}

func (r *BatchReport) Merge(other *BatchReport) {
	if other == nil {
		return
	}
	r.Total += other.Total
	r.Succeeded += other.Succeeded
	r.Rejected += other.Rejected
	r.Failed += other.Failed
	if other.Errors != nil {
		r.Errors = multierror.Append(r.Errors, other.Errors.Errors...)
	}
}

func (r *BatchReport) Log() {
	logger := r.logger()
	event := logger.Info()
	if r.Failed > 0 {
		event = logger.Warn()
	}
	event.
		Int("total", r.Total).
		Int("succeeded", r.Succeeded).
		Int("rejected", r.Rejected).
		Int("failed", r.Failed).
		Msg("Batch finished")
}
