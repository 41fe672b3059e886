package auditlog

import (
	"context"
	"errors"

	"github.com/teslashibe/go-proctor/pkg/proctor"
)

// Multi fans records out to several sinks. A failing sink does not stop the
// others; all errors are returned joined.
type Multi []proctor.LogSink

// Append writes rec to every sink
func (m Multi) Append(ctx context.Context, rec proctor.Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Finalize finalizes every sink
func (m Multi) Finalize(ctx context.Context, sum proctor.Summary) error {
	var errs []error
	for _, s := range m {
		if err := s.Finalize(ctx, sum); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
