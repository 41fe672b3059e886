package auditlog

import (
	"context"
	"errors"
	"sync"

	"github.com/teslashibe/go-proctor/pkg/proctor"
)

// errFinalized is returned by Append after Finalize
var errFinalized = errors.New("auditlog: session already finalized")

// buffer holds flattened records until the session is finalized, so a
// session lands in the database in a single transaction.
type buffer struct {
	mu        sync.Mutex
	rows      []recordRow
	finalized bool
}

func (b *buffer) append(rec proctor.Record) error {
	row, err := flatten(rec)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return errFinalized
	}
	b.rows = append(b.rows, row)
	return nil
}

// take marks the buffer finalized and returns the rows. ok is false when it
// was already finalized.
func (b *buffer) take() (rows []recordRow, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return nil, false
	}
	b.finalized = true
	rows, b.rows = b.rows, nil
	return rows, true
}

// SessionLister lists stored sessions, newest first
type SessionLister interface {
	Sessions(ctx context.Context, limit int) ([]SessionRow, error)
}
