package grid

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidHours rejects input that does not parse as a non-negative number.
	ErrInvalidHours = errors.New("hours must be a non-negative number")

	// ErrCellBusy rejects an edit or commit touching a cell whose previous
	// change is still being persisted.
	ErrCellBusy = errors.New("previous change is still applying, try again")

	// ErrNonContiguous rejects a multi-cell apply over a broken week range.
	ErrNonContiguous = errors.New("selected weeks are not contiguous")

	// ErrSessionOpen rejects starting a cell edit while another is open;
	// callers end the open session first (commit or cancel per gesture).
	ErrSessionOpen = errors.New("another cell edit is open")

	// ErrNoSession rejects ending an edit when none is open.
	ErrNoSession = errors.New("no cell edit is open")
)

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}
