package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a non-2xx reply from the server, carrying whatever message the
// server put in its error envelope.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server: %s (status %d)", e.Message, e.Status)
	}
	return fmt.Sprintf("server: status %d", e.Status)
}

// IsNotFound reports whether err is a server 404.
func IsNotFound(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Status == http.StatusNotFound
}
