package dns

import (
	"context"
	"fmt"
)

// Operation names used in errors, logs and metrics.
const (
	OpList   = "list"
	OpCreate = "create"
	OpDelete = "delete"
)

// Store is the remote, authoritative record store.
type Store interface {
	List(ctx context.Context) ([]Record, error)
	Create(ctx context.Context, record Record) error
	Delete(ctx context.Context, domain string) error
}

// LogicalFailure is returned when the store answered but rejected the
// operation. Message is the server-provided text and may be empty.
type LogicalFailure struct {
	Op         string
	Message    string
	StatusCode int
}

func (e *LogicalFailure) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: store reported failure (status %d)", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.StatusCode)
}

// TransportFailure is returned when no well-formed answer could be obtained:
// the request failed or the body did not parse.
type TransportFailure struct {
	Op  string
	Err error
}

func (e *TransportFailure) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportFailure) Unwrap() error {
	return e.Err
}
