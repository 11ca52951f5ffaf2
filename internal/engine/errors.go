package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound means no row matched the query.
	ErrNotFound = errors.New("not found")
	// ErrNoSource means every dataset of a resolution chain was empty.
	// Errors matching it also match ErrNotFound.
	ErrNoSource = errors.New("no source available")
)

// NotFoundError carries the lookup that missed.
type NotFoundError struct {
	Country string
	Year    *int
	Dataset DatasetName
}

func (e *NotFoundError) Error() string {
	if e.Year != nil {
		return fmt.Sprintf("no data for country %q in %d", e.Country, *e.Year)
	}
	return fmt.Sprintf("no data for country %q", e.Country)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NoSourceError names the chain whose datasets were all empty.
type NoSourceError struct {
	Chain   string
	Sources []DatasetName
}

func (e *NoSourceError) Error() string {
	names := make([]string, len(e.Sources))
	for i, s := range e.Sources {
		names[i] = string(s)
	}
	return fmt.Sprintf("no %s data available (tried %s)", e.Chain, strings.Join(names, ", "))
}

func (e *NoSourceError) Is(target error) bool {
	return target == ErrNoSource || target == ErrNotFound
}
