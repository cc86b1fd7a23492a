package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a schema or column id does not resolve
	ErrNotFound = errors.New("table not found")
	// ErrNoColumns is returned when exporting a schema without columns
	ErrNoColumns = errors.New("table has no columns defined")
	// ErrNoDates is returned when an export is given no usable dates
	ErrNoDates = errors.New("no dates provided")
	// ErrInvalidURL is returned when the URL template yields no usable URL
	ErrInvalidURL = errors.New("table URL template is invalid")
	// ErrTableNotFound is returned when the table locator matches nothing in an instance
	ErrTableNotFound = errors.New("table element not found")
	// ErrExtractionFailed wraps every instance-level scraping failure
	ErrExtractionFailed = errors.New("unable to scrape table")
	// ErrUnknownRequest is returned by command surfaces for unknown request kinds
	ErrUnknownRequest = errors.New("unknown request type")
)

// ExtractionError records which date of an export failed and why
type ExtractionError struct {
	Date   string
	Reason string
}

func (e *ExtractionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s for date %s", ErrExtractionFailed, e.Date)
	}
	return fmt.Sprintf("%s for date %s: %s", ErrExtractionFailed, e.Date, e.Reason)
}

// Unwrap lets errors.Is match ErrExtractionFailed
func (e *ExtractionError) Unwrap() error {
	return ErrExtractionFailed
}
