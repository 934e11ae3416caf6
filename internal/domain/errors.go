package domain

import (
	"errors"
	"fmt"
)

// MissingFieldError reports that a required canonical column is absent from
// the source dataset. Identity-bearing fields (order id, address, date) are
// never silently defaulted.
type MissingFieldError struct {
	Field Field
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("required field %q is missing from the dataset", string(e.Field))
}

// IsMissingField reports whether err wraps a MissingFieldError.
func IsMissingField(err error) bool {
	var mfe *MissingFieldError
	return errors.As(err, &mfe)
}

// ErrInsufficientHistory is returned when the available data span is too
// short for any period-over-period comparison.
var ErrInsufficientHistory = errors.New("insufficient history: at least 14 days of data are required for period comparison")

// ErrInvalidRange is returned for a custom range whose end precedes its start.
var ErrInvalidRange = errors.New("invalid range: end date precedes start date")

// ErrUnsupportedPeriod is returned for a period length other than 7, 14 or 30.
var ErrUnsupportedPeriod = errors.New("unsupported period length: must be one of 7, 14, 30")
