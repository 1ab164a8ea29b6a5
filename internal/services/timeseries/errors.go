package timeseries

import (
	"errors"
	"fmt"
)

var (
	ErrEmptySeriesName    = errors.New("timeseries: series name is empty")
	ErrReservedSeriesName = errors.New("timeseries: series name collides with the date column")
	ErrNegativeCount      = errors.New("timeseries: follower count is negative")
)

// DateError reports a sample whose date is not a valid YYYY-MM-DD day.
type DateError struct {
	Series string
	Index  int
	Value  string
	Err    error
}

func (e *DateError) Error() string {
	return fmt.Sprintf("timeseries: series %q sample %d: invalid date %q (want %s)", e.Series, e.Index, e.Value, DateLayout)
}

func (e *DateError) Unwrap() error { return e.Err }

// DuplicateError reports two samples for the same (series, date) under the Reject policy.
type DuplicateError struct {
	Series string
	Date   string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("timeseries: series %q has more than one sample for %s", e.Series, e.Date)
}

// IsValidation reports whether err came from input validation in Align.
func IsValidation(err error) bool {
	var de *DateError
	var due *DuplicateError
	return errors.As(err, &de) ||
		errors.As(err, &due) ||
		errors.Is(err, ErrEmptySeriesName) ||
		errors.Is(err, ErrReservedSeriesName) ||
		errors.Is(err, ErrNegativeCount)
}
