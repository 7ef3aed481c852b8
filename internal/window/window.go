// Package window restricts workflow runs to an inclusive range of instants.
package window

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the calendar date format accepted on the command line and in configuration.
	DateLayout = "2006-01-02"

	invalidDateTemplateConstant    = "%w: %q must use the YYYY-MM-DD layout"
	invertedWindowTemplateConstant = "%w: from %s is after to %s"
	windowStringTemplateConstant   = "[%s, %s]"
)

var (
	// ErrInvalidDate indicates a calendar date that does not follow DateLayout.
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvertedWindow indicates a window whose start is after its end.
	ErrInvertedWindow = errors.New("inverted date window")
)

// Window is an inclusive [From, To] range. A Window built as a literal with From after To
// is never rejected by its predicates; it simply contains nothing.
type Window struct {
	From time.Time
	To   time.Time
}

// TimestampedRecord exposes the creation instant used for window comparisons.
type TimestampedRecord interface {
	CreationTime() (time.Time, error)
}

// New validates the bounds and returns the window.
func New(from time.Time, to time.Time) (Window, error) {
	if from.After(to) {
		return Window{}, fmt.Errorf(invertedWindowTemplateConstant, ErrInvertedWindow, from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	return Window{From: from, To: to}, nil
}

// ParseDate parses a YYYY-MM-DD calendar date as midnight UTC.
func ParseDate(value string) (time.Time, error) {
	trimmedValue := strings.TrimSpace(value)
	parsedDate, parseError := time.ParseInLocation(DateLayout, trimmedValue, time.UTC)
	if parseError != nil {
		return time.Time{}, fmt.Errorf(invalidDateTemplateConstant, ErrInvalidDate, trimmedValue)
	}
	return parsedDate, nil
}

// ParseWindow parses both calendar dates and validates the resulting window.
func ParseWindow(from string, to string) (Window, error) {
	fromDate, fromError := ParseDate(from)
	if fromError != nil {
		return Window{}, fromError
	}
	toDate, toError := ParseDate(to)
	if toError != nil {
		return Window{}, toError
	}
	return New(fromDate, toDate)
}

// Contains reports whether From <= instant <= To.
func (window Window) Contains(instant time.Time) bool {
	return !instant.Before(window.From) && !instant.After(window.To)
}

// Precedes reports whether the instant is strictly older than From.
func (window Window) Precedes(instant time.Time) bool {
	return instant.Before(window.From)
}

func (window Window) String() string {
	return fmt.Sprintf(windowStringTemplateConstant, window.From.Format(time.RFC3339), window.To.Format(time.RFC3339))
}

// Filter returns the records inside the window in their original order. boundaryReached is true
// when any record, kept or not, is older than From.
func Filter[T TimestampedRecord](records []T, window Window) ([]T, bool, error) {
	keptRecords := make([]T, 0, len(records))
	boundaryReached := false
	for _, record := range records {
		creationTime, timeError := record.CreationTime()
		if timeError != nil {
			return nil, false, timeError
		}
		if window.Precedes(creationTime) {
			boundaryReached = true
		}
		if window.Contains(creationTime) {
			keptRecords = append(keptRecords, record)
		}
	}
	return keptRecords, boundaryReached, nil
}
