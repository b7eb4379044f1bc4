package domain

import (
	"strings"
	"time"
)

// Filter is a conjunction over entry metadata. Zero-valued criteria are
// unset; an entry matches only if every set criterion matches.
type Filter struct {
	Source    Source
	SourceURL string
	Author    string
	Tags      []string // set-intersection: entry must carry every listed tag
	DateFrom  time.Time
	DateTo    time.Time
}

// IsEmpty reports whether no criterion is set. Delete rejects empty filters
// with ErrUnderspecifiedFilter to prevent accidental full-store wipes.
func (f Filter) IsEmpty() bool {
	return f.Source == "" &&
		f.SourceURL == "" &&
		f.Author == "" &&
		len(f.Tags) == 0 &&
		f.DateFrom.IsZero() &&
		f.DateTo.IsZero()
}

// Normalize canonicalizes the filter's tags.
func (f Filter) Normalize() Filter {
	f.Tags = NormalizeTags(f.Tags)
	f.SourceURL = strings.TrimSpace(f.SourceURL)
	return f
}

// Validate rejects filters whose set criteria cannot match anything.
func (f Filter) Validate() error {
	if f.Source != "" && !isValidSource(f.Source) {
		return NewDomainErrorWithCause(ErrCodeValidation, "unknown source "+string(f.Source), ErrInvalidFilter)
	}
	if err := ValidateTags(f.Tags); err != nil {
		return err
	}
	if !f.DateFrom.IsZero() && !f.DateTo.IsZero() && f.DateTo.Before(f.DateFrom) {
		return NewDomainErrorWithCause(ErrCodeValidation, "date range is inverted", ErrInvalidFilter)
	}
	return nil
}

// Matches applies the filter to a hydrated entry. Filtering narrows a
// candidate set; it never expands it.
func (f Filter) Matches(e *Entry) bool {
	if e == nil {
		return false
	}
	if f.Source != "" && e.Source != f.Source {
		return false
	}
	if f.SourceURL != "" && e.SourceURL != f.SourceURL {
		return false
	}
	if f.Author != "" && e.Author != f.Author {
		return false
	}
	for _, tag := range f.Tags {
		if !e.HasTag(tag) {
			return false
		}
	}
	if !f.DateFrom.IsZero() && e.CreatedAt.Before(f.DateFrom) {
		return false
	}
	if !f.DateTo.IsZero() && !e.CreatedAt.Before(f.DateTo) {
		return false
	}
	return true
}

// DayRange returns a [from, to) filter window covering one calendar day in UTC.
func DayRange(day time.Time) (time.Time, time.Time) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return from, from.Add(24 * time.Hour)
}
