package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Source identifies how an entry got into the store.
type Source string

const (
	SourceInteractive Source = "interactive"
	SourceBulkImport  Source = "bulk-import"
)

// MaxTags is the maximum number of tags an entry may carry.
const MaxTags = 3

// Metadata keys stamped by the engine and the reconciler.
const (
	MetaKeyQuarantined = "quarantined"
	MetaKeyOutdated    = "outdated"
)

var (
	tagPattern       = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	camelBoundary    = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	separatorRuns    = regexp.MustCompile(`[\s_/]+`)
	repeatedHyphens  = regexp.MustCompile(`-{2,}`)
	disallowedChars  = regexp.MustCompile(`[^a-z0-9-]`)
)

// Entry represents one stored fact with content, embedding metadata, and provenance.
type Entry struct {
	ID                 string
	Content            string
	Author             string
	Source             Source
	SourceURL          string
	Tags               []string
	AdditionalMetadata map[string]string
	EmbeddingModel     string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewEntry creates an Entry with normalized tags and UTC timestamps.
func NewEntry(id, content, author string, source Source, now time.Time) *Entry {
	return &Entry{
		ID:        id,
		Content:   content,
		Author:    author,
		Source:    source,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

// ValidateEntry validates an Entry instance.
func ValidateEntry(e *Entry) error {
	if e == nil {
		return fmt.Errorf("entry cannot be nil")
	}

	if e.ID == "" {
		return fmt.Errorf("entry ID is required")
	}

	if strings.TrimSpace(e.Content) == "" {
		return ErrEmptyContent
	}

	if e.Author == "" {
		return fmt.Errorf("entry Author is required")
	}

	if !isValidSource(e.Source) {
		return fmt.Errorf("entry Source is invalid: %s", e.Source)
	}

	return ValidateTags(e.Tags)
}

// ValidateTags checks cardinality and grammar of an already-normalized tag set.
func ValidateTags(tags []string) error {
	if len(tags) > MaxTags {
		return NewDomainErrorWithCause(ErrCodeValidation,
			fmt.Sprintf("at most %d tags allowed, got %d", MaxTags, len(tags)), ErrInvalidTag)
	}
	for _, tag := range tags {
		if !tagPattern.MatchString(tag) {
			return NewDomainErrorWithCause(ErrCodeValidation,
				fmt.Sprintf("tag %q is not a kebab-case token", tag), ErrInvalidTag)
		}
	}
	return nil
}

// NormalizeTag converts a raw tag into kebab-case: leading '#' stripped,
// camelCase split on case boundaries, whitespace and underscores collapsed
// to hyphens, everything lowercased. Normalizing an already-normalized tag
// is a no-op. The result may still fail ValidateTags if nothing usable
// remains.
func NormalizeTag(raw string) string {
	tag := strings.TrimSpace(raw)
	tag = strings.TrimPrefix(tag, "#")
	tag = camelBoundary.ReplaceAllString(tag, "$1-$2")
	tag = separatorRuns.ReplaceAllString(tag, "-")
	tag = strings.ToLower(tag)
	tag = disallowedChars.ReplaceAllString(tag, "")
	tag = repeatedHyphens.ReplaceAllString(tag, "-")
	return strings.Trim(tag, "-")
}

// NormalizeTags normalizes each tag, drops empties, and de-duplicates while
// preserving order. It does not truncate: oversized sets are surfaced to
// ValidateTags so the caller sees the rejection instead of silent loss.
func NormalizeTags(raw []string) []string {
	if len(raw) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		tag := NormalizeTag(r)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// HasTag reports whether the entry carries the given tag.
func (e *Entry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// MarkOutdated flags the entry for review without touching its content.
func (e *Entry) MarkOutdated(now time.Time) {
	if e.AdditionalMetadata == nil {
		e.AdditionalMetadata = make(map[string]string)
	}
	e.AdditionalMetadata[MetaKeyOutdated] = "true"
	e.UpdatedAt = now.UTC()
}

func isValidSource(s Source) bool {
	switch s {
	case SourceInteractive, SourceBulkImport:
		return true
	}
	return false
}
