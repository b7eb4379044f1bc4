// Package chunker splits already-linearized text into bounded-size spans
// for independent embedding and storage. Format-specific extraction
// (PDF, CSV text pull) happens upstream; the format hint only selects
// boundary heuristics.
package chunker

import (
	"iter"
	"strings"
	"unicode"
)

// Format hints which boundary heuristic to prefer.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	// FormatTabular treats each line as one row-shaped chunk.
	FormatTabular Format = "tabular"
)

// ParseFormat maps a wire-format hint to a Format, defaulting to text.
func ParseFormat(s string) Format {
	switch Format(s) {
	case FormatMarkdown:
		return FormatMarkdown
	case FormatTabular:
		return FormatTabular
	}
	return FormatText
}

// Config controls chunk sizing.
type Config struct {
	MaxChars  int
	MinChars  int
	Overlap   int
	MaxChunks int
}

// DefaultConfig provides sane defaults for chunking.
func DefaultConfig() Config {
	return Config{
		MaxChars:  5000,
		MinChars:  400,
		Overlap:   200,
		MaxChunks: 400,
	}
}

// Chunker produces chunk sequences under a fixed configuration.
type Chunker struct {
	cfg Config
}

// New creates a Chunker, falling back to defaults for non-positive sizes.
func New(cfg Config) *Chunker {
	if cfg.MaxChars <= 0 {
		cfg = DefaultConfig()
	}
	if cfg.MinChars < 0 {
		cfg.MinChars = 0
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	return &Chunker{cfg: cfg}
}

// Split returns a lazy, finite, restartable sequence of non-empty chunks.
// Empty or whitespace-only input yields an empty sequence.
func (c *Chunker) Split(text string, format Format) iter.Seq[string] {
	clean := strings.TrimSpace(text)
	return func(yield func(string) bool) {
		if clean == "" {
			return
		}
		if format == FormatTabular {
			c.splitRows(clean, yield)
			return
		}
		c.splitProse(clean, yield)
	}
}

// SplitAll collects the sequence into a slice.
func (c *Chunker) SplitAll(text string, format Format) []string {
	var chunks []string
	for chunk := range c.Split(text, format) {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// splitRows yields one chunk per non-empty line, hard-cutting rows that
// exceed the maximum on their own.
func (c *Chunker) splitRows(text string, yield func(string) bool) {
	count := 0
	for _, line := range strings.Split(text, "\n") {
		row := strings.TrimSpace(line)
		if row == "" {
			continue
		}
		runes := []rune(row)
		for len(runes) > 0 {
			if c.cfg.MaxChunks > 0 && count >= c.cfg.MaxChunks {
				return
			}
			end := min(len(runes), c.cfg.MaxChars)
			if !yield(string(runes[:end])) {
				return
			}
			count++
			runes = runes[end:]
		}
	}
}

// splitProse walks the text in overlapping windows, cutting at the best
// boundary inside each window: paragraph break, then sentence end, then
// whitespace, then a hard cut.
func (c *Chunker) splitProse(text string, yield func(string) bool) {
	runes := []rune(text)
	if len(runes) <= c.cfg.MaxChars {
		yield(text)
		return
	}

	count := 0
	start := 0
	for start < len(runes) {
		if c.cfg.MaxChunks > 0 && count >= c.cfg.MaxChunks {
			return
		}

		end := start + c.cfg.MaxChars
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) {
			minCut := start + c.cfg.MinChars
			if minCut > end {
				minCut = start
			}
			end = cutPoint(runes, minCut, end)
		}

		if end <= start {
			return
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			if !yield(chunk) {
				return
			}
			count++
		}

		if end >= len(runes) {
			return
		}

		nextStart := end
		if c.cfg.Overlap > 0 && end-start > c.cfg.Overlap {
			nextStart = end - c.cfg.Overlap
		}
		if nextStart <= start {
			nextStart = end
		}
		start = nextStart
	}
}

// cutPoint finds the best split position in (minCut, end], scanning
// backwards from end.
func cutPoint(runes []rune, minCut, end int) int {
	// paragraph boundary
	for i := end; i > minCut; i-- {
		if runes[i-1] == '\n' && i >= 2 && runes[i-2] == '\n' {
			return i
		}
	}
	// sentence boundary
	for i := end; i > minCut; i-- {
		if isSentenceEnd(runes, i-1) {
			return i
		}
	}
	// whitespace
	for i := end; i > minCut; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

func isSentenceEnd(runes []rune, i int) bool {
	switch runes[i] {
	case '!', '?':
		return true
	case '\n':
		return true
	case '.':
		// skip abbreviation-style periods ("U.S.", "Mr.")
		if i > 0 && unicode.IsUpper(runes[i-1]) {
			if i < 2 || unicode.IsSpace(runes[i-2]) || runes[i-2] == '.' {
				return false
			}
		}
		return true
	}
	return false
}
