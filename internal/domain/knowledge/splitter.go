package knowledge

import (
	"strings"
	"unicode/utf8"
)

// separators are tried coarsest to finest: paragraph break, line break,
// word break, then single characters as the last resort.
var separators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts document text into chunks of at most chunkSize characters,
// with consecutive chunks sharing overlap characters taken from the tail of
// the previous chunk. Sizes are measured in runes, not bytes, so multibyte
// input is never cut inside a character. Splitting is deterministic: the
// same input always produces the same chunk sequence, which keeps
// re-ingestion idempotent.
type Splitter struct {
	chunkSize int
	overlap   int
}

// NewSplitter validates the chunking parameters once, at construction.
// chunkSize must be positive and overlap must satisfy 0 <= overlap < chunkSize.
func NewSplitter(chunkSize, overlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, Validationf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, Validationf("overlap must be in [0, chunk size), got %d with chunk size %d", overlap, chunkSize)
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}, nil
}

// ChunkSize returns the configured maximum chunk length in runes.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// Overlap returns the configured overlap length in runes.
func (s *Splitter) Overlap() int { return s.overlap }

// Split cuts text into overlapping chunks. Empty input yields no chunks;
// text that already fits in one chunk is returned unchanged as a single
// chunk. No chunk ever exceeds the configured chunk size.
func (s *Splitter) Split(text string) []string {
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= s.chunkSize {
		return []string{text}
	}
	return s.pack(s.segment(text, 0))
}

// segment recursively cuts text into pieces no longer than chunkSize runes,
// preferring the coarsest separator that works. Each piece keeps its
// trailing separator, so concatenating the pieces reproduces the input
// exactly.
func (s *Splitter) segment(text string, level int) []string {
	if utf8.RuneCountInString(text) <= s.chunkSize {
		return []string{text}
	}

	sep := separators[level]
	if sep == "" {
		// Finest level: fixed-width cuts on rune boundaries.
		runes := []rune(text)
		var out []string
		for start := 0; start < len(runes); start += s.chunkSize {
			end := min(start+s.chunkSize, len(runes))
			out = append(out, string(runes[start:end]))
		}
		return out
	}

	var out []string
	for _, piece := range splitAfter(text, sep) {
		if utf8.RuneCountInString(piece) > s.chunkSize {
			out = append(out, s.segment(piece, level+1)...)
			continue
		}
		out = append(out, piece)
	}
	return out
}

// pack greedily joins segments into chunks of at most chunkSize runes.
// Each chunk after the first is seeded with the overlap tail of its
// predecessor; the seed counts toward the size bound, and is shortened when
// the next segment would not otherwise fit.
func (s *Splitter) pack(segs []string) []string {
	var chunks []string
	cur, seed := "", ""
	curLen := 0

	for _, seg := range segs {
		segLen := utf8.RuneCountInString(seg)
		if curLen+segLen > s.chunkSize && cur != seed {
			chunks = append(chunks, cur)
			keep := min(s.overlap, s.chunkSize-segLen)
			seed = tailRunes(cur, keep)
			cur = seed
			curLen = utf8.RuneCountInString(seed)
		}
		cur += seg
		curLen += segLen
	}
	if cur != "" && cur != seed {
		chunks = append(chunks, cur)
	}
	return chunks
}

// tailRunes returns the last n runes of text, or all of it when shorter.
func tailRunes(text string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(text)
	if n >= len(runes) {
		return text
	}
	return string(runes[len(runes)-n:])
}

// splitAfter is strings.SplitAfter minus the trailing empty piece that
// appears when text ends with the separator.
func splitAfter(text, sep string) []string {
	parts := strings.SplitAfter(text, sep)
	if n := len(parts); n > 0 && parts[n-1] == "" {
		parts = parts[:n-1]
	}
	return parts
}
