package text

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultStopWords holds the clause and sentence terminators used when no
// stop words are configured: Japanese punctuation plus the Western
// equivalents.
const DefaultStopWords = "。、？！…,.?!"

// StopWordSet is an immutable set of delimiter characters.
type StopWordSet struct {
	chars string
	set   map[rune]struct{}
}

// NewStopWordSet builds a set from every character in chars. Duplicates are
// ignored. An empty string yields an empty set, which never splits.
func NewStopWordSet(chars string) StopWordSet {
	set := make(map[rune]struct{}, utf8.RuneCountInString(chars))
	var b strings.Builder
	for _, r := range chars {
		if _, dup := set[r]; dup {
			continue
		}
		set[r] = struct{}{}
		b.WriteRune(r)
	}
	return StopWordSet{chars: b.String(), set: set}
}

// DefaultStopWordSet returns the set built from DefaultStopWords.
func DefaultStopWordSet() StopWordSet {
	return NewStopWordSet(DefaultStopWords)
}

// Contains reports whether r is a stop word.
func (s StopWordSet) Contains(r rune) bool {
	_, ok := s.set[r]
	return ok
}

// Len returns the number of distinct stop words.
func (s StopWordSet) Len() int { return len(s.set) }

// String returns the stop words in the order they were first given.
func (s StopWordSet) String() string { return s.chars }

// Segment partitions text into speakable segments. Each segment ends right
// after a stop word, except the last one, which holds whatever trails the
// final stop word. Concatenating the result always reproduces text, and no
// segment is empty. Boundaries are computed on decoded characters, so a
// multi-byte character is never split.
func Segment(text string, stops StopWordSet) []string {
	if text == "" {
		return nil
	}

	var segments []string
	start := 0
	for i := 0; i < len(text); {
		r, width := utf8.DecodeRuneInString(text[i:])
		i += width
		if stops.Contains(r) {
			segments = append(segments, text[start:i])
			start = i
		}
	}

	// Trailing text after the last stop word (if any).
	if start < len(text) {
		segments = append(segments, text[start:])
	}

	return segments
}

// ContainsStopWord reports whether text holds at least one stop word, i.e.
// whether a streaming caller already has a complete segment to hand over.
func ContainsStopWord(text string, stops StopWordSet) bool {
	for _, r := range text {
		if stops.Contains(r) {
			return true
		}
	}
	return false
}

// IsBlank reports whether segment has nothing an engine could voice.
func IsBlank(segment string) bool {
	return strings.IndexFunc(segment, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}
