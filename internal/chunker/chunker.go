// Package chunker splits document text into bounded, sentence aligned chunks.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultSize is the maximum chunk length in characters.
const DefaultSize = 800

var (
	paragraphSplit = regexp.MustCompile(`\n[ \t]*\n`)
	// A sentence ends with terminal punctuation followed by whitespace.
	sentenceEnd = regexp.MustCompile(`[.!?;]+\s+`)
	spaces      = regexp.MustCompile(`\s+`)
)

// Chunker is a pure function of its Size. The zero value uses DefaultSize.
type Chunker struct {
	Size int
}

// New returns a Chunker with the given size, falling back to DefaultSize for non-positive values.
func New(size int) Chunker {
	if size <= 0 {
		size = DefaultSize
	}
	return Chunker{Size: size}
}

// Chunk splits text into paragraphs and packs oversized paragraphs sentence by sentence.
// A single sentence longer than Size is kept whole.
func (c Chunker) Chunk(text string) []string {
	size := c.Size
	if size <= 0 {
		size = DefaultSize
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")

	var chunks []string
	for _, paragraph := range paragraphSplit.Split(text, -1) {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		if length(paragraph) <= size {
			chunks = append(chunks, paragraph)
			continue
		}

		chunks = append(chunks, pack(sentences(paragraph), size)...)
	}

	return chunks
}

// Chunk splits text with DefaultSize.
func Chunk(text string) []string {
	return Chunker{}.Chunk(text)
}

func sentences(paragraph string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(paragraph, -1) {
		if s := normalize(paragraph[start:loc[1]]); s != "" {
			out = append(out, s)
		}
		start = loc[1]
	}
	if s := normalize(paragraph[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func pack(sentences []string, size int) []string {
	var (
		chunks  []string
		current strings.Builder
	)

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, s := range sentences {
		if current.Len() == 0 {
			current.WriteString(s)
			continue
		}
		if length(current.String())+1+length(s) > size {
			flush()
			current.WriteString(s)
			continue
		}
		current.WriteString(" ")
		current.WriteString(s)
	}
	flush()

	return chunks
}

func normalize(s string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}
