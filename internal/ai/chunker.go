package ai

import (
	"fmt"
	"strings"
	"unicode/utf8"

	appErr "github.com/xxxsen/livinglib/internal/pkg/errors"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
	DefaultMinChunkLen  = 50
)

// Segmenter splits page text into overlapping chunks. Sizes are counted in
// characters (code points) everywhere in the pipeline.
type Segmenter struct {
	size    int
	overlap int
	minLen  int
}

func NewSegmenter(size, overlap, minLen int) (*Segmenter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive: %w", appErr.ErrInvalid)
	}
	if overlap < 0 || overlap*2 >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, size/2): %w", appErr.ErrInvalid)
	}
	if minLen < 0 {
		minLen = 0
	}
	return &Segmenter{size: size, overlap: overlap, minLen: minLen}, nil
}

func (s *Segmenter) Size() int    { return s.size }
func (s *Segmenter) Overlap() int { return s.overlap }

// Segment returns the chunks of text in order. The result depends only on
// the text and the segmenter parameters.
func (s *Segmenter) Segment(text string) []string {
	runes := []rune(CleanText(text))
	n := len(runes)
	var chunks []string
	start := 0
	for start < n {
		end := start + s.size
		if end >= n {
			end = n
		} else if cut := lastBreak(runes[start:end]); cut > s.size/2 {
			end = start + cut + 1
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if utf8.RuneCountInString(chunk) >= s.minLen && chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == n {
			break
		}
		// end-start > size/2 > overlap, so start always advances.
		start = end - s.overlap
	}
	return chunks
}

// CleanText drops control characters other than newline and tab, replaces
// invalid UTF-8 and trims the result. NUL bytes in particular are rejected
// by postgres text columns.
func CleanText(text string) string {
	text = strings.ToValidUTF8(text, "")
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		if r == '\n' || r == '\t' || (r >= 0x20 && r != 0x7f) {
			sb.WriteRune(r)
		}
	}
	return strings.TrimSpace(sb.String())
}

func lastBreak(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		switch window[i] {
		case '.', '!', '?', '\n':
			return i
		}
	}
	return -1
}
