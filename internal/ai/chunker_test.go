package ai

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/livinglib/internal/pkg/errors"
)

func sentences(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "Sentence number %03d talks about shelves. ", i)
	}
	return sb.String()
}

func newTestSegmenter(t *testing.T) *Segmenter {
	t.Helper()
	s, err := NewSegmenter(DefaultChunkSize, DefaultChunkOverlap, DefaultMinChunkLen)
	require.NoError(t, err)
	return s
}

func TestSegmentShortTextIsDropped(t *testing.T) {
	s := newTestSegmenter(t)
	require.Empty(t, s.Segment("too short to matter"))
	require.Empty(t, s.Segment("   \n\t  "))
	require.Empty(t, s.Segment(""))
}

func TestSegmentSingleChunk(t *testing.T) {
	s := newTestSegmenter(t)
	text := "  " + strings.Repeat("word ", 30) + "  "
	chunks := s.Segment(text)
	require.Equal(t, []string{strings.TrimSpace(strings.Repeat("word ", 30))}, chunks)
}

func TestSegmentMinLengthAndDeterminism(t *testing.T) {
	s := newTestSegmenter(t)
	text := sentences(120)
	first := s.Segment(text)
	second := s.Segment(text)
	require.Equal(t, first, second)
	require.Greater(t, len(first), 1)
	for _, chunk := range first {
		require.GreaterOrEqual(t, utf8.RuneCountInString(chunk), DefaultMinChunkLen)
		require.LessOrEqual(t, utf8.RuneCountInString(chunk), DefaultChunkSize)
	}
}

func TestSegmentSnapsToSentenceAndOverlaps(t *testing.T) {
	s := newTestSegmenter(t)
	chunks := s.Segment(sentences(120))
	for i := 0; i+1 < len(chunks); i++ {
		cur, next := chunks[i], chunks[i+1]
		require.True(t, strings.HasSuffix(cur, "."), "chunk %d should end on a sentence: %q", i, cur)
		tail := cur[len(cur)-DefaultChunkOverlap:]
		require.Contains(t, tail, next[:10], "chunk %d and %d should overlap", i, i+1)
	}
}

func TestSegmentRawCutWithoutBreaks(t *testing.T) {
	s := newTestSegmenter(t)
	chunks := s.Segment(strings.Repeat("a", 1200))
	require.Len(t, chunks, 3)
	require.Len(t, chunks[0], 500)
	require.Len(t, chunks[1], 500)
	require.Len(t, chunks[2], 300)
}

func TestSegmentKeepsRawCutWhenBreakTooEarly(t *testing.T) {
	s := newTestSegmenter(t)
	text := strings.Repeat("b", 100) + "." + strings.Repeat("c", 900)
	chunks := s.Segment(text)
	require.NotEmpty(t, chunks)
	require.Len(t, chunks[0], 500)
}

func TestSegmentCountsCharacters(t *testing.T) {
	s := newTestSegmenter(t)
	chunks := s.Segment(strings.Repeat("é", 1200))
	require.Len(t, chunks, 3)
	require.Equal(t, 500, utf8.RuneCountInString(chunks[0]))
}

func TestCleanText(t *testing.T) {
	require.Equal(t, "a\tb\nc", CleanText("\x00 a\tb\x01\nc\x7f \x1b"))
	require.Equal(t, "ok", CleanText("o\xffk"))
}

func TestNewSegmenterValidates(t *testing.T) {
	_, err := NewSegmenter(0, 0, 0)
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = NewSegmenter(100, 50, 10)
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = NewSegmenter(100, -1, 10)
	require.ErrorIs(t, err, appErr.ErrInvalid)
	s, err := NewSegmenter(100, 49, 10)
	require.NoError(t, err)
	require.Equal(t, 100, s.Size())
	require.Equal(t, 49, s.Overlap())
}
