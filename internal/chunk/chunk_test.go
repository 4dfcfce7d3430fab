package chunk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentChunkerWindowsWithOverlap(t *testing.T) {
	// 498 body words plus the two heading tokens: three windows of 200
	// with 50 words of overlap cover it exactly.
	body := "# Title\n" + strings.TrimSpace(strings.Repeat("word ", 498))
	c := NewDocumentChunker(200, 50)

	chunks, front, err := c.Chunk("doc-1", []byte(body), FileInfo{Path: "a.md", Name: "a.md", MimeType: "text/markdown"})
	require.NoError(t, err)
	assert.Empty(t, front)
	require.Len(t, chunks, 3)

	for i, ch := range chunks {
		assert.Equal(t, fmt.Sprintf("doc-1_%d", i), ch.ID)
		assert.Equal(t, i, ch.Meta[MetaChunkIndex])
		assert.Equal(t, 3, ch.Meta[MetaTotalChunks])
		assert.Equal(t, TypeChunk, ch.Meta[MetaType])
		assert.Equal(t, "doc-1", ch.Meta[MetaDocID])
		assert.LessOrEqual(t, len(strings.Fields(ch.Content)), 201)
	}
	assert.True(t, strings.HasPrefix(chunks[0].Content, "# Title"))

	// Consecutive windows share the overlap region.
	first := strings.Fields(chunks[0].Content)
	second := strings.Fields(chunks[1].Content)
	assert.Equal(t, first[len(first)-50:], second[:50])
}

func TestDocumentChunkerSplitsOnHeadings(t *testing.T) {
	body := "# One\nalpha beta\n\n## Two\ngamma delta\n"
	c := NewDocumentChunker(200, 50)

	chunks, _, err := c.Chunk("doc-2", []byte(body), FileInfo{})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Meta[MetaSectionIndex])
	assert.Equal(t, 1, chunks[1].Meta[MetaSectionIndex])
	assert.Contains(t, chunks[0].Content, "alpha")
	assert.Contains(t, chunks[1].Content, "## Two")
}

func TestDocumentChunkerParsesFrontmatter(t *testing.T) {
	raw := "---\ntitle: Release Notes\nversion: 3\n---\n# Body\ncontent here\n"
	c := NewDocumentChunker(200, 50)

	chunks, front, err := c.Chunk("doc-3", []byte(raw), FileInfo{})
	require.NoError(t, err)
	assert.Equal(t, "Release Notes", front["title"])
	assert.Equal(t, 3, front["version"])
	require.Len(t, chunks, 1)
	assert.NotContains(t, chunks[0].Content, "title: Release Notes")
	assert.True(t, strings.HasPrefix(chunks[0].Content, "# Body"))
}

func TestDocumentChunkerRejectsBadFrontmatter(t *testing.T) {
	raw := "---\n: [unclosed\n---\nbody\n"
	c := NewDocumentChunker(200, 50)

	_, _, err := c.Chunk("doc-4", []byte(raw), FileInfo{})
	require.Error(t, err)
}

func TestDocumentChunkerEmptyBody(t *testing.T) {
	c := NewDocumentChunker(200, 50)
	chunks, _, err := c.Chunk("doc-5", []byte("   \n\n  "), FileInfo{})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestDocumentChunkerResplitsOversizedSection(t *testing.T) {
	// One heading followed by two paragraphs whose combined word count
	// exceeds the section ceiling; the blank line becomes a boundary.
	para := strings.TrimSpace(strings.Repeat("w ", 700))
	body := "# Big\n" + para + "\n\n" + para
	c := NewDocumentChunker(1000, 0)

	chunks, _, err := c.Chunk("doc-6", []byte(body), FileInfo{})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Meta[MetaSectionIndex])
	assert.Equal(t, 1, chunks[1].Meta[MetaSectionIndex])
}

func TestDocumentChunkerClampsOverlap(t *testing.T) {
	// Overlap at or above the window size is clamped to size-1, so the
	// windows still advance; negative overlap is clamped to zero.
	c := NewDocumentChunker(3, 10)
	chunks, _, err := c.Chunk("doc-7", []byte("one two three four five"), FileInfo{})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "one two three", chunks[0].Content)
	assert.Equal(t, "two three four", chunks[1].Content)
	assert.Equal(t, "three four five", chunks[2].Content)

	c = NewDocumentChunker(2, -5)
	chunks, _, err = c.Chunk("doc-8", []byte("one two three four"), FileInfo{})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "one two", chunks[0].Content)
	assert.Equal(t, "three four", chunks[1].Content)
}

func TestRepositoryChunkerClampsOverlap(t *testing.T) {
	c := NewRepositoryChunker(4, 9)
	chunks := c.ChunkFile("repo-1", "main", "a.txt", []byte("abcdefgh"))
	require.Len(t, chunks, 5)
	assert.Equal(t, "abcd", chunks[0].Content)
	assert.Equal(t, "efgh", chunks[4].Content)
}

func TestRepositoryChunkerIDsAndWindows(t *testing.T) {
	content := strings.Repeat("x", 3000)
	c := NewRepositoryChunker(1200, 200)

	chunks := c.ChunkFile("repo-1", "main", "src/app.go", []byte(content))
	// Windows start at 0, 1000, 2000; the last absorbs the tail.
	require.Len(t, chunks, 3)
	assert.Equal(t, "repo-1:src/app.go:chunk:0", chunks[0].ID)
	assert.Equal(t, "repo-1:src/app.go:chunk:2", chunks[2].ID)
	for i, ch := range chunks {
		assert.True(t, strings.HasPrefix(ch.ID, IDPrefix("repo-1", "src/app.go")))
		assert.Equal(t, i, ch.Meta[MetaChunkIndex])
		assert.Equal(t, 3, ch.Meta[MetaTotalChunks])
		assert.Equal(t, "repo-1", ch.Meta[MetaRepositoryID])
		assert.Equal(t, "main", ch.Meta[MetaBranch])
		assert.Equal(t, "app.go", ch.Meta[MetaFileName])
		assert.Equal(t, "text/x-go", ch.Meta[MetaMimeType])
	}
	assert.Len(t, chunks[0].Content, 1200)
	assert.Len(t, chunks[2].Content, 1000)
}

func TestRepositoryChunkerEmptyFile(t *testing.T) {
	c := NewRepositoryChunker(1200, 200)
	assert.Empty(t, c.ChunkFile("repo-1", "main", "empty.txt", nil))
	assert.Empty(t, c.ChunkFile("repo-1", "main", "blank.txt", []byte("  \n\t")))
}

func TestRepositoryChunkerLatin1Fallback(t *testing.T) {
	raw := []byte{'c', 'a', 'f', 0xE9} // "café" in Latin-1, invalid UTF-8
	c := NewRepositoryChunker(1200, 200)

	chunks := c.ChunkFile("repo-1", "main", "notes.txt", raw)
	require.Len(t, chunks, 1)
	assert.Equal(t, "café", chunks[0].Content)
}

func TestDecodeTextValidUTF8(t *testing.T) {
	assert.Equal(t, "héllo", DecodeText([]byte("héllo")))
}
