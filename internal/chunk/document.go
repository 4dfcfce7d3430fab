package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/manak-ai/stratum/internal/apperr"
)

// maxSectionWords is the ceiling above which a heading section is
// re-split on blank lines before word windowing.
const maxSectionWords = 1200

var (
	headingRe = regexp.MustCompile(`(?m)^#{1,6} `)
	blankRe   = regexp.MustCompile(`\n[ \t]*\n`)
)

// FileInfo carries the source file attributes stamped onto every chunk.
type FileInfo struct {
	Path     string
	Name     string
	MimeType string
}

// DocumentChunker splits markdown documents on headings and windows each
// section into overlapping word spans.
type DocumentChunker struct {
	size    int
	overlap int
}

func NewDocumentChunker(size, overlap int) *DocumentChunker {
	if size <= 0 {
		size = 200
	}
	// Overlap is clamped into [0, size) so window starts always advance.
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	return &DocumentChunker{size: size, overlap: overlap}
}

// Chunk splits the raw document into windows. YAML frontmatter, when
// present, is stripped from the body and returned as the second value.
// Chunk IDs are "<docID>_<n>" with n counting contiguously from zero
// across all sections.
func (c *DocumentChunker) Chunk(docID string, raw []byte, file FileInfo) ([]Chunk, map[string]any, error) {
	text := DecodeText(raw)
	front, body, err := splitFrontmatter(text)
	if err != nil {
		return nil, nil, err
	}

	sum := sha256.Sum256(raw)
	digest := hex.EncodeToString(sum[:])

	var chunks []Chunk
	n := 0
	for si, section := range splitSections(body) {
		words := strings.Fields(section)
		if len(words) == 0 {
			continue
		}
		for _, window := range windowWords(words, c.size, c.overlap) {
			chunks = append(chunks, Chunk{
				ID:      fmt.Sprintf("%s_%d", docID, n),
				Content: strings.Join(window, " "),
				Meta: map[string]any{
					MetaType:         TypeChunk,
					MetaSourceKind:   SourceDocument,
					MetaDocID:        docID,
					MetaFilePath:     file.Path,
					MetaFileName:     file.Name,
					MetaMimeType:     file.MimeType,
					MetaFileSize:     len(raw),
					MetaSHA256:       digest,
					MetaChunkIndex:   n,
					MetaSectionIndex: si,
				},
			})
			n++
		}
	}
	for i := range chunks {
		chunks[i].Meta[MetaTotalChunks] = len(chunks)
	}
	return chunks, front, nil
}

// splitFrontmatter strips a leading "---" YAML block. A block that is
// present but not valid YAML is a caller error, not something to guess
// around.
func splitFrontmatter(text string) (map[string]any, string, error) {
	if !strings.HasPrefix(text, "---\n") && text != "---" {
		return nil, text, nil
	}
	rest := strings.TrimPrefix(text, "---\n")
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return nil, text, nil
	}
	block := rest[:end]
	body := rest[end+len("\n---"):]
	body = strings.TrimPrefix(body, "\n")

	front := map[string]any{}
	if err := yaml.Unmarshal([]byte(block), &front); err != nil {
		return nil, "", apperr.Validation("INVALID_FRONTMATTER", "document frontmatter is not valid YAML").WithCause(err)
	}
	return front, body, nil
}

// splitSections cuts the body at markdown headings. Sections that still
// exceed maxSectionWords are re-split on blank lines so no single window
// pass has to span an entire unstructured file.
func splitSections(body string) []string {
	var sections []string
	for _, part := range splitAt(body, headingRe) {
		if len(strings.Fields(part)) <= maxSectionWords {
			sections = append(sections, part)
			continue
		}
		sections = append(sections, blankRe.Split(part, -1)...)
	}
	return sections
}

// splitAt slices text at every match of re, keeping the match with the
// segment it opens.
func splitAt(text string, re *regexp.Regexp) []string {
	locs := re.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []string{text}
	}
	var parts []string
	prev := 0
	for _, loc := range locs {
		if loc[0] > prev {
			parts = append(parts, text[prev:loc[0]])
		}
		prev = loc[0]
	}
	parts = append(parts, text[prev:])
	return parts
}

// windowWords emits overlapping word windows. The last window absorbs
// the tail so a handful of trailing words never becomes its own chunk.
func windowWords(words []string, size, overlap int) [][]string {
	if len(words) == 0 {
		return nil
	}
	step := size - overlap
	if step < 1 {
		step = 1
	}
	var out [][]string
	for start := 0; ; start += step {
		end := start + size
		if end >= len(words) {
			out = append(out, words[start:])
			break
		}
		out = append(out, words[start:end])
	}
	return out
}
