package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
)

// mimeByExt maps source-file extensions to MIME types. Repository files
// are all indexed as text, so unknown extensions default to text/plain
// rather than application/octet-stream.
var mimeByExt = map[string]string{
	".md":   "text/markdown",
	".txt":  "text/plain",
	".html": "text/html",
	".css":  "text/css",
	".js":   "text/javascript",
	".ts":   "text/javascript",
	".json": "application/json",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
	".xml":  "application/xml",
	".toml": "application/toml",
	".sh":   "application/x-sh",
	".py":   "text/x-python",
	".go":   "text/x-go",
	".java": "text/x-java",
	".c":    "text/x-c",
	".h":    "text/x-c",
	".cpp":  "text/x-c++",
	".rs":   "text/x-rust",
	".sql":  "application/sql",
}

// RepositoryChunker windows source files into overlapping character
// spans. Code has no reliable word boundaries, so spans are measured in
// runes rather than words.
type RepositoryChunker struct {
	size    int
	overlap int
}

func NewRepositoryChunker(size, overlap int) *RepositoryChunker {
	if size <= 0 {
		size = 1200
	}
	// Overlap is clamped into [0, size) so window starts always advance.
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	return &RepositoryChunker{size: size, overlap: overlap}
}

// ChunkFile splits one repository file. Chunk IDs are
// "<repoID>:<path>:chunk:<n>" so a file's chunks share a common prefix
// for later replacement. Empty files yield no chunks.
func (c *RepositoryChunker) ChunkFile(repoID, branch, filePath string, raw []byte) []Chunk {
	text := DecodeText(raw)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	sum := sha256.Sum256(raw)
	digest := hex.EncodeToString(sum[:])
	name := path.Base(filePath)
	mime := mimeByExt[strings.ToLower(path.Ext(filePath))]
	if mime == "" {
		mime = "text/plain"
	}

	windows := windowRunes([]rune(text), c.size, c.overlap)
	chunks := make([]Chunk, 0, len(windows))
	for n, window := range windows {
		chunks = append(chunks, Chunk{
			ID:      fmt.Sprintf("%s:%s:chunk:%d", repoID, filePath, n),
			Content: string(window),
			Meta: map[string]any{
				MetaType:         TypeChunk,
				MetaSourceKind:   SourceRepository,
				MetaRepositoryID: repoID,
				MetaBranch:       branch,
				MetaFilePath:     filePath,
				MetaFileName:     name,
				MetaMimeType:     mime,
				MetaFileSize:     len(raw),
				MetaSHA256:       digest,
				MetaChunkIndex:   n,
				MetaTotalChunks:  len(windows),
			},
		})
	}
	return chunks
}

// IDPrefix returns the shared prefix of every chunk id ChunkFile emits
// for the given file.
func IDPrefix(repoID, filePath string) string {
	return fmt.Sprintf("%s:%s:chunk:", repoID, filePath)
}

func windowRunes(runes []rune, size, overlap int) [][]rune {
	if len(runes) == 0 {
		return nil
	}
	step := size - overlap
	if step < 1 {
		step = 1
	}
	var out [][]rune
	for start := 0; ; start += step {
		end := start + size
		if end >= len(runes) {
			out = append(out, runes[start:])
			break
		}
		out = append(out, runes[start:end])
	}
	return out
}
