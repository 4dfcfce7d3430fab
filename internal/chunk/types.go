// Package chunk splits document and repository content into overlapping
// windows sized for embedding models.
package chunk

// Meta keys shared by chunkers, stores, and retrieval filters.
const (
	MetaType         = "type"
	MetaDocID        = "doc_id"
	MetaRepositoryID = "repository_id"
	MetaSourceKind   = "source_kind"
	MetaFilePath     = "file_path"
	MetaFileName     = "file_name"
	MetaMimeType     = "mime_type"
	MetaFileSize     = "file_size"
	MetaSHA256       = "sha256"
	MetaChunkIndex   = "chunk_index"
	MetaTotalChunks  = "total_chunks"
	MetaBranch       = "branch"
	MetaSectionIndex = "section_index"
	MetaSource       = "source"
)

// Values for the MetaType field.
const (
	TypeChunk    = "chunk"
	TypeOverview = "overview"
)

// Values for the MetaSourceKind field.
const (
	SourceDocument   = "document"
	SourceRepository = "repository"
)

// Chunk is one embeddable window of content together with the metadata
// the retrieval filters operate on.
type Chunk struct {
	ID      string
	Content string
	Meta    map[string]any
}
