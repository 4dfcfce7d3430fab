package index

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/manak-ai/stratum/internal/apperr"
	"github.com/manak-ai/stratum/internal/chunk"
	"github.com/manak-ai/stratum/internal/model"
	"github.com/manak-ai/stratum/internal/overview"
	"github.com/manak-ai/stratum/internal/store"
)

// repositoryExts are the file extensions indexed from repository
// archives. Everything else is skipped silently.
var repositoryExts = map[string]struct{}{
	".java": {}, ".kt": {}, ".xml": {}, ".yml": {}, ".yaml": {},
	".properties": {}, ".md": {}, ".txt": {}, ".py": {}, ".js": {},
	".ts": {}, ".json": {}, ".html": {}, ".css": {}, ".gradle": {},
	".groovy": {}, ".pom": {}, ".sql": {}, ".sh": {}, ".bash": {},
}

// RepositoryArtifact is a fetched repository archive ready for indexing.
type RepositoryArtifact struct {
	ID      string
	Name    string
	Branch  string
	Archive []byte
}

// RepositoryIndexer walks a repository archive, chunks its indexable
// files, and builds the README-first overview.
type RepositoryIndexer struct {
	chunker        *chunk.RepositoryChunker
	builder        *overview.RepositoryBuilder
	overviewWriter *store.Writer
	chunkWriter    *store.Writer
	chunkCol       *store.Collection
	log            *slog.Logger
}

func NewRepositoryIndexer(
	chunker *chunk.RepositoryChunker,
	builder *overview.RepositoryBuilder,
	overviewWriter, chunkWriter *store.Writer,
	chunkCol *store.Collection,
	log *slog.Logger,
) *RepositoryIndexer {
	return &RepositoryIndexer{
		chunker:        chunker,
		builder:        builder,
		overviewWriter: overviewWriter,
		chunkWriter:    chunkWriter,
		chunkCol:       chunkCol,
		log:            log,
	}
}

// Index runs the repository write path. Failures on individual files
// are logged and skipped; an overview write failure still returns the
// partial result so the caller sees what was indexed.
func (ix *RepositoryIndexer) Index(ctx context.Context, repo RepositoryArtifact) (model.RepositoryIndexResult, error) {
	result := model.RepositoryIndexResult{
		RepositoryID: repo.ID,
		Name:         repo.Name,
		IndexedFiles: []model.IndexedFile{},
	}

	files, err := readArchive(repo.Archive)
	if err != nil {
		return result, err
	}

	var overviewFiles []overview.File
	for _, f := range files {
		overviewFiles = append(overviewFiles, overview.File{Path: f.path, Content: f.content})

		// READMEs shape the overview; their prose does not belong in
		// the chunk index.
		if isReadme(f.path) {
			continue
		}

		prefix := chunk.IDPrefix(repo.ID, f.path)
		ix.chunkCol.DeleteByPrefix(prefix)

		chunks := ix.chunker.ChunkFile(repo.ID, repo.Branch, f.path, []byte(f.content))
		if len(chunks) == 0 {
			continue
		}
		if err := ix.chunkWriter.WriteChunks(ctx, chunks); err != nil {
			ix.log.Warn("repository file indexing failed, skipping",
				slog.String("repository_id", repo.ID),
				slog.String("path", f.path),
				slog.String("error", err.Error()))
			continue
		}
		result.IndexedFiles = append(result.IndexedFiles, model.IndexedFile{
			Path:     f.path,
			Chunks:   len(chunks),
			IDPrefix: prefix,
		})
	}

	overviewText, source := ix.builder.Build(ctx, repo.ID, overviewFiles)
	overviewID := overview.ID(repo.ID)
	overviewMeta := map[string]any{
		chunk.MetaType:         chunk.TypeOverview,
		chunk.MetaSourceKind:   chunk.SourceRepository,
		chunk.MetaRepositoryID: repo.ID,
		chunk.MetaBranch:       repo.Branch,
		chunk.MetaSource:       source,
	}
	if err := ix.overviewWriter.WriteOverview(ctx, overviewID, overviewText, overviewMeta); err != nil {
		ix.log.Error("repository overview write failed, returning partial result",
			slog.String("repository_id", repo.ID), slog.String("error", err.Error()))
		return result, nil
	}
	result.OverviewID = overviewID

	ix.log.Info("repository indexed",
		slog.String("repository_id", repo.ID),
		slog.String("branch", repo.Branch),
		slog.Int("files", len(result.IndexedFiles)),
		slog.String("overview_source", source))
	return result, nil
}

type archiveFile struct {
	path    string
	content string
}

// readArchive extracts the indexable text files from a zip archive.
// Archives produced by repository hosts wrap everything in a single
// root directory; that segment is stripped when present.
func readArchive(data []byte) ([]archiveFile, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, apperr.CodeEmptyContent, "repository archive is not a readable zip").WithCause(err)
	}

	root := commonRoot(zr.File)
	var files []archiveFile
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		name := strings.TrimPrefix(zf.Name, root)
		if name == "" || hasDotSegment(name) || !indexableFile(name) {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			continue
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		files = append(files, archiveFile{path: name, content: chunk.DecodeText(raw)})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files, nil
}

// commonRoot returns "<dir>/" when every entry lives under one top-level
// directory, else "".
func commonRoot(entries []*zip.File) string {
	root := ""
	for _, zf := range entries {
		i := strings.IndexByte(zf.Name, '/')
		if i < 0 {
			return ""
		}
		top := zf.Name[:i+1]
		if root == "" {
			root = top
		} else if root != top {
			return ""
		}
	}
	return root
}

func hasDotSegment(name string) bool {
	for _, seg := range strings.Split(name, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

func indexableFile(name string) bool {
	base := strings.ToLower(path.Base(name))
	if base == "dockerfile" {
		return true
	}
	_, ok := repositoryExts[path.Ext(base)]
	return ok
}

func isReadme(name string) bool {
	return strings.HasPrefix(strings.ToLower(path.Base(name)), "readme")
}
