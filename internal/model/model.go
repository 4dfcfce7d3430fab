// Package model defines the wire types of the ingress API.
//
// Outbound JSON is camelCase. Inbound JSON is accepted in both camelCase
// and snake_case, so callers migrating from older clients keep working.
package model

import (
	"encoding/json"

	"github.com/manak-ai/stratum/internal/apperr"
)

// DefaultTopK is applied when a query request omits topK.
const DefaultTopK = 5

// QueryRequest is the body of every overview and chunk query.
type QueryRequest struct {
	Query       string   `json:"query"`
	TopK        int      `json:"topK"`
	ArtifactIDs []string `json:"artifactIds,omitempty"`
}

// UnmarshalJSON accepts both camelCase and snake_case field names.
func (r *QueryRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := pick(raw, &r.Query, "query"); err != nil {
		return err
	}
	if err := pick(raw, &r.TopK, "topK", "top_k"); err != nil {
		return err
	}
	return pick(raw, &r.ArtifactIDs, "artifactIds", "artifact_ids")
}

// Normalize applies defaults and validates the request.
func (r *QueryRequest) Normalize() error {
	if r.Query == "" {
		return apperr.Validation(apperr.CodeEmptyQuery, "query must not be empty")
	}
	if r.TopK <= 0 {
		r.TopK = DefaultTopK
	}
	return nil
}

// Hit is one search result.
type Hit struct {
	ID      string         `json:"id"`
	Content string         `json:"content"`
	Meta    map[string]any `json:"meta,omitempty"`
	Score   float64        `json:"score,omitempty"`
}

// OverviewResponse echoes the request and carries overview hits.
type OverviewResponse struct {
	Query       string   `json:"query"`
	TopK        int      `json:"topK"`
	ArtifactIDs []string `json:"artifactIds,omitempty"`
	Overviews   []Hit    `json:"overviews"`
}

// ChunkResponse echoes the request and carries reranked chunks plus the
// summary over them.
type ChunkResponse struct {
	Query        string   `json:"query"`
	TopK         int      `json:"topK"`
	ArtifactIDs  []string `json:"artifactIds,omitempty"`
	Chunks       []Hit    `json:"chunks"`
	FinalSummary string   `json:"finalSummary"`
}

// DocumentRequest asks for a document to be fetched and indexed.
type DocumentRequest struct {
	DocumentID string `json:"documentId"`
}

func (r *DocumentRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return pick(raw, &r.DocumentID, "documentId", "document_id")
}

// DocumentResponse acknowledges an accepted document ingestion.
type DocumentResponse struct {
	DocumentID string `json:"documentId"`
	Name       string `json:"name,omitempty"`
	Status     string `json:"status"`
}

// RepositoryRequest asks for a repository branch to be fetched and
// indexed. Branch is optional; the repository's default branch is used
// when absent.
type RepositoryRequest struct {
	RepositoryID string `json:"repositoryId"`
	Branch       string `json:"branch,omitempty"`
}

func (r *RepositoryRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := pick(raw, &r.RepositoryID, "repositoryId", "repository_id"); err != nil {
		return err
	}
	return pick(raw, &r.Branch, "branch")
}

// RepositoryResponse acknowledges an accepted repository ingestion.
type RepositoryResponse struct {
	RepositoryID string `json:"repositoryId"`
	Branch       string `json:"branch,omitempty"`
	Status       string `json:"status"`
}

// StatusAccepted is the status of an ingestion dispatched to the worker
// pool.
const StatusAccepted = "accepted"

// IndexedFile describes one file indexed from a repository archive.
type IndexedFile struct {
	Path     string `json:"path"`
	Chunks   int    `json:"chunks"`
	IDPrefix string `json:"idPrefix"`
}

// RepositoryIndexResult is the outcome of a repository indexing run.
type RepositoryIndexResult struct {
	RepositoryID string        `json:"repositoryId"`
	Name         string        `json:"name,omitempty"`
	IndexedFiles []IndexedFile `json:"indexedFiles"`
	OverviewID   string        `json:"overviewId,omitempty"`
}

// DocumentIndexResult is the outcome of a document indexing run.
type DocumentIndexResult struct {
	DocumentID string `json:"documentId"`
	Name       string `json:"name,omitempty"`
	Chunks     int    `json:"chunks"`
	OverviewID string `json:"overviewId"`
}

// InvokeRequest is the body of POST /tool/invoke.
type InvokeRequest struct {
	ToolID string         `json:"toolId"`
	Params map[string]any `json:"params,omitempty"`
}

func (r *InvokeRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := pick(raw, &r.ToolID, "toolId", "tool_id"); err != nil {
		return err
	}
	return pick(raw, &r.Params, "params")
}

// InvokeResponse wraps a tool call's outcome. Exactly one of Result and
// Error is set.
type InvokeResponse struct {
	ToolID string `json:"toolId"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ToolDescriptor describes one callable tool, published on startup.
type ToolDescriptor struct {
	ToolID      string `json:"toolId"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the ingress error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// pick decodes the first present alias into dst.
func pick(raw map[string]json.RawMessage, dst any, aliases ...string) error {
	for _, key := range aliases {
		if v, ok := raw[key]; ok {
			return json.Unmarshal(v, dst)
		}
	}
	return nil
}
