package client

import (
	"context"
	"time"
)

// Branch is one branch declared in repository metadata.
type Branch struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Status        string `json:"status"`
	DefaultBranch bool   `json:"defaultBranch"`
}

// RepositorySpecification carries the upstream definition of a
// repository, including its declared branches.
type RepositorySpecification struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Key      string   `json:"key"`
	BaseURL  string   `json:"baseUrl"`
	Branches []Branch `json:"branches"`
}

// RepositoryDTO is the repository service's metadata shape.
type RepositoryDTO struct {
	ID            string                   `json:"id"`
	Name          string                   `json:"name"`
	Description   string                   `json:"description"`
	Path          string                   `json:"path"`
	Tags          []string                 `json:"tags"`
	Branches      []Branch                 `json:"branches"`
	Specification *RepositorySpecification `json:"specification"`
}

// DefaultBranch resolves the branch to index when the caller named
// none: the first default-flagged branch, preferring the repository's
// own branches over the specification's.
func (r *RepositoryDTO) DefaultBranch() string {
	for _, b := range r.Branches {
		if b.DefaultBranch {
			return b.Name
		}
	}
	if r.Specification != nil {
		for _, b := range r.Specification.Branches {
			if b.DefaultBranch {
				return b.Name
			}
		}
	}
	return ""
}

// RMS talks to the repository service.
type RMS struct {
	base
}

func NewRMS(baseURL string, tokens TokenProvider, timeout time.Duration) *RMS {
	return &RMS{base: newBase(baseURL, "RepositoryService", tokens, timeout)}
}

// GetRepository fetches repository metadata.
func (c *RMS) GetRepository(ctx context.Context, repoID string) (*RepositoryDTO, error) {
	var dto RepositoryDTO
	if err := c.getJSON(ctx, "/api/v1/repository/"+repoID, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

// DownloadDefault fetches the archive of the repository's default
// branch.
func (c *RMS) DownloadDefault(ctx context.Context, repoID string) ([]byte, error) {
	return c.getBytes(ctx, "/api/v1/repository/"+repoID+"/download")
}

// DownloadBranch fetches the archive of a named branch.
func (c *RMS) DownloadBranch(ctx context.Context, repoID, branch string) ([]byte, error) {
	return c.getBytes(ctx, "/api/v1/repository/"+repoID+"/branch/"+branch+"/download")
}
