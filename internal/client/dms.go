package client

import (
	"context"
	"strings"
	"time"
)

// Attachment is one file attached to a document. The order field
// increases with newer versions.
type Attachment struct {
	ID       string `json:"id"`
	FilePath string `json:"filePath"`
	Status   string `json:"status"`
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
	FileSize int64  `json:"fileSize"`
	Checksum string `json:"checksum"`
	Order    int    `json:"order"`
}

// DocumentDTO is the document service's metadata shape, reduced to the
// fields the indexing pipeline reads.
type DocumentDTO struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Key         string       `json:"key"`
	Description string       `json:"description"`
	Tags        []string     `json:"tags"`
	Attachments []Attachment `json:"attachments"`
}

// LatestAttachment returns the attachment with the highest order, or
// false when the document has none.
func (d *DocumentDTO) LatestAttachment() (Attachment, bool) {
	if len(d.Attachments) == 0 {
		return Attachment{}, false
	}
	latest := d.Attachments[0]
	for _, a := range d.Attachments[1:] {
		if a.Order > latest.Order {
			latest = a
		}
	}
	return latest, true
}

// DMS talks to the document service.
type DMS struct {
	base
}

func NewDMS(baseURL string, tokens TokenProvider, timeout time.Duration) *DMS {
	return &DMS{base: newBase(baseURL, "DocumentService", tokens, timeout)}
}

// GetDocument fetches document metadata.
func (c *DMS) GetDocument(ctx context.Context, docID string) (*DocumentDTO, error) {
	var dto DocumentDTO
	if err := c.getJSON(ctx, "/api/v1/document/"+docID, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

// DownloadFile fetches the raw bytes behind an attachment path.
func (c *DMS) DownloadFile(ctx context.Context, filePath string) ([]byte, error) {
	return c.getBytes(ctx, "/api/v1/file/"+strings.TrimLeft(filePath, "/"))
}
