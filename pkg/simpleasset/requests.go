package simpleasset

import (
	"io"

	"github.com/google/uuid"
)

// IngestRequest contains parameters for ingesting an uploaded file.
type IngestRequest struct {
	OwnerID  uuid.UUID
	FileName string
	MimeType string
	Size     int64
	Reader   io.Reader
}
