package httpactor

import "github.com/canfiles/canfiles/internal/models"

// Paths of the JSON-over-HTTP store protocol.
const (
	PathHealth  = "/health"
	PathFiles   = "/files"
	PathContent = "/files/{id}/content"
)

// AddFileBody is the POST /files request.
type AddFileBody = models.AddFileRequest

// ContentBody is the GET /files/{id}/content response. Bytes travel as
// base64, which encoding/json applies to []byte.
type ContentBody struct {
	Name  string `json:"name"`
	Bytes []byte `json:"bytes"`
}

// ErrorBody is returned with every non-2xx status.
type ErrorBody struct {
	Error string `json:"error"`
}

// HealthBody is the GET /health response.
type HealthBody struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}
