package dto

import "github.com/noah-isme/lnd-admin-api/internal/models"

// ImportJobResponse is returned once an upload has been queued.
type ImportJobResponse struct {
	ID     string              `json:"id"`
	Kind   models.ImportKind   `json:"kind"`
	Status models.ImportStatus `json:"status"`
}
