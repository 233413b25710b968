package handler

import (
	"crboard/internal/changerequest/models"
	"crboard/internal/changerequest/system"
)

// MutationResponse acknowledges a write. CR is the stored record after
// create and update.
type MutationResponse struct {
	Success bool                  `json:"success"`
	CR      *models.ChangeRequest `json:"cr,omitempty"`
}

// ListResponse is the body of GET /api/systems/{system}/crs.
type ListResponse struct {
	System system.Key             `json:"system"`
	CRs    []models.ChangeRequest `json:"crs"`
}
