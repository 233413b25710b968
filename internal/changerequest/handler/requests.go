package handler

import (
	"strings"

	"crboard/internal/changerequest/models"
	dErrors "crboard/pkg/domain-errors"
)

// UpdateRequest is the body of PATCH /api/updateCrs.
type UpdateRequest struct {
	CRID    string       `json:"crId"`
	Updates models.Patch `json:"updates"`
}

// Validate requires the target id.
func (r *UpdateRequest) Validate() error {
	r.CRID = strings.TrimSpace(r.CRID)
	if r.CRID == "" {
		return dErrors.New(dErrors.CodeValidation, "crId is required")
	}
	return nil
}

// DeleteRequest is the body of DELETE /api/deleteCrs.
type DeleteRequest struct {
	CRID string `json:"crId"`
}

func (r *DeleteRequest) Validate() error {
	r.CRID = strings.TrimSpace(r.CRID)
	if r.CRID == "" {
		return dErrors.New(dErrors.CodeValidation, "crId is required")
	}
	return nil
}
