package models

// Patch is a partial ChangeRequest. Nil fields are left untouched when applied.
// A non-nil zero Date clears that date.
type Patch struct {
	CRID        *string   `json:"crId,omitempty"`
	Title       *string   `json:"title,omitempty"`
	Application *string   `json:"application,omitempty"`
	Owner       *string   `json:"owner,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	StartDate   *Date     `json:"startDate,omitempty"`
	EndDate     *Date     `json:"endDate,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.CRID == nil && p.Title == nil && p.Application == nil && p.Owner == nil &&
		p.Priority == nil && p.Status == nil && p.StartDate == nil && p.EndDate == nil
}

// Apply merges the patch into a copy of cr.
func (p Patch) Apply(cr ChangeRequest) ChangeRequest {
	if p.CRID != nil {
		cr.CRID = *p.CRID
	}
	if p.Title != nil {
		cr.Title = *p.Title
	}
	if p.Application != nil {
		cr.Application = *p.Application
	}
	if p.Owner != nil {
		cr.Owner = *p.Owner
	}
	if p.Priority != nil {
		cr.Priority = *p.Priority
	}
	if p.Status != nil {
		cr.Status = *p.Status
	}
	if p.StartDate != nil {
		cr.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		cr.EndDate = *p.EndDate
	}
	return cr
}
