package models

import (
	"strings"

	"crboard/internal/changerequest/system"
)

// Priority of a change request.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Status of a change request.
type Status string

const (
	StatusNotStarted       Status = "Not Started"
	StatusInProgress       Status = "In Progress"
	StatusWaitingForGoLive Status = "Waiting for Go-Live"
	StatusCompleted        Status = "Completed"
)

// StatusUnknown is the aggregation bucket for CRs stored without a status.
// It is never a valid value on write.
const StatusUnknown Status = "Unknown"

func (s Status) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusWaitingForGoLive, StatusCompleted:
		return true
	}
	return false
}

// StatusOrder is the column order of the dashboard status table.
func StatusOrder() []Status {
	return []Status{StatusInProgress, StatusCompleted, StatusNotStarted, StatusWaitingForGoLive}
}

// ChangeRequest is one tracked unit of change work.
//
// Invariants:
//   - CRID is unique across the whole registry and immutable after creation
//   - CRID, Title, Application and Owner are non-blank
//   - Priority and Status are members of their enums
//   - when both dates are set, EndDate is not before StartDate
//
// Application is stored verbatim; only its normalized form decides the bucket.
type ChangeRequest struct {
	CRID        string   `json:"crId" validate:"notblank,max=64"`
	Title       string   `json:"title" validate:"notblank,max=256"`
	Application string   `json:"application" validate:"notblank,max=64"`
	Owner       string   `json:"owner" validate:"notblank,max=128"`
	Priority    Priority `json:"priority" validate:"priority"`
	Status      Status   `json:"status" validate:"status"`
	StartDate   Date     `json:"startDate"`
	EndDate     Date     `json:"endDate"`
}

// ApplyDefaults trims CRID and fills Priority and Status when omitted. Other
// fields are kept verbatim.
func (cr *ChangeRequest) ApplyDefaults() {
	cr.CRID = strings.TrimSpace(cr.CRID)
	if strings.TrimSpace(string(cr.Priority)) == "" {
		cr.Priority = PriorityMedium
	}
	if strings.TrimSpace(string(cr.Status)) == "" {
		cr.Status = StatusNotStarted
	}
}

// SystemKey is the bucket key derived from Application.
func (cr ChangeRequest) SystemKey() system.Key {
	return system.Normalize(cr.Application)
}
