// Package aggregate derives dashboard counts from a loaded registry.
//
// Counts are recomputed from the CRs on every call. Bucket placement and the
// stored summary.totalCRs are not trusted: each CR's application is normalized
// again, so a CR whose application was edited after creation is counted under
// its current system.
package aggregate

import (
	"sort"
	"strings"

	"crboard/internal/changerequest/models"
	"crboard/internal/changerequest/system"
)

// PerSystemCounts counts CRs by the normalized form of their application.
func PerSystemCounts(reg *models.Registry) map[system.Key]int {
	counts := make(map[system.Key]int)
	for _, b := range reg.Systems {
		for _, cr := range b.CRs {
			counts[system.Normalize(cr.Application)]++
		}
	}
	return counts
}

// PerStatusCounts counts CRs by status verbatim; a blank status counts as Unknown.
func PerStatusCounts(reg *models.Registry) map[models.Status]int {
	counts := make(map[models.Status]int)
	for _, b := range reg.Systems {
		for _, cr := range b.CRs {
			status := cr.Status
			if strings.TrimSpace(string(status)) == "" {
				status = models.StatusUnknown
			}
			counts[status]++
		}
	}
	return counts
}

// TotalCount is the number of CRs across all buckets.
func TotalCount(reg *models.Registry) int {
	total := 0
	for _, b := range reg.Systems {
		total += len(b.CRs)
	}
	return total
}

// Card is one system tile of the dashboard.
type Card struct {
	System system.Key `json:"system"`
	Label  string     `json:"label"`
	Count  int        `json:"count"`
}

// StatusCount is one column of the status table.
type StatusCount struct {
	Status models.Status `json:"status"`
	Count  int           `json:"count"`
}

// Dashboard is the full aggregate view.
type Dashboard struct {
	TotalCRs int           `json:"totalCRs"`
	Cards    []Card        `json:"cards"`
	Statuses []StatusCount `json:"statuses"`
}

// Summarize builds the dashboard: one card per known system in fixed order
// (zero when empty) followed by any other systems found, sorted; the status
// table in fixed order, followed by any other statuses found, sorted.
func Summarize(reg *models.Registry) Dashboard {
	perSystem := PerSystemCounts(reg)
	perStatus := PerStatusCounts(reg)

	d := Dashboard{TotalCRs: TotalCount(reg)}

	for _, k := range system.Known() {
		d.Cards = append(d.Cards, Card{System: k, Label: system.Label(k), Count: perSystem[k]})
	}
	var extra []system.Key
	for k := range perSystem {
		if !system.IsKnown(k) {
			extra = append(extra, k)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	for _, k := range extra {
		d.Cards = append(d.Cards, Card{System: k, Label: system.Label(k), Count: perSystem[k]})
	}

	ordered := make(map[models.Status]bool)
	for _, st := range models.StatusOrder() {
		ordered[st] = true
		d.Statuses = append(d.Statuses, StatusCount{Status: st, Count: perStatus[st]})
	}
	var rest []models.Status
	for st := range perStatus {
		if !ordered[st] {
			rest = append(rest, st)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	for _, st := range rest {
		d.Statuses = append(d.Statuses, StatusCount{Status: st, Count: perStatus[st]})
	}
	return d
}
