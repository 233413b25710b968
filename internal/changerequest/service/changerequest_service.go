package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"crboard/internal/changerequest/aggregate"
	"crboard/internal/changerequest/models"
	"crboard/internal/changerequest/system"
	dErrors "crboard/pkg/domain-errors"
	audit "crboard/pkg/platform/audit"
)

// Create validates cr, fills defaults and appends it to the bucket of its
// normalized application, creating the bucket if needed. A crId already
// present anywhere in the registry is rejected.
func (s *Service) Create(ctx context.Context, cr models.ChangeRequest) (result models.ChangeRequest, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "Create", attribute.String("cr.id", cr.CRID))
	defer func() { s.finish(span, "create", start, err) }()

	cr.ApplyDefaults()
	if err := cr.Validate(); err != nil {
		s.logger.WarnContext(ctx, "rejected change request", "cr_id", cr.CRID, "error", err)
		return models.ChangeRequest{}, err
	}
	key := cr.SystemKey()
	span.SetAttributes(attribute.String("cr.system", key.String()))

	version, err := s.mutate(ctx, func(reg *models.Registry) error {
		if reg.Contains(cr.CRID) {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("crId %s already exists", cr.CRID))
		}
		reg.Add(key, cr)
		return nil
	})
	if err != nil {
		return models.ChangeRequest{}, err
	}

	s.logger.InfoContext(ctx, "change request created", "cr_id", cr.CRID, "system", key, "version", version)
	s.emit(ctx, audit.Event{Action: audit.EventCRCreated, Subject: cr.CRID, System: key.String(), Version: version})
	return cr, nil
}

// Update merges patch into the CR with id crID, wherever it is filed. The CR
// stays in its bucket even if its application changes. The merged CR must
// pass the same validation as Create.
func (s *Service) Update(ctx context.Context, crID string, patch models.Patch) (result models.ChangeRequest, err error) {
	crID = strings.TrimSpace(crID)
	start := time.Now()
	ctx, span := s.startSpan(ctx, "Update", attribute.String("cr.id", crID))
	defer func() { s.finish(span, "update", start, err) }()

	if patch.CRID != nil && strings.TrimSpace(*patch.CRID) != crID {
		return models.ChangeRequest{}, dErrors.New(dErrors.CodeValidation, "crId cannot be changed")
	}

	var (
		updated models.ChangeRequest
		key     system.Key
	)
	version, err := s.mutate(ctx, func(reg *models.Registry) error {
		var (
			current models.ChangeRequest
			ok      bool
		)
		key, current, ok = reg.Find(crID)
		if !ok {
			return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("CR %s not found", crID))
		}
		updated = patch.Apply(current)
		updated.ApplyDefaults()
		if err := updated.Validate(); err != nil {
			return err
		}
		reg.Replace(crID, updated)
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) || dErrors.HasCode(err, dErrors.CodeValidation) {
			s.logger.WarnContext(ctx, "change request not updated", "cr_id", crID, "error", err)
		}
		return models.ChangeRequest{}, err
	}

	span.SetAttributes(attribute.String("cr.system", key.String()))
	s.logger.InfoContext(ctx, "change request updated", "cr_id", crID, "system", key, "version", version)
	s.emit(ctx, audit.Event{
		Action:  audit.EventCRUpdated,
		Subject: crID,
		System:  key.String(),
		Version: version,
		Fields:  patchFields(patch),
	})
	return updated, nil
}

// Delete removes the CR with id crID from its bucket and decrements the
// bucket total. The bucket is kept even when it becomes empty.
func (s *Service) Delete(ctx context.Context, crID string) (err error) {
	crID = strings.TrimSpace(crID)
	start := time.Now()
	ctx, span := s.startSpan(ctx, "Delete", attribute.String("cr.id", crID))
	defer func() { s.finish(span, "delete", start, err) }()

	var key system.Key
	version, err := s.mutate(ctx, func(reg *models.Registry) error {
		var ok bool
		key, _, ok = reg.Remove(crID)
		if !ok {
			return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("CR %s not found", crID))
		}
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.logger.WarnContext(ctx, "change request not deleted", "cr_id", crID, "error", err)
		}
		return err
	}

	s.logger.InfoContext(ctx, "change request deleted", "cr_id", crID, "system", key, "version", version)
	s.emit(ctx, audit.Event{Action: audit.EventCRDeleted, Subject: crID, System: key.String(), Version: version})
	return nil
}

// List returns the CRs whose current application normalizes to the same key
// as raw, whatever bucket they are filed in. This is the rule the dashboard
// counts by, so a system's list and its card always agree. Order follows
// GetAll. The NEW pseudo-system is always empty.
func (s *Service) List(ctx context.Context, raw string) (result []models.ChangeRequest, err error) {
	start := time.Now()
	key := system.Normalize(raw)
	ctx, span := s.startSpan(ctx, "List", attribute.String("cr.system", key.String()))
	defer func() { s.finish(span, "list", start, err) }()

	result = []models.ChangeRequest{}
	if key == system.New {
		return result, nil
	}

	reg, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, cr := range reg.All() {
		if cr.SystemKey() == key {
			result = append(result, cr)
		}
	}
	return result, nil
}

// GetAll returns the full registry document.
func (s *Service) GetAll(ctx context.Context) (result *models.Registry, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "GetAll")
	defer func() { s.finish(span, "get_all", start, err) }()

	return s.load(ctx)
}

// Dashboard recomputes the aggregate view from a freshly loaded registry.
func (s *Service) Dashboard(ctx context.Context) (result aggregate.Dashboard, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "Dashboard")
	defer func() { s.finish(span, "dashboard", start, err) }()

	reg, err := s.load(ctx)
	if err != nil {
		return aggregate.Dashboard{}, err
	}
	return aggregate.Summarize(reg), nil
}

func patchFields(p models.Patch) []string {
	var fields []string
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(p.Title != nil, "title")
	add(p.Application != nil, "application")
	add(p.Owner != nil, "owner")
	add(p.Priority != nil, "priority")
	add(p.Status != nil, "status")
	add(p.StartDate != nil, "startDate")
	add(p.EndDate != nil, "endDate")
	return fields
}
