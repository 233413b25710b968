package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"crboard/internal/changerequest/models"
	"crboard/internal/changerequest/store"
	"crboard/internal/changerequest/system"
	dErrors "crboard/pkg/domain-errors"
	audit "crboard/pkg/platform/audit"
	"crboard/pkg/platform/audit/publisher"
	auditmemory "crboard/pkg/platform/audit/store/memory"
)

var emptyDocument = []byte(`{"systems":{}}`)

// RegistryFlowSuite runs the service against a real in-memory store.
type RegistryFlowSuite struct {
	suite.Suite
	backend *store.MemoryBackend
	events  *auditmemory.InMemoryStore
	service *Service
}

func TestRegistryFlowSuite(t *testing.T) {
	suite.Run(t, new(RegistryFlowSuite))
}

func (s *RegistryFlowSuite) SetupTest() {
	s.backend = store.NewMemory()
	s.events = auditmemory.NewInMemoryStore()
	s.service = s.newService()
}

func (s *RegistryFlowSuite) newService() *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(s.backend, store.WithSeed(emptyDocument), store.WithLogger(logger))
	svc, err := New(st, WithLogger(logger), WithAuditPublisher(publisher.NewPublisher(s.events)))
	s.Require().NoError(err)
	return svc
}

func (s *RegistryFlowSuite) rawDocument() []byte {
	doc, _, err := s.backend.Get(context.Background())
	s.Require().NoError(err)
	return doc
}

func (s *RegistryFlowSuite) TestCreateUpdateDeleteLifecycle() {
	ctx := context.Background()

	created, err := s.service.Create(ctx, models.ChangeRequest{
		CRID:        "CR-1",
		Title:       "X",
		Application: "sc",
		Owner:       "alice",
		StartDate:   models.MustParseDate("2025-01-10"),
	})
	s.Require().NoError(err)
	s.Equal(models.PriorityMedium, created.Priority)
	s.Equal(models.StatusNotStarted, created.Status)

	listed, err := s.service.List(ctx, "SC2")
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal("CR-1", listed[0].CRID)

	reg, err := s.service.GetAll(ctx)
	s.Require().NoError(err)
	b, ok := reg.Bucket(system.SC2)
	s.Require().True(ok)
	s.Equal(1, b.Summary.TotalCRs)

	completed := models.StatusCompleted
	_, err = s.service.Update(ctx, "CR-1", models.Patch{Status: &completed})
	s.Require().NoError(err)

	listed, err = s.service.List(ctx, "sc2")
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(models.StatusCompleted, listed[0].Status)
	s.Equal("X", listed[0].Title)

	s.Require().NoError(s.service.Delete(ctx, "CR-1"))

	listed, err = s.service.List(ctx, "SC2")
	s.Require().NoError(err)
	s.Empty(listed)
	s.NotNil(listed)

	reg, err = s.service.GetAll(ctx)
	s.Require().NoError(err)
	b, ok = reg.Bucket(system.SC2)
	s.Require().True(ok, "empty bucket is kept")
	s.Equal(0, b.Summary.TotalCRs)

	dash, err := s.service.Dashboard(ctx)
	s.Require().NoError(err)
	s.Zero(dash.TotalCRs)

	history, err := s.events.ListBySubject(ctx, "CR-1")
	s.Require().NoError(err)
	s.Require().Len(history, 3)
	s.Equal(audit.EventCRCreated, history[0].Action)
	s.Equal(audit.EventCRUpdated, history[1].Action)
	s.Equal(audit.EventCRDeleted, history[2].Action)
}

func (s *RegistryFlowSuite) TestCreateFilesUnderNormalizedKey() {
	ctx := context.Background()
	_, err := s.service.Create(ctx, validCR("CR-7", "  rsystem "))
	s.Require().NoError(err)

	var doc map[string]map[string]json.RawMessage
	s.Require().NoError(json.Unmarshal(s.rawDocument(), &doc))
	s.Contains(doc["systems"], "R-SYSTEM")

	listed, err := s.service.List(ctx, "R-System")
	s.Require().NoError(err)
	s.Len(listed, 1)
}

func (s *RegistryFlowSuite) TestListReadsAliasBuckets() {
	ctx := context.Background()
	legacy := registryWith()
	legacy.Add(system.Key("SC"), validCR("CR-OLD", "sc"))
	doc, err := json.Marshal(legacy)
	s.Require().NoError(err)
	_, err = s.backend.Put(ctx, doc, 0)
	s.Require().NoError(err)

	_, err = s.service.Create(ctx, validCR("CR-NEW", "SC2"))
	s.Require().NoError(err)

	listed, err := s.service.List(ctx, "sc")
	s.Require().NoError(err)
	ids := []string{}
	for _, cr := range listed {
		ids = append(ids, cr.CRID)
	}
	s.ElementsMatch([]string{"CR-OLD", "CR-NEW"}, ids)
}

func (s *RegistryFlowSuite) TestListNewIsAlwaysEmpty() {
	ctx := context.Background()
	_, err := s.service.Create(ctx, validCR("CR-1", "new"))
	s.Require().NoError(err)

	listed, err := s.service.List(ctx, "NEW")
	s.Require().NoError(err)
	s.Empty(listed)
}

func (s *RegistryFlowSuite) TestDuplicateAcrossSystemsRejected() {
	ctx := context.Background()
	_, err := s.service.Create(ctx, validCR("CR-1", "ppms"))
	s.Require().NoError(err)
	before := s.rawDocument()

	_, err = s.service.Create(ctx, validCR("CR-1", "rvhd"))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Equal(before, s.rawDocument())
}

func (s *RegistryFlowSuite) TestPaddedIDCollidesWithTrimmedID() {
	ctx := context.Background()
	created, err := s.service.Create(ctx, validCR(" CR-1 ", "ppms"))
	s.Require().NoError(err)
	s.Equal("CR-1", created.CRID)
	before := s.rawDocument()

	_, err = s.service.Create(ctx, validCR("CR-1", "rvhd"))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Equal(before, s.rawDocument())
}

func (s *RegistryFlowSuite) TestPaddedIDReachesStoredCR() {
	ctx := context.Background()
	_, err := s.service.Create(ctx, validCR("CR-1", "ppms"))
	s.Require().NoError(err)

	title := "renamed"
	updated, err := s.service.Update(ctx, " CR-1 ", models.Patch{Title: &title})
	s.Require().NoError(err)
	s.Equal("CR-1", updated.CRID)
	s.Equal("renamed", updated.Title)

	padded := "CR-1\t"
	_, err = s.service.Update(ctx, "CR-1", models.Patch{CRID: &padded})
	s.Require().NoError(err, "a padded copy of the same id is not a rename")

	s.Require().NoError(s.service.Delete(ctx, "CR-1 "))
	listed, err := s.service.List(ctx, "ppms")
	s.Require().NoError(err)
	s.Empty(listed)
}

func (s *RegistryFlowSuite) TestDeleteAbsentLeavesDocumentUnchanged() {
	ctx := context.Background()
	_, err := s.service.Create(ctx, validCR("CR-1", "ppms"))
	s.Require().NoError(err)
	before := s.rawDocument()
	_, versionBefore, _ := s.backend.Get(ctx)

	err = s.service.Delete(ctx, "CR-404")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	after, versionAfter, _ := s.backend.Get(ctx)
	s.Equal(before, after)
	s.Equal(versionBefore, versionAfter)
}

func (s *RegistryFlowSuite) TestApplicationEditMovesListAndCardTogether() {
	ctx := context.Background()
	_, err := s.service.Create(ctx, validCR("CR-1", "ppms"))
	s.Require().NoError(err)

	app := "RSCP"
	_, err = s.service.Update(ctx, "CR-1", models.Patch{Application: &app})
	s.Require().NoError(err)

	reg, err := s.service.GetAll(ctx)
	s.Require().NoError(err)
	key, _, ok := reg.Find("CR-1")
	s.Require().True(ok)
	s.Equal(system.PPMS, key, "the CR stays in the bucket it was filed in")

	dash, err := s.service.Dashboard(ctx)
	s.Require().NoError(err)
	for _, card := range dash.Cards {
		listed, err := s.service.List(ctx, string(card.System))
		s.Require().NoError(err)
		s.Len(listed, card.Count, "list and card disagree for %s", card.System)
	}

	listed, err := s.service.List(ctx, "rscp")
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal("CR-1", listed[0].CRID)

	listed, err = s.service.List(ctx, "PPMS")
	s.Require().NoError(err)
	s.Empty(listed)
}

func (s *RegistryFlowSuite) TestUpdateRejectsInvalidMerge() {
	ctx := context.Background()
	cr := validCR("CR-1", "ppms")
	cr.StartDate = models.NewDate(2025, time.May, 1)
	_, err := s.service.Create(ctx, cr)
	s.Require().NoError(err)

	end := models.NewDate(2025, time.April, 1)
	_, err = s.service.Update(ctx, "CR-1", models.Patch{EndDate: &end})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.Update(ctx, "CR-404", models.Patch{EndDate: &end})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *RegistryFlowSuite) TestFirstLoadSeedsBootstrapDocument() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := New(store.New(store.NewMemory(), store.WithLogger(logger)), WithLogger(logger))
	s.Require().NoError(err)

	dash, err := svc.Dashboard(context.Background())
	s.Require().NoError(err)
	s.Positive(dash.TotalCRs)
}

// Two services sharing one backend stand in for two server processes. Each
// create is retried on conflict, so both land.
func (s *RegistryFlowSuite) TestConcurrentWritersConverge() {
	ctx := context.Background()
	first, second := s.service, s.newService()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, svc := range []*Service{first, second} {
		wg.Add(1)
		go func(i int, svc *Service) {
			defer wg.Done()
			id := []string{"CR-A", "CR-B"}[i]
			_, errs[i] = RetryOnConflict(ctx, 10, func() (models.ChangeRequest, error) {
				return svc.Create(ctx, validCR(id, "ppms"))
			})
		}(i, svc)
	}
	wg.Wait()
	s.Require().NoError(errs[0])
	s.Require().NoError(errs[1])

	dash, err := first.Dashboard(ctx)
	s.Require().NoError(err)
	s.Equal(2, dash.TotalCRs)

	reg, err := second.GetAll(ctx)
	s.Require().NoError(err)
	s.NoError(reg.CheckInvariants())
}

func TestManyConcurrentCreatesThroughOneService(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := New(store.New(store.NewMemory(), store.WithSeed(emptyDocument), store.WithLogger(logger)), WithLogger(logger))
	require.NoError(t, err)

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Create(ctx, validCR("CR-"+string(rune('a'+i)), "rvhd"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	listed, err := svc.List(ctx, "RVHD")
	require.NoError(t, err)
	require.Len(t, listed, 20)
}
