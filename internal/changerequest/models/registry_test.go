package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"pgregory.net/rapid"

	"crboard/internal/changerequest/system"
)

type RegistrySuite struct {
	suite.Suite
	reg *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.reg = NewRegistry()
}

func newCR(id, app string) ChangeRequest {
	return ChangeRequest{
		CRID:        id,
		Title:       "title " + id,
		Application: app,
		Owner:       "alice",
		Priority:    PriorityMedium,
		Status:      StatusNotStarted,
	}
}

func (s *RegistrySuite) TestAddCreatesBucketLazily() {
	_, ok := s.reg.Bucket(system.SC2)
	s.False(ok)

	s.reg.Add(system.SC2, newCR("CR-1", "sc"))

	b, ok := s.reg.Bucket(system.SC2)
	s.Require().True(ok)
	s.Equal(1, b.Summary.TotalCRs)
	s.Len(b.CRs, 1)
	s.True(s.reg.Contains("CR-1"))
}

func (s *RegistrySuite) TestFindAcrossBuckets() {
	s.reg.Add(system.PPMS, newCR("CR-1", "ppms"))
	s.reg.Add(system.RSCP, newCR("CR-2", "rscp"))

	key, cr, ok := s.reg.Find("CR-2")
	s.Require().True(ok)
	s.Equal(system.RSCP, key)
	s.Equal("rscp", cr.Application)

	_, _, ok = s.reg.Find("CR-404")
	s.False(ok)
}

func (s *RegistrySuite) TestReplaceKeepsBucket() {
	s.reg.Add(system.PPMS, newCR("CR-1", "ppms"))

	moved := newCR("CR-1", "rnqc")
	s.True(s.reg.Replace("CR-1", moved))

	key, cr, ok := s.reg.Find("CR-1")
	s.Require().True(ok)
	s.Equal(system.PPMS, key, "application edits do not re-file the CR")
	s.Equal("rnqc", cr.Application)
	s.False(s.reg.Replace("CR-404", moved))
}

func (s *RegistrySuite) TestRemoveDecrementsAndKeepsBucket() {
	s.reg.Add(system.SC2, newCR("CR-1", "sc"))
	s.reg.Add(system.SC2, newCR("CR-2", "sc2"))

	key, removed, ok := s.reg.Remove("CR-1")
	s.Require().True(ok)
	s.Equal(system.SC2, key)
	s.Equal("CR-1", removed.CRID)

	b, _ := s.reg.Bucket(system.SC2)
	s.Equal(1, b.Summary.TotalCRs)
	s.Equal("CR-2", b.CRs[0].CRID)
	s.False(s.reg.Contains("CR-1"))

	_, _, ok = s.reg.Remove("CR-1")
	s.False(ok)

	s.reg.Remove("CR-2")
	b, ok = s.reg.Bucket(system.SC2)
	s.Require().True(ok)
	s.Equal(0, b.Summary.TotalCRs)
	s.NotNil(b.CRs)
}

func (s *RegistrySuite) TestDuplicateIDsResolveToFirstBucketInKeyOrder() {
	raw := `{"systems":{
		"RVHD":{"summary":{"totalCRs":1},"crs":[{"crId":"DUP","title":"b","application":"rvhd","owner":"o","priority":"Low","status":"Completed","startDate":"","endDate":""}]},
		"PPMS":{"summary":{"totalCRs":1},"crs":[{"crId":"DUP","title":"a","application":"ppms","owner":"o","priority":"Low","status":"Completed","startDate":"","endDate":""}]}
	}}`
	var reg Registry
	s.Require().NoError(json.Unmarshal([]byte(raw), &reg))

	key, cr, ok := reg.Find("DUP")
	s.Require().True(ok)
	s.Equal(system.PPMS, key)
	s.Equal("a", cr.Title)

	reg.Remove("DUP")
	key, cr, ok = reg.Find("DUP")
	s.Require().True(ok, "second copy is still reachable after the first is removed")
	s.Equal(system.RVHD, key)
	s.Equal("b", cr.Title)
}

func (s *RegistrySuite) TestJSONShape() {
	s.reg.Add(system.SC2, ChangeRequest{
		CRID: "CR-1", Title: "X", Application: "sc", Owner: "alice",
		Priority: PriorityMedium, Status: StatusNotStarted,
		StartDate: MustParseDate("2025-01-10"),
	})

	data, err := json.Marshal(s.reg)
	s.Require().NoError(err)
	s.JSONEq(`{"systems":{"SC2":{"summary":{"totalCRs":1},"crs":[
		{"crId":"CR-1","title":"X","application":"sc","owner":"alice","priority":"Medium",
		 "status":"Not Started","startDate":"2025-01-10","endDate":""}]}}}`, string(data))

	var decoded Registry
	s.Require().NoError(json.Unmarshal(data, &decoded))
	s.Equal(s.reg.All(), decoded.All())
	s.True(decoded.Contains("CR-1"))
}

func (s *RegistrySuite) TestUnmarshalFillsEmptyShapes() {
	var reg Registry
	s.Require().NoError(json.Unmarshal([]byte(`{"systems":{"PPMS":{"summary":{"totalCRs":0}}}}`), &reg))
	b, ok := reg.Bucket(system.PPMS)
	s.Require().True(ok)
	s.NotNil(b.CRs)

	var empty Registry
	s.Require().NoError(json.Unmarshal([]byte(`{}`), &empty))
	s.NotNil(empty.Systems)
}

func (s *RegistrySuite) TestCloneIsDeep() {
	s.reg.Add(system.PPMS, newCR("CR-1", "ppms"))
	clone := s.reg.Clone()
	clone.Add(system.PPMS, newCR("CR-2", "ppms"))
	clone.Systems[system.PPMS].CRs[0].Title = "changed"

	b, _ := s.reg.Bucket(system.PPMS)
	s.Len(b.CRs, 1)
	s.Equal("title CR-1", b.CRs[0].Title)
	s.False(s.reg.Contains("CR-2"))
}

func TestRegistry_BucketCountInvariant(t *testing.T) {
	apps := []string{"sc", "SC2", "ppms", " rsystem", "R-SYSTEM", "rvhd", "others"}
	rapid.Check(t, func(t *rapid.T) {
		reg := NewRegistry()
		var live []string
		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			if len(live) > 0 && rapid.Bool().Draw(t, "delete") {
				idx := rapid.IntRange(0, len(live)-1).Draw(t, "idx")
				_, _, ok := reg.Remove(live[idx])
				if !ok {
					t.Fatalf("live id %s not found", live[idx])
				}
				live = append(live[:idx], live[idx+1:]...)
				continue
			}
			app := rapid.SampledFrom(apps).Draw(t, "app")
			id := rapid.StringMatching(`CR-[0-9]{1,4}`).Draw(t, "id")
			if reg.Contains(id) {
				continue
			}
			reg.Add(system.Normalize(app), newCR(id, app))
			live = append(live, id)
		}
		if err := reg.CheckInvariants(); err != nil {
			t.Fatal(err)
		}
		if reg.Len() != len(live) {
			t.Fatalf("len=%d, live=%d", reg.Len(), len(live))
		}
	})
}

func TestCheckInvariantsReportsDrift(t *testing.T) {
	reg := NewRegistry()
	reg.Add(system.PPMS, newCR("CR-1", "ppms"))
	reg.Systems[system.PPMS].Summary.TotalCRs = 3
	err := reg.CheckInvariants()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PPMS")
}
