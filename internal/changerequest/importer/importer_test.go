package importer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"crboard/internal/changerequest/models"
	dErrors "crboard/pkg/domain-errors"
)

type MapSuite struct {
	suite.Suite
}

func TestMapSuite(t *testing.T) {
	suite.Run(t, new(MapSuite))
}

func (s *MapSuite) TestLooseHeaders() {
	for _, header := range []string{"CR ID", "Cr Id", "cr_id", "crId", "CR-No"} {
		s.Run(header, func() {
			cr, err := Map(Record{header: "CR-1001"})
			s.Require().NoError(err)
			s.Equal("CR-1001", cr.CRID)
		})
	}
}

func (s *MapSuite) TestFullRow() {
	cr, err := Map(Record{
		"CR ID":       json.Number("1001"),
		"Title":       "  Upgrade reports ",
		"Application": "sc",
		"Owner":       "alice",
		"Priority":    "high",
		"Status":      "in  progress",
		"Start Date":  float64(45658),
		"End Date":    "31/03/2025",
		"Comments":    "ignored",
	})
	s.Require().NoError(err)
	s.Equal(models.ChangeRequest{
		CRID:        "1001",
		Title:       "Upgrade reports",
		Application: "sc",
		Owner:       "alice",
		Priority:    models.PriorityHigh,
		Status:      models.StatusInProgress,
		StartDate:   models.MustParseDate("2025-01-01"),
		EndDate:     models.MustParseDate("2025-03-31"),
	}, cr)
}

func (s *MapSuite) TestUnknownEnumsPassThrough() {
	cr, err := Map(Record{"priority": "Urgent", "status": "Done"})
	s.Require().NoError(err)
	s.Equal(models.Priority("Urgent"), cr.Priority)
	s.Equal(models.Status("Done"), cr.Status)
}

func (s *MapSuite) TestDates() {
	cases := map[string]struct {
		in   any
		want string
	}{
		"iso":                {"2025-06-30", "2025-06-30"},
		"day first slash":    {"30/06/2025", "2025-06-30"},
		"single digits":      {"1/2/2025", "2025-02-01"},
		"day first dash":     {"30-06-2025", "2025-06-30"},
		"month name":         {"30-Jun-2025", "2025-06-30"},
		"serial number":      {float64(45747.75), "2025-03-31"},
		"serial as string":   {"45658", "2025-01-01"},
		"serial json number": {json.Number("45658"), "2025-01-01"},
		"timestamp":          {"2025-06-30T18:00:00Z", "2025-06-30"},
		"blank":              {"  ", ""},
		"null":               {nil, ""},
	}
	for name, tc := range cases {
		s.Run(name, func() {
			cr, err := Map(Record{"Start Date": tc.in})
			s.Require().NoError(err)
			s.Equal(tc.want, cr.StartDate.String())
		})
	}
}

func (s *MapSuite) TestBadDateIsValidationError() {
	_, err := Map(Record{"End Date": "next tuesday"})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Contains(err.Error(), "endDate")

	_, err = Map(Record{"Start Date": float64(-4)})
	s.Error(err)
}

func TestMapAllKeepsRowPositions(t *testing.T) {
	rows := MapAll([]Record{
		{"CR ID": "CR-1"},
		{"CR ID": "CR-2", "Start Date": "garbage"},
		{"CR ID": "CR-3"},
	})
	require.Len(t, rows, 3)
	assert.NoError(t, rows[0].Err)
	assert.Error(t, rows[1].Err)
	assert.Equal(t, "CR-2", rows[1].CR.CRID)
	assert.Equal(t, "CR-3", rows[2].CR.CRID)
}
