package importer

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadJSON(t *testing.T) {
	records, err := ReadJSON(strings.NewReader(`[
		{"CR ID": 1001, "Title": "A", "Start Date": 45658},
		{"cr_id": "CR-2"}
	]`))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, json.Number("1001"), records[0]["CR ID"])

	cr, err := Map(records[0])
	require.NoError(t, err)
	assert.Equal(t, "1001", cr.CRID)
	assert.Equal(t, "2025-01-01", cr.StartDate.String())

	_, err = ReadJSON(strings.NewReader(`{"not":"an array"}`))
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	src := "\xef\xbb\xbfCR ID,Title,Application,Start Date\n" +
		"CR-1,\"Upgrade, phase 1\",ppms,01/02/2025\n" +
		"CR-2,Short row\n"

	records, err := ReadCSV(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "CR-1", records[0]["CR ID"])
	assert.Equal(t, "Upgrade, phase 1", records[0]["Title"])
	assert.NotContains(t, records[1], "Application")

	cr, err := Map(records[0])
	require.NoError(t, err)
	assert.Equal(t, "2025-02-01", cr.StartDate.String())
}

func TestReadCSV_Empty(t *testing.T) {
	records, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFormatOf(t *testing.T) {
	f, err := FormatOf("export/OVERALL.CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = FormatOf("rows.json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = FormatOf("book.xlsx")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
