// Package importer turns loosely shaped spreadsheet rows into change requests.
//
// Rows come from spreadsheet exports, so headers vary in spelling and case
// ("CR ID", "Cr Id", "cr_id") and values may be untyped: numbers for ids,
// Excel serial numbers or dd/mm/yyyy strings for dates. Mapping never calls
// the registry; callers feed the result to service.Import.
package importer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"crboard/internal/changerequest/models"
	"crboard/internal/changerequest/service"
	dErrors "crboard/pkg/domain-errors"
)

// Record is one source row keyed by its raw header.
type Record map[string]any

type field int

const (
	fieldCRID field = iota + 1
	fieldTitle
	fieldApplication
	fieldOwner
	fieldPriority
	fieldStatus
	fieldStartDate
	fieldEndDate
)

// headers maps folded header spellings to fields. Folding lowercases and
// drops everything but letters and digits.
var headers = map[string]field{
	"crid":        fieldCRID,
	"crno":        fieldCRID,
	"crnumber":    fieldCRID,
	"id":          fieldCRID,
	"title":       fieldTitle,
	"crtitle":     fieldTitle,
	"name":        fieldTitle,
	"application": fieldApplication,
	"app":         fieldApplication,
	"system":      fieldApplication,
	"owner":       fieldOwner,
	"assignee":    fieldOwner,
	"crowner":     fieldOwner,
	"priority":    fieldPriority,
	"status":      fieldStatus,
	"crstatus":    fieldStatus,
	"startdate":   fieldStartDate,
	"start":       fieldStartDate,
	"enddate":     fieldEndDate,
	"end":         fieldEndDate,
	"golivedate":  fieldEndDate,
}

var fieldNames = map[field]string{
	fieldStartDate: "startDate",
	fieldEndDate:   "endDate",
}

func fold(header string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(header) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Map converts one record. Unknown headers are ignored. Priority and status
// are matched case-insensitively against the known values and passed through
// verbatim otherwise, so Create's validation reports them.
func Map(rec Record) (models.ChangeRequest, error) {
	var (
		cr       models.ChangeRequest
		firstErr error
	)
	for header, value := range rec {
		f, ok := headers[fold(header)]
		if !ok {
			continue
		}
		switch f {
		case fieldCRID:
			cr.CRID = text(value)
		case fieldTitle:
			cr.Title = text(value)
		case fieldApplication:
			cr.Application = text(value)
		case fieldOwner:
			cr.Owner = text(value)
		case fieldPriority:
			cr.Priority = matchPriority(text(value))
		case fieldStatus:
			cr.Status = matchStatus(text(value))
		case fieldStartDate, fieldEndDate:
			d, err := date(value)
			if err != nil {
				if firstErr == nil {
					firstErr = dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s: %v", fieldNames[f], err))
				}
				continue
			}
			if f == fieldStartDate {
				cr.StartDate = d
			} else {
				cr.EndDate = d
			}
		}
	}
	// the rest of the row is still mapped so the failure can name its crId
	return cr, firstErr
}

// MapAll maps every record into an import row, keeping mapping failures in
// place so row numbers match the source.
func MapAll(records []Record) []service.ImportRow {
	rows := make([]service.ImportRow, len(records))
	for i, rec := range records {
		cr, err := Map(rec)
		rows[i] = service.ImportRow{CR: cr, Err: err}
	}
	return rows
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func matchPriority(v string) models.Priority {
	for _, p := range []models.Priority{models.PriorityHigh, models.PriorityMedium, models.PriorityLow} {
		if strings.EqualFold(v, string(p)) {
			return p
		}
	}
	return models.Priority(v)
}

func matchStatus(v string) models.Status {
	collapsed := strings.Join(strings.Fields(v), " ")
	for _, st := range models.StatusOrder() {
		if strings.EqualFold(collapsed, string(st)) {
			return st
		}
	}
	return models.Status(v)
}

// excelEpoch is day 0 of the 1900 date system as spreadsheets count it.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var dateLayouts = []string{
	models.DateLayout,
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02.01.2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"2-Jan-06",
	"Jan 2, 2006",
	"2006/01/02",
	time.RFC3339,
}

func date(v any) (models.Date, error) {
	switch t := v.(type) {
	case nil:
		return models.Date{}, nil
	case float64:
		return serial(t)
	case int:
		return serial(float64(t))
	case int64:
		return serial(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return models.Date{}, fmt.Errorf("invalid date %q", t.String())
		}
		return serial(f)
	case time.Time:
		return models.NewDate(t.Year(), t.Month(), t.Day()), nil
	}

	s := text(v)
	if s == "" {
		return models.Date{}, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return serial(f)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.NewDate(t.Year(), t.Month(), t.Day()), nil
		}
	}
	return models.Date{}, fmt.Errorf("invalid date %q", s)
}

func serial(days float64) (models.Date, error) {
	if days < 1 || days > 2958465 || math.IsNaN(days) {
		return models.Date{}, fmt.Errorf("invalid date serial %v", days)
	}
	t := excelEpoch.AddDate(0, 0, int(math.Floor(days)))
	return models.NewDate(t.Year(), t.Month(), t.Day()), nil
}
