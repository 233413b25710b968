package service

import (
	"context"
	"errors"

	"crboard/internal/changerequest/models"
	dErrors "crboard/pkg/domain-errors"
)

// RowError describes one import row that was not created.
type RowError struct {
	Row     int          `json:"row"`
	CRID    string       `json:"crId,omitempty"`
	Code    dErrors.Code `json:"error"`
	Message string       `json:"error_description"`
}

// ImportRow is one candidate record of a batch. Err is set when the source
// row could not be turned into a ChangeRequest; such rows are reported
// without calling Create.
type ImportRow struct {
	CR  models.ChangeRequest
	Err error
}

// ImportResult summarizes a batch import.
type ImportResult struct {
	Created int        `json:"created"`
	Failed  []RowError `json:"failed"`
}

// Import feeds each row into Create in order. A failing row is reported
// and does not stop the batch. Rows are numbered from 1. A storage failure
// aborts the remaining rows, since every later Create would fail the same way.
func (s *Service) Import(ctx context.Context, rows []ImportRow) ImportResult {
	res := ImportResult{Failed: []RowError{}}
	for i, row := range rows {
		err := row.Err
		if err == nil {
			_, err = s.Create(ctx, row.CR)
		}
		if err != nil {
			code := dErrors.CodeOf(err)
			res.Failed = append(res.Failed, RowError{Row: i + 1, CRID: row.CR.CRID, Code: code, Message: message(err)})
			if code == dErrors.CodeUnavailable {
				for j := i + 1; j < len(rows); j++ {
					res.Failed = append(res.Failed, RowError{Row: j + 1, CRID: rows[j].CR.CRID, Code: code, Message: "not attempted: store unavailable"})
				}
				break
			}
			continue
		}
		res.Created++
	}
	s.logger.InfoContext(ctx, "change request import finished", "rows", len(rows), "created", res.Created, "failed", len(res.Failed))
	return res
}

// Rows wraps already-typed records for Import.
func Rows(records ...models.ChangeRequest) []ImportRow {
	rows := make([]ImportRow, len(records))
	for i, cr := range records {
		rows[i] = ImportRow{CR: cr}
	}
	return rows
}

func message(err error) string {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
