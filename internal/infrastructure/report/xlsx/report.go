package xlsx

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
)

const (
	invitationsSheet = "Invitations"
	summarySheet     = "Summary"
)

var invitationHeaders = []string{
	"Reviewer", "Affiliation", "Status", "Badge", "Invited", "Responded", "Due", "Expires", "Round", "Reminders", "Notes",
}

// Writer renders a manuscript's invitations as an XLSX workbook with an
// invitation sheet and a summary sheet.
type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

func (Writer) WriteInvitationReport(w io.Writer, ms domain.Manuscript, rows []domain.InvitationView, metrics domain.InvitationMetrics) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", invitationsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeInvitations(f, rows); err != nil {
		return err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	if err := writeSummary(f, ms, metrics); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeInvitations(f *excelize.File, rows []domain.InvitationView) error {
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetSheetRow(invitationsSheet, "A1", &invitationHeaders); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(invitationHeaders), 1)
	if err := f.SetCellStyle(invitationsSheet, "A1", last, header); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{
			row.ReviewerName,
			row.ReviewerAffiliation,
			row.Display.PrimaryLabel,
			badgeLabel(row.Display),
			formatDate(&row.InvitedDate),
			formatDate(row.ResponseDate),
			formatDate(row.DueDate),
			formatDate(row.InvitationExpirationDate),
			row.InvitationRound,
			row.ReminderCount,
			row.Notes,
		}
		if err := f.SetSheetRow(invitationsSheet, cell, &values); err != nil {
			return fmt.Errorf("write invitation row %d: %w", i+1, err)
		}
	}
	if err := f.SetColWidth(invitationsSheet, "A", "B", 28); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	return f.AutoFilter(invitationsSheet, "A1:"+last, nil)
}

func writeSummary(f *excelize.File, ms domain.Manuscript, m domain.InvitationMetrics) error {
	ref := ms.CustomID
	if ref == "" {
		ref = ms.ID
	}
	lines := [][]interface{}{
		{"Manuscript", ms.Title},
		{"Reference", ref},
		{"Journal", ms.Journal},
		{},
		{"Invited", m.Invited},
		{"Agreed", m.Agreed},
		{"Declined", m.Declined},
		{"Submitted", m.Submitted},
		{"Pending", m.Pending},
		{"Expired", m.Expired},
		{"Overdue", m.Overdue},
	}
	for i, line := range lines {
		if len(line) == 0 {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &line); err != nil {
			return fmt.Errorf("write summary row %d: %w", i+1, err)
		}
	}
	return nil
}

func badgeLabel(d domain.StatusDisplay) string {
	if d.Badge == nil {
		return ""
	}
	return d.Badge.Label
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
