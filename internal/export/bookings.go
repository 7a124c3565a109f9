// Package export writes a provider's bookings as an Excel workbook.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"slotbook/internal/model"
)

// ContentType is the MIME type of the workbook written by WriteBookings.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Columns of the bookings sheet.
var Columns = []string{
	"Booking #", "Date", "Start", "End", "Timezone", "Meeting", "Duration (min)",
	"Location", "Client", "Email", "Phone", "Status", "Notes", "Created",
}

// sheet writes rows sequentially into one worksheet.
type sheet struct {
	file *excelize.File
	name string
	row  int
}

var sheetNameReplacer = strings.NewReplacer(":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", " ", "]", " ")

func newSheet(f *excelize.File, name string) (*sheet, error) {
	name = strings.TrimSpace(sheetNameReplacer.Replace(name))
	// Excel limits sheet names to 31 chars.
	if r := []rune(name); len(r) > 31 {
		name = strings.TrimSpace(string(r[:31]))
	}
	if name == "" {
		name = "Bookings"
	}
	if err := f.SetSheetName("Sheet1", name); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	return &sheet{file: f, name: name, row: 1}, nil
}

func (s *sheet) writeHeader(columns []string) error {
	if err := s.writeRow(toAny(columns)); err != nil {
		return err
	}
	style, err := s.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		start, _ := excelize.CoordinatesToCellName(1, s.row-1)
		end, _ := excelize.CoordinatesToCellName(len(columns), s.row-1)
		_ = s.file.SetCellStyle(s.name, start, end, style)
	}
	return s.file.SetPanes(s.name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func (s *sheet) writeRow(values []any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, s.row)
		if err != nil {
			return err
		}
		if err := s.file.SetCellValue(s.name, cell, v); err != nil {
			return err
		}
	}
	s.row++
	return nil
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// WriteBookings writes one header row and one row per booking to w.
func WriteBookings(w io.Writer, settings *model.ScheduleSettings, bookings []model.Booking) error {
	f := excelize.NewFile()
	defer f.Close()

	sh, err := newSheet(f, settings.DisplayName)
	if err != nil {
		return err
	}
	if err := sh.writeHeader(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, b := range bookings {
		row := []any{
			b.BookingNumber,
			b.ScheduledDate,
			b.StartTime,
			b.EndTime,
			b.Timezone,
			b.ServiceName,
			b.ServiceDurationMinutes,
			b.LocationType,
			b.ClientName,
			b.ClientEmail,
			b.ClientPhone,
			b.Status,
			b.Notes,
			created(b.CreatedAt),
		}
		if err := sh.writeRow(row); err != nil {
			return fmt.Errorf("write booking %s: %w", b.BookingNumber, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func created(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}
