package export

import (
	"context"
	"fmt"
	"io"
	"strings"

	"salonbook/internal/model"

	"github.com/xuri/excelize/v2"
)

const (
	bookingsSheet = "Bookings"
	summarySheet  = "Summary"

	// built-in "0.00"
	moneyFormat = 2
)

type column struct {
	title string
	width float64
	money bool
}

var bookingLayout = []column{
	{title: "Date", width: 12},
	{title: "Start", width: 10},
	{title: "Duration (min)", width: 15},
	{title: "Time slots", width: 28},
	{title: "Services", width: 40},
	{title: "Total ($)", width: 11, money: true},
	{title: "Client", width: 20},
	{title: "Phone", width: 16},
	{title: "Booked at", width: 17},
}

var summaryLayout = []column{
	{title: "Date", width: 12},
	{title: "Bookings", width: 10},
	{title: "Booked minutes", width: 16},
	{title: "Revenue ($)", width: 13, money: true},
}

func titles(layout []column) []string {
	out := make([]string, len(layout))
	for i, c := range layout {
		out[i] = c.title
	}
	return out
}

// Workbook is the booking report: one row per booking on the Bookings sheet
// and one row per date, plus a total, on the Summary sheet.
type Workbook struct {
	file  *excelize.File
	dir   ClientDirectory
	money int

	bookings []model.Booking
}

// NewWorkbook starts an empty report. dir may be nil, in which case the
// client column shows user IDs.
func NewWorkbook(dir ClientDirectory) (*Workbook, error) {
	f := excelize.NewFile()
	w := &Workbook{file: f, dir: dir}

	if err := f.SetSheetName("Sheet1", bookingsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet %s: %w", summarySheet, err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#F2DCDB"}},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}
	if w.money, err = f.NewStyle(&excelize.Style{NumFmt: moneyFormat}); err != nil {
		f.Close()
		return nil, fmt.Errorf("money style: %w", err)
	}

	for sheet, layout := range map[string][]column{bookingsSheet: bookingLayout, summarySheet: summaryLayout} {
		if err := w.layout(sheet, layout, header); err != nil {
			f.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Workbook) layout(sheet string, cols []column, header int) error {
	row := make([]interface{}, len(cols))
	for i, c := range cols {
		row[i] = c.title
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := w.file.SetColWidth(sheet, name, name, c.width); err != nil {
			return fmt.Errorf("size %s!%s: %w", sheet, name, err)
		}
		if c.money {
			if err := w.file.SetColStyle(sheet, name, w.money); err != nil {
				return fmt.Errorf("style %s!%s: %w", sheet, name, err)
			}
		}
	}
	if err := w.file.SetSheetRow(sheet, "A1", &row); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	last, _ := excelize.CoordinatesToCellName(len(cols), 1)
	if err := w.file.SetCellStyle(sheet, "A1", last, header); err != nil {
		return err
	}
	return w.file.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// Add appends bookings in the given order.
func (w *Workbook) Add(ctx context.Context, bookings ...model.Booking) error {
	for _, b := range bookings {
		var name, phone string
		if w.dir != nil {
			name, phone = w.dir.Client(ctx, b.UserID)
		}
		if name == "" {
			name = b.UserID
		}
		row := []interface{}{
			b.Date,
			b.StartTime,
			b.DurationMinutes,
			strings.Join(b.TimeSlots, ", "),
			strings.Join(b.Services, ", "),
			b.TotalPrice.Float(),
			name,
			phone,
			b.CreatedAt.Format("2006-01-02 15:04"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, len(w.bookings)+2)
		if err := w.file.SetSheetRow(bookingsSheet, cell, &row); err != nil {
			return fmt.Errorf("write booking %s: %w", b.ID, err)
		}
		w.bookings = append(w.bookings, b)
	}
	return nil
}

// finish writes the Summary sheet and the filter over the Bookings rows.
func (w *Workbook) finish() error {
	days := summarize(w.bookings)
	var total DaySummary
	for i, d := range days {
		row := []interface{}{d.Date, d.Count, d.Minutes, d.Revenue.Float()}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := w.file.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("write summary %s: %w", d.Date, err)
		}
		total.Count += d.Count
		total.Minutes += d.Minutes
		total.Revenue += d.Revenue
	}
	row := []interface{}{"Total", total.Count, total.Minutes, total.Revenue.Float()}
	cell, _ := excelize.CoordinatesToCellName(1, len(days)+2)
	if err := w.file.SetSheetRow(summarySheet, cell, &row); err != nil {
		return fmt.Errorf("write summary total: %w", err)
	}

	if len(w.bookings) == 0 {
		return nil
	}
	last, _ := excelize.CoordinatesToCellName(len(bookingLayout), len(w.bookings)+1)
	if err := w.file.AutoFilter(bookingsSheet, "A1:"+last, nil); err != nil {
		return fmt.Errorf("filter bookings: %w", err)
	}
	return nil
}

// WriteTo finishes the report and writes it as xlsx.
func (w *Workbook) WriteTo(out io.Writer) (int64, error) {
	if err := w.finish(); err != nil {
		return 0, err
	}
	return w.file.WriteTo(out)
}

func (w *Workbook) Close() error {
	return w.file.Close()
}
