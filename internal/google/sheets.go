// Package google mirrors bookings into a Google spreadsheet for the salon owner.
package google

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"salonbook/internal/events"
	"salonbook/internal/model"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// ClientDirectory resolves a booking's user to display name and phone.
type ClientDirectory interface {
	Client(ctx context.Context, userID string) (name, phone string)
}

// SheetsService appends bookings to a sheet and renders a slot-by-day schedule.
type SheetsService struct {
	srv           *sheets.Service
	spreadsheetID string
	sheetName     string
	scheduleSheet string
	clients       ClientDirectory
	logger        zerolog.Logger

	rowCache map[string]int // booking ID -> sheet row
	mu       sync.RWMutex
}

// NewSheetsService authenticates with a service-account key file.
func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID, sheetName string, clients ClientDirectory, logger zerolog.Logger) (*SheetsService, error) {
	creds, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	conf, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}
	return NewSheetsServiceWith(srv, spreadsheetID, sheetName, clients, logger), nil
}

// NewSheetsServiceWith wraps an existing API client.
func NewSheetsServiceWith(srv *sheets.Service, spreadsheetID, sheetName string, clients ClientDirectory, logger zerolog.Logger) *SheetsService {
	if sheetName == "" {
		sheetName = "Bookings"
	}
	return &SheetsService{
		srv:           srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		scheduleSheet: "Schedule",
		clients:       clients,
		logger:        logger.With().Str("component", "sheets").Logger(),
		rowCache:      make(map[string]int),
	}
}

// Subscribe appends every created booking.
func (s *SheetsService) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.BookingCreated, func(ev events.Event) error {
		var b model.Booking
		if err := ev.Decode(&b); err != nil {
			return fmt.Errorf("decode booking event: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return s.AppendBooking(ctx, &b)
	})
}

// rowInput keeps client-supplied text literal: a name starting with "=" stays
// text and a phone keeps its leading "+".
const rowInput = "RAW"

var headerRow = []interface{}{
	"ID", "User", "Client", "Phone", "Date", "Start", "Duration (min)", "Services", "Total ($)", "Booked at",
}

// AppendBooking adds one row. A booking already written is skipped.
func (s *SheetsService) AppendBooking(ctx context.Context, b *model.Booking) error {
	if _, ok := s.getCachedRow(b.ID); ok {
		return nil
	}

	row := s.rowFor(ctx, b)
	vr := &sheets.ValueRange{Values: [][]interface{}{row}}
	resp, err := s.srv.Spreadsheets.Values.Append(s.spreadsheetID, s.sheetName+"!A:J", vr).
		ValueInputOption(rowInput).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append booking %s: %w", b.ID, err)
	}

	if resp.Updates != nil {
		if n, ok := rowFromRange(resp.Updates.UpdatedRange); ok {
			s.setCachedRow(b.ID, n)
		}
	}
	s.logger.Debug().Str("booking_id", b.ID).Msg("booking appended to sheet")
	return nil
}

// ReplaceBookings rewrites the bookings sheet with upcoming bookings from today on.
func (s *SheetsService) ReplaceBookings(ctx context.Context, bookings []model.Booking, today string) error {
	upcoming := s.filterActiveBookings(bookings, today)
	sort.SliceStable(upcoming, func(i, j int) bool {
		if upcoming[i].Date != upcoming[j].Date {
			return upcoming[i].Date < upcoming[j].Date
		}
		return upcoming[i].CreatedAt.Before(upcoming[j].CreatedAt)
	})

	values := make([][]interface{}, 0, len(upcoming)+1)
	values = append(values, headerRow)
	for i := range upcoming {
		values = append(values, s.rowFor(ctx, &upcoming[i]))
	}

	if _, err := s.srv.Spreadsheets.Values.Clear(s.spreadsheetID, s.sheetName+"!A:J", &sheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet: %w", err)
	}
	if _, err := s.srv.Spreadsheets.Values.Update(s.spreadsheetID, s.sheetName+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption(rowInput).
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("write sheet: %w", err)
	}

	s.ClearCache()
	for i := range upcoming {
		s.setCachedRow(upcoming[i].ID, i+2)
	}
	s.logger.Info().Int("rows", len(upcoming)).Msg("bookings sheet replaced")
	return nil
}

// UpdateSchedule renders slots as rows and days as columns.
func (s *SheetsService) UpdateSchedule(ctx context.Context, bookings []model.Booking, slotLabels []string, start, end time.Time) error {
	headers, cols := s.prepareDateHeaders(start, end)
	byDaySlot := make(map[string]*model.Booking)
	for i := range bookings {
		for _, label := range bookings[i].TimeSlots {
			byDaySlot[bookings[i].Date+"|"+label] = &bookings[i]
		}
	}

	rows := make([]*sheets.RowData, 0, len(slotLabels)+1)
	rows = append(rows, &sheets.RowData{Values: stringCells(headers)})
	for _, label := range slotLabels {
		cells := []*sheets.CellData{stringCell(label, nil)}
		for c := 0; c < cols; c++ {
			day := start.AddDate(0, 0, c).Format(model.DateLayout)
			var name string
			if b := byDaySlot[day+"|"+label]; b != nil {
				name, _ = s.clientOf(ctx, b.UserID)
			}
			val, color := s.formatScheduleCell(byDaySlot[day+"|"+label], name)
			cells = append(cells, stringCell(val, color))
		}
		rows = append(rows, &sheets.RowData{Values: cells})
	}

	sheetID, err := s.sheetID(ctx, s.scheduleSheet)
	if err != nil {
		return err
	}
	req := &sheets.BatchUpdateSpreadsheetRequest{Requests: []*sheets.Request{{
		UpdateCells: &sheets.UpdateCellsRequest{
			Start:  &sheets.GridCoordinate{SheetId: sheetID},
			Rows:   rows,
			Fields: "userEnteredValue,userEnteredFormat.backgroundColor",
		},
	}}}
	if _, err := s.srv.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	return nil
}

func (s *SheetsService) sheetID(ctx context.Context, title string) (int64, error) {
	ss, err := s.srv.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return sh.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", title)
}

func (s *SheetsService) rowFor(ctx context.Context, b *model.Booking) []interface{} {
	name, phone := s.clientOf(ctx, b.UserID)
	return bookingRowValues(b, name, phone)
}

func (s *SheetsService) clientOf(ctx context.Context, userID string) (string, string) {
	if s.clients == nil {
		return "", ""
	}
	return s.clients.Client(ctx, userID)
}

func bookingRowValues(b *model.Booking, name, phone string) []interface{} {
	return []interface{}{
		b.ID,
		b.UserID,
		name,
		phone,
		b.Date,
		b.StartTime,
		b.DurationMinutes,
		strings.Join(b.Services, ", "),
		b.TotalPrice.Float(),
		b.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
	}
}

// filterActiveBookings keeps bookings dated today or later.
func (s *SheetsService) filterActiveBookings(bookings []model.Booking, today string) []model.Booking {
	var active []model.Booking
	for _, b := range bookings {
		if b.Date >= today {
			active = append(active, b)
		}
	}
	return active
}

func (s *SheetsService) prepareDateHeaders(start, end time.Time) ([]string, int) {
	headers := []string{"Time"}
	cols := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		headers = append(headers, d.Format("01/02"))
		cols++
	}
	return headers, cols
}

var (
	freeColor   = &sheets.Color{Red: 0.85, Green: 0.95, Blue: 0.85}
	bookedColor = &sheets.Color{Red: 0.98, Green: 0.80, Blue: 0.80}
)

func (s *SheetsService) formatScheduleCell(b *model.Booking, clientName string) (string, *sheets.Color) {
	if b == nil {
		return "Free", freeColor
	}
	who := clientName
	if who == "" {
		who = b.UserID
	}
	return fmt.Sprintf("%s (%s)", who, strings.Join(b.Services, ", ")), bookedColor
}

func stringCell(v string, bg *sheets.Color) *sheets.CellData {
	c := &sheets.CellData{UserEnteredValue: &sheets.ExtendedValue{StringValue: &v}}
	if bg != nil {
		c.UserEnteredFormat = &sheets.CellFormat{BackgroundColor: bg}
	}
	return c
}

func stringCells(vals []string) []*sheets.CellData {
	out := make([]*sheets.CellData, len(vals))
	for i, v := range vals {
		out[i] = stringCell(v, nil)
	}
	return out
}

var rangeRowRe = regexp.MustCompile(`![A-Z]+(\d+)`)

// rowFromRange extracts the first row number from "Sheet!A5:J5".
func rowFromRange(r string) (int, bool) {
	m := rangeRowRe.FindStringSubmatch(r)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func (s *SheetsService) getCachedRow(id string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsService) setCachedRow(id string, row int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowCache[id] = row
}

// ClearCache forgets which bookings were written.
func (s *SheetsService) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowCache = make(map[string]int)
}
