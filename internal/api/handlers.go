package api

import (
	"net/http"
	"strings"
	"time"

	"salonbook/internal/booking"
	"salonbook/internal/calendar"
	"salonbook/internal/catalog"
	"salonbook/internal/model"
	"salonbook/internal/selection"
	"salonbook/internal/slots"
	"salonbook/shared/export"

	"github.com/gin-gonic/gin"
)

// ListResponse wraps list payloads.
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

func list[T any](c *gin.Context, data []T) {
	if data == nil {
		data = []T{}
	}
	c.JSON(http.StatusOK, ListResponse[T]{Data: data, Total: len(data)})
}

type serviceView struct {
	Name          string        `json:"name"`
	Category      string        `json:"category"`
	Duration      int           `json:"duration"`
	DurationLabel string        `json:"duration_label"`
	Price         catalog.Price `json:"price"`
	IsRange       bool          `json:"is_range"`
}

func (s *Server) listServices(c *gin.Context) {
	items := s.booking.Catalog().Items()
	out := make([]serviceView, 0, len(items))
	for _, it := range items {
		out = append(out, serviceView{
			Name:          it.Name,
			Category:      it.Category,
			Duration:      it.DurationMinutes,
			DurationLabel: slots.FormatDuration(it.DurationMinutes),
			Price:         it.Price,
			IsRange:       it.Price.IsRange(),
		})
	}
	list(c, out)
}

type calendarResponse struct {
	From          string   `json:"from"`
	To            string   `json:"to"`
	DisabledDates []string `json:"disabled_dates"`
}

func (s *Server) getCalendar(c *gin.Context) {
	today := s.booking.Today()
	from, to := s.booking.Policy().Window(today)
	disabled := s.booking.Policy().DisabledDates(today)
	if disabled == nil {
		disabled = []string{}
	}
	c.JSON(http.StatusOK, calendarResponse{
		From:          calendar.FormatDate(from),
		To:            calendar.FormatDate(to),
		DisabledDates: disabled,
	})
}

type availabilityResponse struct {
	Totals selection.Totals `json:"totals"`
	booking.Availability
}

func (s *Server) getAvailability(c *gin.Context) {
	date := c.Query("date")
	d, err := calendar.ParseDate(date)
	if err != nil {
		badRequest(c, "invalid_date", err.Error())
		return
	}
	if !s.booking.Policy().IsSelectable(d, s.booking.Today()) {
		writeFlowError(c, booking.ErrDateNotSelectable)
		return
	}

	sel := selection.New(s.booking.Catalog())
	totals, err := sel.Set(c.QueryArray("services"))
	if err != nil {
		writeFlowError(c, err)
		return
	}

	av, err := s.booking.Availability(c.Request.Context(), date, totals.DurationMinutes, nil)
	if err != nil {
		s.logger.Error().Err(err).Str("date", date).Msg("availability failed")
		writeFlowError(c, err)
		return
	}
	c.JSON(http.StatusOK, availabilityResponse{Totals: totals, Availability: av})
}

type createBookingRequest struct {
	Date      string   `json:"date" binding:"required"`
	StartTime string   `json:"start_time" binding:"required"`
	Services  []string `json:"services" binding:"required"`
}

func (s *Server) createBooking(c *gin.Context) {
	id := identityFrom(c)

	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", "date, start_time and services are required.")
		return
	}

	created, err := s.booking.Book(c.Request.Context(), booking.BookRequest{
		UserID:    id.UserID,
		Date:      req.Date,
		StartTime: req.StartTime,
		Services:  req.Services,
	})
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			s.logger.Error().Err(err).Str("user_id", id.UserID).Msg("booking failed")
		}
		writeFlowError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

type bookingView struct {
	model.Booking
	ClientName  string `json:"client_name,omitempty"`
	ClientPhone string `json:"client_phone,omitempty"`
	IsToday     bool   `json:"is_today"`
}

func (s *Server) listBookings(c *gin.Context) {
	id := identityFrom(c)
	ctx := c.Request.Context()

	bookings, err := s.booking.ListBookings(ctx, id.UserID, id.Privileged)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", id.UserID).Msg("list bookings failed")
		writeFlowError(c, err)
		return
	}

	today := calendar.FormatDate(s.booking.Today())
	out := make([]bookingView, 0, len(bookings))
	for _, b := range bookings {
		v := bookingView{Booking: b, IsToday: b.Date == today}
		if id.Privileged {
			v.ClientName, v.ClientPhone = s.access.Client(ctx, b.UserID)
		}
		out = append(out, v)
	}
	list(c, out)
}

func (s *Server) exportBookings(c *gin.Context) {
	id := identityFrom(c)
	if err := s.access.RequirePrivileged(id); err != nil {
		writeFlowError(c, err)
		return
	}
	ctx := c.Request.Context()

	month := s.booking.Today()
	if m := c.Query("month"); m != "" {
		parsed, err := time.ParseInLocation("2006-01", m, time.Local)
		if err != nil {
			badRequest(c, "invalid_month", "month must be YYYY-MM")
			return
		}
		month = parsed
	}

	all, err := s.booking.ListBookings(ctx, id.UserID, true)
	if err != nil {
		s.logger.Error().Err(err).Msg("export fetch failed")
		writeFlowError(c, err)
		return
	}
	prefix := month.Format("2006-01") + "-"
	var inMonth []model.Booking
	for _, b := range all {
		if strings.HasPrefix(b.Date, prefix) {
			inMonth = append(inMonth, b)
		}
	}

	data, err := export.BookingsWorkbook(ctx, inMonth, s.access)
	if err != nil {
		s.logger.Error().Err(err).Msg("export workbook failed")
		internal(c, "export_failed", "Could not build the export.")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.GenerateFilename(month)+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
