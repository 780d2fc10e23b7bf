package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"salonbook/internal/calendar"
	"salonbook/internal/catalog"
	"salonbook/internal/slots"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cbNoop       = "noop"
	cbService    = "svc:"
	cbServiceRst = "svc:reset"
	cbServiceOK  = "svc:done"
	cbMonth      = "cal:"
	cbDate       = "date:"
	cbSlot       = "slot:"
	cbBack       = "back:"
	cbConfirm    = "confirm"
	cbCancel     = "cancel"
	cbPage       = "page:"
)

var mainMenu = tgbotapi.NewReplyKeyboard(
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton("💅 Book"),
		tgbotapi.NewKeyboardButton("📌 My bookings"),
	),
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton("📋 Services"),
	),
)

var adminMenu = tgbotapi.NewReplyKeyboard(
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton("💅 Book"),
		tgbotapi.NewKeyboardButton("📌 My bookings"),
	),
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton("📋 Services"),
		tgbotapi.NewKeyboardButton("📅 All bookings"),
	),
)

func contactKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonContact("📱 Share my phone number")),
	)
	kb.OneTimeKeyboard = true
	return kb
}

// servicesKeyboard lists the menu with a check mark on picked services.
// Callback data carries the catalog index to stay under Telegram's 64 bytes.
func servicesKeyboard(c *catalog.Catalog, selected []string) tgbotapi.InlineKeyboardMarkup {
	picked := make(map[string]bool, len(selected))
	for _, name := range selected {
		picked[name] = true
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, it := range c.Items() {
		mark := "▫️"
		if picked[it.Name] {
			mark = "✅"
		}
		text := fmt.Sprintf("%s %s · %s · %s", mark, it.Name, slots.FormatDuration(it.DurationMinutes), priceLabel(it.Price))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(text, cbService+strconv.Itoa(i)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔄 Reset", cbServiceRst),
		tgbotapi.NewInlineKeyboardButtonData("📅 Choose date", cbServiceOK),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// calendarKeyboard builds a Monday-first month grid. Closed days and days
// outside the booking window are shown as "·" and do nothing.
func calendarKeyboard(month time.Time, policy calendar.Policy, today time.Time) tgbotapi.InlineKeyboardMarkup {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.Local)
	offset := (int(first.Weekday()) + 6) % 7

	rows := [][]tgbotapi.InlineKeyboardButton{
		{tgbotapi.NewInlineKeyboardButtonData(first.Format("January 2006"), cbNoop)},
	}
	header := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for _, d := range []string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"} {
		header = append(header, tgbotapi.NewInlineKeyboardButtonData(d, cbNoop))
	}
	rows = append(rows, header)

	row := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for i := 0; i < offset; i++ {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(" ", cbNoop))
	}
	for _, day := range calendar.MonthDays(first.Year(), first.Month()) {
		if policy.IsSelectable(day, today) {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(
				strconv.Itoa(day.Day()), cbDate+calendar.FormatDate(day)))
		} else {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData("·", cbNoop))
		}
		if len(row) == 7 {
			rows = append(rows, row)
			row = make([]tgbotapi.InlineKeyboardButton, 0, 7)
		}
	}
	if len(row) > 0 {
		for len(row) < 7 {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(" ", cbNoop))
		}
		rows = append(rows, row)
	}

	start, end := policy.Window(today)
	var nav []tgbotapi.InlineKeyboardButton
	if first.After(monthStart(start)) {
		prev := first.AddDate(0, -1, 0)
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️", cbMonth+prev.Format("2006-01")))
	}
	if next := first.AddDate(0, 1, 0); !next.After(end) {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("➡️", cbMonth+next.Format("2006-01")))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back to services", cbBack+"services"),
	))
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// priceLabel renders "$30", "+$5" or "+$5~15".
func priceLabel(p catalog.Price) string {
	if p.Additive {
		return "+$" + strings.TrimPrefix(p.String(), "+")
	}
	return "$" + p.String()
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// slotsKeyboard shows every slot of the day, three per row. Booked slots are
// marked but still tappable so the customer learns why they are unavailable.
func slotsKeyboard(views []slots.SlotView) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var current []tgbotapi.InlineKeyboardButton
	for _, v := range views {
		text := v.Label
		switch {
		case v.Status == slots.StatusBooked:
			text = "⛔ " + v.Label
		case v.Status == slots.StatusSelected:
			text = "✅ " + v.Label
		case !v.Startable:
			text = "▫️ " + v.Label
		}
		current = append(current, tgbotapi.NewInlineKeyboardButtonData(text, cbSlot+v.Label))
		if len(current) == 3 {
			rows = append(rows, current)
			current = nil
		}
	}
	if len(current) > 0 {
		rows = append(rows, current)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back to calendar", cbBack+"date"),
	))
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func confirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirm Booking", cbConfirm),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Change time", cbBack+"time"),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", cbCancel),
		),
	)
}
