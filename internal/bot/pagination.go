package bot

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"salonbook/internal/calendar"
	"salonbook/internal/model"
	"salonbook/internal/slots"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const (
	scopeMine = "my"
	scopeAll  = "all"
)

type PaginationParams struct {
	ChatID     int64
	MessageID  int // 0 if new message
	Page       int
	Scope      string
	Title      string
	Bookings   []model.Booking
	Today      string
	ShowClient bool
}

func (b *Bot) handleBookings(ctx context.Context, chatID, telegramID int64, scope string, page, msgID int) {
	id, registered := b.identify(ctx, telegramID)
	if !registered {
		b.askContact(chatID)
		return
	}
	if scope == scopeAll {
		if err := b.access.RequirePrivileged(id); err != nil {
			b.reply(chatID, err.Error())
			return
		}
	}

	list, err := b.booking.ListBookings(ctx, id.UserID, scope == scopeAll)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("scope", scope).Msg("list bookings failed")
		b.reply(chatID, userMessage(err))
		return
	}

	title := "📌 Your bookings"
	if scope == scopeAll {
		title = "📅 All bookings"
	}
	b.renderBookingsPage(ctx, PaginationParams{
		ChatID:     chatID,
		MessageID:  msgID,
		Page:       page,
		Scope:      scope,
		Title:      title,
		Bookings:   list,
		Today:      calendar.FormatDate(b.booking.Today()),
		ShowClient: scope == scopeAll,
	})
}

func (b *Bot) handlePageCallback(ctx context.Context, chatID int64, msgID int, telegramID int64, data string) string {
	scope, rawPage, ok := strings.Cut(strings.TrimPrefix(data, cbPage), ":")
	page, err := strconv.Atoi(rawPage)
	if !ok || err != nil || page < 0 {
		return ""
	}
	b.handleBookings(ctx, chatID, telegramID, scope, page, msgID)
	return ""
}

func (b *Bot) renderBookingsPage(ctx context.Context, params PaginationParams) {
	total := len(params.Bookings)
	pages := (total + b.pageSize - 1) / b.pageSize
	if params.Page >= pages && pages > 0 {
		params.Page = pages - 1
	}
	startIdx := params.Page * b.pageSize
	endIdx := startIdx + b.pageSize
	if endIdx > total {
		endIdx = total
	}

	var message strings.Builder
	message.WriteString(fmt.Sprintf("<b>%s</b>\n\n", html.EscapeString(params.Title)))
	if total == 0 {
		message.WriteString("No bookings yet.")
	} else {
		message.WriteString(fmt.Sprintf("Page %d of %d\n\n", params.Page+1, pages))
	}

	for i, bk := range params.Bookings[startIdx:endIdx] {
		marker := ""
		if bk.Date == params.Today {
			marker = " 🔆 <b>Today</b>"
		}
		message.WriteString(fmt.Sprintf("%d. <b>%s</b> at %s%s\n",
			startIdx+i+1, html.EscapeString(displayDate(bk.Date)), html.EscapeString(bk.StartTime), marker))
		message.WriteString(fmt.Sprintf("   💅 %s (%s)\n",
			html.EscapeString(strings.Join(bk.Services, ", ")), slots.FormatDuration(bk.DurationMinutes)))
		message.WriteString(fmt.Sprintf("   💵 $%s\n", bk.TotalPrice))
		if params.ShowClient {
			name, phone := b.access.Client(ctx, bk.UserID)
			if name == "" {
				name = bk.UserID
			}
			message.WriteString(fmt.Sprintf("   👤 %s %s\n", html.EscapeString(name), html.EscapeString(phone)))
		}
		message.WriteString("\n")
	}

	var navButtons []tgbotapi.InlineKeyboardButton
	if params.Page > 0 {
		navButtons = append(navButtons, tgbotapi.NewInlineKeyboardButtonData("⬅️ Back",
			fmt.Sprintf("%s%s:%d", cbPage, params.Scope, params.Page-1)))
	}
	if endIdx < total {
		navButtons = append(navButtons, tgbotapi.NewInlineKeyboardButtonData("Next ➡️",
			fmt.Sprintf("%s%s:%d", cbPage, params.Scope, params.Page+1)))
	}

	if params.MessageID != 0 {
		edit := tgbotapi.NewEditMessageText(params.ChatID, params.MessageID, message.String())
		edit.ParseMode = tgbotapi.ModeHTML
		if len(navButtons) > 0 {
			markup := tgbotapi.NewInlineKeyboardMarkup(navButtons)
			edit.ReplyMarkup = &markup
		}
		b.send(edit)
		return
	}

	msg := tgbotapi.NewMessage(params.ChatID, message.String())
	msg.ParseMode = tgbotapi.ModeHTML
	if len(navButtons) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(navButtons)
	}
	b.send(msg)
}
