package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"salonbook/internal/booking"
	"salonbook/internal/events"
	"salonbook/internal/model"
	"salonbook/internal/slots"
	"salonbook/shared/reminders"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// SendReminder messages the customer about tomorrow's booking.
func (b *Bot) SendReminder(_ context.Context, bk model.Booking) error {
	chatID, ok := ChatID(bk.UserID)
	if !ok {
		return reminders.ErrUnreachable
	}
	_, err := b.tg.Send(tgbotapi.NewMessage(chatID, formatReminderMessage(bk)))
	return toTelegramError(err)
}

func formatReminderMessage(bk model.Booking) string {
	return fmt.Sprintf("⏰ Reminder: your appointment is tomorrow, %s at %s.\n💅 %s (%s)\n💵 $%s",
		displayDate(bk.Date),
		bk.StartTime,
		strings.Join(bk.Services, ", "),
		slots.FormatDuration(bk.DurationMinutes),
		bk.TotalPrice)
}

// toTelegramError exposes API error codes to the reminder sender.
func toTelegramError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return &reminders.TelegramError{Code: apiErr.Code, Message: apiErr.Message, RetryAfter: apiErr.RetryAfter}
	}
	return err
}

// SendDocument sends a file to every admin chat.
func (b *Bot) SendDocument(_ context.Context, filename string, data io.Reader, caption string) error {
	if len(b.adminChats) == 0 {
		return fmt.Errorf("no admin chats configured")
	}
	content, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	var errs []error
	for _, chatID := range b.adminChats {
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: filename, Bytes: content})
		doc.Caption = caption
		if _, err := b.tg.Send(doc); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

// Subscribe tells the admins about every new booking and every booking the
// store could not save.
func (b *Bot) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.BookingFailed, func(ev events.Event) error {
		var failed booking.FailedBooking
		if err := ev.Decode(&failed); err != nil {
			return fmt.Errorf("decode booking event: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		b.notifyAdminsFailed(ctx, failed)
		return nil
	})
	bus.Subscribe(events.BookingCreated, func(ev events.Event) error {
		var bk model.Booking
		if err := ev.Decode(&bk); err != nil {
			return fmt.Errorf("decode booking event: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		b.notifyAdmins(ctx, bk)
		return nil
	})
}

func (b *Bot) notifyAdmins(ctx context.Context, bk model.Booking) {
	name, phone := b.access.Client(ctx, bk.UserID)
	if name == "" {
		name = bk.UserID
	}
	text := fmt.Sprintf("🆕 New booking\n\n📅 %s at %s\n💅 %s (%s)\n💵 $%s\n👤 %s %s",
		displayDate(bk.Date),
		bk.StartTime,
		strings.Join(bk.Services, ", "),
		slots.FormatDuration(bk.DurationMinutes),
		bk.TotalPrice,
		name,
		phone)
	for _, chatID := range b.adminChats {
		b.send(tgbotapi.NewMessage(chatID, text))
	}
}

func (b *Bot) notifyAdminsFailed(ctx context.Context, failed booking.FailedBooking) {
	req := failed.Request
	name, phone := b.access.Client(ctx, req.UserID)
	if name == "" {
		name = req.UserID
	}
	text := fmt.Sprintf("⚠️ Booking not saved\n\n📅 %s at %s\n💅 %s\n👤 %s %s\n\n%s",
		displayDate(req.Date),
		req.StartTime,
		strings.Join(req.Services, ", "),
		name,
		phone,
		failed.Error)
	for _, chatID := range b.adminChats {
		b.send(tgbotapi.NewMessage(chatID, text))
	}
}
