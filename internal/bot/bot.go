// Package bot is the Telegram front-end of the booking flow.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"salonbook/internal/access"
	"salonbook/internal/booking"
	"salonbook/internal/calendar"
	"salonbook/internal/catalog"
	"salonbook/internal/config"
	"salonbook/internal/selection"
	"salonbook/internal/slots"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const thankYouText = "Thank you for booking with me! I will sms you shortly for confirming the appointment!"

const userPrefix = "tg:"

// UserID is the booking user ID of a Telegram account.
func UserID(telegramID int64) string {
	return userPrefix + strconv.FormatInt(telegramID, 10)
}

// ChatID returns the private chat of a booking user, if the user came from Telegram.
func ChatID(userID string) (int64, bool) {
	raw, ok := strings.CutPrefix(userID, userPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// Bot drives the booking flow over Telegram.
type Bot struct {
	tg         telegramClient
	booking    *booking.Service
	sessions   *booking.SessionStore
	access     *access.Service
	adminChats []int64
	pageSize   int
	logger     zerolog.Logger
}

// New connects to Telegram with the configured token.
func New(
	cfg config.TelegramConfig,
	bookingSvc *booking.Service,
	sessions *booking.SessionStore,
	accessSvc *access.Service,
	logger zerolog.Logger,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	api.Debug = cfg.Debug
	return newBot(&realTelegramClient{api: api}, cfg.AdminChatIDs, bookingSvc, sessions, accessSvc, logger)
}

// NewWithTelegramClient allows injecting a mocked Telegram client for tests.
func NewWithTelegramClient(
	tg telegramClient,
	adminChats []int64,
	bookingSvc *booking.Service,
	sessions *booking.SessionStore,
	accessSvc *access.Service,
	logger zerolog.Logger,
) (*Bot, error) {
	return newBot(tg, adminChats, bookingSvc, sessions, accessSvc, logger)
}

func newBot(
	tg telegramClient,
	adminChats []int64,
	bookingSvc *booking.Service,
	sessions *booking.SessionStore,
	accessSvc *access.Service,
	logger zerolog.Logger,
) (*Bot, error) {
	if tg == nil {
		return nil, fmt.Errorf("telegram client is nil")
	}
	if bookingSvc == nil || sessions == nil || accessSvc == nil {
		return nil, fmt.Errorf("booking, sessions and access are required")
	}
	return &Bot{
		tg:         tg,
		booking:    bookingSvc,
		sessions:   sessions,
		access:     accessSvc,
		adminChats: adminChats,
		pageSize:   5,
		logger:     logger.With().Str("component", "bot").Logger(),
	}, nil
}

// Start polls updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Msg("bot authorized")

	for {
		select {
		case <-ctx.Done():
			b.tg.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			l := b.logger.With().Str("request_id", uuid.New().String()).Logger()
			b.handleUpdate(l.WithContext(ctx), &update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	l := zerolog.Ctx(ctx)
	if update.CallbackQuery != nil {
		l.Debug().
			Int64("user_id", update.CallbackQuery.From.ID).
			Str("data", update.CallbackQuery.Data).
			Msg("handling callback query")
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message != nil && update.Message.From != nil {
		l.Debug().
			Int64("user_id", update.Message.From.ID).
			Str("text", update.Message.Text).
			Msg("handling message")
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Contact != nil {
		b.handleContact(ctx, msg)
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch {
	case strings.HasPrefix(text, "/start"):
		b.handleStart(ctx, msg)
	case strings.HasPrefix(text, "/services"), text == "📋 Services":
		b.sendServices(msg.Chat.ID, UserID(msg.From.ID))
	case strings.HasPrefix(text, "/book"), text == "💅 Book":
		b.handleBook(ctx, msg)
	case strings.HasPrefix(text, "/mybookings"), text == "📌 My bookings":
		b.handleBookings(ctx, msg.Chat.ID, msg.From.ID, scopeMine, 0, 0)
	case strings.HasPrefix(text, "/all"), text == "📅 All bookings":
		b.handleBookings(ctx, msg.Chat.ID, msg.From.ID, scopeAll, 0, 0)
	case strings.HasPrefix(text, "/cancel"):
		b.sessions.Delete(UserID(msg.From.ID))
		b.reply(msg.Chat.ID, "Your booking draft was cleared.")
	default:
		b.reply(msg.Chat.ID, "Commands: /book, /services, /mybookings, /cancel")
	}
}

func (b *Bot) identify(ctx context.Context, telegramID int64) (access.Identity, bool) {
	id, err := b.access.Identify(ctx, UserID(telegramID))
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", telegramID).Msg("identify failed")
		return access.Identity{UserID: UserID(telegramID)}, false
	}
	return id, id.Phone != ""
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	id, registered := b.identify(ctx, msg.From.ID)
	if !registered {
		b.askContact(msg.Chat.ID)
		return
	}
	b.sendMenu(msg.Chat.ID, id, "Welcome back! What would you like to do?")
}

func (b *Bot) askContact(chatID int64) {
	m := tgbotapi.NewMessage(chatID, "Welcome! Please share your phone number so I can confirm your appointments.")
	m.ReplyMarkup = contactKeyboard()
	b.send(m)
}

func (b *Bot) sendMenu(chatID int64, id access.Identity, text string) {
	m := tgbotapi.NewMessage(chatID, text)
	if id.Privileged {
		m.ReplyMarkup = adminMenu
	} else {
		m.ReplyMarkup = mainMenu
	}
	b.send(m)
}

func (b *Bot) handleContact(ctx context.Context, msg *tgbotapi.Message) {
	c := msg.Contact
	if c.UserID != 0 && c.UserID != msg.From.ID {
		b.reply(msg.Chat.ID, "Please share your own phone number.")
		return
	}
	phone := strings.TrimSpace(c.PhoneNumber)
	if phone != "" && !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)

	id, err := b.access.Register(ctx, UserID(msg.From.ID), name, phone)
	if err != nil {
		if errors.Is(err, access.ErrInvalidPhone) {
			b.reply(msg.Chat.ID, "That phone number does not look right. Please try again.")
			return
		}
		zerolog.Ctx(ctx).Error().Err(err).Msg("register contact failed")
		b.reply(msg.Chat.ID, "Could not save your number. Please try again later.")
		return
	}
	b.sendMenu(msg.Chat.ID, id, fmt.Sprintf("Thanks, %s! You can book now.", firstNonEmpty(c.FirstName, "there")))
}

func (b *Bot) handleBook(ctx context.Context, msg *tgbotapi.Message) {
	if _, registered := b.identify(ctx, msg.From.ID); !registered {
		b.askContact(msg.Chat.ID)
		return
	}
	session := b.sessions.GetOrCreate(UserID(msg.From.ID))
	if session.Snapshot().Totals.DurationMinutes == 0 {
		b.sendServices(msg.Chat.ID, session.UserID)
		return
	}
	m := tgbotapi.NewMessage(msg.Chat.ID, "Choose a date:")
	m.ReplyMarkup = calendarKeyboard(b.booking.Today(), b.booking.Policy(), b.booking.Today())
	b.send(m)
}

func (b *Bot) sendServices(chatID int64, userID string) {
	v := b.sessions.GetOrCreate(userID).Snapshot()
	m := tgbotapi.NewMessage(chatID, servicesText(v.Totals))
	m.ReplyMarkup = servicesKeyboard(b.booking.Catalog(), v.Services)
	b.send(m)
}

func servicesText(t selection.Totals) string {
	var sb strings.Builder
	sb.WriteString("Select services:\n\n")
	if t.DurationMinutes == 0 {
		sb.WriteString("Please select a service for booking")
		return sb.String()
	}
	fmt.Fprintf(&sb, "Duration: %dh %dmin\n", t.DurationMinutes/60, t.DurationMinutes%60)
	fmt.Fprintf(&sb, "Total: $%s", t.Price)
	if t.PriceUpper > t.Price {
		fmt.Fprintf(&sb, " (up to $%s)", t.PriceUpper)
	}
	return sb.String()
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil {
		b.answerCallback(cq.ID, "")
		return
	}
	answer := b.dispatchCallback(ctx, cq)
	b.answerCallback(cq.ID, answer)
}

// dispatchCallback runs the callback and returns the text for the callback answer.
func (b *Bot) dispatchCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) string {
	data := cq.Data
	chatID := cq.Message.Chat.ID
	msgID := cq.Message.MessageID

	if data == cbNoop {
		return ""
	}
	if strings.HasPrefix(data, cbPage) {
		return b.handlePageCallback(ctx, chatID, msgID, cq.From.ID, data)
	}

	session := b.sessions.GetOrCreate(UserID(cq.From.ID))
	switch {
	case data == cbServiceRst:
		b.booking.ResetSelection(session)
		b.editServices(chatID, msgID, session)
	case data == cbServiceOK:
		if len(session.Snapshot().Services) == 0 {
			return "Please select a service for booking"
		}
		b.editCalendar(chatID, msgID, b.booking.Today())
	case strings.HasPrefix(data, cbService):
		i, err := strconv.Atoi(strings.TrimPrefix(data, cbService))
		item, ok := b.booking.Catalog().At(i)
		if err != nil || !ok {
			return userMessage(catalog.ErrUnknownService)
		}
		if _, err := b.booking.ToggleService(session, item.Name); err != nil {
			return userMessage(err)
		}
		b.editServices(chatID, msgID, session)
	case strings.HasPrefix(data, cbMonth):
		month, err := time.ParseInLocation("2006-01", strings.TrimPrefix(data, cbMonth), time.Local)
		if err != nil {
			return ""
		}
		b.editCalendar(chatID, msgID, month)
	case strings.HasPrefix(data, cbDate):
		if err := b.booking.SelectDate(session, strings.TrimPrefix(data, cbDate)); err != nil {
			return userMessage(err)
		}
		return b.editSlots(ctx, chatID, msgID, session)
	case strings.HasPrefix(data, cbSlot):
		if _, err := b.booking.SelectTime(ctx, session, strings.TrimPrefix(data, cbSlot)); err != nil {
			return userMessage(err)
		}
		b.editConfirm(chatID, msgID, session)
	case data == cbConfirm:
		return b.handleConfirm(ctx, chatID, msgID, session)
	case data == cbCancel:
		b.sessions.Delete(session.UserID)
		b.send(tgbotapi.NewEditMessageText(chatID, msgID, "Booking cancelled."))
	case strings.HasPrefix(data, cbBack):
		return b.handleBack(ctx, chatID, msgID, session, strings.TrimPrefix(data, cbBack))
	}
	return ""
}

func (b *Bot) handleBack(ctx context.Context, chatID int64, msgID int, session *booking.Session, step string) string {
	switch step {
	case "services":
		b.editServices(chatID, msgID, session)
	case "date":
		month := b.booking.Today()
		if v := session.Snapshot(); v.Date != "" {
			if d, err := calendar.ParseDate(v.Date); err == nil {
				month = d
			}
		}
		b.editCalendar(chatID, msgID, month)
	case "time":
		return b.editSlots(ctx, chatID, msgID, session)
	}
	return ""
}

func (b *Bot) handleConfirm(ctx context.Context, chatID int64, msgID int, session *booking.Session) string {
	created, err := b.booking.Confirm(ctx, session)
	if err != nil {
		zerolog.Ctx(ctx).Info().Err(err).Str("user_id", session.UserID).Msg("confirm rejected")
		return userMessage(err)
	}
	text := fmt.Sprintf("%s\n\n📅 %s at %s\n💅 %s\n💵 $%s",
		thankYouText,
		displayDate(created.Date),
		created.StartTime,
		strings.Join(created.Services, ", "),
		created.TotalPrice)
	b.send(tgbotapi.NewEditMessageText(chatID, msgID, text))
	return ""
}

func (b *Bot) editServices(chatID int64, msgID int, session *booking.Session) {
	v := session.Snapshot()
	b.send(tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID, servicesText(v.Totals),
		servicesKeyboard(b.booking.Catalog(), v.Services)))
}

func (b *Bot) editCalendar(chatID int64, msgID int, month time.Time) {
	today := b.booking.Today()
	b.send(tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID, "Choose a date:",
		calendarKeyboard(month, b.booking.Policy(), today)))
}

func (b *Bot) editSlots(ctx context.Context, chatID int64, msgID int, session *booking.Session) string {
	av, err := b.booking.SessionAvailability(ctx, session)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("availability failed")
		return userMessage(err)
	}
	text := fmt.Sprintf("📅 %s\nDuration: %dh %dmin\n\nAvailable Times (⛔ booked, ▫️ not enough time from here):",
		displayDate(av.Date), av.DurationMinutes/60, av.DurationMinutes%60)
	if av.DurationMinutes > 0 && len(av.StartTimes) == 0 {
		text += "\n\n" + noStartTimeText
	}
	b.send(tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID, text, slotsKeyboard(av.Slots)))
	return ""
}

func (b *Bot) editConfirm(chatID int64, msgID int, session *booking.Session) {
	v := session.Snapshot()
	text := fmt.Sprintf("Please confirm your booking:\n\n📅 %s\n🕒 %s (%s)\n💅 %s\n💵 $%s",
		displayDate(v.Date),
		strings.Join(slots.Labels(v.Reserved), ", "),
		slots.FormatDuration(v.Totals.DurationMinutes),
		strings.Join(v.Services, ", "),
		v.Totals.Price)
	b.send(tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID, text, confirmKeyboard()))
}

const noStartTimeText = "No start time fits your services on this day. Please pick another date."

// userMessage turns a flow error into something a customer can act on.
func userMessage(err error) string {
	switch {
	case errors.Is(err, slots.ErrSlotConflict):
		return "Some of those times are already booked. Please pick another start time."
	case errors.Is(err, slots.ErrInsufficientTrailingCapacity):
		return "Not enough time before closing for your services. Please pick an earlier time."
	case errors.Is(err, slots.ErrSlotNotFound):
		return "That time is not on the schedule."
	case errors.Is(err, slots.ErrDurationUnset), errors.Is(err, booking.ErrNothingSelected):
		return "Please select a service for booking"
	case errors.Is(err, booking.ErrDateNotSelectable):
		return "The salon is closed that day. Please pick another date."
	case errors.Is(err, booking.ErrNoDateSelected):
		return "Please choose a date first."
	case errors.Is(err, booking.ErrNoTimeChosen):
		return "Please choose a time first."
	case errors.Is(err, catalog.ErrUnknownService):
		return "That service is no longer offered."
	case access.IsAccessDenied(err):
		return err.Error()
	}
	return "Something went wrong. Please try again."
}

func displayDate(date string) string {
	d, err := calendar.ParseDate(date)
	if err != nil {
		return date
	}
	return d.Format("Monday, January 2, 2006")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.tg.Send(c); err != nil {
		b.logger.Error().Err(err).Msg("telegram send failed")
	}
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.tg.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.logger.Debug().Err(err).Msg("answer callback failed")
	}
}
