package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/frantsuz-club/ticket-bot/internal/checkout"
	"github.com/frantsuz-club/ticket-bot/internal/domain"
	"github.com/frantsuz-club/ticket-bot/internal/observability"
)

// EventLister feeds the browse flow.
type EventLister interface {
	ListEvents(ctx context.Context) ([]domain.Event, error)
}

// RateLimiter absorbs button double-taps before they reach the
// orchestrator.
type RateLimiter interface {
	Allow(ctx context.Context, key string, rate int, period time.Duration) bool
}

// Router maps inbound updates onto orchestrator operations and renders
// the results back through the transport.
type Router struct {
	transport    Transport
	flow         *checkout.Orchestrator
	events       EventLister
	limiter      RateLimiter
	logger       observability.Logger
	supportPhone string
}

func NewRouter(transport Transport, flow *checkout.Orchestrator, events EventLister, limiter RateLimiter, supportPhone string, logger observability.Logger) *Router {
	return &Router{
		transport:    transport,
		flow:         flow,
		events:       events,
		limiter:      limiter,
		logger:       logger,
		supportPhone: supportPhone,
	}
}

func (r *Router) HandleUpdate(ctx context.Context, u Update) {
	if !r.limiter.Allow(ctx, fmt.Sprintf("chat:%d", u.ChatID), 20, time.Minute) {
		return
	}

	var err error
	switch {
	case u.CallbackData != "":
		err = r.handleCallback(ctx, u)
		if ackErr := r.transport.AnswerCallback(ctx, u.CallbackID); ackErr != nil {
			r.logger.WithError(ackErr).Warn("failed to answer callback")
		}
	case u.Text != "":
		err = r.handleText(ctx, u)
	}
	if err != nil {
		r.reportError(ctx, u.ChatID, err)
	}
}

func (r *Router) handleCallback(ctx context.Context, u Update) error {
	data := u.CallbackData
	switch {
	case data == "show_tickets":
		return r.showEvents(ctx, u.ChatID)
	case data == "view_cart":
		return r.showCart(ctx, u.ChatID)
	case data == "checkout":
		if err := r.flow.StartCheckout(ctx, u.ChatID); err != nil {
			return err
		}
		return r.transport.SendMessage(ctx, u.ChatID,
			"🎟️ Оформление заказа\n\nПожалуйста, введите ваше имя и фамилию:", nil)
	case data == "check_payment":
		return r.pollPayment(ctx, u.ChatID)
	case data == "cancel_payment":
		result, err := r.flow.Cancel(ctx, u.ChatID)
		if err != nil {
			return err
		}
		if result.AlreadyPaid {
			return r.transport.SendMessage(ctx, u.ChatID,
				"✅ Оплата уже прошла! Билеты отправлены на ваш email.", nil)
		}
		return r.transport.SendMessage(ctx, u.ChatID,
			"💔 Заказ отменен. Будем рады видеть вас снова!", nil)
	case strings.HasPrefix(data, "add_to_cart_"):
		return r.addToCart(ctx, u.ChatID, strings.TrimPrefix(data, "add_to_cart_"))
	case strings.HasPrefix(data, "cart_dec_"):
		return r.decrementCart(ctx, u.ChatID, strings.TrimPrefix(data, "cart_dec_"))
	case strings.HasPrefix(data, "cart_del_"):
		return r.removeFromCart(ctx, u.ChatID, strings.TrimPrefix(data, "cart_del_"))
	case data == "clear_cart":
		if err := r.flow.ClearCart(ctx, u.ChatID); err != nil {
			return err
		}
		return r.showCart(ctx, u.ChatID)
	}
	return nil
}

func (r *Router) handleText(ctx context.Context, u Update) error {
	if strings.HasPrefix(u.Text, "/") {
		if strings.HasPrefix(u.Text, "/tickets") {
			return r.showEvents(ctx, u.ChatID)
		}
		if strings.HasPrefix(u.Text, "/start") {
			return r.transport.SendMessage(ctx, u.ChatID,
				"🎭 Добро пожаловать в Развлекательный клуб \"Француз\"!",
				[][]Button{{{Text: "🎟️ Купить билеты", Data: "show_tickets"}}})
		}
		return nil
	}

	result, err := r.flow.SubmitText(ctx, u.ChatID, u.Text)
	if err != nil {
		return err
	}

	switch {
	case result.Invoice != nil:
		inv := result.Invoice
		text := fmt.Sprintf(
			"🎟️ Заказ на сумму %.0f руб.\n\nДля оплаты нажмите кнопку \"Оплатить\".\nПосле оплаты нажмите \"Проверить оплату\".\n\n⏳ Бронь действует до %s.",
			inv.Total, inv.ExpiresAt.Local().Format("15:04"))
		return r.transport.SendMessage(ctx, u.ChatID, text, [][]Button{
			{{Text: "💳 Оплатить", URL: inv.PayURL}},
			{{Text: "🔄 Проверить оплату", Data: "check_payment"}},
			{{Text: "❌ Отменить", Data: "cancel_payment"}},
		})
	case result.Next == checkout.PromptPhone:
		return r.transport.SendMessage(ctx, u.ChatID,
			"📞 Введите ваш номер телефона в формате +7XXXXXXXXXX:", nil)
	case result.Next == checkout.PromptEmail:
		return r.transport.SendMessage(ctx, u.ChatID,
			"📧 Введите ваш email (на него будут отправлены билеты):", nil)
	}
	return nil
}

func (r *Router) showEvents(ctx context.Context, chatID int64) error {
	events, err := r.events.ListEvents(ctx)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return r.transport.SendMessage(ctx, chatID,
			"🎭 В данный момент нет доступных мероприятий. Следите за обновлениями!", nil)
	}
	for _, ev := range events {
		text := fmt.Sprintf("🎟️ %s\n📅 %s\n📍 %s\n💰 %.0f руб.\n\n%s",
			ev.Title, ev.StartsAt.Local().Format("02.01.2006 15:04"), ev.Location, ev.Price, ev.Description)
		err := r.transport.SendMessage(ctx, chatID, text, [][]Button{
			{{Text: "🛒 Добавить в корзину", Data: "add_to_cart_" + ev.ID.String()}},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) showCart(ctx context.Context, chatID int64) error {
	view, err := r.flow.Cart(ctx, chatID)
	if err != nil {
		return err
	}
	if view.Quantity == 0 {
		return r.transport.SendMessage(ctx, chatID, "🛒 Ваша корзина пуста.",
			[][]Button{{{Text: "🎟️ К мероприятиям", Data: "show_tickets"}}})
	}

	var b strings.Builder
	b.WriteString("🛒 Ваша корзина:\n\n")
	keyboard := make([][]Button, 0, len(view.Lines)+1)
	for _, line := range view.Lines {
		fmt.Fprintf(&b, "🎭 %s — %d x %.0f руб.\n", line.Title, line.Quantity, line.UnitPrice)
		keyboard = append(keyboard, []Button{
			{Text: "➕ " + line.Title, Data: "add_to_cart_" + line.EventID.String()},
			{Text: "➖", Data: "cart_dec_" + line.EventID.String()},
			{Text: "🗑", Data: "cart_del_" + line.EventID.String()},
		})
	}
	fmt.Fprintf(&b, "\nИтого: %.0f руб.", view.Total)
	keyboard = append(keyboard, []Button{{Text: "✅ Оформить заказ", Data: "checkout"}})
	return r.transport.SendMessage(ctx, chatID, b.String(), keyboard)
}

func (r *Router) addToCart(ctx context.Context, chatID int64, rawID string) error {
	eventID, err := uuid.Parse(rawID)
	if err != nil {
		return errors.Wrap(domain.ErrEventNotFound, "bad event id")
	}
	line, err := r.flow.AddToCart(ctx, chatID, eventID)
	if err != nil {
		return err
	}
	return r.transport.SendMessage(ctx, chatID,
		fmt.Sprintf("✅ \"%s\" добавлен в корзину (%d шт.)", line.Title, line.Quantity),
		[][]Button{
			{{Text: "🛒 Перейти в корзину", Data: "view_cart"}},
			{{Text: "🎟️ Продолжить покупки", Data: "show_tickets"}},
		})
}

func (r *Router) decrementCart(ctx context.Context, chatID int64, rawID string) error {
	eventID, err := uuid.Parse(rawID)
	if err != nil {
		return errors.Wrap(domain.ErrEventNotFound, "bad event id")
	}
	if _, err := r.flow.DecrementCart(ctx, chatID, eventID); err != nil {
		return err
	}
	return r.showCart(ctx, chatID)
}

func (r *Router) removeFromCart(ctx context.Context, chatID int64, rawID string) error {
	eventID, err := uuid.Parse(rawID)
	if err != nil {
		return errors.Wrap(domain.ErrEventNotFound, "bad event id")
	}
	if err := r.flow.RemoveFromCart(ctx, chatID, eventID); err != nil {
		return err
	}
	return r.showCart(ctx, chatID)
}

func (r *Router) pollPayment(ctx context.Context, chatID int64) error {
	result, err := r.flow.PollPayment(ctx, chatID)
	if err != nil {
		if errors.Is(err, domain.ErrNoActivePayment) {
			return r.transport.SendMessage(ctx, chatID, "У вас нет счета, ожидающего оплаты.", nil)
		}
		return r.transport.SendMessage(ctx, chatID,
			"⚠️ Не удалось проверить статус оплаты. Пожалуйста, попробуйте позже.", nil)
	}

	switch result.Outcome {
	case checkout.PollPaid:
		return r.transport.SendMessage(ctx, chatID,
			fmt.Sprintf("✅ Оплата подтверждена!\n\nБилеты отправлены на %s.", result.Email), nil)
	case checkout.PollExpired:
		return r.transport.SendMessage(ctx, chatID,
			"⏳ Время брони истекло, заказ отменен.\nЕсли вы уже оплатили, билеты будут восстановлены автоматически.", nil)
	default:
		return r.transport.SendMessage(ctx, chatID,
			fmt.Sprintf("⚠️ Оплата пока не найдена.\nБронь действует еще %d мин. Проверьте снова через пару минут.",
				int(result.Remaining.Minutes())+1), nil)
	}
}

// reportError turns a domain error into an actionable chat message.
func (r *Router) reportError(ctx context.Context, chatID int64, err error) {
	var text string
	switch {
	case errors.Is(err, domain.ErrInvalidName):
		text = "❌ Пожалуйста, введите имя и фамилию через пробел."
	case errors.Is(err, domain.ErrInvalidPhone):
		text = "❌ Неверный формат телефона. Введите в формате +7XXXXXXXXXX."
	case errors.Is(err, domain.ErrInvalidEmail):
		text = "❌ Неверный формат email. Пожалуйста, введите корректный email."
	case errors.Is(err, domain.ErrCapacityExceeded):
		text = "❌ К сожалению, билеты на это мероприятие закончились."
	case errors.Is(err, domain.ErrEventNotFound):
		text = "❌ Мероприятие не найдено."
	case errors.Is(err, domain.ErrEmptyCart):
		text = "🛒 Корзина пуста — добавьте хотя бы один билет."
	case errors.Is(err, domain.ErrCheckoutInProgress):
		text = "Сначала завершите или отмените текущее оформление."
	case errors.Is(err, domain.ErrGatewayUnavailable), errors.Is(err, domain.ErrInvalidRequest):
		text = "⚠️ Ошибка при создании платежа.\nПожалуйста, попробуйте позже или обратитесь в поддержку:\n📞 " + r.supportPhone
	default:
		r.logger.WithError(err).WithField("chat_id", chatID).Error("update handling failed")
		text = "Произошла ошибка. Пожалуйста, попробуйте позже или позвоните нам:\n📞 " + r.supportPhone
	}
	if sendErr := r.transport.SendMessage(ctx, chatID, text, nil); sendErr != nil {
		r.logger.WithError(sendErr).Error("failed to send error message")
	}
}
