package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/frantsuz-club/ticket-bot/internal/domain"
	"github.com/frantsuz-club/ticket-bot/internal/observability"
)

// EmailSender is implemented by Mailer; tests swap in a recorder.
type EmailSender interface {
	Send(to, subject, body string) error
}

// Messenger delivers a chat message to a conversation. The bot's
// transport satisfies this.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Guard suppresses duplicate sends per dedupe key.
type Guard interface {
	Acquire(ctx context.Context, key string) (bool, error)
}

// Dispatcher fans an order.paid notice out to the customer, the admin
// mailbox and the chat. Failures are logged and counted; they never
// propagate back into payment state.
type Dispatcher struct {
	mail       EmailSender
	messenger  Messenger
	guard      Guard
	adminEmail string
	logger     observability.Logger
}

func NewDispatcher(mail EmailSender, messenger Messenger, guard Guard, adminEmail string, logger observability.Logger) *Dispatcher {
	return &Dispatcher{
		mail:       mail,
		messenger:  messenger,
		guard:      guard,
		adminEmail: adminEmail,
		logger:     logger,
	}
}

// OrderPaid handles one order.paid notice. Returns nil on duplicate
// delivery so the broker can ack replays.
func (d *Dispatcher) OrderPaid(ctx context.Context, notice domain.OrderPaidNotice) error {
	ok, err := d.guard.Acquire(ctx, "order:"+notice.OrderID.String())
	if err != nil {
		return err
	}
	if !ok {
		d.logger.WithField("order_id", notice.OrderID).Info("duplicate order.paid notice dropped")
		return nil
	}

	d.send("customer_email", func() error {
		return d.mail.Send(notice.Email,
			fmt.Sprintf("Билеты на заказ №%s", shortID(notice.OrderID.String())),
			customerBody(notice))
	})
	if d.adminEmail != "" {
		d.send("admin_email", func() error {
			return d.mail.Send(d.adminEmail,
				fmt.Sprintf("Новая продажа: заказ №%s", shortID(notice.OrderID.String())),
				adminBody(notice))
		})
	}
	d.send("chat", func() error {
		return d.messenger.SendText(ctx, notice.ChatID,
			fmt.Sprintf("✅ Оплата подтверждена!\n\nБилеты отправлены на %s.", notice.Email))
	})
	return nil
}

func (d *Dispatcher) send(channel string, fn func() error) {
	if err := fn(); err != nil {
		observability.NotificationsTotal.WithLabelValues(channel, "error").Inc()
		d.logger.WithError(err).WithField("channel", channel).Error("notification failed")
		return
	}
	observability.NotificationsTotal.WithLabelValues(channel, "ok").Inc()
}

func customerBody(n domain.OrderPaidNotice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Уважаемый(ая) %s,\n\n", n.Name)
	b.WriteString("Благодарим за покупку билетов в клуб \"Француз\"!\n\n")
	for _, line := range n.Lines {
		fmt.Fprintf(&b, "🎭 %s — %d x %.0f руб.\n", line.Title, line.Quantity, line.UnitPrice)
	}
	fmt.Fprintf(&b, "\nИтого: %.0f руб.\n\nНомера билетов:\n", n.Total)
	for _, num := range n.TicketNumbers {
		fmt.Fprintf(&b, "🎫 %s\n", num)
	}
	b.WriteString("\nЖдем вас на мероприятии!\n\nС уважением,\nКоманда клуба \"Француз\"")
	return b.String()
}

func adminBody(n domain.OrderPaidNotice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Новая продажа билетов\n\nЗаказ: %s\nСумма: %.0f руб.\n\n", n.OrderID, n.Total)
	for _, line := range n.Lines {
		fmt.Fprintf(&b, "%s — %d x %.0f руб.\n", line.Title, line.Quantity, line.UnitPrice)
	}
	fmt.Fprintf(&b, "\nКлиент: %s\nТелефон: %s\nEmail: %s\n", n.Name, n.Phone, n.Email)
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
