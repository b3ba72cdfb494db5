// Package email sends booking confirmation mail to users whose payment
// completed.  Like loyalty it subscribes to completion signals; mail
// delivery failures never affect the booking itself.
package email

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"

	"github.com/hoangnm/court-booking/internal/model"
	"github.com/hoangnm/court-booking/internal/queue"
)

// UserReader resolves the recipient address for an event.
type UserReader interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// Sender delivers one rendered message.
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPSender delivers mail over plain SMTP with optional auth.
type SMTPSender struct {
	Addr string // host:port
	From string
	Auth smtp.Auth
}

// Send delivers a single text message to one recipient.
func (s *SMTPSender) Send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", s.From, to, subject, body)
	return smtp.SendMail(s.Addr, s.Auth, s.From, []string{to}, []byte(msg))
}

// LogSender logs messages instead of delivering them.  Used when no SMTP
// endpoint is configured, which keeps local development quiet.
type LogSender struct {
	Log *zap.Logger
}

// Send logs the message that would have been delivered.
func (s *LogSender) Send(to, subject, body string) error {
	s.Log.Info("email suppressed (no smtp configured)",
		zap.String("to", to),
		zap.String("subject", subject))
	return nil
}

// Notifier is the completion-signal subscriber that mails confirmations.
type Notifier struct {
	users  UserReader
	sender Sender
	log    *zap.Logger
}

// NewNotifier wires the email subscriber.
func NewNotifier(users UserReader, sender Sender, log *zap.Logger) *Notifier {
	if users == nil || sender == nil || log == nil {
		panic("email.NewNotifier: nil dependency")
	}
	return &Notifier{users: users, sender: sender, log: log}
}

// Name identifies this subscriber in consumer logs.
func (n *Notifier) Name() string { return "email" }

// HandleBookingCompleted sends the confirmation mail for one completed
// booking.  Redelivery may resend the same mail, which is acceptable.
func (n *Notifier) HandleBookingCompleted(ctx context.Context, ev queue.BookingCompletedEvent) error {
	u, err := n.users.GetByID(ctx, ev.UserID)
	if err != nil {
		return err
	}
	subject := "Your court booking is confirmed"
	body := fmt.Sprintf(
		"Hi %s,\n\nYour booking %s is confirmed.\nCourt: %s\nFrom: %s\nTo:   %s\n\nSee you on the court!\n",
		u.Username, ev.BookingID, ev.CourtID, ev.StartsAt, ev.EndsAt,
	)
	if err := n.sender.Send(u.Email, subject, body); err != nil {
		return fmt.Errorf("send confirmation: %w", err)
	}
	n.log.Info("confirmation sent",
		zap.String("booking_id", ev.BookingID),
		zap.String("user_id", ev.UserID))
	return nil
}
