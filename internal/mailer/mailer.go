// Package mailer renders and delivers outbound email.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

// Message is a rendered plain-text email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

type Sender interface {
	// Send returns nil only once the message has been accepted for delivery.
	Send(ctx context.Context, msg Message) error
}

var ErrNotConfigured = errors.New("mail sender is not configured")

// PasswordResetMessage renders the email carrying the reset link.
func PasswordResetMessage(to, firstName, resetURL string, validFor time.Duration) Message {
	greeting := "Hello,"
	if firstName != "" {
		greeting = fmt.Sprintf("Hello %s,", firstName)
	}

	var b strings.Builder
	b.WriteString(greeting)
	b.WriteString("\n\nWe received a request to reset the password for your account.\n")
	b.WriteString("Open the link below to choose a new password:\n\n")
	b.WriteString(resetURL)
	fmt.Fprintf(&b, "\n\nThe link expires in %d minutes. If you did not ask for a reset, you can ignore this email.\n", int(validFor.Minutes()))

	return Message{
		To:      to,
		Subject: "Password reset request",
		Text:    b.String(),
	}
}

// DefaultTimeout bounds a whole SMTP exchange when the caller's context has
// no earlier deadline.
const DefaultTimeout = 15 * time.Second

type deliverer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPSender delivers mail through an authenticated SMTP relay (STARTTLS on
// the submission port).
type SMTPSender struct {
	from    string
	timeout time.Duration
	client  deliverer
}

func NewSMTPSender(host string, port int, username, password string, timeout time.Duration) (*SMTPSender, error) {
	if host == "" || username == "" {
		return nil, ErrNotConfigured
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client, err := mail.NewClient(host,
		mail.WithTLSPortPolicy(mail.TLSMandatory),
		mail.WithPort(port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(username),
		mail.WithPassword(password),
		mail.WithTimeout(timeout),
		mail.WithDialContextFunc(deadlineDialer(timeout)),
	)
	if err != nil {
		return nil, fmt.Errorf("smtp client for %s: %w", host, err)
	}

	return &SMTPSender{from: username, timeout: timeout, client: client}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m, err := s.build(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}

	return nil
}

func (s *SMTPSender) build(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", s.from, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	return m, nil
}

// deadlineDialer puts a deadline on the connection itself, so a relay that
// accepts and then stalls cannot hold the exchange past the context deadline.
func deadlineDialer(timeout time.Duration) mail.DialContextFunc {
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, network, address)
		if err != nil {
			return nil, err
		}

		deadline := time.Now().Add(timeout)
		if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
			deadline = dl
		}
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}
