package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"careerlink-auth/internal/mailer"
)

const deliveryTimeout = 30 * time.Second

// MailSubscriber consumes mail requests as part of a queue group, so several
// workers share the load and each message is delivered once. Shut it down by
// draining the connection with Drain.
type MailSubscriber struct {
	conn   *nats.Conn
	sender mailer.Sender
}

func NewMailSubscriber(nc *nats.Conn, sender mailer.Sender) *MailSubscriber {
	return &MailSubscriber{conn: nc, sender: sender}
}

func (s *MailSubscriber) Start() error {
	_, err := s.conn.QueueSubscribe(MailSubject, MailQueueGroup, func(msg *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()

		if err := msg.Respond(s.handle(ctx, msg.Data)); err != nil {
			slog.Error("failed to reply to mail request", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", MailSubject, err)
	}

	slog.Info("mail subscriber listening", "subject", MailSubject, "queue", MailQueueGroup)
	return nil
}

func (s *MailSubscriber) handle(ctx context.Context, data []byte) []byte {
	var msg mailer.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Error("failed to unmarshal mail request", "error", err)
		return encodeReply(MailReply{Error: "malformed message"})
	}

	if msg.To == "" {
		return encodeReply(MailReply{Error: "missing recipient"})
	}

	if err := s.sender.Send(ctx, msg); err != nil {
		slog.Error("mail delivery failed", "to", msg.To, "error", err)
		return encodeReply(MailReply{Error: err.Error()})
	}

	slog.Info("mail delivered", "to", msg.To, "subject", msg.Subject)
	return encodeReply(MailReply{Accepted: true})
}

func encodeReply(reply MailReply) []byte {
	b, err := json.Marshal(reply)
	if err != nil {
		return []byte(`{"accepted":false}`)
	}
	return b
}
