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

type requester interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

// NatsMailPublisher hands rendered messages to the mail worker and waits for
// its acknowledgement. It satisfies mailer.Sender.
type NatsMailPublisher struct {
	conn    requester
	timeout time.Duration
}

var _ mailer.Sender = (*NatsMailPublisher)(nil)

func NewNatsMailPublisher(nc *nats.Conn, timeout time.Duration) *NatsMailPublisher {
	return newPublisher(nc, timeout)
}

func newPublisher(conn requester, timeout time.Duration) *NatsMailPublisher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NatsMailPublisher{conn: conn, timeout: timeout}
}

func (p *NatsMailPublisher) Send(ctx context.Context, msg mailer.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal mail message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.conn.RequestWithContext(ctx, MailSubject, payload)
	if err != nil {
		slog.ErrorContext(ctx, "mail request failed", "subject", MailSubject, "error", err)
		return fmt.Errorf("request %s: %w", MailSubject, err)
	}

	if err := decodeReply(resp.Data); err != nil {
		slog.WarnContext(ctx, "mail worker did not accept message", "error", err)
		return err
	}

	slog.InfoContext(ctx, "mail accepted by worker", "subject", MailSubject)
	return nil
}
