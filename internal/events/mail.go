// Package events carries outbound mail between the auth server and the mail
// worker over NATS request/reply.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	MailSubject    = "mail.outbound"
	MailQueueGroup = "mail-workers"
)

var ErrMailRejected = errors.New("mail worker rejected the message")

// MailReply is what the worker answers on the request's reply subject.
type MailReply struct {
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

func decodeReply(data []byte) error {
	var reply MailReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return fmt.Errorf("decode mail reply: %w", err)
	}
	if !reply.Accepted {
		if reply.Error != "" {
			return fmt.Errorf("%w: %s", ErrMailRejected, reply.Error)
		}
		return ErrMailRejected
	}
	return nil
}
