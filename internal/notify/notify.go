// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package notify delivers out-of-band account messages (verification links,
reset links, welcome and password-changed notices).

Delivery is a side effect: a failed send is logged and counted, and never
rolls back the operation that triggered it.

Senders:

  - [RedisQueue]: pushes JSON messages onto a Redis list consumed by a mailer.
  - [LogSender]: writes messages to the log, for development.
*/
package notify

import (
	"context"
	"log/slog"
	"time"
)

// Kind selects the template the mailer renders.
type Kind string

const (
	KindVerification    Kind = "email_verification"
	KindPasswordReset   Kind = "password_reset"
	KindWelcome         Kind = "welcome"
	KindPasswordChanged Kind = "password_changed"
)

// Template data keys.
const (
	DataName  = "name"
	DataToken = "token"
	DataTTL   = "expires_in"
)

// Message is one queued notification.
type Message struct {
	ID        string            `json:"id"`
	To        string            `json:"to"`
	Kind      Kind              `json:"kind"`
	Data      map[string]string `json:"data"`
	CreatedAt time.Time         `json:"created_at"`
}

// Sender delivers a single message.
type Sender interface {
	Deliver(context context.Context, message Message) error
}

// LogSender writes messages to a logger instead of sending them.
//
// Data values are logged as-is, raw tokens included. Never use it in production.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender constructs a [LogSender].
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Deliver implements [Sender].
func (sender *LogSender) Deliver(context context.Context, message Message) error {
	attrs := []any{
		slog.String("id", message.ID),
		slog.String("to", message.To),
		slog.String("kind", string(message.Kind)),
	}
	for key, value := range message.Data {
		attrs = append(attrs, slog.String(key, value))
	}
	sender.logger.InfoContext(context, "notification_logged", attrs...)
	return nil
}
