// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"
	"log/slog"
)

// Message is an outbound transactional email.
type Message struct {
	To      string
	Subject string
	Link    string
}

// Mailer delivers confirmation and recovery links.
type Mailer interface {
	Send(context context.Context, message Message) error
}

// LogMailer writes messages to the structured log instead of sending them.
// It is the development mailer; links show up in the console output.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a new LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs the message at Info level.
func (mailer *LogMailer) Send(context context.Context, message Message) error {
	mailer.logger.InfoContext(context, "identity_mail_sent",
		slog.String("to", message.To),
		slog.String("subject", message.Subject),
		slog.String("link", message.Link),
	)
	return nil
}
