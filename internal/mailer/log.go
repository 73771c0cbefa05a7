package mailer

import (
	"context"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

// LogSender writes emails to the log instead of delivering them. It stands in
// for a real provider in development.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, email *Email) (*Result, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	s.logger.Info("email not sent, logging instead",
		zap.String("request#id", id.String()),
		zap.Strings("to", email.To),
		zap.String("subject", email.Subject),
		zap.String("body", email.TextBody),
	)

	return &Result{Success: true, RequestID: id.String()}, nil
}
