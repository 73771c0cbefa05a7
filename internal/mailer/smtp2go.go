package mailer

import (
	"context"
	"fmt"
	"os"

	"github.com/smtp2go-oss/smtp2go-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const apiKeyEnv = "SMTP2GO_API_KEY"

var tracer = otel.Tracer("github.com/vitalpoint/vitalpoint-backend/internal/mailer")

type sendFunc func(*smtp2go.Email) (*smtp2go.Smtp2goApiResult, error)

// SMTP2GoSender delivers email through the smtp2go HTTP API. The library
// reads its key from SMTP2GO_API_KEY.
type SMTP2GoSender struct {
	send sendFunc
}

func NewSMTP2GoSender() (*SMTP2GoSender, error) {
	if os.Getenv(apiKeyEnv) == "" {
		return nil, ErrNotConfigured
	}

	return &SMTP2GoSender{send: smtp2go.Send}, nil
}

func (s *SMTP2GoSender) Send(ctx context.Context, email *Email) (*Result, error) {
	_, span := tracer.Start(ctx, "mailer.send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.Int("email.recipients", len(email.To)),
		attribute.String("email.subject", email.Subject),
	)

	msg := &smtp2go.Email{
		From:     email.From,
		To:       email.To,
		Subject:  email.Subject,
		TextBody: email.TextBody,
		HtmlBody: email.HTMLBody,
	}

	res, err := s.send(msg)
	if err == nil {
		err = apiError(res)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("smtp2go: %w", err)
	}

	span.SetAttributes(attribute.String("smtp2go.request_id", res.RequestId))

	return &Result{Success: true, RequestID: res.RequestId}, nil
}

// apiError turns an error reported inside the response payload into a Go
// error. smtp2go answers 4xx and 5xx with a JSON body the client decodes
// without complaint.
func apiError(res *smtp2go.Smtp2goApiResult) error {
	if res == nil {
		return ErrRejected
	}

	data := res.Data
	if data.Error == "" && data.ErrorCode == "" {
		return nil
	}

	err := fmt.Errorf("%w: %s (%s)", ErrRejected, data.Error, data.ErrorCode)
	if f := data.FieldValidationErrors; f.FieldName != "" {
		err = fmt.Errorf("%w, field %s: %s", err, f.FieldName, f.Message)
	}
	return err
}
