package provider

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"net/textproto"

	"github.com/google/uuid"

	"github.com/ndidit/notifyhub/internal/dtos"
)

// SMTPConfig carries transport credentials; no ecosystem SMTP client
// appeared anywhere in the corpus, so this is a deliberate stdlib net/smtp
// usage.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type EmailProvider struct {
	cfg SMTPConfig
}

func NewEmailProvider(cfg SMTPConfig) *EmailProvider {
	return &EmailProvider{cfg: cfg}
}

var _ Provider = (*EmailProvider)(nil)

func (e *EmailProvider) Send(ctx context.Context, recipient, subject, body string, msg *dtos.QueueMessage) (*SendResponse, error) {
	addr := fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)
	auth := smtp.PlainAuth("", e.cfg.User, e.cfg.Password, e.cfg.Host)

	message := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", e.cfg.From, recipient, subject, body)

	if err := smtp.SendMail(addr, auth, e.cfg.From, []string{recipient}, []byte(message)); err != nil {
		return nil, classifySMTPError(err)
	}

	return &SendResponse{ProviderMessageID: uuid.NewString()}, nil
}

// classifySMTPError maps a transport error to the worker's retryable
// classification: connection/timeout failures are retryable, while a 5xx
// SMTP reply (invalid recipient, mailbox unavailable, rejected
// authentication) is terminal and must not be retried.
func classifySMTPError(err error) error {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		if protoErr.Code >= 500 {
			return dtos.NewFailure(dtos.KindTerminalDelivery, "SMTPRejected", err.Error(), false)
		}
		return dtos.NewFailure(dtos.KindTransientDelivery, "SMTPTemporaryFailure", err.Error(), true)
	}
	return dtos.NewFailure(dtos.KindTransientDelivery, "SMTPSendFailed", err.Error(), true)
}
