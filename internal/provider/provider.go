// Package provider defines the outbound "send" contract and its two
// transports: SMTP for email, FCM v1 for push.
package provider

import (
	"context"

	"github.com/ndidit/notifyhub/internal/dtos"
)

// SendResponse is the outcome of a successful provider send.
type SendResponse struct {
	ProviderMessageID string
}

// Provider sends one rendered message to one recipient. Implementations
// classify their own failures: returning a *dtos.Failure with the correct
// Retryable bit lets the worker pipeline decide retry vs DLQ without
// inspecting transport-specific errors.
type Provider interface {
	Send(ctx context.Context, recipient, subject, body string, msg *dtos.QueueMessage) (*SendResponse, error)
}
