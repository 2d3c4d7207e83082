// Package dtos holds the wire-level request/response and envelope shapes
// shared between ingress, workers, and the template engine.
package dtos

import "time"

// HTTPResponse is the response envelope for every ingress HTTP endpoint.
type HTTPResponse struct {
	Success bool            `json:"success"`
	Data    interface{}     `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message"`
	Meta    *PaginationMeta `json:"meta,omitempty"`
}

type PaginationMeta struct {
	Total       int  `json:"total"`
	Limit       int  `json:"limit"`
	Page        int  `json:"page"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

type NotificationType string

const (
	Email NotificationType = "email"
	Push  NotificationType = "push"
)

func (n NotificationType) Valid() bool {
	return n == Email || n == Push
}

// NotificationRequest is the ingress admission payload.
type NotificationRequest struct {
	NotificationType NotificationType `json:"notification_type" validate:"required,oneof=email push"`
	UserID           string           `json:"user_id" validate:"required"`
	TemplateCode     string           `json:"template_code" validate:"required"`
	Variables        map[string]any   `json:"variables"`
	RequestID        string           `json:"request_id" validate:"required"`
	Priority         int              `json:"priority" validate:"min=0,max=10"`
	Metadata         map[string]any   `json:"metadata,omitempty"`
}

// QueueMessage is the envelope placed on the broker by ingress and consumed
// by channel workers.
type QueueMessage struct {
	NotificationID   string           `json:"notification_id"`
	NotificationType NotificationType `json:"notification_type"`
	UserID           string           `json:"user_id"`
	TemplateCode     string           `json:"template_code"`
	Variables        map[string]any   `json:"variables"`
	RequestID        string           `json:"request_id"`
	Priority         int              `json:"priority"`
	Recipient        string           `json:"recipient"`
	Timestamp        time.Time        `json:"timestamp"`
	RetryCount       int              `json:"retry_count"`
	MaxRetries       int              `json:"max_retries"`
	CorrelationID    string           `json:"correlation_id"`
	Metadata         map[string]any   `json:"metadata,omitempty"`
}

// Status values for NotificationRecord.
const (
	StatusPending   = "pending"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// NotificationRecord is the KV-resident status record, keyed by
// notification_id.
type NotificationRecord struct {
	NotificationID   string           `json:"notification_id"`
	UserID           string           `json:"user_id"`
	NotificationType NotificationType `json:"notification_type"`
	Status           string           `json:"status"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	RequestID        string           `json:"request_id"`
	CorrelationID    string           `json:"correlation_id,omitempty"`
	RetryCount       int              `json:"retry_count,omitempty"`
	MaxRetries       int              `json:"max_retries,omitempty"`
	Error            string           `json:"error,omitempty"`
	Provider         string           `json:"provider,omitempty"`
	ProviderMsgID    string           `json:"provider_message_id,omitempty"`
}

// NotificationStatusUpdate is posted by workers to /email/status and
// /push/status.
type NotificationStatusUpdate struct {
	NotificationID string `json:"notification_id" validate:"required"`
	Status         string `json:"status" validate:"required,oneof=delivered failed"`
	Error          string `json:"error,omitempty"`
	Provider       string `json:"provider,omitempty"`
	ProviderMsgID  string `json:"provider_message_id,omitempty"`
}

// UserPreferences is the fixed preference record returned by the user
// directory.
type UserPreferences struct {
	Email bool `json:"email"`
	Push  bool `json:"push"`
}

// UserDirectoryResponse is the envelope returned by GET /api/v1/users/{id}.
type UserDirectoryResponse struct {
	Data UserDirectoryData `json:"data"`
}

type UserDirectoryData struct {
	Email       string          `json:"email"`
	PushToken   string          `json:"push_token"`
	Preferences UserPreferences `json:"preferences"`
}

// TemplateRenderRequest is POSTed to /templates/render.
type TemplateRenderRequest struct {
	TemplateCode string         `json:"template_code" validate:"required"`
	Variables    map[string]any `json:"variables"`
	Language     string         `json:"language"`
	Version      *int           `json:"version,omitempty"`
}

// TemplateRenderResponse is the rendered outcome.
type TemplateRenderResponse struct {
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	Language   string    `json:"language"`
	Version    int       `json:"version"`
	RenderedAt time.Time `json:"rendered_at"`
}
