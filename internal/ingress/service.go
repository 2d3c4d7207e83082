// Package ingress implements the admission pipeline: idempotency lookup,
// user lookup, preference gate, recipient resolution, publish, and record
// persistence, in the strict order the contract requires.
package ingress

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ndidit/notifyhub/internal/dtos"
)

// Store is the subset of the KV store Submit depends on.
type Store interface {
	GetIdempotentNotificationID(ctx context.Context, requestID string) (string, error)
	ReserveIdempotency(ctx context.Context, requestID, notificationID string, ttl time.Duration) (reserved bool, existingID string, err error)
	PutNotificationRecord(ctx context.Context, rec *dtos.NotificationRecord, ttl time.Duration) error
	GetNotificationRecord(ctx context.Context, id string) (*dtos.NotificationRecord, error)
	AppendUserIndex(ctx context.Context, userID, notificationID string, ttl time.Duration) error
}

// Publisher is the subset of the broker publisher Submit depends on.
type Publisher interface {
	Publish(ctx context.Context, msg *dtos.QueueMessage) error
}

// UserLookup resolves a user's contact channels and preferences.
type UserLookup interface {
	Get(ctx context.Context, userID string) (*dtos.UserDirectoryData, error)
}

type Service struct {
	kv         Store
	publisher  Publisher
	users      UserLookup
	maxRetries int
	notifyTTL  time.Duration
	log        zerolog.Logger
}

func New(store Store, publisher Publisher, users UserLookup, maxRetries int, notifyTTL time.Duration, log zerolog.Logger) *Service {
	return &Service{kv: store, publisher: publisher, users: users, maxRetries: maxRetries, notifyTTL: notifyTTL, log: log}
}

// SubmitResult is the successful outcome of Submit.
type SubmitResult struct {
	NotificationID    string
	Status            string
	CreatedAt         time.Time
	AlreadyProcessed  bool
}

// Submit runs the nine-step admission contract. Any step's failure
// short-circuits and returns a typed *dtos.Failure without publishing.
func (s *Service) Submit(ctx context.Context, req *dtos.NotificationRequest, correlationID string) (*SubmitResult, *dtos.Failure) {
	// 1. Idempotency lookup.
	existingID, err := s.kv.GetIdempotentNotificationID(ctx, req.RequestID)
	if err != nil {
		return nil, dtos.ErrQueueUnavailable("idempotency lookup failed: " + err.Error())
	}
	if existingID != "" {
		rec, err := s.kv.GetNotificationRecord(ctx, existingID)
		status := dtos.StatusPending
		createdAt := time.Now()
		if err == nil && rec != nil {
			status = rec.Status
			createdAt = rec.CreatedAt
		}
		return &SubmitResult{NotificationID: existingID, Status: status, CreatedAt: createdAt, AlreadyProcessed: true}, nil
	}

	// 2. User lookup (circuit-breaker protected, cache-fronted).
	user, err := s.users.Get(ctx, req.UserID)
	if err != nil {
		return nil, dtos.ErrUserServiceUnavailable(err.Error())
	}

	// 3. Preference gate.
	if req.NotificationType == dtos.Email && !user.Preferences.Email {
		return nil, dtos.ErrBlockedByPreference("user disabled email notifications")
	}
	if req.NotificationType == dtos.Push && !user.Preferences.Push {
		return nil, dtos.ErrBlockedByPreference("user disabled push notifications")
	}

	// 4. Recipient resolution.
	var recipient string
	switch req.NotificationType {
	case dtos.Email:
		recipient = user.Email
	case dtos.Push:
		recipient = user.PushToken
	}
	if recipient == "" {
		return nil, dtos.ErrMissingRecipient("no address on file for " + string(req.NotificationType))
	}

	// 5. Mint notification_id.
	notificationID := uuid.NewString()

	// 6. Build QueueMessage.
	now := time.Now()
	msg := &dtos.QueueMessage{
		NotificationID:   notificationID,
		NotificationType: req.NotificationType,
		UserID:           req.UserID,
		TemplateCode:     req.TemplateCode,
		Variables:        req.Variables,
		RequestID:        req.RequestID,
		Priority:         req.Priority,
		Recipient:        recipient,
		Timestamp:        now,
		RetryCount:       0,
		MaxRetries:       s.maxRetries,
		CorrelationID:    correlationID,
		Metadata:         req.Metadata,
	}

	// Atomically claim request_id just ahead of publish so that concurrent
	// submits racing past the earlier read-only steps still converge on a
	// single publish: the loser here never reaches the publish call.
	reserved, existingID, err := s.kv.ReserveIdempotency(ctx, req.RequestID, notificationID, s.notifyTTL)
	if err != nil {
		return nil, dtos.ErrQueueUnavailable("idempotency reservation failed: " + err.Error())
	}
	if !reserved {
		rec, _ := s.kv.GetNotificationRecord(ctx, existingID)
		status := dtos.StatusPending
		createdAt := now
		if rec != nil {
			status = rec.Status
			createdAt = rec.CreatedAt
		}
		return &SubmitResult{NotificationID: existingID, Status: status, CreatedAt: createdAt, AlreadyProcessed: true}, nil
	}

	// 7. Publish.
	if err := s.publisher.Publish(ctx, msg); err != nil {
		return nil, dtos.ErrQueueUnavailable(err.Error())
	}

	// 8. Persist NotificationRecord and append to user index.
	rec := &dtos.NotificationRecord{
		NotificationID:   notificationID,
		UserID:           req.UserID,
		NotificationType: req.NotificationType,
		Status:           dtos.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
		RequestID:        req.RequestID,
		CorrelationID:    correlationID,
		MaxRetries:       s.maxRetries,
	}
	if err := s.kv.PutNotificationRecord(ctx, rec, s.notifyTTL); err != nil {
		s.log.Error().Err(err).Str("notification_id", notificationID).Msg("failed to persist notification record after publish")
	}
	if err := s.kv.AppendUserIndex(ctx, req.UserID, notificationID, s.notifyTTL); err != nil {
		s.log.Error().Err(err).Str("notification_id", notificationID).Msg("failed to append user index after publish")
	}

	return &SubmitResult{NotificationID: notificationID, Status: dtos.StatusPending, CreatedAt: now}, nil
}
