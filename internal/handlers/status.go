package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/ndidit/notifyhub/internal/dtos"
	"github.com/ndidit/notifyhub/internal/httpjson"
)

// StatusStore is the subset of kv.Store the status-post endpoints depend on.
type StatusStore interface {
	GetNotificationRecord(ctx context.Context, id string) (*dtos.NotificationRecord, error)
	PutNotificationRecord(ctx context.Context, rec *dtos.NotificationRecord, ttl time.Duration) error
}

type StatusHandler struct {
	logger   zerolog.Logger
	store    StatusStore
	ttl      time.Duration
	validate *validator.Validate
}

func NewStatusHandler(log zerolog.Logger, store StatusStore, ttl time.Duration) *StatusHandler {
	return &StatusHandler{logger: log, store: store, ttl: ttl, validate: validator.New()}
}

// HandleStatus updates a notification's terminal status; channel comes from
// the chi route (/email/status or /push/status) and is only used for
// logging, since the worker already stamped Provider on the record.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")

	var update dtos.NotificationStatusUpdate
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		httpjson.Failed(w, http.StatusBadRequest, err.Error(), "invalid request body")
		return
	}
	if err := h.validate.Struct(update); err != nil {
		httpjson.Failed(w, http.StatusBadRequest, err.Error(), "validation failed")
		return
	}

	rec, err := h.store.GetNotificationRecord(r.Context(), update.NotificationID)
	if err != nil {
		httpjson.Failed(w, http.StatusInternalServerError, err.Error(), "lookup failed")
		return
	}
	if rec == nil {
		httpjson.Failed(w, http.StatusNotFound, "NotFound", "notification not found")
		return
	}

	rec.Status = update.Status
	rec.Error = update.Error
	rec.Provider = update.Provider
	rec.ProviderMsgID = update.ProviderMsgID
	rec.UpdatedAt = time.Now()

	if err := h.store.PutNotificationRecord(r.Context(), rec, h.ttl); err != nil {
		httpjson.Failed(w, http.StatusInternalServerError, err.Error(), "failed to persist status")
		return
	}

	h.logger.Info().Str("channel", channel).Str("notification_id", update.NotificationID).Str("status", update.Status).Msg("status updated")
	httpjson.Success(w, http.StatusOK, rec, "status updated", nil)
}
