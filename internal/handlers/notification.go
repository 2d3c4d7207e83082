package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/ndidit/notifyhub/internal/dtos"
	"github.com/ndidit/notifyhub/internal/httpjson"
	"github.com/ndidit/notifyhub/internal/ingress"
	"github.com/ndidit/notifyhub/internal/middleware"
)

// RecordStore is the subset of kv.Store the read endpoints depend on.
type RecordStore interface {
	GetNotificationRecord(ctx context.Context, id string) (*dtos.NotificationRecord, error)
	GetUserIndex(ctx context.Context, userID string, offset, limit int64) ([]string, error)
	UserIndexLen(ctx context.Context, userID string) (int64, error)
}

type NotificationHandler struct {
	logger   zerolog.Logger
	ingress  *ingress.Service
	store    RecordStore
	validate *validator.Validate
}

func NewNotificationHandler(log zerolog.Logger, ingressSvc *ingress.Service, store RecordStore) *NotificationHandler {
	return &NotificationHandler{logger: log, ingress: ingressSvc, store: store, validate: validator.New()}
}

func (h *NotificationHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req dtos.NotificationRequest
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.Failed(w, http.StatusBadRequest, err.Error(), "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpjson.Failed(w, http.StatusBadRequest, err.Error(), "validation failed")
		return
	}

	correlationID := middleware.CorrelationIDFromContext(r.Context())

	result, failure := h.ingress.Submit(r.Context(), &req, correlationID)
	if failure != nil {
		h.logger.Error().Err(failure).Str("request_id", req.RequestID).Msg("submit failed")
		httpjson.FailureStatus(w, failure)
		return
	}

	status := http.StatusAccepted
	if result.AlreadyProcessed {
		status = http.StatusOK
	}
	httpjson.Success(w, status, map[string]any{
		"notification_id": result.NotificationID,
		"status":          result.Status,
		"created_at":      result.CreatedAt,
	}, "notification accepted", nil)
}

func (h *NotificationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.store.GetNotificationRecord(r.Context(), id)
	if err != nil {
		httpjson.Failed(w, http.StatusInternalServerError, err.Error(), "lookup failed")
		return
	}
	if rec == nil {
		httpjson.Failed(w, http.StatusNotFound, "NotFound", "notification not found")
		return
	}
	httpjson.Success(w, http.StatusOK, rec, "", nil)
}

func (h *NotificationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		httpjson.Failed(w, http.StatusUnauthorized, "Unauthorized", "missing authenticated user")
		return
	}

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := int64(page-1) * int64(limit)

	total, err := h.store.UserIndexLen(r.Context(), userID)
	if err != nil {
		httpjson.Failed(w, http.StatusInternalServerError, err.Error(), "lookup failed")
		return
	}

	ids, err := h.store.GetUserIndex(r.Context(), userID, offset, int64(limit))
	if err != nil {
		httpjson.Failed(w, http.StatusInternalServerError, err.Error(), "lookup failed")
		return
	}

	records := make([]*dtos.NotificationRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := h.store.GetNotificationRecord(r.Context(), id)
		if err != nil || rec == nil {
			continue
		}
		records = append(records, rec)
	}

	totalPages := int(total) / limit
	if int(total)%limit != 0 {
		totalPages++
	}

	meta := &dtos.PaginationMeta{
		Total:       int(total),
		Limit:       limit,
		Page:        page,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
	httpjson.Success(w, http.StatusOK, records, "", meta)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
