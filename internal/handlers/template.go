package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/ndidit/notifyhub/internal/dtos"
	"github.com/ndidit/notifyhub/internal/httpjson"
	"github.com/ndidit/notifyhub/internal/template"
)

// Renderer is the subset of template.Engine the HTTP surface exposes. The
// engine's Create/Update/Delete live as Go-level admin operations only, per
// the explicit non-goal against a CRUD HTTP surface beyond render.
type Renderer interface {
	Render(ctx context.Context, code string, variables map[string]any, language string, version *int) (*dtos.TemplateRenderResponse, error)
}

type TemplateHandler struct {
	logger   zerolog.Logger
	engine   Renderer
	validate *validator.Validate
}

func NewTemplateHandler(log zerolog.Logger, engine Renderer) *TemplateHandler {
	return &TemplateHandler{logger: log, engine: engine, validate: validator.New()}
}

func (h *TemplateHandler) HandleRender(w http.ResponseWriter, r *http.Request) {
	var req dtos.TemplateRenderRequest
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.Failed(w, http.StatusBadRequest, err.Error(), "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpjson.Failed(w, http.StatusBadRequest, err.Error(), "validation failed")
		return
	}
	if req.Language == "" {
		req.Language = "en"
	}

	resp, err := h.engine.Render(r.Context(), req.TemplateCode, req.Variables, req.Language, req.Version)
	if err != nil {
		if errors.Is(err, template.ErrNoActiveTemplate) {
			httpjson.Failed(w, http.StatusNotFound, "NotFound", "no active template for code/language")
			return
		}
		httpjson.Failed(w, http.StatusInternalServerError, err.Error(), "render failed")
		return
	}
	httpjson.Success(w, http.StatusOK, resp, "", nil)
}
