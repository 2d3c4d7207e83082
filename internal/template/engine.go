package template

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ndidit/notifyhub/internal/dtos"
	"github.com/ndidit/notifyhub/internal/models"
)

var ErrNoActiveTemplate = errors.New("no active template for code/language")
var ErrAlreadyActive = errors.New("an active template already exists for code/language")

// Engine owns Template rows and their cache entries: create, update
// (version+1, deactivate prior), soft-delete, get (cache-through), and
// render.
type Engine struct {
	db    *pgxpool.Pool
	cache *redis.Client
	ttl   time.Duration
}

func NewEngine(db *pgxpool.Pool, cache *redis.Client, ttl time.Duration) *Engine {
	return &Engine{db: db, cache: cache, ttl: ttl}
}

func cacheKey(code, language string, version *int) string {
	v := "latest"
	if version != nil {
		v = fmt.Sprintf("%d", *version)
	}
	return fmt.Sprintf("template:%s:%s:%s", code, language, v)
}

// Create inserts version=1, is_active=true. Fails if an active row already
// exists for (code, language).
func (e *Engine) Create(ctx context.Context, code, language, name, subject, body, createdBy string) (*models.Template, error) {
	existing, err := e.activeRow(ctx, code, language)
	if err != nil && !errors.Is(err, ErrNoActiveTemplate) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyActive
	}

	row := e.db.QueryRow(ctx, `
		INSERT INTO templates (template_code, language, version, name, subject, body, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, 1, $3, $4, $5, true, $6, now(), now())
		RETURNING id, template_code, language, version, name, subject, body, is_active, created_at, updated_at, created_by
	`, code, language, name, subject, body, createdBy)

	return scanTemplate(row)
}

// Update reads the current active row, inserts version+1 as the new
// active row, and deactivates the prior row, all in one transaction.
// Invalidates cache entries for (code, language, *).
func (e *Engine) Update(ctx context.Context, code, language string, name, subject, body *string) (*models.Template, error) {
	tx, err := e.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var current models.Template
	err = tx.QueryRow(ctx, `
		SELECT id, template_code, language, version, name, subject, body, is_active, created_at, updated_at, created_by
		FROM templates WHERE template_code=$1 AND language=$2 AND is_active=true
	`, code, language).Scan(&current.ID, &current.TemplateCode, &current.Language, &current.Version,
		&current.Name, &current.Subject, &current.Body, &current.IsActive, &current.CreatedAt, &current.UpdatedAt, &current.CreatedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoActiveTemplate
	}
	if err != nil {
		return nil, err
	}

	newName, newSubject, newBody := current.Name, current.Subject, current.Body
	if name != nil {
		newName = *name
	}
	if subject != nil {
		newSubject = *subject
	}
	if body != nil {
		newBody = *body
	}

	if _, err := tx.Exec(ctx, `UPDATE templates SET is_active=false, updated_at=now() WHERE id=$1`, current.ID); err != nil {
		return nil, err
	}

	var next models.Template
	err = tx.QueryRow(ctx, `
		INSERT INTO templates (template_code, language, version, name, subject, body, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, true, $7, now(), now())
		RETURNING id, template_code, language, version, name, subject, body, is_active, created_at, updated_at, created_by
	`, code, language, current.Version+1, newName, newSubject, newBody, current.CreatedBy).Scan(
		&next.ID, &next.TemplateCode, &next.Language, &next.Version,
		&next.Name, &next.Subject, &next.Body, &next.IsActive, &next.CreatedAt, &next.UpdatedAt, &next.CreatedBy)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	e.invalidate(ctx, code, language)
	return &next, nil
}

// Delete soft-deletes the active row for (code, language).
func (e *Engine) Delete(ctx context.Context, code, language string) error {
	tag, err := e.db.Exec(ctx, `UPDATE templates SET is_active=false, updated_at=now() WHERE template_code=$1 AND language=$2 AND is_active=true`, code, language)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoActiveTemplate
	}
	e.invalidate(ctx, code, language)
	return nil
}

// Get returns the specified version, or the highest-versioned active row
// when version is nil, serving from cache when present.
func (e *Engine) Get(ctx context.Context, code, language string, version *int) (*models.Template, error) {
	key := cacheKey(code, language, version)

	if cached, err := e.cache.Get(ctx, key).Result(); err == nil {
		var t models.Template
		if jsonErr := json.Unmarshal([]byte(cached), &t); jsonErr == nil {
			return &t, nil
		}
	}

	var tmpl *models.Template
	var err error
	if version != nil {
		tmpl, err = e.versionRow(ctx, code, language, *version)
	} else {
		tmpl, err = e.activeRow(ctx, code, language)
	}
	if err != nil {
		return nil, err
	}

	if body, marshalErr := json.Marshal(tmpl); marshalErr == nil {
		e.cache.Set(ctx, key, body, e.ttl)
	}
	return tmpl, nil
}

// Render loads the resolved template and substitutes {{variable}}
// placeholders in subject and body.
func (e *Engine) Render(ctx context.Context, code string, variables map[string]any, language string, version *int) (*dtos.TemplateRenderResponse, error) {
	tmpl, err := e.Get(ctx, code, language, version)
	if err != nil {
		return nil, err
	}

	return &dtos.TemplateRenderResponse{
		Subject:    RenderString(tmpl.Subject, variables),
		Body:       RenderString(tmpl.Body, variables),
		Language:   tmpl.Language,
		Version:    tmpl.Version,
		RenderedAt: time.Now(),
	}, nil
}

func (e *Engine) activeRow(ctx context.Context, code, language string) (*models.Template, error) {
	row := e.db.QueryRow(ctx, `
		SELECT id, template_code, language, version, name, subject, body, is_active, created_at, updated_at, created_by
		FROM templates WHERE template_code=$1 AND language=$2 AND is_active=true
		ORDER BY version DESC LIMIT 1
	`, code, language)
	t, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoActiveTemplate
	}
	return t, err
}

func (e *Engine) versionRow(ctx context.Context, code, language string, version int) (*models.Template, error) {
	row := e.db.QueryRow(ctx, `
		SELECT id, template_code, language, version, name, subject, body, is_active, created_at, updated_at, created_by
		FROM templates WHERE template_code=$1 AND language=$2 AND version=$3
	`, code, language, version)
	t, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoActiveTemplate
	}
	return t, err
}

func (e *Engine) invalidate(ctx context.Context, code, language string) {
	iter := e.cache.Scan(ctx, 0, fmt.Sprintf("template:%s:%s:*", code, language), 0).Iterator()
	for iter.Next(ctx) {
		e.cache.Del(ctx, iter.Val())
	}
}

func scanTemplate(row pgx.Row) (*models.Template, error) {
	var t models.Template
	err := row.Scan(&t.ID, &t.TemplateCode, &t.Language, &t.Version, &t.Name, &t.Subject, &t.Body, &t.IsActive, &t.CreatedAt, &t.UpdatedAt, &t.CreatedBy)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
