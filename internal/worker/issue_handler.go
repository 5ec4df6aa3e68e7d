// Package worker consumes asynq tasks for the automatic issuance path.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"certforge/internal/database"
	"certforge/internal/errcode"
	"certforge/internal/issuance"
	"certforge/internal/tasks"
	"certforge/internal/template"
)

// IssueTaskHandler processes automatic issuance tasks. Unlike manual
// issuance, the automatic path honors the template status gate: tasks for
// draft templates are dropped.
type IssueTaskHandler struct {
	engine    *issuance.Engine
	templates *template.Store
	logger    *slog.Logger
}

// NewIssueTaskHandler creates the task handler.
func NewIssueTaskHandler(engine *issuance.Engine, templates *template.Store, logger *slog.Logger) *IssueTaskHandler {
	return &IssueTaskHandler{
		engine:    engine,
		templates: templates,
		logger:    logger,
	}
}

// ProcessTask implements asynq.Handler. Data errors (missing template,
// unpublished template, unresolvable recipient) are logged and dropped;
// retrying would not fix them. Infrastructure errors are returned so asynq
// retries the task.
func (h *IssueTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.IssueCertificatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal task payload failed", slog.Any("error", err))
		return err
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("template_id", uint64(payload.TemplateID)),
		slog.String("email", payload.Email),
	)

	tmpl, err := h.templates.Get(ctx, payload.TemplateID)
	if err != nil {
		if errors.Is(err, template.ErrNotFound) {
			log.Warn("template gone, dropping issuance task", slog.Int("code", errcode.ResourceMissing))
			return nil
		}
		log.Error("load template failed", slog.Any("error", err))
		return err
	}
	if tmpl.Status != database.TemplateStatusPublished {
		log.Warn("template not published, dropping automatic issuance")
		return nil
	}

	params := issuance.IssueParams{
		TemplateID: payload.TemplateID,
		Email:      payload.Email,
		ExternalID: payload.ExternalID,
	}
	if payload.CompletedAt != "" {
		completedAt, err := time.Parse(time.RFC3339, payload.CompletedAt)
		if err != nil {
			log.Warn("invalid completed_at, dropping task", slog.String("completed_at", payload.CompletedAt))
			return nil
		}
		params.CompletedAt = &completedAt
	}

	record, err := h.engine.Issue(ctx, params)
	if err != nil {
		switch {
		case errors.Is(err, issuance.ErrRecipientUnresolved), errors.Is(err, issuance.ErrInvalidRecipient):
			log.Warn("recipient unresolved, dropping issuance task", slog.Int("code", errcode.RecipientUnresolved))
			return nil
		default:
			log.Error("issue certificate failed", slog.Int("code", errcode.SystemError), slog.Any("error", err))
			return err
		}
	}

	log.Info("certificate issued",
		slog.Uint64("record_id", uint64(record.ID)),
		slog.String("token", record.Token),
	)
	return nil
}
