package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"certforge/internal/api/middleware"
	"certforge/internal/database"
	"certforge/internal/issuance"
	"certforge/internal/tasks"
	"certforge/internal/template"
)

// IssuanceHandler serves manual issuance, batch enqueueing and the
// per-template issuance listing.
type IssuanceHandler struct {
	engine            *issuance.Engine
	templates         *template.Store
	asynqClient       *asynq.Client
	validationBaseURL string
}

// NewIssuanceHandler constructs an IssuanceHandler. validationBaseURL, when
// set, is prepended to tokens so responses carry a shareable link.
func NewIssuanceHandler(engine *issuance.Engine, templates *template.Store, asynqClient *asynq.Client, validationBaseURL string) *IssuanceHandler {
	return &IssuanceHandler{
		engine:            engine,
		templates:         templates,
		asynqClient:       asynqClient,
		validationBaseURL: strings.TrimRight(validationBaseURL, "/"),
	}
}

type issueRequest struct {
	Email       string            `json:"email"`
	ExternalID  string            `json:"external_id"`
	CompletedAt *time.Time        `json:"completed_at"`
	Metadata    map[string]string `json:"metadata"`
}

type batchIssueRequest struct {
	Recipients  []issueRequest `json:"recipients" binding:"required,min=1"`
	CompletedAt *time.Time     `json:"completed_at"`
}

type issuanceResponse struct {
	ID            uint   `json:"id"`
	TemplateID    uint   `json:"template_id"`
	TemplateName  string `json:"template_name"`
	CourseTitle   string `json:"course_title"`
	RecipientName string `json:"recipient_name"`
	Token         string `json:"token"`
	ValidationURL string `json:"validation_url,omitempty"`
	IssuedAt      string `json:"issued_at"`
}

func (h *IssuanceHandler) newIssuanceResponse(record *database.IssuanceRecord) issuanceResponse {
	resp := issuanceResponse{
		ID:            record.ID,
		TemplateID:    record.TemplateID,
		TemplateName:  record.TemplateName,
		CourseTitle:   record.CourseTitle,
		RecipientName: record.RecipientName,
		Token:         record.Token,
		IssuedAt:      record.IssuedAt.Format(time.RFC3339),
	}
	if h.validationBaseURL != "" {
		resp.ValidationURL = h.validationBaseURL + "/" + record.Token
	}
	return resp
}

// POST /v1/templates/:id/issue
// Manual issuance works regardless of template status; only the automatic
// worker path checks the published gate.
func (h *IssuanceHandler) Issue(c *gin.Context) {
	id, ok := templateIDFromParam(c)
	if !ok {
		return
	}

	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	record, err := h.engine.Issue(c.Request.Context(), issuance.IssueParams{
		TemplateID:  id,
		Email:       req.Email,
		ExternalID:  req.ExternalID,
		CompletedAt: req.CompletedAt,
		Metadata:    req.Metadata,
	})
	if err != nil {
		h.renderIssueError(c, err)
		return
	}

	middleware.LoggerFromContext(c).Info("certificate issued",
		slog.Uint64("template_id", uint64(id)),
		slog.Uint64("record_id", uint64(record.ID)),
	)
	c.JSON(http.StatusCreated, h.newIssuanceResponse(record))
}

// POST /v1/templates/:id/issue-batch
// Enqueues one task per recipient; the worker enforces the published gate.
func (h *IssuanceHandler) IssueBatch(c *gin.Context) {
	id, ok := templateIDFromParam(c)
	if !ok {
		return
	}

	var req batchIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	tmpl, err := h.templates.Get(c.Request.Context(), id)
	if err != nil {
		h.renderIssueError(c, err)
		return
	}
	if tmpl.Status != database.TemplateStatusPublished {
		Conflict(c, "template must be published for batch issuance")
		return
	}

	correlationID := middleware.GetCorrelationID(c)
	logger := middleware.LoggerFromContext(c)

	enqueued := 0
	for _, recipient := range req.Recipients {
		payload := tasks.IssueCertificatePayload{
			TemplateID:    id,
			Email:         recipient.Email,
			ExternalID:    recipient.ExternalID,
			CorrelationID: correlationID,
		}
		completedAt := recipient.CompletedAt
		if completedAt == nil {
			completedAt = req.CompletedAt
		}
		if completedAt != nil {
			payload.CompletedAt = completedAt.Format(time.RFC3339)
		}

		task, err := tasks.NewIssueCertificateTask(payload)
		if err != nil {
			logger.Error("build issuance task failed", slog.Any("error", err))
			continue
		}
		if _, err := h.asynqClient.EnqueueContext(c.Request.Context(), task); err != nil {
			logger.Error("enqueue issuance task failed", slog.Any("error", err))
			continue
		}
		enqueued++
	}

	c.JSON(http.StatusAccepted, gin.H{
		"template_id": id,
		"requested":   len(req.Recipients),
		"enqueued":    enqueued,
	})
}

// GET /v1/templates/:id/issuances
func (h *IssuanceHandler) ListIssuances(c *gin.Context) {
	id, ok := templateIDFromParam(c)
	if !ok {
		return
	}

	records, err := h.engine.ListByTemplate(c.Request.Context(), id)
	if err != nil {
		middleware.LoggerFromContext(c).Error("list issuances failed", slog.Any("error", err))
		Internal(c, "failed to list issuances")
		return
	}

	items := make([]issuanceResponse, 0, len(records))
	for i := range records {
		items = append(items, h.newIssuanceResponse(&records[i]))
	}
	c.JSON(http.StatusOK, items)
}

// renderIssueError maps engine errors onto user-facing statuses. Recipient
// resolution failures get their own message so an operator can fix the
// submitted email/id.
func (h *IssuanceHandler) renderIssueError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, template.ErrNotFound):
		NotFound(c, "template not found")
	case errors.Is(err, issuance.ErrInvalidRecipient):
		BadRequest(c, "recipient requires email or external id")
	case errors.Is(err, issuance.ErrRecipientUnresolved):
		UnprocessableEntity(c, "recipient could not be resolved, check the email or id")
	case errors.Is(err, issuance.ErrTokenExhausted):
		middleware.LoggerFromContext(c).Error("token mint exhausted", slog.Any("error", err))
		Internal(c, "failed to mint validation token")
	default:
		middleware.LoggerFromContext(c).Error("issue certificate failed", slog.Any("error", err))
		Internal(c, "failed to issue certificate")
	}
}
