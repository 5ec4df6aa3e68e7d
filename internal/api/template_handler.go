package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"certforge/internal/api/middleware"
	"certforge/internal/certificate"
	"certforge/internal/database"
	"certforge/internal/template"
)

// TemplateHandler serves the authoring surface over the template store.
type TemplateHandler struct {
	store *template.Store
}

// NewTemplateHandler constructs a TemplateHandler.
func NewTemplateHandler(store *template.Store) *TemplateHandler {
	return &TemplateHandler{store: store}
}

type createTemplateRequest struct {
	Name              string                `json:"name" binding:"required"`
	CourseID          uint                  `json:"course_id"`
	Description       string                `json:"description"`
	BackgroundURL     string                `json:"background_url"`
	BadgeURL          string                `json:"badge_url"`
	AccentColor       string                `json:"accent_color"`
	WorkloadHours     float64               `json:"workload_hours"`
	ValidationMessage string                `json:"validation_message"`
	SignatureURLs     []string              `json:"signature_urls"`
	Elements          []certificate.Element `json:"elements"`
}

type updateTemplateRequest struct {
	Name              *string                `json:"name"`
	CourseID          *uint                  `json:"course_id"`
	Description       *string                `json:"description"`
	BackgroundURL     *string                `json:"background_url"`
	BadgeURL          *string                `json:"badge_url"`
	AccentColor       *string                `json:"accent_color"`
	WorkloadHours     *float64               `json:"workload_hours"`
	ValidationMessage *string                `json:"validation_message"`
	SignatureURLs     *[]string              `json:"signature_urls"`
	Elements          *[]certificate.Element `json:"elements"`
}

type elementPatchRequest struct {
	Label         *string              `json:"label"`
	Binding       *certificate.Binding `json:"binding"`
	Content       *string              `json:"content"`
	FontFamily    *string              `json:"font_family"`
	FontWeight    *string              `json:"font_weight"`
	FontSizePx    *int                 `json:"font_size_px"`
	Color         *string              `json:"color"`
	Align         *string              `json:"align"`
	Uppercase     *bool                `json:"uppercase"`
	LetterSpacing *float64             `json:"letter_spacing"`
	WidthPct      *float64             `json:"width_pct"`
	XPct          *float64             `json:"x_pct"`
	YPct          *float64             `json:"y_pct"`
	ZIndex        *int                 `json:"z_index"`
}

type templateListItem struct {
	ID            uint      `json:"id"`
	Name          string    `json:"name"`
	CourseID      uint      `json:"course_id,omitempty"`
	Status        string    `json:"status"`
	BackgroundURL string    `json:"background_url,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type templateDetailResponse struct {
	ID                uint                  `json:"id"`
	Name              string                `json:"name"`
	CourseID          uint                  `json:"course_id,omitempty"`
	Description       string                `json:"description,omitempty"`
	BackgroundURL     string                `json:"background_url,omitempty"`
	BadgeURL          string                `json:"badge_url,omitempty"`
	AccentColor       string                `json:"accent_color,omitempty"`
	WorkloadHours     float64               `json:"workload_hours"`
	ValidationMessage string                `json:"validation_message,omitempty"`
	SignatureURLs     []string              `json:"signature_urls,omitempty"`
	Status            string                `json:"status"`
	Elements          []certificate.Element `json:"elements"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

func newTemplateDetail(model *database.Template) (templateDetailResponse, error) {
	elements, err := template.DecodeElements(model)
	if err != nil {
		return templateDetailResponse{}, err
	}
	signatures, err := template.DecodeSignatureURLs(model)
	if err != nil {
		return templateDetailResponse{}, err
	}
	if elements == nil {
		elements = []certificate.Element{}
	}
	return templateDetailResponse{
		ID:                model.ID,
		Name:              model.Name,
		CourseID:          model.CourseID,
		Description:       model.Description,
		BackgroundURL:     model.BackgroundURL,
		BadgeURL:          model.BadgeURL,
		AccentColor:       model.AccentColor,
		WorkloadHours:     model.WorkloadHours,
		ValidationMessage: model.ValidationMessage,
		SignatureURLs:     signatures,
		Status:            model.Status,
		Elements:          elements,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	}, nil
}

func templateIDFromParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "invalid template id")
		return 0, false
	}
	return uint(id), true
}

// POST /v1/templates
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	var req createTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	created, err := h.store.Create(c.Request.Context(), template.NewTemplate{
		Name:              req.Name,
		CourseID:          req.CourseID,
		Description:       req.Description,
		BackgroundURL:     req.BackgroundURL,
		BadgeURL:          req.BadgeURL,
		AccentColor:       req.AccentColor,
		WorkloadHours:     req.WorkloadHours,
		ValidationMessage: req.ValidationMessage,
		SignatureURLs:     req.SignatureURLs,
		Elements:          req.Elements,
	})
	if err != nil {
		h.renderStoreError(c, err, "failed to create template")
		return
	}

	detail, err := newTemplateDetail(created)
	if err != nil {
		Internal(c, "failed to render template")
		return
	}
	c.JSON(http.StatusCreated, detail)
}

// GET /v1/templates
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	filter := template.ListFilter{Status: c.Query("status")}
	if courseID, err := strconv.ParseUint(c.Query("course_id"), 10, 64); err == nil {
		filter.CourseID = uint(courseID)
	}

	templates, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		middleware.LoggerFromContext(c).Error("list templates failed", slog.Any("error", err))
		Internal(c, "failed to list templates")
		return
	}

	items := make([]templateListItem, 0, len(templates))
	for _, t := range templates {
		items = append(items, templateListItem{
			ID:            t.ID,
			Name:          t.Name,
			CourseID:      t.CourseID,
			Status:        t.Status,
			BackgroundURL: t.BackgroundURL,
			UpdatedAt:     t.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, items)
}

// GET /v1/templates/:id
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	id, ok := templateIDFromParam(c)
	if !ok {
		return
	}

	model, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		h.renderStoreError(c, err, "failed to query template")
		return
	}

	detail, err := newTemplateDetail(model)
	if err != nil {
		Internal(c, "failed to render template")
		return
	}
	c.JSON(http.StatusOK, detail)
}

// PATCH /v1/templates/:id
func (h *TemplateHandler) UpdateTemplate(c *gin.Context) {
	id, ok := templateIDFromParam(c)
	if !ok {
		return
	}

	var req updateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	updated, err := h.store.Update(c.Request.Context(), id, template.Patch{
		Name:              req.Name,
		CourseID:          req.CourseID,
		Description:       req.Description,
		BackgroundURL:     req.BackgroundURL,
		BadgeURL:          req.BadgeURL,
		AccentColor:       req.AccentColor,
		WorkloadHours:     req.WorkloadHours,
		ValidationMessage: req.ValidationMessage,
		SignatureURLs:     req.SignatureURLs,
		Elements:          req.Elements,
	})
	if err != nil {
		h.renderStoreError(c, err, "failed to update template")
		return
	}

	detail, err := newTemplateDetail(updated)
	if err != nil {
		Internal(c, "failed to render template")
		return
	}
	c.JSON(http.StatusOK, detail)
}

// DELETE /v1/templates/:id
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	id, ok := templateIDFromParam(c)
	if !ok {
		return
	}

	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		h.renderStoreError(c, err, "failed to delete template")
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /v1/templates/:id/duplicate
func (h *TemplateHandler) DuplicateTemplate(c *gin.Context) {
	id, ok := templateIDFromParam(c)
	if !ok {
		return
	}

	clone, err := h.store.Duplicate(c.Request.Context(), id)
	if err != nil {
		h.renderStoreError(c, err, "failed to duplicate template")
		return
	}

	detail, err := newTemplateDetail(clone)
	if err != nil {
		Internal(c, "failed to render template")
		return
	}
	c.JSON(http.StatusCreated, detail)
}

// POST /v1/templates/:id/publish
func (h *TemplateHandler) PublishTemplate(c *gin.Context) {
	h.setStatus(c, database.TemplateStatusPublished)
}

// POST /v1/templates/:id/unpublish
func (h *TemplateHandler) UnpublishTemplate(c *gin.Context) {
	h.setStatus(c, database.TemplateStatusDraft)
}

func (h *TemplateHandler) setStatus(c *gin.Context, status string) {
	id, ok := templateIDFromParam(c)
	if !ok {
		return
	}

	model, err := h.store.SetStatus(c.Request.Context(), id, status)
	if err != nil {
		h.renderStoreError(c, err, "failed to update template status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": model.ID, "status": model.Status})
}

// POST /v1/templates/:id/elements
func (h *TemplateHandler) AddElement(c *gin.Context) {
	id, ok := templateIDFromParam(c)
	if !ok {
		return
	}

	var el certificate.Element
	if err := c.ShouldBindJSON(&el); err != nil {
		BadRequest(c, err.Error())
		return
	}

	added, err := h.store.AddElement(c.Request.Context(), id, el)
	if err != nil {
		h.renderStoreError(c, err, "failed to add element")
		return
	}
	c.JSON(http.StatusCreated, added)
}

// PATCH /v1/templates/:id/elements/:elementId
func (h *TemplateHandler) UpdateElement(c *gin.Context) {
	id, ok := templateIDFromParam(c)
	if !ok {
		return
	}

	var req elementPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	updated, err := h.store.UpdateElement(c.Request.Context(), id, c.Param("elementId"), template.ElementPatch{
		Label:         req.Label,
		Binding:       req.Binding,
		Content:       req.Content,
		FontFamily:    req.FontFamily,
		FontWeight:    req.FontWeight,
		FontSizePx:    req.FontSizePx,
		Color:         req.Color,
		Align:         req.Align,
		Uppercase:     req.Uppercase,
		LetterSpacing: req.LetterSpacing,
		WidthPct:      req.WidthPct,
		XPct:          req.XPct,
		YPct:          req.YPct,
		ZIndex:        req.ZIndex,
	})
	if err != nil {
		h.renderStoreError(c, err, "failed to update element")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DELETE /v1/templates/:id/elements/:elementId
func (h *TemplateHandler) RemoveElement(c *gin.Context) {
	id, ok := templateIDFromParam(c)
	if !ok {
		return
	}

	if err := h.store.RemoveElement(c.Request.Context(), id, c.Param("elementId")); err != nil {
		h.renderStoreError(c, err, "failed to remove element")
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /v1/templates/:id/preview
// Runs the binding resolver with the synthetic sample context so authoring
// tools can render text without issuing.
func (h *TemplateHandler) PreviewTemplate(c *gin.Context) {
	id, ok := templateIDFromParam(c)
	if !ok {
		return
	}

	model, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		h.renderStoreError(c, err, "failed to query template")
		return
	}

	elements, err := template.DecodeElements(model)
	if err != nil {
		Internal(c, "failed to render template")
		return
	}

	resolved := certificate.Resolve(elements, certificate.NewPreviewContext(time.Now()))
	c.JSON(http.StatusOK, gin.H{
		"template_id": model.ID,
		"elements":    resolved,
	})
}

func (h *TemplateHandler) renderStoreError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, template.ErrNotFound):
		NotFound(c, "template not found")
	case errors.Is(err, template.ErrElementNotFound):
		NotFound(c, "element not found")
	case errors.Is(err, template.ErrInvalidElement):
		UnprocessableEntity(c, err.Error())
	default:
		middleware.LoggerFromContext(c).Error(fallback, slog.Any("error", err))
		Internal(c, fallback)
	}
}
