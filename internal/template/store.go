// Package template implements CRUD over certificate template aggregates.
// Element geometry is routed through the coordinate engine on every write so
// authoring tools can send raw pixel-derived values: out-of-range width/x/y
// is clamped, never rejected.
package template

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"certforge/internal/certificate"
	"certforge/internal/database"
	"certforge/internal/geometry"
)

var (
	// ErrNotFound is returned on get/update/delete of an unknown template id.
	ErrNotFound = errors.New("template not found")
	// ErrElementNotFound is returned when an element id is not part of the
	// template.
	ErrElementNotFound = errors.New("element not found")
	// ErrInvalidElement is returned for elements with an unknown binding
	// kind. Geometry is never a cause: it is clamped instead.
	ErrInvalidElement = errors.New("invalid element")
)

// Store persists template aggregates.
type Store struct {
	db *gorm.DB
}

// NewStore constructs a Store over db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// NewTemplate carries the fields for template creation.
type NewTemplate struct {
	Name              string
	CourseID          uint
	Description       string
	BackgroundURL     string
	BadgeURL          string
	AccentColor       string
	WorkloadHours     float64
	ValidationMessage string
	SignatureURLs     []string
	Elements          []certificate.Element
}

// Patch carries a partial template update; nil fields are left untouched.
type Patch struct {
	Name              *string
	CourseID          *uint
	Description       *string
	BackgroundURL     *string
	BadgeURL          *string
	AccentColor       *string
	WorkloadHours     *float64
	ValidationMessage *string
	SignatureURLs     *[]string
	Elements          *[]certificate.Element
}

// ElementPatch carries a partial element update; nil fields are left
// untouched. Geometry values are clamped on apply.
type ElementPatch struct {
	Label         *string
	Binding       *certificate.Binding
	Content       *string
	FontFamily    *string
	FontWeight    *string
	FontSizePx    *int
	Color         *string
	Align         *string
	Uppercase     *bool
	LetterSpacing *float64
	WidthPct      *float64
	XPct          *float64
	YPct          *float64
	ZIndex        *int
}

// ListFilter narrows List results.
type ListFilter struct {
	Status   string
	CourseID uint
}

// Create persists a new template in draft status. Every element receives an
// id when missing and goes through the clamp path.
func (s *Store) Create(ctx context.Context, nt NewTemplate) (*database.Template, error) {
	elements := make([]certificate.Element, len(nt.Elements))
	for i, el := range nt.Elements {
		clamped, err := prepareElement(el)
		if err != nil {
			return nil, err
		}
		elements[i] = clamped
	}

	elementsJSON, err := json.Marshal(elements)
	if err != nil {
		return nil, fmt.Errorf("encode elements: %w", err)
	}
	signaturesJSON, err := json.Marshal(nt.SignatureURLs)
	if err != nil {
		return nil, fmt.Errorf("encode signature urls: %w", err)
	}

	model := database.Template{
		Name:              nt.Name,
		CourseID:          nt.CourseID,
		Description:       nt.Description,
		BackgroundURL:     nt.BackgroundURL,
		BadgeURL:          nt.BadgeURL,
		AccentColor:       nt.AccentColor,
		WorkloadHours:     nt.WorkloadHours,
		ValidationMessage: nt.ValidationMessage,
		SignatureURLs:     datatypes.JSON(signaturesJSON),
		Status:            database.TemplateStatusDraft,
		Elements:          datatypes.JSON(elementsJSON),
	}

	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	return &model, nil
}

// Get loads one template by id.
func (s *Store) Get(ctx context.Context, id uint) (*database.Template, error) {
	var model database.Template
	if err := s.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query template: %w", err)
	}
	return &model, nil
}

// List returns templates matching the filter, most recently updated first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]database.Template, error) {
	query := s.db.WithContext(ctx).Model(&database.Template{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CourseID != 0 {
		query = query.Where("course_id = ?", filter.CourseID)
	}

	var templates []database.Template
	if err := query.Order("updated_at DESC").Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// Update merges patch into the template. Last write wins; concurrent
// co-editing is not arbitrated.
func (s *Store) Update(ctx context.Context, id uint, patch Patch) (*database.Template, error) {
	model, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		model.Name = *patch.Name
	}
	if patch.CourseID != nil {
		model.CourseID = *patch.CourseID
	}
	if patch.Description != nil {
		model.Description = *patch.Description
	}
	if patch.BackgroundURL != nil {
		model.BackgroundURL = *patch.BackgroundURL
	}
	if patch.BadgeURL != nil {
		model.BadgeURL = *patch.BadgeURL
	}
	if patch.AccentColor != nil {
		model.AccentColor = *patch.AccentColor
	}
	if patch.WorkloadHours != nil {
		model.WorkloadHours = *patch.WorkloadHours
	}
	if patch.ValidationMessage != nil {
		model.ValidationMessage = *patch.ValidationMessage
	}
	if patch.SignatureURLs != nil {
		encoded, err := json.Marshal(*patch.SignatureURLs)
		if err != nil {
			return nil, fmt.Errorf("encode signature urls: %w", err)
		}
		model.SignatureURLs = datatypes.JSON(encoded)
	}
	if patch.Elements != nil {
		elements := make([]certificate.Element, len(*patch.Elements))
		for i, el := range *patch.Elements {
			clamped, err := prepareElement(el)
			if err != nil {
				return nil, err
			}
			elements[i] = clamped
		}
		encoded, err := json.Marshal(elements)
		if err != nil {
			return nil, fmt.Errorf("encode elements: %w", err)
		}
		model.Elements = datatypes.JSON(encoded)
	}

	if err := s.db.WithContext(ctx).Save(model).Error; err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	return model, nil
}

// Delete removes the template. Issuance records are not cascaded: they keep
// the template id and their frozen snapshots.
func (s *Store) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&database.Template{}, id)
	if result.Error != nil {
		return fmt.Errorf("delete template: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStatus transitions the template between draft and published.
func (s *Store) SetStatus(ctx context.Context, id uint, status string) (*database.Template, error) {
	if status != database.TemplateStatusDraft && status != database.TemplateStatusPublished {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidElement, status)
	}
	model, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	model.Status = status
	if err := s.db.WithContext(ctx).Save(model).Error; err != nil {
		return nil, fmt.Errorf("update template status: %w", err)
	}
	return model, nil
}

// AddElement appends a new element to the template, assigning an id and
// clamping geometry. The stored element is returned.
func (s *Store) AddElement(ctx context.Context, id uint, el certificate.Element) (*certificate.Element, error) {
	model, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	elements, err := DecodeElements(model)
	if err != nil {
		return nil, err
	}

	clamped, err := prepareElement(el)
	if err != nil {
		return nil, err
	}
	if clamped.ZIndex == 0 {
		clamped.ZIndex = len(elements) + 1
	}
	elements = append(elements, clamped)

	if err := s.saveElements(ctx, model, elements); err != nil {
		return nil, err
	}
	return &clamped, nil
}

// UpdateElement merges patch into one element, clamping patched geometry with
// the same logic as create.
func (s *Store) UpdateElement(ctx context.Context, id uint, elementID string, patch ElementPatch) (*certificate.Element, error) {
	model, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	elements, err := DecodeElements(model)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range elements {
		if elements[i].ID == elementID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrElementNotFound
	}

	el := &elements[idx]
	if patch.Label != nil {
		el.Label = *patch.Label
	}
	if patch.Binding != nil {
		if !patch.Binding.Valid() {
			return nil, fmt.Errorf("%w: unknown binding %q", ErrInvalidElement, *patch.Binding)
		}
		el.Binding = *patch.Binding
	}
	if patch.Content != nil {
		el.Content = *patch.Content
	}
	if patch.FontFamily != nil {
		el.FontFamily = *patch.FontFamily
	}
	if patch.FontWeight != nil {
		el.FontWeight = *patch.FontWeight
	}
	if patch.FontSizePx != nil {
		el.FontSizePx = geometry.ClampFontSize(*patch.FontSizePx)
	}
	if patch.Color != nil {
		el.Color = *patch.Color
	}
	if patch.Align != nil {
		el.Align = *patch.Align
	}
	if patch.Uppercase != nil {
		el.Uppercase = *patch.Uppercase
	}
	if patch.LetterSpacing != nil {
		el.LetterSpacing = *patch.LetterSpacing
	}
	if patch.WidthPct != nil {
		el.WidthPct = geometry.ClampWidthPercent(*patch.WidthPct)
	}
	if patch.XPct != nil {
		el.XPct = geometry.ClampPercent(*patch.XPct)
	}
	if patch.YPct != nil {
		el.YPct = geometry.ClampPercent(*patch.YPct)
	}
	if patch.ZIndex != nil {
		el.ZIndex = *patch.ZIndex
	}

	if err := s.saveElements(ctx, model, elements); err != nil {
		return nil, err
	}
	return el, nil
}

// RemoveElement deletes one element from the template.
func (s *Store) RemoveElement(ctx context.Context, id uint, elementID string) error {
	model, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	elements, err := DecodeElements(model)
	if err != nil {
		return err
	}

	kept := elements[:0]
	found := false
	for _, el := range elements {
		if el.ID == elementID {
			found = true
			continue
		}
		kept = append(kept, el)
	}
	if !found {
		return ErrElementNotFound
	}

	return s.saveElements(ctx, model, kept)
}

// Duplicate copies a template into a new draft with fresh element ids.
func (s *Store) Duplicate(ctx context.Context, id uint) (*database.Template, error) {
	src, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	elements, err := DecodeElements(src)
	if err != nil {
		return nil, err
	}
	for i := range elements {
		elements[i].ID = uuid.NewString()
	}
	encoded, err := json.Marshal(elements)
	if err != nil {
		return nil, fmt.Errorf("encode elements: %w", err)
	}

	clone := database.Template{
		Name:              src.Name + " (cópia)",
		CourseID:          src.CourseID,
		Description:       src.Description,
		BackgroundURL:     src.BackgroundURL,
		BadgeURL:          src.BadgeURL,
		AccentColor:       src.AccentColor,
		WorkloadHours:     src.WorkloadHours,
		ValidationMessage: src.ValidationMessage,
		SignatureURLs:     src.SignatureURLs,
		Status:            database.TemplateStatusDraft,
		Elements:          datatypes.JSON(encoded),
	}
	if err := s.db.WithContext(ctx).Create(&clone).Error; err != nil {
		return nil, fmt.Errorf("duplicate template: %w", err)
	}
	return &clone, nil
}

// DecodeElements unpacks the JSONB element list of a template model.
func DecodeElements(model *database.Template) ([]certificate.Element, error) {
	if len(model.Elements) == 0 {
		return nil, nil
	}
	var elements []certificate.Element
	if err := json.Unmarshal(model.Elements, &elements); err != nil {
		return nil, fmt.Errorf("decode elements: %w", err)
	}
	return elements, nil
}

// DecodeSignatureURLs unpacks the JSONB signature list of a template model.
func DecodeSignatureURLs(model *database.Template) ([]string, error) {
	if len(model.SignatureURLs) == 0 {
		return nil, nil
	}
	var urls []string
	if err := json.Unmarshal(model.SignatureURLs, &urls); err != nil {
		return nil, fmt.Errorf("decode signature urls: %w", err)
	}
	return urls, nil
}

func (s *Store) saveElements(ctx context.Context, model *database.Template, elements []certificate.Element) error {
	encoded, err := json.Marshal(elements)
	if err != nil {
		return fmt.Errorf("encode elements: %w", err)
	}
	model.Elements = datatypes.JSON(encoded)
	if err := s.db.WithContext(ctx).Save(model).Error; err != nil {
		return fmt.Errorf("save elements: %w", err)
	}
	return nil
}

// prepareElement assigns an id when missing, validates the binding kind and
// clamps geometry. X+width is deliberately not bounded to 100: elements may
// overflow the canvas edge.
func prepareElement(el certificate.Element) (certificate.Element, error) {
	if el.Binding == "" {
		el.Binding = certificate.BindingCustom
	}
	if !el.Binding.Valid() {
		return certificate.Element{}, fmt.Errorf("%w: unknown binding %q", ErrInvalidElement, el.Binding)
	}
	if el.ID == "" {
		el.ID = uuid.NewString()
	}
	if el.FontSizePx == 0 {
		el.FontSizePx = 16
	}
	el.FontSizePx = geometry.ClampFontSize(el.FontSizePx)
	el.WidthPct = geometry.ClampWidthPercent(el.WidthPct)
	el.XPct = geometry.ClampPercent(el.XPct)
	el.YPct = geometry.ClampPercent(el.YPct)
	return el, nil
}
