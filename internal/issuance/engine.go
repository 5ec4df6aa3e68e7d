// Package issuance mints immutable certificate issuance records and answers
// public validation lookups.
package issuance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"certforge/internal/certificate"
	"certforge/internal/database"
	"certforge/internal/directory"
	"certforge/internal/template"
)

var (
	// ErrInvalidRecipient is returned when neither email nor external id is
	// supplied.
	ErrInvalidRecipient = errors.New("recipient requires email or external id")
	// ErrRecipientUnresolved is returned when the directory cannot identify
	// the recipient. Callers surface it distinctly so an operator can fix
	// the submitted email/id.
	ErrRecipientUnresolved = errors.New("recipient could not be resolved")
	// ErrTokenExhausted is returned when token minting keeps colliding.
	// Astronomically unlikely at the configured entropy, handled anyway.
	ErrTokenExhausted = errors.New("token mint attempts exhausted")
)

// Engine creates issuance records: it resolves recipient and course data,
// mints a unique token, runs the binding resolver and persists the frozen
// snapshot. Each call creates exactly one new record; re-issuing for the
// same recipient mints a distinct token on purpose.
type Engine struct {
	db             *gorm.DB
	templates      *template.Store
	recipients     directory.RecipientDirectory
	courses        directory.CourseCatalog
	instructorName string
	tokenBytes     int
	maxAttempts    int
}

// NewEngine constructs an Engine.
func NewEngine(
	db *gorm.DB,
	templates *template.Store,
	recipients directory.RecipientDirectory,
	courses directory.CourseCatalog,
	instructorName string,
	tokenBytes int,
	maxAttempts int,
) *Engine {
	if tokenBytes <= 0 {
		tokenBytes = 24
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Engine{
		db:             db,
		templates:      templates,
		recipients:     recipients,
		courses:        courses,
		instructorName: instructorName,
		tokenBytes:     tokenBytes,
		maxAttempts:    maxAttempts,
	}
}

// IssueParams carries one issuance request.
type IssueParams struct {
	TemplateID uint
	Email      string
	ExternalID string
	// CompletedAt defaults to the issuance time when nil.
	CompletedAt *time.Time
	Metadata    map[string]string
}

// Issue creates and persists one issuance record. Template status is not
// checked here: manual issuance is permitted regardless of status, and the
// automatic path enforces the published gate before calling in.
func (e *Engine) Issue(ctx context.Context, params IssueParams) (*database.IssuanceRecord, error) {
	if strings.TrimSpace(params.Email) == "" && strings.TrimSpace(params.ExternalID) == "" {
		return nil, ErrInvalidRecipient
	}

	tmpl, err := e.templates.Get(ctx, params.TemplateID)
	if err != nil {
		return nil, err
	}

	recipient, err := e.recipients.ResolveRecipient(ctx, params.Email, params.ExternalID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, ErrRecipientUnresolved
		}
		return nil, fmt.Errorf("resolve recipient: %w", err)
	}

	courseTitle, hours := e.resolveCourse(ctx, tmpl)

	now := time.Now()
	completedAt := now
	if params.CompletedAt != nil {
		completedAt = *params.CompletedAt
	}

	elements, err := template.DecodeElements(tmpl)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		token, err := MintToken(e.tokenBytes)
		if err != nil {
			return nil, err
		}

		var count int64
		if err := e.db.WithContext(ctx).
			Model(&database.IssuanceRecord{}).
			Where("token = ?", token).
			Count(&count).Error; err != nil {
			return nil, fmt.Errorf("check token uniqueness: %w", err)
		}
		if count > 0 {
			continue
		}

		record, err := e.buildRecord(tmpl, recipient, courseTitle, hours, token, completedAt, now, elements, params.Metadata)
		if err != nil {
			return nil, err
		}

		if err := e.db.WithContext(ctx).Create(record).Error; err != nil {
			// A concurrent engine may have taken the token between the
			// check and the insert; the unique index catches it.
			if isDuplicateTokenErr(err) {
				continue
			}
			return nil, fmt.Errorf("persist issuance record: %w", err)
		}
		return record, nil
	}

	return nil, ErrTokenExhausted
}

// ListByTemplate returns all issuance records for a template, newest first.
func (e *Engine) ListByTemplate(ctx context.Context, templateID uint) ([]database.IssuanceRecord, error) {
	var records []database.IssuanceRecord
	if err := e.db.WithContext(ctx).
		Where("template_id = ?", templateID).
		Order("issued_at DESC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list issuances: %w", err)
	}
	return records, nil
}

// AppendMetadata merges entries into a record's metadata map. This is the
// only mutation issuance records admit after creation.
func (e *Engine) AppendMetadata(ctx context.Context, recordID uint, entries map[string]string) error {
	var record database.IssuanceRecord
	if err := e.db.WithContext(ctx).First(&record, recordID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return template.ErrNotFound
		}
		return fmt.Errorf("query issuance record: %w", err)
	}

	metadata := map[string]string{}
	if len(record.Metadata) > 0 {
		if err := json.Unmarshal(record.Metadata, &metadata); err != nil {
			return fmt.Errorf("decode metadata: %w", err)
		}
	}
	for k, v := range entries {
		metadata[k] = v
	}

	encoded, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := e.db.WithContext(ctx).
		Model(&record).
		Update("metadata", datatypes.JSON(encoded)).Error; err != nil {
		return fmt.Errorf("update metadata: %w", err)
	}
	return nil
}

// resolveCourse fetches the catalog entry behind the template. A missing
// course is tolerated: the template name stands in for the title, and the
// template workload is used directly.
func (e *Engine) resolveCourse(ctx context.Context, tmpl *database.Template) (title string, hours float64) {
	title = tmpl.Name
	hours = tmpl.WorkloadHours

	course, err := e.courses.ResolveCourse(ctx, tmpl.CourseID)
	if err != nil {
		return title, hours
	}
	title = course.Title
	if hours <= 0 {
		hours = course.DefaultWorkloadHours
	}
	return title, hours
}

func (e *Engine) buildRecord(
	tmpl *database.Template,
	recipient directory.Recipient,
	courseTitle string,
	hours float64,
	token string,
	completedAt, issuedAt time.Time,
	elements []certificate.Element,
	metadata map[string]string,
) (*database.IssuanceRecord, error) {
	ctx := certificate.NewIssuanceContext(certificate.IssuanceData{
		StudentName:    recipient.Name,
		CourseTitle:    courseTitle,
		CompletionDate: completedAt,
		IssuedDate:     issuedAt,
		Token:          token,
		WorkloadHours:  hours,
		InstructorName: e.instructorName,
	})

	fieldsJSON, err := json.Marshal(ctx.Fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	snapshotJSON, err := json.Marshal(certificate.Resolve(elements, ctx))
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	record := &database.IssuanceRecord{
		TemplateID:          tmpl.ID,
		TemplateName:        tmpl.Name,
		CourseTitle:         courseTitle,
		RecipientName:       recipient.Name,
		RecipientEmail:      recipient.Email,
		RecipientExternalID: recipient.ExternalID,
		Token:               token,
		IssuedAt:            issuedAt,
		Fields:              datatypes.JSON(fieldsJSON),
		Snapshot:            datatypes.JSON(snapshotJSON),
	}

	if len(metadata) > 0 {
		metadataJSON, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
		record.Metadata = datatypes.JSON(metadataJSON)
	}

	return record, nil
}

// isDuplicateTokenErr recognizes unique-index violations across drivers.
func isDuplicateTokenErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	reason := strings.ToLower(err.Error())
	return strings.Contains(reason, "duplicate key") || strings.Contains(reason, "unique constraint")
}
