package issuance

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"certforge/internal/database"
)

// ErrInvalidToken is the single outcome for every failed lookup: unknown
// token, malformed token, storage error. Collapsing the reasons keeps the
// public endpoint from leaking which tokens or templates exist.
var ErrInvalidToken = errors.New("invalid token")

// maxTokenLength bounds accepted input; real tokens are far shorter.
const maxTokenLength = 128

// PublicView is the reduced, unauthenticated projection of an issuance
// record.
type PublicView struct {
	RecipientName string    `json:"recipient_name"`
	CourseTitle   string    `json:"course_title"`
	TemplateName  string    `json:"template_name"`
	IssuedAt      time.Time `json:"issued_at"`
	Valid         bool      `json:"valid"`
	Message       string    `json:"message,omitempty"`
}

// Lookup answers public token validations.
type Lookup struct {
	db *gorm.DB
}

// NewLookup constructs a Lookup over db.
func NewLookup(db *gorm.DB) *Lookup {
	return &Lookup{db: db}
}

// Find resolves a token into its public view. The validation message comes
// from the template when it still exists; records outlive their template.
func (l *Lookup) Find(ctx context.Context, token string) (PublicView, error) {
	if token == "" || len(token) > maxTokenLength {
		return PublicView{}, ErrInvalidToken
	}

	var record database.IssuanceRecord
	if err := l.db.WithContext(ctx).
		Where("token = ?", token).
		First(&record).Error; err != nil {
		return PublicView{}, ErrInvalidToken
	}

	view := PublicView{
		RecipientName: record.RecipientName,
		CourseTitle:   record.CourseTitle,
		TemplateName:  record.TemplateName,
		IssuedAt:      record.IssuedAt,
		Valid:         true,
	}

	var tmpl database.Template
	if err := l.db.WithContext(ctx).First(&tmpl, record.TemplateID).Error; err == nil {
		view.Message = tmpl.ValidationMessage
	}

	return view, nil
}
