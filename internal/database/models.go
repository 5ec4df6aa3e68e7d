package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Template status values. Status gates automatic (worker-driven) issuance
// only; manual issuance works in either state.
const (
	TemplateStatusDraft     = "draft"
	TemplateStatusPublished = "published"
)

// User is an operator account for the authoring/issuance surface.
type User struct {
	gorm.Model
	Username     string `gorm:"uniqueIndex;size:64"`
	PasswordHash string `gorm:"size:255"`
}

// Template is a reusable certificate layout. Elements holds the ordered
// []certificate.Element list as JSONB; image fields are opaque public URLs
// handed out by the asset storage.
type Template struct {
	gorm.Model
	Name              string `gorm:"size:255"`
	CourseID          uint   `gorm:"index"`
	Description       string `gorm:"size:1024"`
	BackgroundURL     string `gorm:"size:512"`
	BadgeURL          string `gorm:"size:512"`
	AccentColor       string `gorm:"size:32"`
	WorkloadHours     float64
	ValidationMessage string         `gorm:"size:1024"`
	SignatureURLs     datatypes.JSON `gorm:"type:jsonb"`
	Status            string         `gorm:"size:16;default:draft"`
	Elements          datatypes.JSON `gorm:"type:jsonb"`
}

// Course is the catalog entry templates reference.
type Course struct {
	gorm.Model
	Title                string `gorm:"size:255"`
	DefaultWorkloadHours float64
}

// Recipient is a directory entry resolvable by email or external id.
type Recipient struct {
	gorm.Model
	Name       string `gorm:"size:255"`
	Email      string `gorm:"uniqueIndex;size:255"`
	ExternalID string `gorm:"index;size:64"`
}

// IssuanceRecord is an immutable, per-recipient instantiation of a template.
// TemplateID is retained without a foreign key so records survive template
// deletion; TemplateName/CourseTitle/RecipientName are frozen copies for the
// public validation view. Token carries the global uniqueness constraint;
// the mint-retry loop in the issuance engine is only an optimization on top
// of this index.
type IssuanceRecord struct {
	gorm.Model
	TemplateID          uint   `gorm:"index"`
	TemplateName        string `gorm:"size:255"`
	CourseTitle         string `gorm:"size:255"`
	RecipientName       string `gorm:"size:255"`
	RecipientEmail      string `gorm:"index;size:255"`
	RecipientExternalID string `gorm:"size:64"`
	Token               string `gorm:"uniqueIndex;size:64"`
	IssuedAt            time.Time
	Fields              datatypes.JSON `gorm:"type:jsonb"` // binding -> resolved value
	Snapshot            datatypes.JSON `gorm:"type:jsonb"` // per-element resolved text
	Metadata            datatypes.JSON `gorm:"type:jsonb"`
}
