// Package directory exposes the external collaborators the issuance engine
// resolves recipients and courses against. The interfaces keep the engine
// testable; the GORM implementations back them with the service database.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"certforge/internal/database"
)

// ErrNotFound is returned when a recipient or course cannot be resolved.
var ErrNotFound = errors.New("directory entry not found")

// Recipient is the resolved identity of a certificate holder.
type Recipient struct {
	Name       string
	Email      string
	ExternalID string
}

// Course is the resolved catalog entry a template references.
type Course struct {
	ID                   uint
	Title                string
	DefaultWorkloadHours float64
}

// RecipientDirectory resolves a recipient by email and/or external id.
type RecipientDirectory interface {
	ResolveRecipient(ctx context.Context, email, externalID string) (Recipient, error)
}

// CourseCatalog resolves a course by id.
type CourseCatalog interface {
	ResolveCourse(ctx context.Context, courseID uint) (Course, error)
}

// GormDirectory implements both lookups over the service database.
type GormDirectory struct {
	db *gorm.DB
}

// NewGormDirectory constructs a GormDirectory over db.
func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

// ResolveRecipient looks a recipient up by external id first, then by email.
func (d *GormDirectory) ResolveRecipient(ctx context.Context, email, externalID string) (Recipient, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	externalID = strings.TrimSpace(externalID)

	var model database.Recipient
	query := d.db.WithContext(ctx)
	switch {
	case externalID != "":
		query = query.Where("external_id = ?", externalID)
	case email != "":
		query = query.Where("email = ?", email)
	default:
		return Recipient{}, ErrNotFound
	}

	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Recipient{}, ErrNotFound
		}
		return Recipient{}, fmt.Errorf("query recipient: %w", err)
	}

	return Recipient{
		Name:       model.Name,
		Email:      model.Email,
		ExternalID: model.ExternalID,
	}, nil
}

// ResolveCourse looks a course up by id.
func (d *GormDirectory) ResolveCourse(ctx context.Context, courseID uint) (Course, error) {
	var model database.Course
	if err := d.db.WithContext(ctx).First(&model, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Course{}, ErrNotFound
		}
		return Course{}, fmt.Errorf("query course: %w", err)
	}
	return Course{
		ID:                   model.ID,
		Title:                model.Title,
		DefaultWorkloadHours: model.DefaultWorkloadHours,
	}, nil
}
