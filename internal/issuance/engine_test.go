package issuance

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"certforge/internal/certificate"
	"certforge/internal/database"
	"certforge/internal/directory"
	"certforge/internal/template"
)

func newTestEngine(t *testing.T) (*Engine, *template.Store, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	dir := directory.NewGormDirectory(db)
	templates := template.NewStore(db)
	engine := NewEngine(db, templates, dir, dir, "Prof. Silva", 24, 5)
	return engine, templates, db
}

func seedScenario(t *testing.T, templates *template.Store, db *gorm.DB) *database.Template {
	t.Helper()
	ctx := context.Background()

	course := database.Course{Title: "Formação X", DefaultWorkloadHours: 40}
	if err := db.Create(&course).Error; err != nil {
		t.Fatalf("seed course: %v", err)
	}
	recipient := database.Recipient{Name: "Ana Souza", Email: "ana@x.com", ExternalID: "u-77"}
	if err := db.Create(&recipient).Error; err != nil {
		t.Fatalf("seed recipient: %v", err)
	}

	tmpl, err := templates.Create(ctx, template.NewTemplate{
		Name:              "T1",
		CourseID:          course.ID,
		WorkloadHours:     40,
		ValidationMessage: "Certificado válido.",
		Elements: []certificate.Element{
			{Label: "Nome do Aluno", Binding: certificate.BindingStudentName, XPct: 20, YPct: 38, WidthPct: 80},
		},
	})
	if err != nil {
		t.Fatalf("seed template: %v", err)
	}
	return tmpl
}

var tokenShape = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func TestIssueEndToEnd(t *testing.T) {
	engine, templates, db := newTestEngine(t)
	tmpl := seedScenario(t, templates, db)
	ctx := context.Background()

	completedAt := time.Date(2025, time.November, 10, 0, 0, 0, 0, time.UTC)
	record, err := engine.Issue(ctx, IssueParams{
		TemplateID:  tmpl.ID,
		Email:       "ana@x.com",
		CompletedAt: &completedAt,
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if !tokenShape.MatchString(record.Token) {
		t.Errorf("token %q is not URL-safe", record.Token)
	}
	if record.RecipientName != "Ana Souza" {
		t.Errorf("recipient name = %q", record.RecipientName)
	}
	if record.CourseTitle != "Formação X" {
		t.Errorf("course title = %q", record.CourseTitle)
	}

	var fields map[certificate.Binding]string
	if err := json.Unmarshal(record.Fields, &fields); err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	if fields[certificate.BindingStudentName] != "Ana Souza" {
		t.Errorf("student_name = %q", fields[certificate.BindingStudentName])
	}
	if fields[certificate.BindingCourseTitle] != "Formação X" {
		t.Errorf("course_title = %q", fields[certificate.BindingCourseTitle])
	}
	if fields[certificate.BindingCompletionDate] != "10 de Novembro de 2025" {
		t.Errorf("completion_date = %q", fields[certificate.BindingCompletionDate])
	}
	if fields[certificate.BindingValidationCode] != record.Token {
		t.Errorf("validation_code = %q, want token", fields[certificate.BindingValidationCode])
	}
	if fields[certificate.BindingInstructorName] != "Prof. Silva" {
		t.Errorf("instructor_name = %q", fields[certificate.BindingInstructorName])
	}

	var snapshot []certificate.ResolvedElement
	if err := json.Unmarshal(record.Snapshot, &snapshot); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snapshot) != 1 || snapshot[0].Text != "Ana Souza" {
		t.Fatalf("snapshot = %+v", snapshot)
	}

	view, err := NewLookup(db).Find(ctx, record.Token)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !view.Valid {
		t.Error("lookup should report valid")
	}
	if view.CourseTitle != "Formação X" {
		t.Errorf("lookup course title = %q", view.CourseTitle)
	}
	if view.RecipientName != "Ana Souza" {
		t.Errorf("lookup recipient = %q", view.RecipientName)
	}
	if view.Message != "Certificado válido." {
		t.Errorf("lookup message = %q", view.Message)
	}
}

func TestIssueTwiceMintsDistinctRecords(t *testing.T) {
	engine, templates, db := newTestEngine(t)
	tmpl := seedScenario(t, templates, db)
	ctx := context.Background()

	first, err := engine.Issue(ctx, IssueParams{TemplateID: tmpl.ID, Email: "ana@x.com"})
	if err != nil {
		t.Fatalf("first issue: %v", err)
	}
	second, err := engine.Issue(ctx, IssueParams{TemplateID: tmpl.ID, Email: "ana@x.com"})
	if err != nil {
		t.Fatalf("second issue: %v", err)
	}

	if first.ID == second.ID {
		t.Error("re-issue must create a distinct record")
	}
	if first.Token == second.Token {
		t.Error("re-issue must mint a distinct token")
	}
}

func TestIssueRequiresRecipientIdentity(t *testing.T) {
	engine, templates, db := newTestEngine(t)
	tmpl := seedScenario(t, templates, db)

	_, err := engine.Issue(context.Background(), IssueParams{TemplateID: tmpl.ID})
	if !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("err = %v, want ErrInvalidRecipient", err)
	}
}

func TestIssueUnknownTemplate(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.Issue(context.Background(), IssueParams{TemplateID: 999, Email: "ana@x.com"})
	if !errors.Is(err, template.ErrNotFound) {
		t.Fatalf("err = %v, want template.ErrNotFound", err)
	}
}

func TestIssueUnresolvedRecipient(t *testing.T) {
	engine, templates, db := newTestEngine(t)
	tmpl := seedScenario(t, templates, db)

	_, err := engine.Issue(context.Background(), IssueParams{TemplateID: tmpl.ID, Email: "ninguem@x.com"})
	if !errors.Is(err, ErrRecipientUnresolved) {
		t.Fatalf("err = %v, want ErrRecipientUnresolved", err)
	}
}

func TestIssueByExternalID(t *testing.T) {
	engine, templates, db := newTestEngine(t)
	tmpl := seedScenario(t, templates, db)

	record, err := engine.Issue(context.Background(), IssueParams{TemplateID: tmpl.ID, ExternalID: "u-77"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if record.RecipientName != "Ana Souza" {
		t.Errorf("recipient = %q", record.RecipientName)
	}
}

func TestRecordsSurviveTemplateDeletion(t *testing.T) {
	engine, templates, db := newTestEngine(t)
	tmpl := seedScenario(t, templates, db)
	ctx := context.Background()

	record, err := engine.Issue(ctx, IssueParams{TemplateID: tmpl.ID, Email: "ana@x.com"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := templates.Delete(ctx, tmpl.ID); err != nil {
		t.Fatalf("delete template: %v", err)
	}

	view, err := NewLookup(db).Find(ctx, record.Token)
	if err != nil {
		t.Fatalf("lookup after delete: %v", err)
	}
	if !view.Valid || view.TemplateName != "T1" {
		t.Fatalf("view = %+v", view)
	}
	// The validation message lived on the deleted template.
	if view.Message != "" {
		t.Errorf("message = %q, want empty after deletion", view.Message)
	}
}

func TestAppendMetadata(t *testing.T) {
	engine, templates, db := newTestEngine(t)
	tmpl := seedScenario(t, templates, db)
	ctx := context.Background()

	record, err := engine.Issue(ctx, IssueParams{
		TemplateID: tmpl.ID,
		Email:      "ana@x.com",
		Metadata:   map[string]string{"batch": "turma-2025"},
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := engine.AppendMetadata(ctx, record.ID, map[string]string{"revalidated_by": "admin"}); err != nil {
		t.Fatalf("append metadata: %v", err)
	}

	var reloaded database.IssuanceRecord
	if err := db.First(&reloaded, record.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	var metadata map[string]string
	if err := json.Unmarshal(reloaded.Metadata, &metadata); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if metadata["batch"] != "turma-2025" || metadata["revalidated_by"] != "admin" {
		t.Fatalf("metadata = %v", metadata)
	}
}

func TestMintTokenShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 64; i++ {
		token, err := MintToken(24)
		if err != nil {
			t.Fatalf("mint: %v", err)
		}
		if !tokenShape.MatchString(token) {
			t.Fatalf("token %q is not URL-safe", token)
		}
		if seen[token] {
			t.Fatalf("token %q repeated", token)
		}
		seen[token] = true
	}
}
