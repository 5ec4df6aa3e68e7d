package certificate

import (
	"testing"
	"time"
)

func TestResolveCustomElement(t *testing.T) {
	elements := []Element{
		{ID: "e1", Label: "Assinatura", Binding: BindingCustom, Content: "Diretora de Ensino"},
		{ID: "e2", Label: "Texto livre", Binding: BindingCustom},
	}

	resolved := Resolve(elements, NewPreviewContext(time.Now()))
	if resolved[0].Text != "Diretora de Ensino" {
		t.Fatalf("custom with content: got %q", resolved[0].Text)
	}
	if resolved[1].Text != "Texto livre" {
		t.Fatalf("custom without content falls back to label: got %q", resolved[1].Text)
	}
}

func TestResolveMissingFieldFallsBackToLabel(t *testing.T) {
	elements := []Element{{ID: "e1", Label: "Nome do Aluno", Binding: BindingStudentName}}
	ctx := Context{Kind: ContextPreview, Fields: map[Binding]string{}}

	resolved := Resolve(elements, ctx)
	if resolved[0].Text != "Nome do Aluno" {
		t.Fatalf("got %q, want label fallback", resolved[0].Text)
	}
	if resolved[0].Text == "" {
		t.Fatal("resolved text must never be empty")
	}
}

func TestResolveIssuanceContext(t *testing.T) {
	completed := time.Date(2025, time.November, 10, 0, 0, 0, 0, time.UTC)
	issued := time.Date(2025, time.December, 1, 9, 30, 0, 0, time.UTC)

	ctx := NewIssuanceContext(IssuanceData{
		StudentName:    "Ana Souza",
		CourseTitle:    "Formação X",
		CompletionDate: completed,
		IssuedDate:     issued,
		Token:          "tok_abc123",
		WorkloadHours:  40,
		InstructorName: "Prof. Silva",
	})

	elements := []Element{
		{ID: "name", Binding: BindingStudentName},
		{ID: "course", Binding: BindingCourseTitle},
		{ID: "completed", Binding: BindingCompletionDate},
		{ID: "issued", Binding: BindingIssuedDate},
		{ID: "code", Binding: BindingValidationCode},
		{ID: "hours", Binding: BindingHours},
		{ID: "instructor", Binding: BindingInstructorName},
	}

	want := map[string]string{
		"name":       "Ana Souza",
		"course":     "Formação X",
		"completed":  "10 de Novembro de 2025",
		"issued":     "1 de Dezembro de 2025",
		"code":       "tok_abc123",
		"hours":      "40 horas",
		"instructor": "Prof. Silva",
	}

	for _, r := range Resolve(elements, ctx) {
		if r.Text != want[r.ElementID] {
			t.Errorf("%s: got %q, want %q", r.ElementID, r.Text, want[r.ElementID])
		}
	}
}

func TestPreviewContextIsSynthetic(t *testing.T) {
	ctx := NewPreviewContext(time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC))
	if ctx.Kind != ContextPreview {
		t.Fatalf("kind = %q", ctx.Kind)
	}
	if ctx.Fields[BindingValidationCode] != "XXXX-XXXX-XXXX" {
		t.Fatalf("preview validation code = %q", ctx.Fields[BindingValidationCode])
	}
	if ctx.Fields[BindingCompletionDate] != "5 de Março de 2025" {
		t.Fatalf("preview completion date = %q", ctx.Fields[BindingCompletionDate])
	}
}

func TestFormatHours(t *testing.T) {
	if got := FormatHours(40); got != "40 horas" {
		t.Fatalf("FormatHours(40) = %q", got)
	}
	if got := FormatHours(12.5); got != "12.5 horas" {
		t.Fatalf("FormatHours(12.5) = %q", got)
	}
}

func TestBindingValid(t *testing.T) {
	for _, b := range []Binding{
		BindingStudentName, BindingCourseTitle, BindingCompletionDate,
		BindingIssuedDate, BindingValidationCode, BindingHours,
		BindingInstructorName, BindingCustom,
	} {
		if !b.Valid() {
			t.Errorf("%q should be valid", b)
		}
	}
	if Binding("signature").Valid() {
		t.Error("unknown binding should be invalid")
	}
}
