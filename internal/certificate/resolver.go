package certificate

import (
	"fmt"
	"strconv"
	"time"
)

// ContextKind distinguishes the synthetic authoring preview from a real
// issuance.
type ContextKind string

const (
	ContextPreview  ContextKind = "preview"
	ContextIssuance ContextKind = "issuance"
)

// Context carries the concrete field values elements resolve against. A
// binding absent from Fields falls back to the element label so a preview
// never collapses to blank text.
type Context struct {
	Kind   ContextKind
	Fields map[Binding]string
}

// IssuanceData is the raw material for an issuance context, formatted into
// display strings by NewIssuanceContext.
type IssuanceData struct {
	StudentName    string
	CourseTitle    string
	CompletionDate time.Time
	IssuedDate     time.Time
	Token          string
	WorkloadHours  float64
	InstructorName string
}

// NewIssuanceContext builds the field map for a real issuance.
func NewIssuanceContext(data IssuanceData) Context {
	return Context{
		Kind: ContextIssuance,
		Fields: map[Binding]string{
			BindingStudentName:    data.StudentName,
			BindingCourseTitle:    data.CourseTitle,
			BindingCompletionDate: FormatLongDate(data.CompletionDate),
			BindingIssuedDate:     FormatLongDate(data.IssuedDate),
			BindingValidationCode: data.Token,
			BindingHours:          FormatHours(data.WorkloadHours),
			BindingInstructorName: data.InstructorName,
		},
	}
}

// NewPreviewContext builds a synthetic sample field map for authoring tools.
// The validation code is a placeholder; no token is minted for previews.
func NewPreviewContext(now time.Time) Context {
	return Context{
		Kind: ContextPreview,
		Fields: map[Binding]string{
			BindingStudentName:    "Nome do Aluno",
			BindingCourseTitle:    "Nome do Curso",
			BindingCompletionDate: FormatLongDate(now),
			BindingIssuedDate:     FormatLongDate(now),
			BindingValidationCode: "XXXX-XXXX-XXXX",
			BindingHours:          FormatHours(40),
			BindingInstructorName: "Nome do Instrutor",
		},
	}
}

// ResolvedElement pairs an element id with its displayed text.
type ResolvedElement struct {
	ElementID string `json:"element_id"`
	Text      string `json:"text"`
}

// Resolve computes the displayed text for every element against ctx. Pure, no
// I/O. Custom elements show their literal content (label when empty); bound
// elements show the context value, falling back to the label when the field
// is missing.
func Resolve(elements []Element, ctx Context) []ResolvedElement {
	resolved := make([]ResolvedElement, 0, len(elements))
	for _, el := range elements {
		resolved = append(resolved, ResolvedElement{
			ElementID: el.ID,
			Text:      resolveOne(el, ctx),
		})
	}
	return resolved
}

func resolveOne(el Element, ctx Context) string {
	if el.Binding == BindingCustom {
		if el.Content != "" {
			return el.Content
		}
		return el.Label
	}
	if text, ok := ctx.Fields[el.Binding]; ok {
		return text
	}
	return el.Label
}

var longMonths = [...]string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

// FormatLongDate renders a date in the long day-month-year form shown on
// certificates, e.g. "10 de Novembro de 2025".
func FormatLongDate(t time.Time) string {
	return fmt.Sprintf("%d de %s de %d", t.Day(), longMonths[t.Month()-1], t.Year())
}

// FormatHours renders a workload as "N horas", trimming a trailing ".0".
func FormatHours(hours float64) string {
	return strconv.FormatFloat(hours, 'f', -1, 64) + " horas"
}
