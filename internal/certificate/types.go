// Package certificate defines the structured content stored in a template's
// Elements(JSONB) column and the pure resolution step that turns bound
// elements into displayed text for a preview or issuance context.
package certificate

// Binding is the closed set of symbolic fields an element's text can be
// sourced from. BindingCustom carries literal content on the element itself.
type Binding string

const (
	BindingStudentName    Binding = "student_name"
	BindingCourseTitle    Binding = "course_title"
	BindingCompletionDate Binding = "completion_date"
	BindingIssuedDate     Binding = "issued_date"
	BindingValidationCode Binding = "validation_code"
	BindingHours          Binding = "hours"
	BindingInstructorName Binding = "instructor_name"
	BindingCustom         Binding = "custom"
)

// Valid reports whether b is one of the known binding kinds.
func (b Binding) Valid() bool {
	switch b {
	case BindingStudentName, BindingCourseTitle, BindingCompletionDate,
		BindingIssuedDate, BindingValidationCode, BindingHours,
		BindingInstructorName, BindingCustom:
		return true
	}
	return false
}

// Alignment of element text within its box.
const (
	AlignLeft   = "left"
	AlignCenter = "center"
	AlignRight  = "right"
)

// Element is one positioned, styled text field within a template. Geometry
// lives in canvas percent-space; WidthPct is bounded to [10,100] and X/Y to
// [0,100]. X+WidthPct may exceed 100 so text can intentionally overflow the
// canvas edge.
type Element struct {
	ID            string  `json:"id"`
	Label         string  `json:"label"`
	Binding       Binding `json:"binding"`
	Content       string  `json:"content,omitempty"`
	FontFamily    string  `json:"font_family"`
	FontWeight    string  `json:"font_weight"`
	FontSizePx    int     `json:"font_size_px"`
	Color         string  `json:"color"`
	Align         string  `json:"align"`
	Uppercase     bool    `json:"uppercase"`
	LetterSpacing float64 `json:"letter_spacing"`
	WidthPct      float64 `json:"width_pct"`
	XPct          float64 `json:"x_pct"`
	YPct          float64 `json:"y_pct"`
	ZIndex        int     `json:"z_index"`
}
