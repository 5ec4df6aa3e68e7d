package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"certforge/internal/certificate"
	"certforge/internal/database"
	"certforge/internal/template"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newJSONContext(t *testing.T, method, path string, body any, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = params
	return c, w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestCreateTemplate_ClampsGeometry(t *testing.T) {
	db := newTestDB(t)
	h := NewTemplateHandler(template.NewStore(db))

	c, w := newJSONContext(t, http.MethodPost, "/v1/templates", gin.H{
		"name": "Certificado Básico",
		"elements": []gin.H{
			{
				"label":        "Nome do Aluno",
				"binding":      "student_name",
				"font_size_px": 500,
				"width_pct":    3,
				"x_pct":        150,
				"y_pct":        -10,
			},
		},
	}, nil)

	h.CreateTemplate(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}

	var detail templateDetailResponse
	decodeJSON(t, w, &detail)
	if detail.Status != database.TemplateStatusDraft {
		t.Fatalf("expected draft status got %q", detail.Status)
	}
	if len(detail.Elements) != 1 {
		t.Fatalf("expected 1 element got %d", len(detail.Elements))
	}
	el := detail.Elements[0]
	if el.XPct != 100 || el.YPct != 0 || el.WidthPct != 10 || el.FontSizePx != 200 {
		t.Fatalf("geometry not clamped: %+v", el)
	}
	if el.ID == "" {
		t.Fatal("expected element id to be assigned")
	}
}

func TestCreateTemplate_RejectsUnknownBinding(t *testing.T) {
	db := newTestDB(t)
	h := NewTemplateHandler(template.NewStore(db))

	c, w := newJSONContext(t, http.MethodPost, "/v1/templates", gin.H{
		"name": "Certificado",
		"elements": []gin.H{
			{"label": "Campo", "binding": "graduation_gpa"},
		},
	}, nil)

	h.CreateTemplate(c)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestGetTemplate_NotFound(t *testing.T) {
	db := newTestDB(t)
	h := NewTemplateHandler(template.NewStore(db))

	c, w := newJSONContext(t, http.MethodGet, "/v1/templates/999", nil, gin.Params{{Key: "id", Value: "999"}})

	h.GetTemplate(c)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestGetTemplate_InvalidID(t *testing.T) {
	db := newTestDB(t)
	h := NewTemplateHandler(template.NewStore(db))

	c, w := newJSONContext(t, http.MethodGet, "/v1/templates/abc", nil, gin.Params{{Key: "id", Value: "abc"}})

	h.GetTemplate(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestPublishTemplate(t *testing.T) {
	db := newTestDB(t)
	store := template.NewStore(db)
	h := NewTemplateHandler(store)

	created, err := store.Create(context.Background(), template.NewTemplate{Name: "Certificado"})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}

	id := strconv.FormatUint(uint64(created.ID), 10)
	c, w := newJSONContext(t, http.MethodPost, "/v1/templates/"+id+"/publish", nil, gin.Params{{Key: "id", Value: id}})

	h.PublishTemplate(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Status string `json:"status"`
	}
	decodeJSON(t, w, &resp)
	if resp.Status != database.TemplateStatusPublished {
		t.Fatalf("expected published got %q", resp.Status)
	}
}

func TestUpdateElement_ClampsPatchedGeometry(t *testing.T) {
	db := newTestDB(t)
	store := template.NewStore(db)
	h := NewTemplateHandler(store)

	created, err := store.Create(context.Background(), template.NewTemplate{
		Name: "Certificado",
		Elements: []certificate.Element{
			{Label: "Nome", Binding: certificate.BindingStudentName, XPct: 20, YPct: 30, WidthPct: 50},
		},
	})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	elements, err := template.DecodeElements(created)
	if err != nil {
		t.Fatalf("decode elements: %v", err)
	}

	id := strconv.FormatUint(uint64(created.ID), 10)
	c, w := newJSONContext(t, http.MethodPatch, "/v1/templates/"+id+"/elements/"+elements[0].ID,
		gin.H{"x_pct": 150},
		gin.Params{{Key: "id", Value: id}, {Key: "elementId", Value: elements[0].ID}},
	)

	h.UpdateElement(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var el certificate.Element
	decodeJSON(t, w, &el)
	if el.XPct != 100 {
		t.Fatalf("expected x_pct clamped to 100 got %v", el.XPct)
	}
}

func TestPreviewTemplate_ResolvesSampleText(t *testing.T) {
	db := newTestDB(t)
	store := template.NewStore(db)
	h := NewTemplateHandler(store)

	created, err := store.Create(context.Background(), template.NewTemplate{
		Name: "Certificado",
		Elements: []certificate.Element{
			{Label: "Nome", Binding: certificate.BindingStudentName},
		},
	})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}

	id := strconv.FormatUint(uint64(created.ID), 10)
	c, w := newJSONContext(t, http.MethodGet, "/v1/templates/"+id+"/preview", nil, gin.Params{{Key: "id", Value: id}})

	h.PreviewTemplate(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Elements []struct {
			Text string `json:"text"`
		} `json:"elements"`
	}
	decodeJSON(t, w, &resp)
	if len(resp.Elements) != 1 {
		t.Fatalf("expected 1 resolved element got %d", len(resp.Elements))
	}
	if resp.Elements[0].Text != "Nome do Aluno" {
		t.Fatalf("expected sample student name got %q", resp.Elements[0].Text)
	}
}
