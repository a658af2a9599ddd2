package visit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func expectHTTPStatus(t *testing.T, err error, want int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != want {
		t.Errorf("expected %d, got %d", want, httpErr.Code)
	}
}

func TestHandler_GetVisit(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	h := NewHandler(svc)
	e := echo.New()

	v := sampleVisit("Asha", "300", "0")
	if err := svc.CreateVisit(context.Background(), v); err != nil {
		t.Fatalf("CreateVisit: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(v.ID.String())
	if err := h.GetVisit(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var got Visit
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != v.ID || len(got.Lines) != 1 {
		t.Errorf("unexpected visit %+v", got)
	}

	for param, want := range map[string]int{
		uuid.NewString(): http.StatusNotFound,
		"not-a-uuid":     http.StatusBadRequest,
	} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(param)
		expectHTTPStatus(t, h.GetVisit(c), want)
	}
}

func TestHandler_ListVisits_Paginated(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	h := NewHandler(svc)
	e := echo.New()
	for _, name := range []string{"A", "B", "C"} {
		if err := svc.CreateVisit(context.Background(), sampleVisit(name, "100", "0")); err != nil {
			t.Fatalf("CreateVisit: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/?limit=2&offset=0", nil)
	rec := httptest.NewRecorder()
	if err := h.ListVisits(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var body struct {
		Data       []Visit `json:"data"`
		Total      int     `json:"total"`
		HasMore    bool    `json:"has_more"`
		NextOffset *int    `json:"next_offset"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 3 || len(body.Data) != 2 || !body.HasMore {
		t.Errorf("unexpected page: total=%d len=%d hasMore=%v", body.Total, len(body.Data), body.HasMore)
	}
	if body.NextOffset == nil || *body.NextOffset != 2 {
		t.Errorf("expected next_offset 2, got %v", body.NextOffset)
	}
}

func TestHandler_ListDues(t *testing.T) {
	svc := NewService(newMockRepo())
	h := NewHandler(svc)
	e := echo.New()
	_ = svc.CreateVisit(context.Background(), sampleVisit("Owes", "300", "100"))
	_ = svc.CreateVisit(context.Background(), sampleVisit("Settled", "300", "300"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	if err := h.ListDues(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 1 {
		t.Errorf("expected 1 visit with dues, got %d", body.Total)
	}
}

func TestHandler_AccountReport(t *testing.T) {
	svc := NewService(newMockRepo())
	h := NewHandler(svc)
	e := echo.New()

	tests := []struct {
		query string
		want  int
	}{
		{"/", http.StatusOK},
		{"/?from=2024-03-01&to=2024-04-01", http.StatusOK},
		{"/?from=2024-03-01T00:00:00Z", http.StatusOK},
		{"/?from=03/01/2024", http.StatusBadRequest},
		{"/?to=yesterday", http.StatusBadRequest},
		{"/?from=2024-04-01&to=2024-03-01", http.StatusBadRequest},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.query, nil)
		rec := httptest.NewRecorder()
		err := h.AccountReport(e.NewContext(req, rec))
		if tt.want == http.StatusOK {
			if err != nil {
				t.Errorf("%s: unexpected error: %v", tt.query, err)
			}
			continue
		}
		if err == nil {
			t.Errorf("%s: expected error", tt.query)
			continue
		}
		expectHTTPStatus(t, err, tt.want)
	}
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("")
	if err != nil || d != nil {
		t.Errorf("expected nil for empty input, got %v %v", d, err)
	}
	d, err = parseDate("2024-03-01")
	if err != nil || d.Day() != 1 || d.Month() != 3 {
		t.Errorf("unexpected date %v %v", d, err)
	}
}
