package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ledger/internal/core"
)

func newParser(t *testing.T, contentType, body string) *RequestBodyParser {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return NewRequestBodyParser(httptest.NewRecorder(), req)
}

func TestRequestBodyParser(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantJSON    bool
		want        map[string]string // absent keys must be nil
		absent      []string
	}{
		{
			name:        "json body",
			contentType: "application/json",
			body:        `{"user_id":"u1","title":"Coffee","amount":-4.50,"category":"Food"}`,
			wantJSON:    true,
			want:        map[string]string{"user_id": "u1", "title": "Coffee", "amount": "-4.50", "category": "Food"},
		},
		{
			name:        "json with charset and string amount",
			contentType: "application/json; charset=utf-8",
			body:        `{"amount":"12,34"}`,
			wantJSON:    true,
			want:        map[string]string{"amount": "12,34"},
			absent:      []string{"title"},
		},
		{
			name:     "json detected without content type",
			body:     `  {"title":"  spaced  "}`,
			wantJSON: true,
			want:     map[string]string{"title": "  spaced  "},
		},
		{
			name:        "null counts as absent",
			contentType: "application/json",
			body:        `{"title":null}`,
			wantJSON:    true,
			absent:      []string{"title"},
		},
		{
			name:        "form body",
			contentType: "application/x-www-form-urlencoded",
			body:        "user_id=u1&title=Coffee&amount=-4.50&category=Food",
			want:        map[string]string{"user_id": "u1", "title": "Coffee", "amount": "-4.50", "category": "Food"},
		},
		{
			name:        "form with empty value is present",
			contentType: "application/x-www-form-urlencoded",
			body:        "title=",
			want:        map[string]string{"title": ""},
			absent:      []string{"amount"},
		},
		{
			name:   "empty body",
			absent: []string{"user_id", "title", "amount", "category"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newParser(t, tt.contentType, tt.body)
			if err := p.Parse(); err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if tt.body != "" && p.IsJSON() != tt.wantJSON {
				t.Errorf("IsJSON() = %v, want %v", p.IsJSON(), tt.wantJSON)
			}
			for key, want := range tt.want {
				got, err := p.Field(key)
				if err != nil {
					t.Fatalf("Field(%q) error = %v", key, err)
				}
				if got == nil || *got != want {
					t.Errorf("Field(%q) = %v, want %q", key, got, want)
				}
			}
			for _, key := range tt.absent {
				got, err := p.Field(key)
				if err != nil || got != nil {
					t.Errorf("Field(%q) = %v, %v; want nil, nil", key, got, err)
				}
			}
		})
	}
}

func TestRequestBodyParserRejectsMalformedJSON(t *testing.T) {
	for _, body := range []string{`{"title":`, `[1,2]`, `{"a":1} {"b":2}`, `"just a string"`} {
		p := newParser(t, "application/json", body)
		if err := p.Parse(); !errors.Is(err, errInvalidBody) {
			t.Errorf("Parse(%q) error = %v, want errInvalidBody", body, err)
		}
		// Parse is memoized.
		if err := p.Parse(); !errors.Is(err, errInvalidBody) {
			t.Errorf("second Parse(%q) error = %v", body, err)
		}
	}
}

func TestRequestBodyParserRejectsNonScalarField(t *testing.T) {
	p := newParser(t, "application/json", `{"title":{"nested":true},"amount":true}`)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	for _, key := range []string{"title", "amount"} {
		_, err := p.Field(key)
		if !errors.Is(err, core.ErrValidation) {
			t.Errorf("Field(%q) error = %v, want validation error", key, err)
		}
	}
	if _, err := p.Fields("user_id", "title"); err == nil {
		t.Errorf("Fields() should stop at the malformed field")
	}
}

func TestRequestBodyParserBodyLimit(t *testing.T) {
	body := `{"title":"` + strings.Repeat("x", MaxBodyBytes) + `"}`
	p := newParser(t, "application/json", body)
	if err := p.Parse(); !errors.Is(err, errBodyTooLarge) {
		t.Fatalf("Parse() error = %v, want errBodyTooLarge", err)
	}
}
