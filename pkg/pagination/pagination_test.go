package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(query string) Params {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/"+query, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", DefaultLimit, 0},
		{"?limit=5&offset=10", 5, 10},
		{"?limit=1000", MaxLimit, 0},
		{"?limit=-3&offset=-4", DefaultLimit, 0},
		{"?limit=10&page=3", 10, 20},
		{"?limit=10&page=3&offset=7", 10, 7},
		{"?limit=abc", DefaultLimit, 0},
	}
	for _, tt := range tests {
		p := paramsFor(tt.query)
		if p.Limit != tt.wantLimit || p.Offset != tt.wantOffset {
			t.Errorf("%q: got %+v, want limit=%d offset=%d", tt.query, p, tt.wantLimit, tt.wantOffset)
		}
	}
}

func TestNewResponse(t *testing.T) {
	r := NewResponse([]int{1, 2}, 5, 2, 2)
	if !r.HasMore {
		t.Error("expected more results")
	}
	r = NewResponse([]int{5}, 5, 2, 4)
	if r.HasMore {
		t.Error("expected last page")
	}
}
