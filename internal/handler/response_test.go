package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"PinSocial/internal/pkg"
	"PinSocial/internal/service"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{service.ErrSelfFollow, http.StatusBadRequest},
		{pkg.ErrUnsupportedImage, http.StatusBadRequest},
		{service.ErrSessionReplaced, http.StatusUnauthorized},
		{pkg.ErrTokenExpired, http.StatusUnauthorized},
		{service.ErrUnauthorized, http.StatusForbidden},
		{service.ErrProfileNotVisible, http.StatusForbidden},
		{service.ErrRequestNotFound, http.StatusNotFound},
		{fmt.Errorf("accept: %w", service.ErrNotPending), http.StatusConflict},
		{service.ErrAlreadyFollowing, http.StatusConflict},
		{service.ErrStorageDisabled, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusOf(tc.err); got != tc.want {
			t.Fatalf("statusOf(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	writeError(c, errors.New("dial tcp 10.0.0.1:3306: refused"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if body := w.Body.String(); body != `{"msg":"internal server error"}` {
		t.Fatalf("body = %s", body)
	}
	if len(c.Errors) != 1 {
		t.Fatalf("errors recorded = %d", len(c.Errors))
	}
}

func TestPinQueryRequiresFullGeoTriple(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/pins?lat=1&lng=2", nil)
	if _, ok := pinQuery(c); ok {
		t.Fatal("partial geo filter accepted")
	}
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/pins?lat=1&lng=2&radius_km=3&is_public=false&limit=5", nil)
	q, ok := pinQuery(c)
	if !ok || q.Near == nil || q.Near.RadiusKm != 3 || q.IsPublic == nil || *q.IsPublic || q.Limit != 5 {
		t.Fatalf("query = %+v, ok = %v", q, ok)
	}
}
