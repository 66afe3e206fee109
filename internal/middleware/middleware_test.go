package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"PinSocial/internal/service"
)

type fakeAuth map[string]uint64

func (f fakeAuth) Authenticate(_ context.Context, token string) (uint64, error) {
	if id, ok := f[token]; ok {
		return id, nil
	}
	if token == "old" {
		return 0, service.ErrSessionReplaced
	}
	return 0, service.ErrLoginRequired
}

func newEngine(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler(zap.NewNop()))
	r.GET("/who", mw, func(c *gin.Context) {
		v := ViewerFrom(c)
		id, _ := v.ID()
		c.JSON(http.StatusOK, gin.H{"anonymous": v.IsAnonymous(), "id": id})
	})
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r
}

func get(r *gin.Engine, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	r := newEngine(AuthRequired(fakeAuth{"good": 7}))

	if w := get(r, "/who", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("no header = %d", w.Code)
	}
	if w := get(r, "/who", "Token good"); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong scheme = %d", w.Code)
	}
	w := get(r, "/who", "Bearer old")
	if w.Code != http.StatusUnauthorized || w.Body.String() != `{"msg":"account has been logged in elsewhere"}` {
		t.Fatalf("replaced session = %d %s", w.Code, w.Body.String())
	}
	w = get(r, "/who", "Bearer good")
	if w.Code != http.StatusOK || w.Body.String() != `{"anonymous":false,"id":7}` {
		t.Fatalf("good token = %d %s", w.Code, w.Body.String())
	}
}

func TestAuthOptionalFallsBackToAnonymous(t *testing.T) {
	r := newEngine(AuthOptional(fakeAuth{"good": 7}))

	for _, header := range []string{"", "Bearer bad"} {
		w := get(r, "/who", header)
		if w.Code != http.StatusOK || w.Body.String() != `{"anonymous":true,"id":0}` {
			t.Fatalf("header %q = %d %s", header, w.Code, w.Body.String())
		}
	}
	if w := get(r, "/who", "Bearer good"); w.Body.String() != `{"anonymous":false,"id":7}` {
		t.Fatalf("good token = %s", w.Body.String())
	}
}

func TestErrorHandlerRecoversPanic(t *testing.T) {
	r := newEngine(AuthOptional(fakeAuth{}))
	w := get(r, "/panic", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRequestIDGeneratedWhenMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(""))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFrom(c)) })

	w := get(r, "/", "")
	rid := w.Header().Get("X-Request-ID")
	if rid == "" || rid != w.Body.String() {
		t.Fatalf("request id header %q body %q", rid, w.Body.String())
	}
}
