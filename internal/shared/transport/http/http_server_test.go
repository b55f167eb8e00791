package http

import (
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"Conquest/modules/kit/logx"
)

func TestNewHttpServer_Healthz(t *testing.T) {
	gin.SetMode(gin.TestMode)

	s := NewHttpServer(":0", gin.New(), logx.Nop(), Options{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(nethttp.MethodGet, "/healthz", nil)
	s.Handler().ServeHTTP(w, req)

	if w.Code != nethttp.StatusOK {
		t.Fatalf("unexpected status code: got=%d want=%d", w.Code, nethttp.StatusOK)
	}
}

func TestNewHttpServer_Panic转500(t *testing.T) {
	gin.SetMode(gin.TestMode)

	s := NewHttpServer(":0", gin.New(), logx.Nop(), Options{})
	s.Group().GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(nethttp.MethodGet, "/boom", nil))
	if w.Code != nethttp.StatusInternalServerError {
		t.Fatalf("unexpected status code: got=%d", w.Code)
	}
}
