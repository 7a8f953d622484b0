package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, path, remote string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = remote
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoopback(t *testing.T) {
	r := gin.New()
	r.Use(Loopback())
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	testCases := []struct {
		name   string
		remote string
		status int
	}{
		{name: "IPv4 loopback", remote: "127.0.0.1:5000", status: http.StatusOK},
		{name: "Other loopback address", remote: "127.0.0.2:5000", status: http.StatusOK},
		{name: "IPv6 loopback", remote: "[::1]:5000", status: http.StatusOK},
		{name: "LAN address", remote: "192.168.1.20:5000", status: http.StatusForbidden},
		{name: "Garbage", remote: "nonsense", status: http.StatusForbidden},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(r, http.MethodGet, "/health", tc.remote, nil)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusForbidden {
				assert.JSONEq(t, `{"ok":false,"error":"Only localhost is allowed."}`, w.Body.String())
			}
		})
	}

	t.Run("forwarding headers are ignored", func(t *testing.T) {
		w := serve(r, http.MethodGet, "/health", "10.0.0.1:80", http.Header{"X-Forwarded-For": {"127.0.0.1"}})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestTokenMatches(t *testing.T) {
	assert.True(t, TokenMatches("secret", "secret"))
	assert.True(t, TokenMatches(" secret", "secret "))
	assert.False(t, TokenMatches("secret", "Secret"))
	assert.False(t, TokenMatches("secret", "secret2"))
	assert.False(t, TokenMatches("", ""))
	assert.False(t, TokenMatches("secret", "  "))
}

func TestTokenAuth(t *testing.T) {
	token := "s3cret"
	r := gin.New()
	r.GET("/printers", TokenAuth(func() string { return token }, ""), func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/events", TokenAuth(func() string { return token }, "token"), func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := serve(r, http.MethodGet, "/printers", "127.0.0.1:5000", http.Header{TokenHeader: {"s3cret"}})
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodGet, "/printers", "127.0.0.1:5000", http.Header{"x-printer-token": {"s3cret"}})
	assert.Equal(t, http.StatusOK, w.Code, "header name is case-insensitive")

	w = serve(r, http.MethodGet, "/printers", "127.0.0.1:5000", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"ok":false,"error":"Unauthorized token."}`, w.Body.String())

	w = serve(r, http.MethodGet, "/printers?token=s3cret", "127.0.0.1:5000", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "query token only where enabled")

	w = serve(r, http.MethodGet, "/events?token=s3cret", "127.0.0.1:5000", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	token = "rotated"
	w = serve(r, http.MethodGet, "/printers", "127.0.0.1:5000", http.Header{TokenHeader: {"s3cret"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCORS(t *testing.T) {
	origins := []string{"http://localhost", " HTTP://POS.LOCAL "}
	r := gin.New()
	r.Use(CORS(func() []string { return origins }))
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.POST("/print/test", func(c *gin.Context) { c.String(http.StatusOK, "printed") })

	t.Run("allowed origin gets headers", func(t *testing.T) {
		w := serve(r, http.MethodGet, "/health", "127.0.0.1:5000", http.Header{"Origin": {"http://localhost"}})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "http://localhost", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("origin match ignores case", func(t *testing.T) {
		w := serve(r, http.MethodGet, "/health", "127.0.0.1:5000", http.Header{"Origin": {"http://pos.local"}})
		assert.Equal(t, "http://pos.local", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		w := serve(r, http.MethodOptions, "/print/test", "127.0.0.1:5000", http.Header{
			"Origin":                         {"http://localhost"},
			"Access-Control-Request-Method":  {"POST"},
			"Access-Control-Request-Headers": {"content-type,x-printer-token"},
		})
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "http://localhost", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Printer-Token")
	})

	t.Run("options without origin", func(t *testing.T) {
		w := serve(r, http.MethodOptions, "/print/test", "127.0.0.1:5000", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("unknown origin is refused", func(t *testing.T) {
		w := serve(r, http.MethodGet, "/health", "127.0.0.1:5000", http.Header{"Origin": {"http://evil.example"}})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("origins are read per request", func(t *testing.T) {
		origins = append(origins, "http://evil.example")
		w := serve(r, http.MethodGet, "/health", "127.0.0.1:5000", http.Header{"Origin": {"http://evil.example"}})
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestCache(t *testing.T) {
	store := cache.New(time.Minute, time.Minute)
	calls := 0
	r := gin.New()
	r.GET("/printers", Cache(store, time.Minute), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})
	r.GET("/broken", Cache(store, time.Minute), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusInternalServerError, gin.H{"calls": calls})
	})
	r.POST("/config", Invalidate(store), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodGet, "/printers", "127.0.0.1:5000", nil)
	assert.Equal(t, "MISS", w.Header().Get(CacheHeader))
	assert.JSONEq(t, `{"calls":1}`, w.Body.String())

	w = serve(r, http.MethodGet, "/printers", "127.0.0.1:5000", nil)
	assert.Equal(t, "HIT", w.Header().Get(CacheHeader))
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"calls":1}`, w.Body.String())

	serve(r, http.MethodGet, "/broken", "127.0.0.1:5000", nil)
	w = serve(r, http.MethodGet, "/broken", "127.0.0.1:5000", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"calls":3}`, w.Body.String())

	serve(r, http.MethodPost, "/config", "127.0.0.1:5000", nil)
	w = serve(r, http.MethodGet, "/printers", "127.0.0.1:5000", nil)
	assert.Equal(t, "MISS", w.Header().Get(CacheHeader))
	assert.JSONEq(t, `{"calls":4}`, w.Body.String())
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.POST("/print/test", RateLimiter(rate.Limit(1), 2), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := []int{}
	for i := 0; i < 3; i++ {
		w := serve(r, http.MethodPost, "/print/test", "127.0.0.1:5000", nil)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	w := serve(r, http.MethodPost, "/print/test", "[::1]:5000", nil)
	assert.Equal(t, http.StatusOK, w.Code, "separate bucket per address")
}

func TestRateLimiter_Disabled(t *testing.T) {
	r := gin.New()
	r.GET("/x", RateLimiter(0, 0), func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 20; i++ {
		w := serve(r, http.MethodGet, "/x", "127.0.0.1:5000", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
}
