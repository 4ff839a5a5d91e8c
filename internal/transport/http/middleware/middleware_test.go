package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"notes-datalayer/internal/core/auth"
	resp "notes-datalayer/internal/transport/http/response"
)

func init() { gin.SetMode(gin.TestMode) }

func serve(t *testing.T, r *gin.Engine, req *http.Request) (*httptest.ResponseRecorder, resp.Resp) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body resp.Resp
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	}
	return w, body
}

func okHandler(c *gin.Context) { c.JSON(http.StatusOK, resp.OK(nil)) }

func TestRateLimitPerIPKeepsSeparateBuckets(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitPerIP(0, 1))
	r.GET("/", okHandler)

	get := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		_, body := serve(t, r, req)
		return body.Code
	}
	assert.Equal(t, resp.CodeOK, get("10.0.0.1"))
	assert.Equal(t, resp.CodeTooManyRequests, get("10.0.0.1"))
	assert.Equal(t, resp.CodeOK, get("10.0.0.2"))
}

func TestRateLimitPerIPDropsIdleBuckets(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	b := newIPBuckets(0, 1, time.Minute, func() time.Time { return now })

	assert.True(t, b.allow("10.0.0.1"))
	assert.False(t, b.allow("10.0.0.1"))
	now = now.Add(30 * time.Second)
	assert.True(t, b.allow("10.0.0.2"))
	assert.Equal(t, 2, b.len())

	// 10.0.0.1 has been quiet past the idle window, 10.0.0.2 has not
	now = now.Add(45 * time.Second)
	assert.False(t, b.allow("10.0.0.2"))
	assert.Equal(t, 1, b.len())

	assert.True(t, b.allow("10.0.0.1"), "an evicted client starts with a full bucket")
	assert.Equal(t, 2, b.len())
}

func TestRateLimitGlobal(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(0, 1))
	r.GET("/", okHandler)

	_, first := serve(t, r, httptest.NewRequest(http.MethodGet, "/", nil))
	_, second := serve(t, r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, resp.CodeOK, first.Code)
	assert.Equal(t, resp.CodeTooManyRequests, second.Code)
}

func TestTimeoutAnswersWhenHandlerOverruns(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(10 * time.Millisecond))
	r.GET("/", func(c *gin.Context) { <-c.Request.Context().Done() })

	_, body := serve(t, r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, resp.CodeTimeout, body.Code)
}

func TestRequestIDPropagates(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(KeyRequestID, "abc")
	w, _ := serve(t, r, req)
	assert.Equal(t, "abc", w.Header().Get(KeyRequestID))

	w, _ = serve(t, r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Header().Get(KeyRequestID), 36)
}

func TestAuthJWTStoresClaims(t *testing.T) {
	j := &auth.JWTer{Secret: []byte("k"), Issuer: "notesdb", TTL: time.Minute}
	tok, err := j.Issue("ops", "admin")
	require.NoError(t, err)

	r := gin.New()
	r.Use(AccessLog(zaptest.NewLogger(t)), AuthJWT(j, "admin"))
	r.GET("/", func(c *gin.Context) {
		claims := c.MustGet(KeyClaims).(*auth.Claims)
		c.JSON(http.StatusOK, resp.OK(gin.H{"uid": claims.UID}))
	})

	req := httptest.NewRequest(http.MethodGet, "/?token=leak", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	_, body := serve(t, r, req)
	assert.Equal(t, resp.CodeOK, body.Code)
	assert.Equal(t, map[string]any{"uid": "ops"}, body.Data)
}

func TestMaskQuery(t *testing.T) {
	got := maskQuery(map[string][]string{"Token": {"x"}, "limit": {"5"}})
	assert.Equal(t, []string{"****"}, got["Token"])
	assert.Equal(t, []string{"5"}, got["limit"])
}

func TestRequestIDReplacesMalformedIDs(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", okHandler)

	for _, bad := range []string{"has space", strings.Repeat("x", 65), "tab\tid"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(KeyRequestID, bad)
		w, _ := serve(t, r, req)
		assert.NotEqual(t, bad, w.Header().Get(KeyRequestID))
		assert.Len(t, w.Header().Get(KeyRequestID), 36)
	}
}

func TestMaxBodyBytesRefusesDeclaredOversize(t *testing.T) {
	r := gin.New()
	r.Use(MaxBodyBytes(4))
	r.POST("/", okHandler)

	_, body := serve(t, r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("too long")))
	assert.Equal(t, resp.CodeBadRequest, body.Code)

	_, body = serve(t, r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("ok")))
	assert.Equal(t, resp.CodeOK, body.Code)
}

func TestConcurrencyLimitWithoutQueue(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	r := gin.New()
	r.Use(ConcurrencyLimit(1, 0))
	r.GET("/slow", func(c *gin.Context) {
		close(entered)
		<-release
		okHandler(c)
	})
	r.GET("/", okHandler)

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/slow", nil))
	}()
	<-entered

	_, body := serve(t, r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, resp.CodeUnavailable, body.Code)

	close(release)
	<-done
	_, body = serve(t, r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, resp.CodeOK, body.Code)
}
