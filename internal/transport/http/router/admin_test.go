package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"notes-datalayer/internal/core/auth"
	"notes-datalayer/internal/core/database"
	"notes-datalayer/internal/domain"
	"notes-datalayer/internal/store"
	resp "notes-datalayer/internal/transport/http/response"
)

func init() { gin.SetMode(gin.TestMode) }

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type opsFixture struct {
	st    *store.Store
	jwter *auth.JWTer
	eng   *gin.Engine
}

func newOps(t *testing.T) *opsFixture {
	t.Helper()
	l := zaptest.NewLogger(t)
	db, err := database.Open(context.Background(), database.Opts{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "ops.db") + "?_busy_timeout=5000",
		PoolSize: 4,
		LogLevel: "silent",
		Attempts: 1,
	}, l)
	require.NoError(t, err)
	st := store.New(db, l)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	j := &auth.JWTer{Secret: []byte("test-secret"), Issuer: "notesdb", TTL: time.Hour}
	eng := NewOpsEngine(l, st, j, Limits{RPS: 1000, Burst: 1000, MaxConcurrent: 8, RequestTimeout: 5 * time.Second})
	return &opsFixture{st: st, jwter: j, eng: eng}
}

func (f *opsFixture) token(t *testing.T, role string) string {
	t.Helper()
	tok, err := f.jwter.Issue("tester", role)
	require.NoError(t, err)
	return tok
}

func (f *opsFixture) do(t *testing.T, method, path, token string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.eng.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestHealth(t *testing.T) {
	f := newOps(t)
	status, env := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, resp.CodeOK, env.Code)
	assert.JSONEq(t, `{"db":"up"}`, string(env.Data))

	require.NoError(t, f.st.Close())
	status, env = f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, resp.CodeUnavailable, env.Code)
	assert.JSONEq(t, `{"db":"down"}`, string(env.Data))
}

func TestAdminRequiresAdminToken(t *testing.T) {
	f := newOps(t)

	_, env := f.do(t, http.MethodGet, "/admin/v1/stats", "")
	assert.Equal(t, resp.CodeUnauthorized, env.Code)

	_, env = f.do(t, http.MethodGet, "/admin/v1/stats", "not-a-jwt")
	assert.Equal(t, resp.CodeUnauthorized, env.Code)

	_, env = f.do(t, http.MethodGet, "/admin/v1/stats", f.token(t, "viewer"))
	assert.Equal(t, resp.CodeForbidden, env.Code)
}

func TestStats(t *testing.T) {
	f := newOps(t)
	ctx := context.Background()
	u, err := f.st.Users.Create(ctx, domain.NewUser(1))
	require.NoError(t, err)
	_, err = f.st.Notes.Create(ctx, &domain.Note{UserID: u.ID, Content: "hi"})
	require.NoError(t, err)

	_, env := f.do(t, http.MethodGet, "/admin/v1/stats", f.token(t, "admin"))
	require.Equal(t, resp.CodeOK, env.Code, env.Msg)
	var got map[string]int64
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, int64(1), got["users"])
	assert.Equal(t, int64(1), got["notes"])
	assert.Equal(t, int64(0), got["sessions"])
}

func TestListEntities(t *testing.T) {
	f := newOps(t)
	ctx := context.Background()
	for _, ext := range []int64{1, 2, 3} {
		_, err := f.st.Users.Create(ctx, domain.NewUser(ext))
		require.NoError(t, err)
	}
	tok := f.token(t, "admin")

	_, env := f.do(t, http.MethodGet, "/admin/v1/users?limit=2&sort=-created_at", tok)
	require.Equal(t, resp.CodeOK, env.Code, env.Msg)
	var page resp.Page[domain.User]
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Items, 2)

	_, env = f.do(t, http.MethodGet, "/admin/v1/users?external_id=2&bogus=1", tok)
	require.Equal(t, resp.CodeOK, env.Code, env.Msg)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(2), page.Items[0].ExternalID)

	_, env = f.do(t, http.MethodGet, "/admin/v1/users?external_id=two", tok)
	assert.Equal(t, resp.CodeBadRequest, env.Code)

	_, env = f.do(t, http.MethodGet, "/admin/v1/users?limit=5000", tok)
	assert.Equal(t, resp.CodeBadRequest, env.Code)

	_, env = f.do(t, http.MethodGet, "/admin/v1/reminders", tok)
	require.Equal(t, resp.CodeOK, env.Code, env.Msg)
	assert.JSONEq(t, `{"total":0,"items":[]}`, string(env.Data))
}

func TestGetAndDeleteByID(t *testing.T) {
	f := newOps(t)
	ctx := context.Background()
	u, err := f.st.Users.Create(ctx, domain.NewUser(1))
	require.NoError(t, err)
	n, err := f.st.Notes.Create(ctx, &domain.Note{UserID: u.ID, Content: "to delete"})
	require.NoError(t, err)
	tok := f.token(t, "admin")
	path := "/admin/v1/notes/" + n.ID.String()

	_, env := f.do(t, http.MethodGet, path, tok)
	require.Equal(t, resp.CodeOK, env.Code, env.Msg)
	var got domain.Note
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, "to delete", got.Content)

	_, env = f.do(t, http.MethodDelete, path, tok)
	require.Equal(t, resp.CodeOK, env.Code, env.Msg)

	_, env = f.do(t, http.MethodGet, path, tok)
	assert.Equal(t, resp.CodeNotFound, env.Code)
	_, env = f.do(t, http.MethodDelete, path, tok)
	assert.Equal(t, resp.CodeNotFound, env.Code)

	_, env = f.do(t, http.MethodGet, "/admin/v1/users/"+uuid.NewString(), tok)
	assert.Equal(t, resp.CodeNotFound, env.Code)
	_, env = f.do(t, http.MethodGet, "/admin/v1/users/not-a-uuid", tok)
	assert.Equal(t, resp.CodeBadRequest, env.Code)
}
