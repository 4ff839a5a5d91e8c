package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"notes-datalayer/internal/core/auth"
	"notes-datalayer/internal/core/server"
	"notes-datalayer/internal/domain"
	"notes-datalayer/internal/repo"
	"notes-datalayer/internal/store"
	"notes-datalayer/internal/transport/http/ez"
	"notes-datalayer/internal/transport/http/handler"
	mdw "notes-datalayer/internal/transport/http/middleware"
)

type Limits struct {
	RPS            float64
	Burst          int
	PerIP          bool
	MaxConcurrent  int64
	QueueWait      time.Duration
	RequestTimeout time.Duration
}

// NewOpsEngine serves health, metrics and the read-only admin surface.
func NewOpsEngine(l *zap.Logger, st *store.Store, jwter *auth.JWTer, lim Limits) *gin.Engine {
	limiter := mdw.RateLimit
	if lim.PerIP {
		limiter = mdw.RateLimitPerIP
	}

	r := server.NewRouter(l)
	r.Use(
		mdw.RequestID(),
		limiter(rate.Limit(lim.RPS), lim.Burst),
		mdw.ConcurrencyLimit(lim.MaxConcurrent, lim.QueueWait),
		mdw.MaxBodyBytes(1<<20),
		mdw.Timeout(lim.RequestTimeout),
		mdw.Metrics(),
		mdw.AccessLog(l),
	)

	r.GET("/health", handler.Health(st))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := r.Group("/admin/v1")
	admin.Use(mdw.AuthJWT(jwter, "admin"))
	MountAdmin(admin, st, l)

	return r
}

func MountAdmin(admin *gin.RouterGroup, st *store.Store, l *zap.Logger) {
	e := ez.New(admin, st, l)

	ez.RegisterAction[struct{}, map[string]int64](e, ez.Action[struct{}, map[string]int64]{
		Method: http.MethodGet,
		Path:   "/stats",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, st *store.Store, _ *struct{}) (map[string]int64, error) {
			return st.Counts(c.Request.Context())
		},
	})

	mountEntity(e, "/users", func(st *store.Store) *repo.Repository[domain.User, *domain.User] {
		return st.Users.Repository
	})
	mountEntity(e, "/notes", func(st *store.Store) *repo.Repository[domain.Note, *domain.Note] {
		return st.Notes.Repository
	})
	mountEntity(e, "/reminders", func(st *store.Store) *repo.Repository[domain.Reminder, *domain.Reminder] {
		return st.Reminders.Repository
	})
	mountEntity(e, "/external-tasks", func(st *store.Store) *repo.Repository[domain.ExternalTask, *domain.ExternalTask] {
		return st.ExternalTasks.Repository
	})
	mountEntity(e, "/sessions", func(st *store.Store) *repo.Repository[domain.Session, *domain.Session] {
		return st.Sessions.Repository
	})
}
