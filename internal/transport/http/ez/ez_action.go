package ez

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"notes-datalayer/internal/repo"
	"notes-datalayer/internal/store"
	resp "notes-datalayer/internal/transport/http/response"
)

// EZ registers actions on a router group against one store.
type EZ struct {
	g   *gin.RouterGroup
	st  *store.Store
	log *zap.Logger
}

func New(g *gin.RouterGroup, st *store.Store, l *zap.Logger) EZ {
	if l == nil {
		l = zap.NewNop()
	}
	return EZ{g: g, st: st, log: l}
}

type Binder string

const (
	BindQuery Binder = "query"
	BindNone  Binder = "none" // handler reads c.Param itself
)

// AErr carries an envelope code chosen by the handler.
type AErr struct {
	Code int
	Msg  string
}

func (e *AErr) Error() string { return e.Msg }

func BadRequest(msg string) error { return &AErr{Code: resp.CodeBadRequest, Msg: msg} }

// Action is one endpoint: I is bound from the request, O is the envelope data.
type Action[I any, O any] struct {
	Method  string
	Path    string
	Binder  Binder
	UseTx   bool // run Handler inside store.UnitOfWork
	Handler func(c *gin.Context, st *store.Store, in *I) (O, error)
}

func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	h := func(c *gin.Context) {
		var in I
		if a.Binder == BindQuery {
			if err := c.ShouldBindQuery(&in); err != nil {
				c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, err.Error()))
				return
			}
		}

		var out O
		var err error
		if a.UseTx {
			err = e.st.UnitOfWork(c.Request.Context(), func(tx *store.Store) error {
				o, herr := a.Handler(c, tx, &in)
				out = o
				return herr
			})
		} else {
			out, err = a.Handler(c, e.st, &in)
		}

		if err != nil {
			code, msg := Status(err)
			if code >= resp.CodeServerError {
				e.log.Error("action failed", zap.String("path", a.Path), zap.Error(err))
				_ = c.Error(err)
			}
			c.JSON(http.StatusOK, resp.Error(code, msg))
			return
		}
		c.JSON(http.StatusOK, resp.OK(out))
	}

	e.g.Handle(strings.ToUpper(a.Method), a.Path, h)
}

// Status maps an error to an envelope code and a message safe to return.
func Status(err error) (int, string) {
	var ae *AErr
	if errors.As(err, &ae) {
		return ae.Code, ae.Error()
	}
	switch repo.KindOf(err) {
	case repo.KindNotFound:
		return resp.CodeNotFound, err.Error()
	case repo.KindInvalidArgument:
		return resp.CodeBadRequest, err.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return resp.CodeTimeout, ""
	}
	return resp.CodeServerError, ""
}

// ParamUUID reads a path parameter as a UUID.
func ParamUUID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, BadRequest("invalid " + name)
	}
	return id, nil
}
