package router

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"notes-datalayer/internal/repo"
	"notes-datalayer/internal/schema"
	"notes-datalayer/internal/store"
	"notes-datalayer/internal/transport/http/ez"
	resp "notes-datalayer/internal/transport/http/response"
)

type listQuery struct {
	Offset int    `form:"offset,default=0"`
	Limit  int    `form:"limit,default=20"`
	Sort   string `form:"sort"`
}

var reservedParams = map[string]struct{}{"offset": {}, "limit": {}, "sort": {}}

// mountEntity exposes list, get and delete for one entity. pick selects the
// repository from the store the action runs against, so deletes use the
// transaction-bound one.
func mountEntity[T any, PT repo.Model[T]](e ez.EZ, path string, pick func(*store.Store) *repo.Repository[T, PT]) {
	ez.RegisterAction[listQuery, resp.Page[T]](e, ez.Action[listQuery, resp.Page[T]]{
		Method: http.MethodGet,
		Path:   path,
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, st *store.Store, in *listQuery) (resp.Page[T], error) {
			r := pick(st)
			filters, err := parseFilters(r.Descriptor(), c.Request.URL.Query())
			if err != nil {
				return resp.Page[T]{}, err
			}
			ctx := c.Request.Context()
			items, err := r.List(ctx, in.Offset, in.Limit, filters, in.Sort)
			if err != nil {
				return resp.Page[T]{}, err
			}
			total, err := r.Count(ctx, filters)
			if err != nil {
				return resp.Page[T]{}, err
			}
			return resp.NewPage(items, total), nil
		},
	})

	ez.RegisterAction[struct{}, PT](e, ez.Action[struct{}, PT]{
		Method: http.MethodGet,
		Path:   path + "/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, st *store.Store, _ *struct{}) (PT, error) {
			id, err := ez.ParamUUID(c, "id")
			if err != nil {
				return nil, err
			}
			return pick(st).GetOrFail(c.Request.Context(), id)
		},
	})

	ez.RegisterAction[struct{}, gin.H](e, ez.Action[struct{}, gin.H]{
		Method: http.MethodDelete,
		Path:   path + "/:id",
		Binder: ez.BindNone,
		UseTx:  true,
		Handler: func(c *gin.Context, st *store.Store, _ *struct{}) (gin.H, error) {
			id, err := ez.ParamUUID(c, "id")
			if err != nil {
				return nil, err
			}
			if err := pick(st).Delete(c.Request.Context(), id); err != nil {
				return nil, err
			}
			return gin.H{"id": id}, nil
		},
	})
}

// parseFilters types query values by column. Unknown params are dropped, like
// unknown filter keys in the repository.
func parseFilters(desc *schema.Descriptor, q url.Values) (repo.Filters, error) {
	filters := repo.Filters{}
	for k, vals := range q {
		if _, ok := reservedParams[k]; ok || len(vals) == 0 {
			continue
		}
		f, ok := desc.Field(k)
		if !ok {
			continue
		}
		v, err := f.Parse(vals[0])
		if err != nil {
			return nil, ez.BadRequest("invalid filter " + k + ": " + err.Error())
		}
		if t, ok := v.(time.Time); ok {
			v = t.UTC()
		}
		filters[k] = v
	}
	return filters, nil
}
