package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	resp "notes-datalayer/internal/transport/http/response"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports whether the database answers a ping within two seconds.
func Health(p Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, resp.New(resp.CodeUnavailable, "database unavailable", gin.H{"db": "down"}))
			return
		}
		c.JSON(http.StatusOK, resp.OK(gin.H{"db": "up"}))
	}
}
