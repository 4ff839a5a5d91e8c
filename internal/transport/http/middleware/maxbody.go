package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	resp "notes-datalayer/internal/transport/http/response"
)

// MaxBodyBytes caps request bodies. A declared length over n is refused before
// the handler runs; an undeclared one is cut off while reading.
func MaxBodyBytes(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > n {
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeBadRequest, "request body too large"))
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
