// Package httpkit provides HTTP utilities including identity extraction.
package httpkit

import (
	"net/http"

	"jobflow_backend/platform/reqctx"

	"github.com/gin-gonic/gin"
)

// GetRequestContext extracts the typed caller identity stored by AuthRequired.
func GetRequestContext(c *gin.Context) (reqctx.RequestContext, bool) {
	value, ok := c.Get(ContextRequestKey)
	if !ok {
		return reqctx.RequestContext{}, false
	}
	rc, ok := value.(reqctx.RequestContext)
	if !ok || !rc.IsAuthenticated() {
		return reqctx.RequestContext{}, false
	}
	return rc, true
}

// MustGetRequestContext extracts the caller identity.
// If the caller is not authenticated, it aborts with 401 Unauthorized and returns false.
func MustGetRequestContext(c *gin.Context) (reqctx.RequestContext, bool) {
	rc, ok := GetRequestContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return reqctx.RequestContext{}, false
	}
	return rc, true
}
