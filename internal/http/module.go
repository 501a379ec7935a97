package http

import "github.com/gin-gonic/gin"

// Module is a feature package that mounts its own routes. Modules that also
// react to domain events expose RegisterHandlers separately so the scheduler
// binary can wire them without an HTTP server.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext hands modules the route groups they may mount on.
type RouterContext struct {
	// Protected is /api/v1 behind bearer token auth.
	Protected *gin.RouterGroup
	// Admin is /api/v1/admin, restricted to the admin role.
	Admin *gin.RouterGroup
}
