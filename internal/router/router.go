// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/user-auth-service/internal/handler"
	"github.com/iliyamo/user-auth-service/internal/middleware"
	"github.com/iliyamo/user-auth-service/internal/token"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the token-lifecycle endpoints.  Unauthenticated
// operations live under /v1/auth; protected endpoints live under /v1.
// Logout authenticates inside the handler because it must accept an expired
// bearer token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, codec *token.Codec) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(codec))
	auth.GET("/me", a.Me)
}

// RegisterAccounts registers the account-management endpoints.  All routes
// require a valid (non-expired) access token.  The read endpoints go through
// the Redis response cache; cacheMW may be a pass-through when caching is
// disabled.
func RegisterAccounts(e *echo.Echo, h *handler.AccountHandler, codec *token.Codec, cacheMW echo.MiddlewareFunc) {
	g := e.Group("/v1/accounts")
	g.Use(middleware.JWTAuth(codec))
	g.GET("", h.List, cacheMW)
	g.GET("/:id", h.GetByID, cacheMW)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}
