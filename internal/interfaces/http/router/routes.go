package router

import (
	"github.com/gin-gonic/gin"

	"github.com/erp/catalogsync/internal/interfaces/http/handler"
	"github.com/erp/catalogsync/internal/interfaces/http/middleware"
)

// Handlers holds the HTTP handlers of the service. Sync and ERPProducts are
// optional; their routes are skipped when nil.
type Handlers struct {
	System      *handler.SystemHandler
	Auth        *handler.AuthHandler
	Sync        *handler.SyncHandler
	ERPProducts *handler.ERPProductHandler
	Storefront  *handler.StorefrontHandler
}

// RoutesConfig holds the route-level middleware settings
type RoutesConfig struct {
	JWT          middleware.JWTMiddlewareConfig
	LoginLimiter *middleware.RateLimiter
}

// RegisterRoutes binds the service routes to engine and returns the
// versioned API routes that were registered.
//
//	GET    /health
//	GET    /system/info
//	POST   /api/v1/auth/login                  public, rate limited
//	POST   /api/v1/auth/logout                 admin
//	GET    /api/v1/auth/me                     admin
//	GET    /api/v1/store/products/:handle      public
//	GET    /api/v1/store/locales               public
//	*      /api/v1/admin/sync/...              admin
//	*      /api/v1/admin/odoo-rest/products... admin
func RegisterRoutes(engine *gin.Engine, h Handlers, cfg RoutesConfig) []RouteInfo {
	engine.GET("/health", h.System.Health)
	engine.GET("/system/info", h.System.GetSystemInfo)

	jwt := middleware.JWTAuthMiddlewareWithConfig(cfg.JWT)
	admin := []gin.HandlerFunc{jwt, middleware.RequireAdmin()}

	authRoutes := NewDomainGroup("auth", "/auth")
	if cfg.LoginLimiter != nil {
		authRoutes.POST("/login", middleware.RateLimit(cfg.LoginLimiter), h.Auth.Login)
	} else {
		authRoutes.POST("/login", h.Auth.Login)
	}
	session := authRoutes.Group("auth-session", "").Use(admin...)
	session.POST("/logout", h.Auth.Logout)
	session.GET("/me", h.Auth.Me)

	storeRoutes := NewDomainGroup("store", "/store")
	storeRoutes.GET("/products/:handle", h.Storefront.GetProduct)
	storeRoutes.GET("/locales", h.Storefront.ListLocales)

	adminRoutes := NewDomainGroup("admin", "/admin").Use(admin...)
	if h.Sync != nil {
		syncRoutes := adminRoutes.Group("sync", "/sync")
		syncRoutes.POST("/runs", h.Sync.TriggerSync)
		syncRoutes.GET("/runs", h.Sync.ListRuns)
		syncRoutes.GET("/runs/latest", h.Sync.LatestRun)
		syncRoutes.GET("/runs/:id", h.Sync.GetRun)
		syncRoutes.GET("/jobs", h.Sync.ListJobs)
		syncRoutes.GET("/jobs/:id", h.Sync.GetJob)
		syncRoutes.GET("/status", h.Sync.Status)
	}
	if h.ERPProducts != nil {
		productRoutes := adminRoutes.Group("odoo-rest", "/odoo-rest/products")
		productRoutes.GET("", h.ERPProducts.List)
		productRoutes.POST("", h.ERPProducts.Create)
		productRoutes.GET("/:id", h.ERPProducts.Get)
		productRoutes.PUT("/:id", h.ERPProducts.Update)
		productRoutes.DELETE("/:id", h.ERPProducts.Delete)
	}

	r := NewRouter(engine, WithAPIVersion("v1"))
	groups := []*DomainGroup{authRoutes, storeRoutes, adminRoutes}
	var routes []RouteInfo
	for _, g := range groups {
		r.Register(g)
		for _, info := range g.Routes() {
			info.Path = joinPaths(r.BasePath(), info.Path)
			routes = append(routes, info)
		}
	}
	r.Setup()
	return routes
}
