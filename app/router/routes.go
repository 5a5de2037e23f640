// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/app/handlers"
	"github.com/amirphl/leadflow/app/middleware"
	"github.com/amirphl/leadflow/config"
	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cache"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/pprof"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/sirupsen/logrus"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	Shutdown() error
	GetApp() *fiber.App
}

// Handlers groups every HTTP handler the router mounts
type Handlers struct {
	Auth    handlers.AuthHandlerInterface
	Lead    handlers.LeadHandlerInterface
	User    handlers.UserHandlerInterface
	Catalog handlers.CatalogHandlerInterface
	Link    handlers.LinkHandlerInterface
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app      *fiber.App
	cfg      *config.ProductionConfig
	handlers Handlers
	auth     *middleware.AuthMiddleware
	logger   *logrus.Logger
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(cfg *config.ProductionConfig, h Handlers, auth *middleware.AuthMiddleware, logger *logrus.Logger) Router {
	r := &FiberRouter{
		cfg:      cfg,
		handlers: h,
		auth:     auth,
		logger:   logger,
	}

	r.app = fiber.New(fiber.Config{
		AppName:      "Leadflow API",
		ServerHeader: "Leadflow",
		ErrorHandler: r.errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,

		// c.IP() honors ProxyHeader only for requests arriving from a trusted proxy
		TrustProxy: len(cfg.Server.TrustedProxies) > 0,
		TrustProxyConfig: fiber.TrustProxyConfig{
			Proxies: cfg.Server.TrustedProxies,
		},
		ProxyHeader: cfg.Server.ProxyHeader,
	})

	return r
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.logger.Info("Setting up routes...")

	r.setupMiddleware()

	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	api.Use(r.rateLimiter(r.cfg.Security.GlobalRateLimit, func(c fiber.Ctx) bool {
		return c.Path() == "/api/v1/health"
	}))

	authLimit := r.rateLimiter(r.cfg.Security.AuthRateLimit, nil)
	authn := r.auth.Authenticate()
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	// Admin account
	api.Post("/admin/register", authLimit, r.handlers.Auth.RegisterAdmin)
	api.Post("/admin/login", authLimit, r.handlers.Auth.LoginAdmin)

	// Primary users and associates
	auth := api.Group("/auth")
	auth.Post("/register", authLimit, r.handlers.Auth.RegisterUser)
	auth.Post("/login", authLimit, r.handlers.Auth.LoginUser)
	auth.Post("/refresh", authLimit, r.handlers.Auth.RefreshToken)
	auth.Post("/logout", authn, r.handlers.Auth.Logout)
	auth.Get("/me", authn, r.handlers.Auth.Me)

	associates := api.Group("/associates")
	associates.Post("/login", authLimit, r.handlers.Auth.LoginAssociate)
	associates.Post("/", authn, r.handlers.User.CreateAssociate)
	associates.Get("/", authn, r.handlers.User.ListAssociates)

	// Reference data
	api.Get("/companies", r.handlers.Catalog.ListCompanies)
	api.Get("/companies/:id", r.handlers.Catalog.GetCompany)
	api.Get("/companies/:id/agents", authn, r.handlers.User.ListAgentsByCompany)
	api.Get("/projects", r.handlers.Catalog.ListProjects)
	api.Get("/projects/:id", r.handlers.Catalog.GetProject)
	api.Get("/statuses", r.handlers.Catalog.ListStatuses)

	// Leads
	customers := api.Group("/customers", authn)
	customers.Post("/", r.handlers.Lead.CreateLead)
	customers.Get("/", r.handlers.Lead.ListLeads)
	customers.Get("/stats", r.handlers.Lead.LeadStats)
	customers.Get("/:id", r.handlers.Lead.GetLead)
	customers.Post("/:id/accept", r.handlers.Lead.AcceptLead)
	customers.Post("/:id/decline", r.handlers.Lead.DeclineLead)
	customers.Put("/:id/status", r.handlers.Lead.UpdateLeadStatus)
	customers.Get("/:id/status-history", r.handlers.Lead.LeadStatusHistory)
	customers.Post("/:id/follow-ups", r.handlers.Lead.AddFollowUp)
	customers.Get("/:id/follow-ups", r.handlers.Lead.ListFollowUps)
	customers.Post("/:id/notes", r.handlers.Lead.AddNote)
	customers.Get("/:id/notes", r.handlers.Lead.ListNotes)

	// Onboarding links; redemption is public
	api.Post("/customer-links", authn, r.handlers.Link.GenerateCustomerLink)
	api.Post("/customer-links/:code", authLimit, r.handlers.Link.RedeemCustomerLink)
	api.Post("/associate-links", authn, r.handlers.Link.GenerateAssociateLink)
	api.Post("/associate-links/:code", authLimit, r.handlers.Link.RedeemAssociateLink)

	// Admin console
	api.Post("/admin/companies", authn, adminOnly, r.handlers.Catalog.CreateCompany)
	api.Delete("/admin/companies/:id", authn, adminOnly, r.handlers.Catalog.DeleteCompany)
	api.Post("/admin/projects", authn, adminOnly, r.handlers.Catalog.CreateProject)
	api.Post("/admin/statuses", authn, adminOnly, r.handlers.Catalog.CreateStatus)
	api.Put("/admin/statuses/:id", authn, adminOnly, r.handlers.Catalog.RenameStatus)
	api.Delete("/admin/statuses/:id", authn, adminOnly, r.handlers.Catalog.DeleteStatus)
	api.Get("/admin/users", authn, adminOnly, r.handlers.User.ListUsers)
	api.Put("/admin/users/:id/status", authn, adminOnly, r.handlers.User.UpdateUserStatus)
	api.Post("/admin/customers/:id/broadcast", authn, adminOnly, r.handlers.Lead.BroadcastLead)
	api.Get("/admin/customers/export", authn, adminOnly, r.handlers.Lead.ExportLeads)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	r.logger.Info("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	sec := r.cfg.Security

	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header:    "X-Request-ID",
		Generator: generateRequestID,
	}))

	if r.cfg.Server.EnableMetrics {
		r.app.Use(middleware.Metrics())
	}

	if r.cfg.Server.EnablePprof {
		r.app.Use(pprof.New())
	}

	// Security headers middleware
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             sec.XSSProtection,
		ContentTypeNosniff:        sec.XContentTypeOptions,
		XFrameOptions:             sec.XFrameOptions,
		HSTSMaxAge:                sec.HSTSMaxAge,
		HSTSExcludeSubdomains:     !sec.HSTSIncludeSubDoms,
		HSTSPreloadEnabled:        sec.HSTSPreload,
		ContentSecurityPolicy:     sec.CSPPolicy,
		ReferrerPolicy:            sec.ReferrerPolicy,
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "cross-origin",
		OriginAgentCluster:        "?1",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     sec.AllowedOrigins,
		AllowMethods:     sec.AllowedMethods,
		AllowHeaders:     sec.AllowedHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: sec.AllowCredentials && !containsWildcard(sec.AllowedOrigins),
		MaxAge:           utils.CORSMaxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.Level(r.cfg.Server.CompressionLevel),
			Next: func(c fiber.Ctx) bool {
				// Workbooks are already zip-compressed
				return strings.HasSuffix(c.Path(), "/export")
			},
		}))
	}

	// Only the health probe is cached; lead data must never be served stale
	r.app.Use(cache.New(cache.Config{
		Next: func(c fiber.Ctx) bool {
			return c.Method() != fiber.MethodGet || c.Path() != "/api/v1/health"
		},
		Expiration: 5 * time.Second,
	}))

	if r.cfg.Logging.EnableAccessLog {
		r.app.Use(fiberlogger.New(fiberlogger.Config{
			Format:     `{"time":"${time}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
			TimeFormat: time.RFC3339,
			TimeZone:   "UTC",
			Next: func(c fiber.Ctx) bool {
				return c.Path() == "/api/v1/health"
			},
		}))
	}

	// Recovery middleware with custom error handling
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.logger.WithFields(logrus.Fields{
				"request_id": requestid.FromContext(c),
				"event":      "panic",
				"error":      e,
				"path":       c.Path(),
				"method":     c.Method(),
				"ip":         c.IP(),
			}).Error("Recovered from panic")
		},
	}))
}

func (r *FiberRouter) rateLimiter(max int, next func(c fiber.Ctx) bool) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: next,
	})
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	lc, err := r.listenConfig()
	if err != nil {
		return err
	}
	r.logger.WithFields(logrus.Fields{"address": address, "tls": lc.CertFile != ""}).Info("Starting HTTP server")
	return r.app.Listen(address, lc)
}

func (r *FiberRouter) listenConfig() (fiber.ListenConfig, error) {
	lc := fiber.ListenConfig{DisableStartupMessage: true}
	sec := r.cfg.Security
	if !sec.TLSEnabled {
		return lc, nil
	}
	minVersion, err := sec.MinTLSVersion()
	if err != nil {
		return lc, err
	}
	lc.CertFile = sec.TLSCertFile
	lc.CertKeyFile = sec.TLSKeyFile
	lc.TLSMinVersion = minVersion
	return lc, nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (r *FiberRouter) Shutdown() error {
	return r.app.ShutdownWithTimeout(r.cfg.Server.ShutdownTimeout)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":     "ok",
			"timestamp":  utils.UTCNow().Unix(),
			"version":    r.cfg.Deployment.Version,
			"commit":     r.cfg.Deployment.CommitHash,
			"build_time": r.cfg.Deployment.BuildTime,
			"service":    "leadflow-api",
		},
	})
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// errorHandler renders errors that escaped the handlers
func (r *FiberRouter) errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	errCode := "INTERNAL_ERROR"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		if code < fiber.StatusInternalServerError {
			message = fe.Message
			errCode = "REQUEST_ERROR"
		}
	}

	if code >= fiber.StatusInternalServerError {
		r.logger.WithFields(logrus.Fields{
			"request_id": requestid.FromContext(c),
			"status":     code,
			"path":       c.Path(),
			"error":      err.Error(),
		}).Error("Unhandled request error")
	}

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: errCode,
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
