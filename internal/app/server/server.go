package server

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sifan077/PowerQR/internal/app/repository"
	"github.com/sifan077/PowerQR/internal/app/service"
	inthttp "github.com/sifan077/PowerQR/internal/http/handler"
	"github.com/sifan077/PowerQR/internal/http/middleware"
	httpUtil "github.com/sifan077/PowerQR/internal/http/util"
	"github.com/sifan077/PowerQR/internal/infra/shopify"
	"go.uber.org/zap"
)

// Dependencies bundles infrastructure dependencies required by the HTTP server.
type Dependencies struct {
	Logger        *zap.Logger
	Redis         *redis.Client
	RateLimit     middleware.RateLimitConfig
	QRCodes       service.QRCodeService
	Sessions      repository.SessionRepository
	Shopify       *shopify.Client
	Verifier      *httpUtil.SessionTokenVerifier
	ScanPublisher *service.ScanPublisher
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with all routes registered.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:      "PowerQR",
		ErrorHandler: errorHandler,
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerRoutes()
	return s
}

// App exposes the underlying Fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() {
	s.app.Use(
		middleware.RequestID(),
		middleware.Logger(s.deps.Logger),
		middleware.Recovery(s.deps.Logger),
		middleware.CORS(middleware.ShopifyAdminOrigin),
	)

	publicDeps := inthttp.PublicDeps{
		Logger:  s.deps.Logger,
		QRCodes: s.deps.QRCodes,
	}
	if s.deps.ScanPublisher != nil {
		publicDeps.ScanPublisher = s.deps.ScanPublisher
	}
	inthttp.NewPublicHandler(publicDeps).Register(s.app,
		middleware.RateLimit(s.deps.Redis, s.deps.RateLimit, s.deps.Logger),
	)

	adminHandler := inthttp.NewAdminHandler(inthttp.AdminDeps{
		Logger:  s.deps.Logger,
		QRCodes: s.deps.QRCodes,
		CatalogFor: func(shop, accessToken string) service.Catalog {
			return s.deps.Shopify.Catalog(shop, accessToken)
		},
	})
	adminHandler.Register(s.app, middleware.ShopifyAuth(middleware.ShopifyAuthConfig{
		Verifier:  s.deps.Verifier,
		Sessions:  s.deps.Sessions,
		Exchanger: s.deps.Shopify,
		Logger:    s.deps.Logger,
	}))
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": msg,
	})
}
