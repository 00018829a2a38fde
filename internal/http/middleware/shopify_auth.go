package middleware

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PowerQR/internal/app/model"
	"github.com/sifan077/PowerQR/internal/app/repository"
	httpUtil "github.com/sifan077/PowerQR/internal/http/util"
	"github.com/sifan077/PowerQR/internal/infra/shopify"
	"go.uber.org/zap"
)

const (
	shopSessionKey      = "shop_session"
	sessionRefresherKey = "shop_session_refresher"
)

// ErrSessionRejected signals that Shopify rejected even a freshly exchanged access token.
var ErrSessionRejected = errors.New("shop session rejected after refresh")

// TokenExchanger obtains an offline access token for a shop from its session token.
type TokenExchanger interface {
	ExchangeToken(ctx context.Context, shop, sessionToken string) (*shopify.OfflineToken, error)
}

// ShopifyAuthConfig holds the collaborators of the admin auth middleware.
type ShopifyAuthConfig struct {
	Verifier  *httpUtil.SessionTokenVerifier
	Sessions  repository.SessionRepository
	Exchanger TokenExchanger
	Logger    *zap.Logger
}

// ShopifyAuth authenticates embedded admin requests by their Shopify session token
// and attaches the shop's offline session to the request.
func ShopifyAuth(cfg ShopifyAuthConfig) fiber.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing bearer session token",
			})
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")

		shop, _, err := cfg.Verifier.Verify(token)
		if err != nil {
			logger.Debug("rejected session token", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid session token",
			})
		}

		ctx := c.UserContext()
		session, err := cfg.Sessions.Get(ctx, shop)
		if errors.Is(err, repository.ErrSessionNotFound) {
			session, err = exchange(ctx, cfg, shop, token)
		}
		if err != nil {
			logger.Error("failed to load shop session", zap.String("shop", shop), zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "shop session unavailable",
			})
		}

		SetShopSession(c, session)
		SetSessionRefresher(c, NewSessionRefresher(cfg, session, token))
		return c.Next()
	}
}

func exchange(ctx context.Context, cfg ShopifyAuthConfig, shop, token string) (*model.ShopSession, error) {
	offline, err := cfg.Exchanger.ExchangeToken(ctx, shop, token)
	if err != nil {
		return nil, err
	}
	session := &model.ShopSession{
		Shop:        shop,
		AccessToken: offline.AccessToken,
		Scope:       offline.Scope,
	}
	if err := cfg.Sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// SessionRefresher replaces a stored offline session whose access token Shopify
// rejected, by exchanging the request's session token again. It refreshes at most
// once per request and is safe for concurrent use.
type SessionRefresher struct {
	cfg          ShopifyAuthConfig
	sessionToken string

	mu        sync.Mutex
	current   *model.ShopSession
	refreshed bool
}

// NewSessionRefresher builds a refresher for session, authenticated by sessionToken.
func NewSessionRefresher(cfg ShopifyAuthConfig, session *model.ShopSession, sessionToken string) *SessionRefresher {
	return &SessionRefresher{cfg: cfg, sessionToken: sessionToken, current: session}
}

// Refresh returns a session whose token differs from rejectedToken. Callers that
// lose the race get the session another caller already exchanged.
func (r *SessionRefresher) Refresh(ctx context.Context, rejectedToken string) (*model.ShopSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current.AccessToken != rejectedToken {
		return r.current, nil
	}
	if r.refreshed {
		return nil, ErrSessionRejected
	}
	r.refreshed = true

	shop := r.current.Shop
	if err := r.cfg.Sessions.Delete(ctx, shop); err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return nil, err
	}
	session, err := exchange(ctx, r.cfg, shop, r.sessionToken)
	if err != nil {
		return nil, err
	}
	if r.cfg.Logger != nil {
		r.cfg.Logger.Info("replaced rejected shop session", zap.String("shop", shop))
	}
	r.current = session
	return session, nil
}

// SetSessionRefresher attaches r to the request.
func SetSessionRefresher(c *fiber.Ctx, r *SessionRefresher) {
	c.Locals(sessionRefresherKey, r)
}

// ShopSessionRefresher returns the refresher attached by ShopifyAuth.
func ShopSessionRefresher(c *fiber.Ctx) (*SessionRefresher, bool) {
	r, ok := c.Locals(sessionRefresherKey).(*SessionRefresher)
	return r, ok && r != nil
}

// SetShopSession attaches session to the request.
func SetShopSession(c *fiber.Ctx, session *model.ShopSession) {
	c.Locals(shopSessionKey, session)
}

// ShopSession returns the session attached by ShopifyAuth.
func ShopSession(c *fiber.Ctx) (*model.ShopSession, bool) {
	session, ok := c.Locals(shopSessionKey).(*model.ShopSession)
	return session, ok && session != nil
}
