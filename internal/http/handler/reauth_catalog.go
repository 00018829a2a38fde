package handler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PowerQR/internal/app/model"
	"github.com/sifan077/PowerQR/internal/app/service"
	"github.com/sifan077/PowerQR/internal/http/middleware"
	"github.com/sifan077/PowerQR/internal/infra/shopify"
)

// reauthCatalog retries a lookup once with a re-exchanged session when Shopify
// rejects the stored access token.
type reauthCatalog struct {
	factory   CatalogFactory
	refresher *middleware.SessionRefresher

	mu      sync.Mutex
	session *model.ShopSession
	inner   service.Catalog
}

func (h *AdminHandler) catalogFor(c *fiber.Ctx, session *model.ShopSession) service.Catalog {
	catalog := h.newCatalog(session.Shop, session.AccessToken)
	refresher, ok := middleware.ShopSessionRefresher(c)
	if !ok {
		return catalog
	}
	return &reauthCatalog{
		factory:   h.newCatalog,
		refresher: refresher,
		session:   session,
		inner:     catalog,
	}
}

func (r *reauthCatalog) current() (*model.ShopSession, service.Catalog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session, r.inner
}

func (r *reauthCatalog) FetchProduct(ctx context.Context, productID string) (*shopify.Product, error) {
	session, catalog := r.current()
	product, err := catalog.FetchProduct(ctx, productID)
	if !errors.Is(err, shopify.ErrUnauthorized) {
		return product, err
	}

	fresh, refreshErr := r.refresher.Refresh(ctx, session.AccessToken)
	if refreshErr != nil {
		return nil, fmt.Errorf("%w: refresh session: %w", err, refreshErr)
	}

	r.mu.Lock()
	if r.session.AccessToken != fresh.AccessToken {
		r.session = fresh
		r.inner = r.factory(fresh.Shop, fresh.AccessToken)
	}
	catalog = r.inner
	r.mu.Unlock()

	return catalog.FetchProduct(ctx, productID)
}
