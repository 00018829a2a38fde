package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sifan077/PowerQR/internal/app/model"
	"github.com/sifan077/PowerQR/internal/app/repository"
	metrics "github.com/sifan077/PowerQR/internal/infra/prometheus"
	"github.com/sifan077/PowerQR/internal/infra/shopify"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrCatalogUnavailable signals that the product catalog could not be queried.
// It is distinct from shopify.ErrProductNotFound, which marks the product as deleted.
var ErrCatalogUnavailable = errors.New("product catalog unavailable")

// Catalog looks up live product data for a single shop.
type Catalog interface {
	FetchProduct(ctx context.Context, productID string) (*shopify.Product, error)
}

// ImageGenerator renders the QR image for a code id.
type ImageGenerator interface {
	Image(id int) (string, error)
}

// Announcer tells other instances about newly created codes.
type Announcer interface {
	Announce(id int) error
}

// QRCodeService defines behaviour-level operations on QR codes.
type QRCodeService interface {
	Get(ctx context.Context, shop string, id int, catalog Catalog) (*model.QRCodeView, error)
	List(ctx context.Context, shop string, catalog Catalog) ([]model.QRCodeView, error)
	Save(ctx context.Context, shop string, id int, form QRCodeForm) (*model.QRCode, error)
	Delete(ctx context.Context, shop string, id int) error
	Scan(ctx context.Context, id int) (*model.QRCode, string, error)
	Public(ctx context.Context, id int) (*model.QRCode, string, error)
}

// QRCodeDeps groups the collaborators of the QR code service.
type QRCodeDeps struct {
	Logger    *zap.Logger
	Repo      repository.QRCodeRepository
	Images    ImageGenerator
	Filter    *CodeFilter
	Announcer Announcer
}

type qrCodeService struct {
	logger    *zap.Logger
	repo      repository.QRCodeRepository
	images    ImageGenerator
	filter    *CodeFilter
	announcer Announcer
}

// NewQRCodeService returns a service implementation backed by the given dependencies.
func NewQRCodeService(deps QRCodeDeps) QRCodeService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &qrCodeService{
		logger:    logger,
		repo:      deps.Repo,
		images:    deps.Images,
		filter:    deps.Filter,
		announcer: deps.Announcer,
	}
}

func (s *qrCodeService) Get(ctx context.Context, shop string, id int, catalog Catalog) (*model.QRCodeView, error) {
	code, err := s.repo.GetForShop(ctx, shop, id)
	if err != nil {
		return nil, fmt.Errorf("get qr code: %w", err)
	}
	return s.enrich(ctx, *code, catalog)
}

func (s *qrCodeService) List(ctx context.Context, shop string, catalog Catalog) ([]model.QRCodeView, error) {
	codes, err := s.repo.ListByShop(ctx, shop)
	if err != nil {
		return nil, fmt.Errorf("list qr codes: %w", err)
	}

	views := make([]model.QRCodeView, len(codes))
	if len(codes) == 0 {
		return views, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range codes {
		g.Go(func() error {
			view, err := s.enrich(gctx, codes[i], catalog)
			if err != nil {
				return err
			}
			views[i] = *view
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

// enrich merges code with its QR image, live product data and destination URL.
// The image and the catalog lookup run concurrently.
func (s *qrCodeService) enrich(ctx context.Context, code model.QRCode, catalog Catalog) (*model.QRCodeView, error) {
	destination, err := ResolveDestination(code)
	if err != nil {
		return nil, fmt.Errorf("qr code %d: %w", code.ID, err)
	}

	view := &model.QRCodeView{QRCode: code, DestinationURL: destination}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		image, err := s.images.Image(code.ID)
		if err != nil {
			return fmt.Errorf("qr code %d image: %w", code.ID, err)
		}
		view.Image = image
		return nil
	})
	g.Go(func() error {
		product, err := catalog.FetchProduct(gctx, code.ProductID)
		switch {
		case errors.Is(err, shopify.ErrProductNotFound):
			metrics.CatalogLookupsTotal.WithLabelValues(metrics.CatalogNotFound).Inc()
			view.ProductDeleted = true
			return nil
		case err != nil:
			metrics.CatalogLookupsTotal.WithLabelValues(metrics.CatalogError).Inc()
			return fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
		}

		metrics.CatalogLookupsTotal.WithLabelValues(metrics.CatalogFound).Inc()
		if product.Title == "" {
			view.ProductDeleted = true
		} else {
			title := product.Title
			view.ProductTitle = &title
		}
		view.ProductImage = product.ImageURL
		view.ProductAlt = product.ImageAlt
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return view, nil
}

// Save creates the code when id is 0 and updates the shop's existing code otherwise.
// Nothing is written when the form is invalid; the returned error is ValidationErrors.
func (s *qrCodeService) Save(ctx context.Context, shop string, id int, form QRCodeForm) (*model.QRCode, error) {
	if errs := ValidateQRCode(form); errs != nil {
		return nil, errs
	}

	code := &model.QRCode{
		ID:               id,
		Shop:             shop,
		Title:            form.Title,
		ProductID:        form.ProductID,
		ProductHandle:    form.ProductHandle,
		ProductVariantID: form.ProductVariantID,
		Destination:      form.Destination,
	}

	if id != 0 {
		if err := s.repo.Update(ctx, code); err != nil {
			return nil, fmt.Errorf("update qr code: %w", err)
		}
		return code, nil
	}

	if err := s.repo.Create(ctx, code); err != nil {
		return nil, fmt.Errorf("create qr code: %w", err)
	}

	if s.filter != nil {
		s.filter.Add(code.ID)
	}
	if s.announcer != nil {
		if err := s.announcer.Announce(code.ID); err != nil {
			// Other instances learn the id on its first scan.
			s.logger.Warn("failed to announce qr code", zap.Int("id", code.ID), zap.Error(err))
		}
	}
	return code, nil
}

func (s *qrCodeService) Delete(ctx context.Context, shop string, id int) error {
	if err := s.repo.Delete(ctx, shop, id); err != nil {
		return fmt.Errorf("delete qr code: %w", err)
	}
	return nil
}

// Scan atomically counts one scan of id and returns the updated code with its destination.
func (s *qrCodeService) Scan(ctx context.Context, id int) (*model.QRCode, string, error) {
	// The filter can lag other instances (missed announcements, reconnect gaps), so a
	// miss is answered by the store and the id is learned when it exists.
	missed := s.filter != nil && !s.filter.MightContain(id)

	code, err := s.repo.IncrementScans(ctx, id)
	if err != nil {
		if missed && errors.Is(err, repository.ErrQRCodeNotFound) {
			metrics.CodeFilterMissesTotal.WithLabelValues(metrics.FilterMissAbsent).Inc()
		}
		return nil, "", fmt.Errorf("scan qr code: %w", err)
	}
	if missed {
		metrics.CodeFilterMissesTotal.WithLabelValues(metrics.FilterMissFound).Inc()
		s.filter.Add(id)
		s.logger.Debug("learned qr code missing from filter", zap.Int("id", id))
	}

	destination, err := ResolveDestination(*code)
	if err != nil {
		return nil, "", fmt.Errorf("scan qr code %d: %w", id, err)
	}
	return code, destination, nil
}

// Public loads a code for the public page together with its QR image.
func (s *qrCodeService) Public(ctx context.Context, id int) (*model.QRCode, string, error) {
	code, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("get qr code: %w", err)
	}
	image, err := s.images.Image(code.ID)
	if err != nil {
		return nil, "", fmt.Errorf("qr code %d image: %w", id, err)
	}
	return code, image, nil
}
