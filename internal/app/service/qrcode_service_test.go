package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sifan077/PowerQR/internal/app/model"
	"github.com/sifan077/PowerQR/internal/app/repository"
	"github.com/sifan077/PowerQR/internal/infra/shopify"
)

type mockQRCodeRepository struct {
	createFn    func(ctx context.Context, code *model.QRCode) error
	getFn       func(ctx context.Context, id int) (*model.QRCode, error)
	getShopFn   func(ctx context.Context, shop string, id int) (*model.QRCode, error)
	listFn      func(ctx context.Context, shop string) ([]model.QRCode, error)
	updateFn    func(ctx context.Context, code *model.QRCode) error
	deleteFn    func(ctx context.Context, shop string, id int) error
	incrementFn func(ctx context.Context, id int) (*model.QRCode, error)
}

func (m *mockQRCodeRepository) Create(ctx context.Context, code *model.QRCode) error {
	if m.createFn != nil {
		return m.createFn(ctx, code)
	}
	return nil
}

func (m *mockQRCodeRepository) GetByID(ctx context.Context, id int) (*model.QRCode, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, repository.ErrQRCodeNotFound
}

func (m *mockQRCodeRepository) GetForShop(ctx context.Context, shop string, id int) (*model.QRCode, error) {
	if m.getShopFn != nil {
		return m.getShopFn(ctx, shop, id)
	}
	return nil, repository.ErrQRCodeNotFound
}

func (m *mockQRCodeRepository) ListByShop(ctx context.Context, shop string) ([]model.QRCode, error) {
	if m.listFn != nil {
		return m.listFn(ctx, shop)
	}
	return nil, nil
}

func (m *mockQRCodeRepository) ListIDs(ctx context.Context) ([]int, error) {
	return nil, nil
}

func (m *mockQRCodeRepository) Update(ctx context.Context, code *model.QRCode) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, code)
	}
	return nil
}

func (m *mockQRCodeRepository) Delete(ctx context.Context, shop string, id int) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, shop, id)
	}
	return nil
}

func (m *mockQRCodeRepository) IncrementScans(ctx context.Context, id int) (*model.QRCode, error) {
	if m.incrementFn != nil {
		return m.incrementFn(ctx, id)
	}
	return nil, repository.ErrQRCodeNotFound
}

type mockCatalog struct {
	calls   atomic.Int32
	fetchFn func(ctx context.Context, productID string) (*shopify.Product, error)
}

func (m *mockCatalog) FetchProduct(ctx context.Context, productID string) (*shopify.Product, error) {
	m.calls.Add(1)
	if m.fetchFn != nil {
		return m.fetchFn(ctx, productID)
	}
	return nil, shopify.ErrProductNotFound
}

type fakeImages struct{}

func (fakeImages) Image(id int) (string, error) {
	return fmt.Sprintf("data:image/png;base64,%d", id), nil
}

type recordingAnnouncer struct {
	ids []int
}

func (a *recordingAnnouncer) Announce(id int) error {
	a.ids = append(a.ids, id)
	return nil
}

func strPtr(s string) *string { return &s }

func productCode(id int) model.QRCode {
	return model.QRCode{
		ID:            id,
		Shop:          "demo.myshopify.com",
		Title:         fmt.Sprintf("Code %d", id),
		ProductID:     fmt.Sprintf("gid://shopify/Product/%d", id),
		ProductHandle: "snowboard",
		Destination:   model.DestinationProduct,
	}
}

func TestQRCodeService_Get_Enriches(t *testing.T) {
	repo := &mockQRCodeRepository{
		getShopFn: func(ctx context.Context, shop string, id int) (*model.QRCode, error) {
			if shop != "demo.myshopify.com" {
				t.Fatalf("unexpected shop %q", shop)
			}
			code := productCode(id)
			return &code, nil
		},
	}
	catalog := &mockCatalog{
		fetchFn: func(ctx context.Context, productID string) (*shopify.Product, error) {
			return &shopify.Product{
				Title:    "Snowboard",
				ImageURL: strPtr("https://cdn.example.com/board.png"),
				ImageAlt: strPtr("Board"),
			}, nil
		},
	}

	svc := NewQRCodeService(QRCodeDeps{Repo: repo, Images: fakeImages{}})
	view, err := svc.Get(context.Background(), "demo.myshopify.com", 7, catalog)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	if view.ID != 7 || view.Title != "Code 7" {
		t.Fatalf("stored fields not carried over: %+v", view.QRCode)
	}
	if view.ProductTitle == nil || *view.ProductTitle != "Snowboard" {
		t.Fatalf("unexpected product title %v", view.ProductTitle)
	}
	if view.ProductImage == nil || *view.ProductImage != "https://cdn.example.com/board.png" {
		t.Fatalf("unexpected product image %v", view.ProductImage)
	}
	if view.ProductAlt == nil || *view.ProductAlt != "Board" {
		t.Fatalf("unexpected product alt %v", view.ProductAlt)
	}
	if view.ProductDeleted {
		t.Fatal("expected product to exist")
	}
	if view.DestinationURL != "https://demo.myshopify.com/products/snowboard" {
		t.Fatalf("unexpected destination %q", view.DestinationURL)
	}
	if view.Image != "data:image/png;base64,7" {
		t.Fatalf("unexpected image %q", view.Image)
	}
}

func TestQRCodeService_Get_ProductDeleted(t *testing.T) {
	repo := &mockQRCodeRepository{
		getShopFn: func(ctx context.Context, shop string, id int) (*model.QRCode, error) {
			code := productCode(id)
			return &code, nil
		},
	}
	catalog := &mockCatalog{}

	svc := NewQRCodeService(QRCodeDeps{Repo: repo, Images: fakeImages{}})
	view, err := svc.Get(context.Background(), "demo.myshopify.com", 3, catalog)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !view.ProductDeleted {
		t.Fatal("expected productDeleted to be set")
	}
	if view.ProductTitle != nil || view.ProductImage != nil {
		t.Fatalf("expected product fields to stay unset, got %+v", view)
	}
}

func TestQRCodeService_Get_NotFound(t *testing.T) {
	svc := NewQRCodeService(QRCodeDeps{Repo: &mockQRCodeRepository{}, Images: fakeImages{}})
	_, err := svc.Get(context.Background(), "demo.myshopify.com", 1, &mockCatalog{})
	if !errors.Is(err, repository.ErrQRCodeNotFound) {
		t.Fatalf("expected ErrQRCodeNotFound, got %v", err)
	}
}

func TestQRCodeService_CatalogFailurePropagates(t *testing.T) {
	repo := &mockQRCodeRepository{
		getShopFn: func(ctx context.Context, shop string, id int) (*model.QRCode, error) {
			code := productCode(id)
			return &code, nil
		},
		listFn: func(ctx context.Context, shop string) ([]model.QRCode, error) {
			return []model.QRCode{productCode(2), productCode(1)}, nil
		},
	}
	catalog := &mockCatalog{
		fetchFn: func(ctx context.Context, productID string) (*shopify.Product, error) {
			return nil, shopify.ErrUnexpectedStatus
		},
	}
	svc := NewQRCodeService(QRCodeDeps{Repo: repo, Images: fakeImages{}})

	if _, err := svc.Get(context.Background(), "demo.myshopify.com", 1, catalog); !errors.Is(err, ErrCatalogUnavailable) {
		t.Fatalf("Get: expected ErrCatalogUnavailable, got %v", err)
	}
	if _, err := svc.List(context.Background(), "demo.myshopify.com", catalog); !errors.Is(err, ErrCatalogUnavailable) {
		t.Fatalf("List: expected ErrCatalogUnavailable, got %v", err)
	}
}

func TestQRCodeService_List_Empty(t *testing.T) {
	repo := &mockQRCodeRepository{
		listFn: func(ctx context.Context, shop string) ([]model.QRCode, error) {
			return nil, nil
		},
	}
	catalog := &mockCatalog{}

	svc := NewQRCodeService(QRCodeDeps{Repo: repo, Images: fakeImages{}})
	views, err := svc.List(context.Background(), "demo.myshopify.com", catalog)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if views == nil || len(views) != 0 {
		t.Fatalf("expected empty non-nil list, got %v", views)
	}
	if catalog.calls.Load() != 0 {
		t.Fatalf("expected no catalog calls, got %d", catalog.calls.Load())
	}
}

func TestQRCodeService_List_PreservesOrder(t *testing.T) {
	repo := &mockQRCodeRepository{
		listFn: func(ctx context.Context, shop string) ([]model.QRCode, error) {
			return []model.QRCode{productCode(3), productCode(2), productCode(1)}, nil
		},
	}
	catalog := &mockCatalog{
		fetchFn: func(ctx context.Context, productID string) (*shopify.Product, error) {
			return &shopify.Product{Title: "Title for " + productID}, nil
		},
	}

	svc := NewQRCodeService(QRCodeDeps{Repo: repo, Images: fakeImages{}})
	views, err := svc.List(context.Background(), "demo.myshopify.com", catalog)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(views) != 3 {
		t.Fatalf("expected 3 views, got %d", len(views))
	}
	for i, want := range []int{3, 2, 1} {
		if views[i].ID != want {
			t.Fatalf("position %d: expected id %d, got %d", i, want, views[i].ID)
		}
		if *views[i].ProductTitle != fmt.Sprintf("Title for gid://shopify/Product/%d", want) {
			t.Fatalf("position %d: product title mismatched: %s", i, *views[i].ProductTitle)
		}
	}
	if catalog.calls.Load() != 3 {
		t.Fatalf("expected 3 catalog calls, got %d", catalog.calls.Load())
	}
}

func TestQRCodeService_Save_Invalid(t *testing.T) {
	repo := &mockQRCodeRepository{
		createFn: func(ctx context.Context, code *model.QRCode) error {
			t.Fatal("expected no write for an invalid form")
			return nil
		},
	}

	svc := NewQRCodeService(QRCodeDeps{Repo: repo, Images: fakeImages{}})
	_, err := svc.Save(context.Background(), "demo.myshopify.com", 0, QRCodeForm{ProductID: "P", Destination: "product"})

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if verrs["title"] != "Title is required" {
		t.Fatalf("unexpected errors %v", verrs)
	}
}

func TestQRCodeService_Save_Create(t *testing.T) {
	repo := &mockQRCodeRepository{
		createFn: func(ctx context.Context, code *model.QRCode) error {
			if code.Shop != "demo.myshopify.com" || code.Title != "Spring sale" {
				t.Fatalf("unexpected code %+v", code)
			}
			code.ID = 11
			return nil
		},
	}
	filter := NewCodeFilter(100, 0.01)
	announcer := &recordingAnnouncer{}

	svc := NewQRCodeService(QRCodeDeps{Repo: repo, Images: fakeImages{}, Filter: filter, Announcer: announcer})
	code, err := svc.Save(context.Background(), "demo.myshopify.com", 0, QRCodeForm{
		Title:       "Spring sale",
		ProductID:   "gid://shopify/Product/1",
		Destination: model.DestinationProduct,
	})
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if code.ID != 11 {
		t.Fatalf("expected id 11, got %d", code.ID)
	}
	if !filter.MightContain(11) {
		t.Fatal("expected created id in filter")
	}
	if len(announcer.ids) != 1 || announcer.ids[0] != 11 {
		t.Fatalf("expected id 11 to be announced, got %v", announcer.ids)
	}
}

func TestQRCodeService_Save_UpdateMissing(t *testing.T) {
	repo := &mockQRCodeRepository{
		updateFn: func(ctx context.Context, code *model.QRCode) error {
			if code.ID != 5 {
				t.Fatalf("expected update of id 5, got %d", code.ID)
			}
			return repository.ErrQRCodeNotFound
		},
	}

	svc := NewQRCodeService(QRCodeDeps{Repo: repo, Images: fakeImages{}})
	_, err := svc.Save(context.Background(), "demo.myshopify.com", 5, QRCodeForm{
		Title:       "T",
		ProductID:   "P",
		Destination: model.DestinationCart,
	})
	if !errors.Is(err, repository.ErrQRCodeNotFound) {
		t.Fatalf("expected ErrQRCodeNotFound, got %v", err)
	}
}

func TestQRCodeService_Scan_FilterMissUnknownID(t *testing.T) {
	filter := NewCodeFilter(100, 0.001)
	svc := NewQRCodeService(QRCodeDeps{Repo: &mockQRCodeRepository{}, Images: fakeImages{}, Filter: filter})

	_, _, err := svc.Scan(context.Background(), 999)
	if !errors.Is(err, repository.ErrQRCodeNotFound) {
		t.Fatalf("expected ErrQRCodeNotFound, got %v", err)
	}
	if filter.MightContain(999) {
		t.Fatal("unknown id must not be added to the filter")
	}
}

// memoryRepository is a store shared by several service instances.
type memoryRepository struct {
	mockQRCodeRepository
	mu    sync.Mutex
	next  int
	codes map[int]model.QRCode
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{codes: map[int]model.QRCode{}}
}

func (r *memoryRepository) Create(ctx context.Context, code *model.QRCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	code.ID = r.next
	r.codes[code.ID] = *code
	return nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id int) (*model.QRCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.codes[id]
	if !ok {
		return nil, repository.ErrQRCodeNotFound
	}
	return &code, nil
}

func (r *memoryRepository) IncrementScans(ctx context.Context, id int) (*model.QRCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.codes[id]
	if !ok {
		return nil, repository.ErrQRCodeNotFound
	}
	code.Scans++
	r.codes[id] = code
	return &code, nil
}

type failingAnnouncer struct{}

func (failingAnnouncer) Announce(id int) error {
	return errors.New("nats: connection closed")
}

func TestQRCodeService_Scan_CodeCreatedOnAnotherInstance(t *testing.T) {
	repo := newMemoryRepository()
	a := NewQRCodeService(QRCodeDeps{
		Repo:      repo,
		Images:    fakeImages{},
		Filter:    NewCodeFilter(100, 0.001),
		Announcer: failingAnnouncer{},
	})
	filterB := NewCodeFilter(100, 0.001)
	b := NewQRCodeService(QRCodeDeps{Repo: repo, Images: fakeImages{}, Filter: filterB})

	created, err := a.Save(context.Background(), "demo.myshopify.com", 0, QRCodeForm{
		Title:         "Window",
		ProductID:     "gid://shopify/Product/1",
		ProductHandle: "snowboard",
		Destination:   model.DestinationProduct,
	})
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	if _, _, err := b.Public(context.Background(), created.ID); err != nil {
		t.Fatalf("Public returned error: %v", err)
	}

	for i := 1; i <= 2; i++ {
		code, url, err := b.Scan(context.Background(), created.ID)
		if err != nil {
			t.Fatalf("scan %d of an existing code failed: %v", i, err)
		}
		if url != "https://demo.myshopify.com/products/snowboard" {
			t.Fatalf("scan %d: unexpected destination %q", i, url)
		}
		if code.Scans != i {
			t.Fatalf("scan %d: expected %d scans, got %d", i, i, code.Scans)
		}
	}
	if !filterB.MightContain(created.ID) {
		t.Fatal("expected the second instance to learn the id from its first scan")
	}
}

func TestQRCodeService_Scan_InvalidVariant(t *testing.T) {
	repo := &mockQRCodeRepository{
		incrementFn: func(ctx context.Context, id int) (*model.QRCode, error) {
			return &model.QRCode{ID: id, Shop: "demo.myshopify.com", Destination: model.DestinationCart, ProductVariantID: "bogus"}, nil
		},
	}

	svc := NewQRCodeService(QRCodeDeps{Repo: repo, Images: fakeImages{}})
	_, url, err := svc.Scan(context.Background(), 1)
	if !errors.Is(err, ErrInvalidVariantID) {
		t.Fatalf("expected ErrInvalidVariantID, got %v", err)
	}
	if url != "" {
		t.Fatalf("expected no url, got %q", url)
	}
}

// counterRepository increments under a lock, the way the store's UPDATE does.
type counterRepository struct {
	mockQRCodeRepository
	mu   sync.Mutex
	code model.QRCode
}

func (r *counterRepository) IncrementScans(ctx context.Context, id int) (*model.QRCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id != r.code.ID {
		return nil, repository.ErrQRCodeNotFound
	}
	r.code.Scans++
	code := r.code
	return &code, nil
}

func TestQRCodeService_Scan_Concurrent(t *testing.T) {
	repo := &counterRepository{code: model.QRCode{
		ID:               9,
		Shop:             "demo.myshopify.com",
		Destination:      model.DestinationCart,
		ProductVariantID: "gid://shopify/ProductVariant/12345",
	}}
	filter := NewCodeFilter(100, 0.01)
	filter.Add(9)
	svc := NewQRCodeService(QRCodeDeps{Repo: repo, Images: fakeImages{}, Filter: filter})

	const n = 64
	urls := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, urls[i], errs[i] = svc.Scan(context.Background(), 9)
		}()
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("scan %d returned error: %v", i, errs[i])
		}
		if urls[i] != "https://demo.myshopify.com/cart/12345:1" {
			t.Fatalf("scan %d: unexpected destination %q", i, urls[i])
		}
	}
	if repo.code.Scans != n {
		t.Fatalf("expected %d scans, got %d", n, repo.code.Scans)
	}
}

func TestQRCodeService_Public(t *testing.T) {
	repo := &mockQRCodeRepository{
		getFn: func(ctx context.Context, id int) (*model.QRCode, error) {
			code := productCode(id)
			return &code, nil
		},
	}

	svc := NewQRCodeService(QRCodeDeps{Repo: repo, Images: fakeImages{}})
	code, image, err := svc.Public(context.Background(), 4)
	if err != nil {
		t.Fatalf("Public returned error: %v", err)
	}
	if code.Title != "Code 4" || image != "data:image/png;base64,4" {
		t.Fatalf("unexpected public view %q %q", code.Title, image)
	}
}
