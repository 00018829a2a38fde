package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sifan077/PowerQR/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrQRCodeNotFound signals that the requested QR code does not exist.
	ErrQRCodeNotFound = errors.New("qr code not found")
)

// QRCodeRepository defines the data access contract for QR codes.
type QRCodeRepository interface {
	Create(ctx context.Context, code *model.QRCode) error
	GetByID(ctx context.Context, id int) (*model.QRCode, error)
	GetForShop(ctx context.Context, shop string, id int) (*model.QRCode, error)
	ListByShop(ctx context.Context, shop string) ([]model.QRCode, error)
	ListIDs(ctx context.Context) ([]int, error)
	Update(ctx context.Context, code *model.QRCode) error
	Delete(ctx context.Context, shop string, id int) error
	IncrementScans(ctx context.Context, id int) (*model.QRCode, error)
}

type qrCodeRepository struct {
	db   *gorm.DB
	pool *pgxpool.Pool
}

// NewQRCodeRepository returns a repository that uses GORM for CRUD and the pgx pool
// for the scan counter.
func NewQRCodeRepository(db *gorm.DB, pool *pgxpool.Pool) QRCodeRepository {
	return &qrCodeRepository{db: db, pool: pool}
}

func (r *qrCodeRepository) Create(ctx context.Context, code *model.QRCode) error {
	code.ID = 0
	code.Scans = 0
	return r.db.WithContext(ctx).Create(code).Error
}

func (r *qrCodeRepository) GetByID(ctx context.Context, id int) (*model.QRCode, error) {
	var code model.QRCode
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQRCodeNotFound
		}
		return nil, err
	}
	return &code, nil
}

func (r *qrCodeRepository) GetForShop(ctx context.Context, shop string, id int) (*model.QRCode, error) {
	var code model.QRCode
	if err := r.db.WithContext(ctx).Where("id = ? AND shop = ?", id, shop).First(&code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQRCodeNotFound
		}
		return nil, err
	}
	return &code, nil
}

func (r *qrCodeRepository) ListByShop(ctx context.Context, shop string) ([]model.QRCode, error) {
	var result []model.QRCode
	if err := r.db.WithContext(ctx).
		Where("shop = ?", shop).
		Order("id DESC").
		Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (r *qrCodeRepository) ListIDs(ctx context.Context) ([]int, error) {
	var ids []int
	if err := r.db.WithContext(ctx).Model(&model.QRCode{}).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *qrCodeRepository) Update(ctx context.Context, code *model.QRCode) error {
	result := r.db.WithContext(ctx).
		Model(&model.QRCode{}).
		Where("id = ? AND shop = ?", code.ID, code.Shop).
		Updates(map[string]interface{}{
			"title":              code.Title,
			"product_id":         code.ProductID,
			"product_handle":     code.ProductHandle,
			"product_variant_id": code.ProductVariantID,
			"destination":        code.Destination,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrQRCodeNotFound
	}

	return r.db.WithContext(ctx).Where("id = ?", code.ID).First(code).Error
}

func (r *qrCodeRepository) Delete(ctx context.Context, shop string, id int) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND shop = ?", id, shop).
		Delete(&model.QRCode{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrQRCodeNotFound
	}
	return nil
}

// qrCodeColumns is the column order shared by RETURNING clauses and qrCodeScanTargets.
var qrCodeColumns = []string{
	"id", "shop", "title", "product_id", "product_handle",
	"product_variant_id", "destination", "scans", "created_at",
}

var incrementScansSQL = "UPDATE qr_codes SET scans = scans + 1 WHERE id = $1\nRETURNING " +
	strings.Join(qrCodeColumns, ", ")

// qrCodeScanTargets returns the fields of code in qrCodeColumns order.
func qrCodeScanTargets(code *model.QRCode) []any {
	return []any{
		&code.ID,
		&code.Shop,
		&code.Title,
		&code.ProductID,
		&code.ProductHandle,
		&code.ProductVariantID,
		&code.Destination,
		&code.Scans,
		&code.CreatedAt,
	}
}

func scanQRCode(row pgx.Row) (*model.QRCode, error) {
	var code model.QRCode
	if err := row.Scan(qrCodeScanTargets(&code)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQRCodeNotFound
		}
		return nil, err
	}
	return &code, nil
}

// IncrementScans bumps the counter in a single statement so concurrent scans never lose updates.
func (r *qrCodeRepository) IncrementScans(ctx context.Context, id int) (*model.QRCode, error) {
	return scanQRCode(r.pool.QueryRow(ctx, incrementScansSQL, id))
}
