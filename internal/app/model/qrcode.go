package model

import "time"

// Destination modes a QR code can redirect to.
const (
	DestinationProduct = "product"
	DestinationCart    = "cart"
)

// QRCode describes a merchant QR code stored in Postgres.
type QRCode struct {
	ID               int       `json:"id" db:"id" gorm:"primaryKey;autoIncrement"`
	Shop             string    `json:"shop" db:"shop" gorm:"size:255;not null;index"`
	Title            string    `json:"title" db:"title" gorm:"type:text;not null"`
	ProductID        string    `json:"productId" db:"product_id" gorm:"size:255;not null"`
	ProductHandle    string    `json:"productHandle" db:"product_handle" gorm:"size:255;not null"`
	ProductVariantID string    `json:"productVariantId" db:"product_variant_id" gorm:"size:255;not null"`
	Destination      string    `json:"destination" db:"destination" gorm:"size:16;not null"`
	Scans            int       `json:"scans" db:"scans" gorm:"not null;default:0"`
	CreatedAt        time.Time `json:"createdAt" db:"created_at" gorm:"autoCreateTime;<-:create"`
}

// TableName pins the table name used by both GORM and raw pgx queries.
func (QRCode) TableName() string {
	return "qr_codes"
}
