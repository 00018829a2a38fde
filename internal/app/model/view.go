package model

// QRCodeView is a stored QR code merged with live catalog data, ready for display.
// Product fields stay nil when the catalog has nothing for them.
type QRCodeView struct {
	QRCode
	ProductTitle   *string `json:"productTitle,omitempty"`
	ProductImage   *string `json:"productImage,omitempty"`
	ProductAlt     *string `json:"productAlt,omitempty"`
	ProductDeleted bool    `json:"productDeleted"`
	DestinationURL string  `json:"destinationUrl"`
	Image          string  `json:"image"`
}
