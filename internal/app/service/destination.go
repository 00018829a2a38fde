package service

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/sifan077/PowerQR/internal/app/model"
)

var (
	// ErrInvalidVariantID signals a cart QR code whose variant id is not a ProductVariant gid.
	ErrInvalidVariantID = errors.New("product variant id is not valid")
	// ErrUnknownDestination signals a destination other than product or cart.
	ErrUnknownDestination = errors.New("unknown qr code destination")
)

var variantIDPattern = regexp.MustCompile(`gid://shopify/ProductVariant/([0-9]+)`)

// ResolveDestination computes the storefront URL a scan of code redirects to.
func ResolveDestination(code model.QRCode) (string, error) {
	switch code.Destination {
	case model.DestinationProduct:
		return fmt.Sprintf("https://%s/products/%s", code.Shop, code.ProductHandle), nil
	case model.DestinationCart:
		match := variantIDPattern.FindStringSubmatch(code.ProductVariantID)
		if match == nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidVariantID, code.ProductVariantID)
		}
		return fmt.Sprintf("https://%s/cart/%s:1", code.Shop, match[1]), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDestination, code.Destination)
	}
}
