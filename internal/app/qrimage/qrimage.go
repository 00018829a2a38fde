// Package qrimage renders QR codes that point at the public scan endpoint.
package qrimage

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"

	"github.com/skip2/go-qrcode"
)

// DefaultSize is the edge length of generated images in pixels.
const DefaultSize = 256

const dataURLPrefix = "data:image/png;base64,"

// Generator builds scan URLs and their QR images for a fixed app origin.
type Generator struct {
	base *url.URL
	size int
}

// NewGenerator parses appURL, which must be absolute.
func NewGenerator(appURL string, size int) (*Generator, error) {
	base, err := url.Parse(appURL)
	if err != nil {
		return nil, fmt.Errorf("qrimage: parse app url: %w", err)
	}
	if !base.IsAbs() || base.Host == "" {
		return nil, fmt.Errorf("qrimage: app url %q is not absolute", appURL)
	}
	if size <= 0 {
		size = DefaultSize
	}
	return &Generator{base: base, size: size}, nil
}

// ScanURL returns the public scan endpoint of the QR code with the given id.
func (g *Generator) ScanURL(id int) string {
	ref := &url.URL{Path: "qrcodes/" + strconv.Itoa(id) + "/scan"}
	return g.base.ResolveReference(ref).String()
}

// Image returns a PNG data URL encoding the scan URL of id.
func (g *Generator) Image(id int) (string, error) {
	return EncodeDataURL(g.ScanURL(id), g.size)
}

// EncodeDataURL encodes content as a QR code and returns it as a PNG data URL.
func EncodeDataURL(content string, size int) (string, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return "", fmt.Errorf("qrimage: encode: %w", err)
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(png), nil
}
