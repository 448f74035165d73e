// Package qr renders QR codes as data URIs for embedding in API responses.
package qr

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const imageSize = 256

// DataURI encodes content as a PNG QR code and returns it as a
// base64 data URI suitable for an <img> src attribute.
func DataURI(content string) (string, error) {
	if content == "" {
		return "", nil
	}
	png, err := qrcode.Encode(content, qrcode.Medium, imageSize)
	if err != nil {
		return "", fmt.Errorf("qr: encode: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
