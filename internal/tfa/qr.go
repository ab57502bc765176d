package tfa

import (
	"encoding/base64"

	qrcode "github.com/skip2/go-qrcode"
)

// RenderQRPNG encodes the provisioning URI as a scannable PNG.
func RenderQRPNG(uri string) ([]byte, error) {
	return qrcode.Encode(uri, qrcode.Medium, 256)
}

// RenderQRDataURL returns the QR code as an inline data URL, the format
// the frontend embeds directly into an <img> tag.
func RenderQRDataURL(uri string) (string, error) {
	png, err := RenderQRPNG(uri)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
