package qrpayload

import (
	"fmt"

	"github.com/skip2/go-qrcode"
)

// RenderPNG renders content as a square PNG QR code of size pixels.
func RenderPNG(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: empty content", ErrInvalidPayload)
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to render QR code: %w", err)
	}
	return png, nil
}
