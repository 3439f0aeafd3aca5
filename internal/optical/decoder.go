package optical

import (
	"errors"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// ErrNoCodeFound reports that a frame contains no decodable QR code. A
// recoverable condition: the caller may retry with the next frame.
var ErrNoCodeFound = errors.New("optical: no code found in frame")

// Decoder locates and decodes a single QR code in a raster frame.
type Decoder struct {
	reader gozxing.Reader
}

func NewDecoder() *Decoder {
	return &Decoder{reader: qrcode.NewQRCodeReader()}
}

// DecodeImage returns the payload of the QR code embedded in img, or
// ErrNoCodeFound. Frames without a code, with stray bright regions, or of
// unusual dimensions all map to ErrNoCodeFound rather than distinct
// failures.
func (d *Decoder) DecodeImage(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", ErrNoCodeFound
	}

	result, err := d.reader.Decode(bmp, nil)
	if err != nil {
		return "", ErrNoCodeFound
	}

	return result.GetText(), nil
}
