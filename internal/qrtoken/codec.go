package qrtoken

import (
	"errors"
	"net/url"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	fieldOrderID   = "orderId"
	fieldSecretKey = "secretKey"

	// pngSize is the pixel width of rendered QR images.
	pngSize = 256
)

// ErrNoToken reports a payload that carries no order authentication data.
var ErrNoToken = errors.New("qrtoken: no authentication data in payload")

// Encode builds the query-string payload embedded in an order QR code.
// The payload holds exactly two fields, orderId and secretKey, with
// standard percent-encoding.
func Encode(orderID, secretKey string) string {
	v := url.Values{}
	v.Set(fieldOrderID, orderID)
	v.Set(fieldSecretKey, secretKey)
	return v.Encode()
}

// Decode parses a payload back into its order id and secret key. Payloads
// that are malformed or missing either field return ErrNoToken.
func Decode(payload string) (orderID, secretKey string, err error) {
	v, err := url.ParseQuery(payload)
	if err != nil {
		return "", "", ErrNoToken
	}
	orderID = v.Get(fieldOrderID)
	secretKey = v.Get(fieldSecretKey)
	if orderID == "" || secretKey == "" {
		return "", "", ErrNoToken
	}
	return orderID, secretKey, nil
}

// Render produces the scannable PNG image for a payload.
func Render(payload string) ([]byte, error) {
	return qrcode.Encode(payload, qrcode.Medium, pngSize)
}
