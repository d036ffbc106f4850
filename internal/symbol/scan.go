package symbol

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Scanner recovers at most one chunk string from an image. ok is false when
// no readable symbol is present; that is not an error.
type Scanner interface {
	Scan(img image.Image) (payload string, ok bool, err error)
}

type QRScanner struct {
	TryHarder bool
}

func NewQRScanner() *QRScanner {
	return &QRScanner{TryHarder: true}
}

func (s *QRScanner) Scan(img image.Image) (string, bool, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", false, fmt.Errorf("symbol: bitmap: %w", err)
	}
	var hints map[gozxing.DecodeHintType]interface{}
	if s.TryHarder {
		hints = map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		}
	}
	res, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", false, nil
	}
	return res.GetText(), true, nil
}

// LoadImage decodes a PNG, JPEG or GIF file.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("symbol: decode image %s: %w", path, err)
	}
	return img, nil
}

// ScanFile loads path and scans it.
func ScanFile(s Scanner, path string) (string, bool, error) {
	img, err := LoadImage(path)
	if err != nil {
		return "", false, err
	}
	return s.Scan(img)
}
