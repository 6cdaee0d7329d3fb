package core

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"autocloud.com/car-insurance-estimator/internal/apperr"
)

// Image is an inline binary attachment sent alongside the prompt text.
type Image struct {
	MIMEType string
	Data     []byte
}

// NewImage sniffs the MIME type of data and rejects anything that is not an image.
func NewImage(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, apperr.New(apperr.KindImageEncoding, "decode image", errors.New("image is empty"))
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, apperr.New(apperr.KindImageEncoding, "decode image", fmt.Errorf("not an image: detected %s", mt.String()))
	}
	return &Image{MIMEType: mt.String(), Data: data}, nil
}

// LoadImage reads and sniffs the image at path. The attachment is tagged with
// the detected type rather than a fixed "image/jpeg": JPEG files are still sent
// as image/jpeg, while PNG, WebP and other images carry their own type.
func LoadImage(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.New(apperr.KindImageEncoding, "read image", err)
	}
	return NewImage(data)
}
