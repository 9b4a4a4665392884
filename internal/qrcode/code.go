package qrcode

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewCode returns an unguessable 32 character token.
func NewCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// FormURL builds the public submission URL printed into the QR image.
func FormURL(publicBaseURL, code string) string {
	return fmt.Sprintf("%s/form/%s", strings.TrimRight(publicBaseURL, "/"), code)
}
