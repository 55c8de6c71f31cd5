package blob

import (
	perr "bazaar/internal/platform/errors"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxBytes is the upload size cap applied from env
const DefaultMaxBytes = 5 << 20

// DefaultAllowedTypes are the image types uploads may carry
var DefaultAllowedTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif", "image/heic", "image/heif"}

// Limits bounds what Store accepts. The zero value accepts everything non-empty.
type Limits struct {
	MaxBytes     int64
	AllowedTypes []string // matched against the type sniffed from the bytes
}

func (l Limits) check(data []byte) error {
	if len(data) == 0 {
		return perr.InvalidArgf("storage: empty payload")
	}
	if l.MaxBytes > 0 && int64(len(data)) > l.MaxBytes {
		return perr.Newf(perr.ErrorCodeTooLarge, "storage: payload is %d bytes, limit %d", len(data), l.MaxBytes)
	}
	if len(l.AllowedTypes) == 0 {
		return nil
	}
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		if mimetype.EqualsAny(m.String(), l.AllowedTypes...) {
			return nil
		}
	}
	return perr.Newf(perr.ErrorCodeUnsupportedType, "storage: content type %s not allowed", mt.String())
}
