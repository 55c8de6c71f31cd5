package blob

import (
	"path"
	"strconv"
	"strings"
	"time"

	perr "bazaar/internal/platform/errors"

	"github.com/google/uuid"
)

// KeyRoot is the first segment of every object key
const KeyRoot = "uploads"

// DefaultExt is used when the original filename has no recognised image extension
const DefaultExt = ".jpg"

const octetStream = "application/octet-stream"

// contentTypes is both the extension allow-list and the upload content-type table
var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".heic": "image/heic",
	".heif": "image/heif",
}

// newID is a seam for tests
var newID = func() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Ext returns the lowercased extension of filename when it is a known image
// type and DefaultExt otherwise. Only the extension of a caller name is ever used.
func Ext(filename string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(filename, `\`, "/")))
	if _, ok := contentTypes[ext]; ok {
		return ext
	}
	return DefaultExt
}

// ContentType maps an extension to its upload content type
func ContentType(ext string) string {
	if ct, ok := contentTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return octetStream
}

// objectName is <unix millis>-<32 hex random><ext>
func objectName(now time.Time, filename string) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + newID() + Ext(filename)
}

// cleanFolder lowercases each segment and replaces anything outside
// [a-z0-9_-] with '-'. Empty, "." and ".." segments are rejected.
func cleanFolder(folder string) (string, error) {
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		return "", perr.InvalidArgf("storage: folder is required")
	}
	segs := strings.Split(folder, "/")
	for i, seg := range segs {
		seg = strings.ToLower(strings.TrimSpace(seg))
		if seg == "" || seg == "." || seg == ".." {
			return "", perr.WithField(perr.InvalidArgf("storage: invalid folder %q", folder), "folder")
		}
		segs[i] = strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
				return r
			default:
				return '-'
			}
		}, seg)
	}
	return strings.Join(segs, "/"), nil
}

// objectKey is uploads/<folder>/<name>
func objectKey(folder, name string) string {
	return KeyRoot + "/" + folder + "/" + name
}
