// Package blob stores profile images behind an opaque reference.
package blob

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"regexp"

	"github.com/aussiebroadwan/accounts/pkg/idx"
)

// MaxImageSize is the largest accepted upload.
const MaxImageSize = 5 << 20

var (
	ErrNotFound        = errors.New("blob: not found")
	ErrUnsupportedType = errors.New("blob: unsupported content type")
	ErrTooLarge        = errors.New("blob: too large")
	ErrInvalidRef      = errors.New("blob: invalid reference")
)

// contentTypes maps accepted image types to the extension used in refs.
var contentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

var refPattern = regexp.MustCompile(`^profile/[0-9A-HJKMNP-TV-Z]{26}\.(jpg|png|webp)$`)

// Store persists image bytes and hands back a reference for later retrieval.
type Store interface {
	Put(ctx context.Context, body io.Reader) (string, error)
	Open(ctx context.Context, ref string) (Object, error)

	// Delete removes ref. Deleting a missing ref is not an error.
	Delete(ctx context.Context, ref string) error
}

// Object is an opened blob. The caller closes Body.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// ValidRef reports whether ref has the shape produced by Put. Stores refuse
// anything else so a ref can never escape its namespace.
func ValidRef(ref string) bool {
	return refPattern.MatchString(ref)
}

// ContentTypeOf derives the content type from a ref's extension.
func ContentTypeOf(ref string) string {
	ext := path.Ext(ref)
	for ct, e := range contentTypes {
		if e == ext {
			return ct
		}
	}
	return "application/octet-stream"
}

// readImage buffers body up to MaxImageSize and sniffs its type. The
// declared content type of an upload is ignored.
func readImage(body io.Reader) (data []byte, ref string, contentType string, err error) {
	data, err = io.ReadAll(io.LimitReader(body, MaxImageSize+1))
	if err != nil {
		return nil, "", "", err
	}
	if len(data) > MaxImageSize {
		return nil, "", "", ErrTooLarge
	}

	contentType = http.DetectContentType(data)
	ext, ok := contentTypes[contentType]
	if !ok {
		return nil, "", "", ErrUnsupportedType
	}
	return data, "profile/" + idx.New().String() + ext, contentType, nil
}
