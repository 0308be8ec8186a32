// Package objects decodes uploaded images and publishes them to
// S3-compatible object storage.
package objects

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MemoFlux/MemoFluxServer/pkg/extract"
)

var (
	ErrNotImage  = errors.New("objects: content is not an image")
	ErrBadBase64 = errors.New("objects: invalid base64 image data")
)

// DecodeImage decodes base64 image data, optionally given as a
// "data:<mime>;base64," URI. The MIME type is sniffed from the bytes.
func DecodeImage(s string) (extract.Image, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		_, payload, found := strings.Cut(rest, ",")
		if !found {
			return extract.Image{}, ErrBadBase64
		}
		s = payload
	}
	data, err := decodeBase64(s)
	if err != nil {
		return extract.Image{}, err
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return extract.Image{}, fmt.Errorf("%w: detected %s", ErrNotImage, mime)
	}
	return extract.Image{MIMEType: mime, Data: data}, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return nil, ErrBadBase64
	}
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, ErrBadBase64
}

// extension maps a sniffed MIME type to a file extension.
func extension(mime string) string {
	switch mime {
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "image/bmp":
		return "bmp"
	}
	return "bin"
}
