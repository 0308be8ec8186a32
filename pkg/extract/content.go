package extract

import (
	"strings"
)

// Kind reports whether a Content carries text or an image.
type Kind int

const (
	KindText Kind = iota
	KindImage
)

func (k Kind) String() string {
	if k == KindImage {
		return "image"
	}
	return "text"
}

// Image is an image either inlined as bytes or referenced by URL.
type Image struct {
	MIMEType string
	Data     []byte
	URL      string
}

// Content is the input of every extractor. The zero value is empty text.
// Content is immutable; Image returns a view whose Data must not be
// modified.
type Content struct {
	kind  Kind
	text  string
	image Image
}

func NewText(s string) Content {
	return Content{kind: KindText, text: s}
}

func NewImage(mimeType string, data []byte) Content {
	return Content{kind: KindImage, image: Image{MIMEType: mimeType, Data: data}}
}

func NewImageURL(url, mimeType string) Content {
	return Content{kind: KindImage, image: Image{MIMEType: mimeType, URL: url}}
}

func (c Content) Kind() Kind { return c.kind }

func (c Content) IsImage() bool { return c.kind == KindImage }

// Text returns the text, or "" for an image.
func (c Content) Text() string { return c.text }

// Image returns the image and whether c is one.
func (c Content) Image() (Image, bool) {
	return c.image, c.kind == KindImage
}

// String returns the text, or "image_content" for an image.
func (c Content) String() string {
	if c.kind == KindImage {
		return "image_content"
	}
	return c.text
}

// Empty reports whether c has no usable payload: blank text, or an image
// with neither data nor URL.
func (c Content) Empty() bool {
	if c.kind == KindImage {
		return len(c.image.Data) == 0 && c.image.URL == ""
	}
	return strings.TrimSpace(c.text) == ""
}
