package genx

import (
	"slices"
)

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

var (
	_ Part = (*Blob)(nil)
	_ Part = (*ImageURL)(nil)
	_ Part = Text("")
)

type MessageChunk struct {
	Role Role
	Name string
	Part Part
}

func (c *MessageChunk) Clone() *MessageChunk {
	chk := &MessageChunk{
		Role: c.Role,
		Name: c.Name,
	}
	if c.Part != nil {
		chk.Part = c.Part.clone()
	}
	return chk
}

type Message struct {
	Role     Role
	Name     string
	Contents Contents
}

type Role string

func (r Role) String() string {
	return string(r)
}

type Contents []Part

type Part interface {
	isPart()
	clone() Part
}

// Blob is inline binary content such as an image.
type Blob struct {
	MIMEType string
	Data     []byte
}

func (b *Blob) clone() Part {
	return &Blob{
		MIMEType: b.MIMEType,
		Data:     slices.Clone(b.Data),
	}
}

func (*Blob) isPart() {}

// ImageURL references an image the backend fetches itself.
type ImageURL struct {
	URL      string
	MIMEType string
}

func (u *ImageURL) clone() Part {
	v := *u
	return &v
}

func (*ImageURL) isPart() {}

type Text string

func (t Text) clone() Part {
	return t
}

func (Text) isPart() {}
