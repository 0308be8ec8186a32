// Package information summarizes a note or a picture of a post into titled
// information items with a post type.
package information

import (
	"github.com/MemoFlux/MemoFluxServer/pkg/extract"
)

const View = "information"

type PostType string

const (
	LifePost  PostType = "LIFE_POST"
	ScenePost PostType = "SCENE_POST"
	FoodPost  PostType = "FOOD_POST"
	OtherPost PostType = "OTHER_POST"
)

var postTypes = []string{string(LifePost), string(ScenePost), string(FoodPost), string(OtherPost)}

type Item struct {
	Header  string `json:"header" jsonschema:"short heading of the item"`
	Content string `json:"content" jsonschema:"the information itself"`
}

// Information is the final information view.
type Information struct {
	Title            string   `json:"title"`
	InformationItems []Item   `json:"information_items"`
	PostType         PostType `json:"post_type"`
	Summary          string   `json:"summary"`
	Tags             []string `json:"tags"`
	Category         string   `json:"category"`
}

func Empty() *Information {
	return &Information{
		InformationItems: []Item{},
		PostType:         OtherPost,
		Tags:             []string{},
	}
}

// Partial is one streamed information chunk.
type Partial struct {
	Title            *extract.StreamState[string] `json:"title,omitzero"`
	InformationItems *extract.StreamState[[]Item] `json:"information_items,omitzero"`
	PostType         *PostType                    `json:"post_type,omitzero"`
	Summary          *extract.StreamState[string] `json:"summary,omitzero"`
	Tags             []string                     `json:"tags,omitzero"`

	// Category is set on the final chunk only.
	Category string `json:"category,omitempty"`
}

type Output struct {
	Title            string   `json:"title" jsonschema:"concise title of the content"`
	InformationItems []Item   `json:"information_items" jsonschema:"the pieces of information worth keeping"`
	PostType         PostType `json:"post_type" jsonschema:"kind of post the content comes from"`
	Summary          string   `json:"summary" jsonschema:"one paragraph summary"`
	Tags             []string `json:"tags" jsonschema:"tags describing the content"`
}

var Schema = &extract.Schema{
	Name: View,
	Fields: map[string]extract.Field{
		"title": {Type: extract.TypeString, Tracked: true},
		"information_items": {Type: extract.TypeList, Tracked: true, Items: &extract.Schema{
			Name: "information_item",
			Fields: map[string]extract.Field{
				"header":  {Type: extract.TypeString},
				"content": {Type: extract.TypeString},
			},
		}},
		"post_type": {Type: extract.TypeEnum, Default: string(OtherPost), Enum: postTypes},
		"summary":   {Type: extract.TypeString, Tracked: true},
		"tags":      {Type: extract.TypeList},
	},
}
