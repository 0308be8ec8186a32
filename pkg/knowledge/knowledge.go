// Package knowledge extracts a knowledge graph fragment from a note: a
// title, a list of knowledge items linked by parent/child relations, related
// items and tags.
package knowledge

import (
	"github.com/MemoFlux/MemoFluxServer/pkg/extract"
)

// View is the envelope type of knowledge chunks.
const View = "knowledge"

type Relationship string

const (
	Parent Relationship = "PARENT"
	Child  Relationship = "CHILD"
)

// Node links an item to another item of the same fragment.
type Node struct {
	TargetID     int          `json:"target_id" jsonschema:"id of the related knowledge item"`
	Relationship Relationship `json:"relationship" jsonschema:"PARENT if the target is the parent of this item, CHILD if it is a child"`
}

type Item struct {
	ID      int    `json:"id" jsonschema:"1-based id of this item"`
	Header  string `json:"header" jsonschema:"short heading of the item"`
	Content string `json:"content" jsonschema:"the knowledge itself"`
	Node    *Node  `json:"node" jsonschema:"relation to another item, null for a root item"`
}

// Knowledge is the final knowledge view.
type Knowledge struct {
	Title          string   `json:"title"`
	KnowledgeItems []Item   `json:"knowledge_items"`
	RelatedItems   []string `json:"related_items"`
	Tags           []string `json:"tags"`
	Category       string   `json:"category"`
}

// Empty returns a knowledge view with empty collections.
func Empty() *Knowledge {
	return &Knowledge{
		KnowledgeItems: []Item{},
		RelatedItems:   []string{},
		Tags:           []string{},
	}
}

// Partial is one streamed knowledge chunk.
type Partial struct {
	Title          *extract.StreamState[string] `json:"title,omitzero"`
	KnowledgeItems *extract.StreamState[[]Item] `json:"knowledge_items,omitzero"`
	RelatedItems   []string                     `json:"related_items,omitzero"`
	Tags           []string                     `json:"tags,omitzero"`

	// Category is set on the final chunk only.
	Category string `json:"category,omitempty"`
}

// Output is the document requested from the generator.
type Output struct {
	Title          string   `json:"title" jsonschema:"concise title of the note"`
	KnowledgeItems []Item   `json:"knowledge_items" jsonschema:"knowledge points, most general first"`
	RelatedItems   []string `json:"related_items" jsonschema:"related topics worth looking into"`
	Tags           []string `json:"tags" jsonschema:"tags describing the note"`
}

// Schema declares the defaults of partial knowledge chunks.
var Schema = &extract.Schema{
	Name: View,
	Fields: map[string]extract.Field{
		"title": {Type: extract.TypeString, Tracked: true},
		"knowledge_items": {Type: extract.TypeList, Tracked: true, Items: &extract.Schema{
			Name: "knowledge_item",
			Fields: map[string]extract.Field{
				"id":      {Type: extract.TypeInt, Positional: true},
				"header":  {Type: extract.TypeString},
				"content": {Type: extract.TypeString},
				"node": {Type: extract.TypeObject, Nullable: true, Object: &extract.Schema{
					Name: "node",
					Fields: map[string]extract.Field{
						"target_id":    {Type: extract.TypeInt, Default: 1},
						"relationship": {Type: extract.TypeEnum, Default: string(Child), Enum: []string{string(Parent), string(Child)}},
					},
				}},
			},
		}},
		"related_items": {Type: extract.TypeList},
		"tags":          {Type: extract.TypeList},
	},
}
