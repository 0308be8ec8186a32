package extract

// testSchema mirrors the shape of the knowledge view.
var testSchema = &Schema{
	Name: "note",
	Fields: map[string]Field{
		"title": {Type: TypeString, Tracked: true},
		"items": {Type: TypeList, Tracked: true, Items: &Schema{
			Name: "item",
			Fields: map[string]Field{
				"id":     {Type: TypeInt, Positional: true},
				"header": {Type: TypeString},
				"node": {Type: TypeObject, Nullable: true, Object: &Schema{
					Name: "node",
					Fields: map[string]Field{
						"target_id":    {Type: TypeInt, Default: 1},
						"relationship": {Type: TypeEnum, Default: "CHILD", Enum: []string{"PARENT", "CHILD"}},
					},
				}},
			},
		}},
		"tags": {Type: TypeList},
		"kind": {Type: TypeEnum, Default: "OTHER", Enum: []string{"LIFE", "OTHER"}},
	},
}

type testNode struct {
	TargetID     int    `json:"target_id"`
	Relationship string `json:"relationship"`
}

type testItem struct {
	ID     int       `json:"id"`
	Header string    `json:"header"`
	Node   *testNode `json:"node"`
}

type testPartial struct {
	Title *StreamState[string]     `json:"title,omitzero"`
	Items *StreamState[[]testItem] `json:"items,omitzero"`
	Tags  []string                 `json:"tags,omitzero"`
	Kind  *string                  `json:"kind,omitzero"`
}
