package extract

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// randomDoc builds a partial document from generated choices. Each flag
// decides whether a field is null, and n is the number of list elements.
func randomDoc(flags []bool, n int, states []State) map[string]any {
	flag := func(i int) bool { return flags[i%len(flags)] }
	pick := func(v any, i int) any {
		if flag(i) {
			return nil
		}
		return v
	}

	items := make([]any, 0, n)
	for i := range n {
		if flag(i + 3) {
			items = append(items, nil)
			continue
		}
		items = append(items, map[string]any{
			"id":     pick(json.Number("9"), i+4),
			"header": pick("h", i+5),
			"node": pick(map[string]any{
				"target_id":    pick(json.Number("2"), i+6),
				"relationship": pick("parent", i+7),
			}, i+8),
		})
	}

	doc := map[string]any{
		"title": map[string]any{"value": pick("t", 0), "state": states[0].String()},
		"items": map[string]any{"value": pick(items, 1), "state": states[1].String()},
		"tags":  pick([]any{"a"}, 2),
	}
	if !flag(9) {
		doc["kind"] = pick("food", 10)
	}
	return doc
}

func genState() gopter.Gen {
	return gen.IntRange(int(Pending), int(Error)).Map(func(i int) State { return State(i) })
}

func TestNormalizeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("normalize is idempotent", prop.ForAll(
		func(flags []bool, n int, s0, s1 State) bool {
			doc := randomDoc(flags, n, []State{s0, s1})
			once, err := json.Marshal(Normalize(doc, testSchema))
			if err != nil {
				return false
			}
			twice, err := json.Marshal(Normalize(doc, testSchema))
			if err != nil {
				return false
			}
			return string(once) == string(twice)
		},
		gen.SliceOfN(11, gen.Bool()),
		gen.IntRange(0, 4),
		genState(),
		genState(),
	))

	properties.Property("collections are never null", prop.ForAll(
		func(flags []bool, n int, s0, s1 State) bool {
			doc := Normalize(randomDoc(flags, n, []State{s0, s1}), testSchema)
			if doc["tags"] == nil {
				return false
			}
			items := doc["items"].(map[string]any)["value"]
			list, ok := items.([]any)
			if !ok {
				return false
			}
			for _, el := range list {
				if el == nil {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(11, gen.Bool()),
		gen.IntRange(0, 4),
		genState(),
		genState(),
	))

	properties.TestingRun(t)
}
