// Package adf normalizes rich-text input into the Atlassian Document Format
// tree used for issue descriptions and comment bodies.
//
// Clients may send either a plain string or an already structured document.
// Normalization always yields a document map so that responses are uniform
// regardless of how the value was written.
package adf

// Empty returns a valid document with no content.
func Empty() map[string]any {
	return map[string]any{
		"type":    "doc",
		"version": 1,
		"content": []any{},
	}
}

// FromText wraps a plain string into a single-paragraph document.
func FromText(text string) map[string]any {
	if text == "" {
		return Empty()
	}
	return map[string]any{
		"type":    "doc",
		"version": 1,
		"content": []any{
			map[string]any{
				"type": "paragraph",
				"content": []any{
					map[string]any{"type": "text", "text": text},
				},
			},
		},
	}
}

// Normalize converts an arbitrary input value into a document tree.
// Strings are wrapped via FromText, maps pass through untouched, and nil
// becomes the empty document.
func Normalize(v any) map[string]any {
	switch doc := v.(type) {
	case nil:
		return Empty()
	case string:
		return FromText(doc)
	case map[string]any:
		return doc
	default:
		return Empty()
	}
}

// Text extracts the concatenated plain text of a document tree.
// Useful for search and for rendering log lines.
func Text(doc map[string]any) string {
	if doc == nil {
		return ""
	}
	return collectText(doc["content"])
}

func collectText(v any) string {
	nodes, ok := v.([]any)
	if !ok {
		return ""
	}
	out := ""
	for _, n := range nodes {
		node, ok := n.(map[string]any)
		if !ok {
			continue
		}
		if t, ok := node["text"].(string); ok {
			out += t
		}
		out += collectText(node["content"])
	}
	return out
}
