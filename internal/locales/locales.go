// Package locales selects display text from the per-locale maps the Viki API
// attaches to titles and descriptions.
package locales

import (
	"encoding/json"

	"github.com/vikget/vikget/internal/jsonmap"
)

// Entry is one locale/text pair in document order.
type Entry struct {
	Lang string
	Text string
}

// TextMap is an order-preserving locale -> text mapping.
type TextMap []Entry

// UnmarshalJSON decodes a JSON object of locale -> string, keeping document
// order. null values decode to empty strings.
func (m *TextMap) UnmarshalJSON(data []byte) error {
	var obj jsonmap.Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	entries := make(TextMap, 0, len(obj))
	for _, member := range obj {
		var text string
		if string(member.Value) != "null" {
			if err := json.Unmarshal(member.Value, &text); err != nil {
				return err
			}
		}
		entries = append(entries, Entry{Lang: member.Key, Text: text})
	}
	*m = entries
	return nil
}

// Select returns the text for the preferred locale. An exact match always
// wins, even when its value is empty. Otherwise, when fallback is allowed,
// the first non-empty value in stored order is returned. The second result
// reports whether any value was selected.
func (m TextMap) Select(preferred string, allowFallback bool) (string, bool) {
	for _, e := range m {
		if e.Lang == preferred {
			return e.Text, true
		}
	}
	if !allowFallback {
		return "", false
	}
	for _, e := range m {
		if e.Text != "" {
			return e.Text, true
		}
	}
	return "", false
}
