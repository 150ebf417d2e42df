package patient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// TextList is a free-text clinical list such as allergies or medications.
// Clients send it either as one string or as an array of strings; the value
// is stored and returned in the shape it arrived in.
type TextList struct {
	text  string
	items []string
	list  bool
}

// TextOf returns a TextList holding a single free-text value.
func TextOf(text string) TextList {
	return TextList{text: text}
}

// ListOf returns a TextList holding an array of entries.
func ListOf(items ...string) TextList {
	return TextList{items: append([]string{}, items...), list: true}
}

func (l TextList) IsList() bool {
	return l.list
}

// Items returns the entries of a list value, or the text as a single entry.
func (l TextList) Items() []string {
	if l.list {
		return append([]string(nil), l.items...)
	}
	if l.text == "" {
		return nil
	}
	return []string{l.text}
}

// String renders the value for prompts. List entries are joined with commas.
func (l TextList) String() string {
	if l.list {
		return strings.Join(l.items, ",")
	}
	return l.text
}

func (l TextList) MarshalJSON() ([]byte, error) {
	if l.list {
		return json.Marshal(l.items)
	}
	return json.Marshal(l.text)
}

func (l *TextList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*l = TextList{}
		return nil
	case len(data) > 0 && data[0] == '[':
		items := []string{}
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("list entries must be strings: %w", err)
		}
		*l = TextList{items: items, list: true}
		return nil
	default:
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return fmt.Errorf("expected a string or an array of strings: %w", err)
		}
		*l = TextList{text: text}
		return nil
	}
}

func (l TextList) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if l.list {
		return bson.MarshalValue(l.items)
	}
	return bson.MarshalValue(l.text)
}

func (l *TextList) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bson.TypeNull, bson.TypeUndefined:
		*l = TextList{}
	case bson.TypeString:
		*l = TextList{text: raw.StringValue()}
	case bson.TypeArray:
		items := []string{}
		if err := raw.Unmarshal(&items); err != nil {
			return fmt.Errorf("decode text list: %w", err)
		}
		*l = TextList{items: items, list: true}
	default:
		return fmt.Errorf("cannot decode %s into a text list", t)
	}
	return nil
}
