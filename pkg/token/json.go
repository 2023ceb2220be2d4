package token

import (
	"encoding/json"
)

// MarshalJSON writes a position as a compact [line, col, offset] array.
func (p Position) MarshalJSON() ([]byte, error) {
	arr := [3]int{p.Line, p.Column, p.Offset}
	return json.Marshal(arr)
}

// UnmarshalJSON reads the [line, col, offset] array form.
func (p *Position) UnmarshalJSON(data []byte) error {
	var arr [3]int
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	*p = Position{Line: arr[0], Column: arr[1], Offset: arr[2]}
	return nil
}

// Record is the serialised form of a token, decorations flattened.
type Record struct {
	Text       string            `json:"text"`
	Definition string            `json:"def,omitempty"`
	Pos        *Position         `json:"pos,omitempty"`
	Index      *int              `json:"index,omitempty"`
	Meta       map[string]string `json:"meta,omitempty"`
	Children   []Record          `json:"children,omitempty"`
}

// Encode converts a token to its Record.
func Encode(t Token) Record {
	rec := Record{Text: t.Value(), Definition: t.Definition()}
	if p, ok := t.Position(); ok {
		rec.Pos = &p
	}
	if i, ok := IndexOf(t); ok {
		rec.Index = &i
	}

	// Inner annotations first so outer layers win on shared keys.
	var layers []*Annotated
	for cur := t; ; {
		d, ok := cur.(Decorator)
		if !ok {
			break
		}
		if a, ok := d.(*Annotated); ok {
			layers = append(layers, a)
		}
		cur = d.Unwrap()
	}
	for i := len(layers) - 1; i >= 0; i-- {
		if rec.Meta == nil {
			rec.Meta = make(map[string]string)
		}
		for k, v := range layers[i].meta {
			rec.Meta[k] = v
		}
	}

	if g, ok := AsGroup(t); ok {
		for _, c := range g.children {
			rec.Children = append(rec.Children, Encode(c))
		}
	}
	return rec
}

// Decode rebuilds a token from its Record. Decorations come back as a
// single Indexed layer wrapped in a single Annotated layer.
func Decode(rec Record) Token {
	var t Token
	if len(rec.Children) > 0 {
		children := make([]Token, len(rec.Children))
		for i, c := range rec.Children {
			children[i] = Decode(c)
		}
		t = NewGroup(rec.Text, children)
	} else {
		b := New(rec.Text)
		if rec.Pos != nil {
			b = NewAt(rec.Text, *rec.Pos)
		}
		t = b.WithDefinition(rec.Definition)
	}
	if rec.Index != nil {
		t = NewIndexed(t, *rec.Index)
	}
	if len(rec.Meta) > 0 {
		t = NewAnnotated(t, rec.Meta)
	}
	return t
}
