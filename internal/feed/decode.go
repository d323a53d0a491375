package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const (
	// AttrPrefix marks attribute keys in a decoded element.
	AttrPrefix = "@"
	// TextKey holds character data of elements that also carry attributes
	// or children.
	TextKey = "#text"
)

// Document is a decoded feed: the root element name mapped to its value.
type Document map[string]any

// Root returns the root element name.
func (d Document) Root() string {
	for k := range d {
		return k
	}
	return ""
}

var errNoRoot = errors.New("document has no root element")

type node struct {
	name     string
	attrs    map[string]any
	children map[string]any
	text     strings.Builder
}

func (n *node) add(name string, v any) {
	if n.children == nil {
		n.children = make(map[string]any)
	}
	existing, ok := n.children[name]
	switch {
	case !ok:
		n.children[name] = v
	case isList(existing):
		n.children[name] = append(existing.([]any), v)
	default:
		n.children[name] = []any{existing, v}
	}
}

// Values are only ever strings or maps, so a list always means repetition.
func isList(v any) bool {
	_, ok := v.([]any)
	return ok
}

func (n *node) value() any {
	text := strings.TrimSpace(n.text.String())
	if len(n.attrs) == 0 && len(n.children) == 0 {
		return text
	}

	out := make(map[string]any, len(n.attrs)+len(n.children)+1)
	for k, v := range n.attrs {
		out[k] = v
	}
	for k, v := range n.children {
		out[k] = v
	}
	if text != "" {
		out[TextKey] = text
	}
	return out
}

// Decode reads an XML document into a Document. Element and attribute names
// keep their namespace prefix as written (dc:creator, media:content).
func Decode(r io.Reader) (Document, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charsetReader

	var stack []*node
	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			if len(stack) > 0 {
				return nil, fmt.Errorf("decode xml: unexpected end of document inside <%s>", stack[len(stack)-1].name)
			}
			return nil, errNoRoot
		}
		if err != nil {
			return nil, fmt.Errorf("decode xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: qualified(t.Name)}
			if len(t.Attr) > 0 {
				n.attrs = make(map[string]any, len(t.Attr))
				for _, a := range t.Attr {
					n.attrs[AttrPrefix+qualified(a.Name)] = a.Value
				}
			}
			stack = append(stack, n)
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("decode xml: unexpected </%s>", qualified(t.Name))
			}
			top := stack[len(stack)-1]
			if name := qualified(t.Name); name != top.name {
				return nil, fmt.Errorf("decode xml: element <%s> closed by </%s>", top.name, name)
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return Document{top.name: top.value()}, nil
			}
			stack[len(stack)-1].add(top.name, top.value())
		}
	}
}

// DecodeBytes is Decode over an in-memory body.
func DecodeBytes(body []byte) (Document, error) {
	return Decode(bytes.NewReader(body))
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// charsetReader handles the single-byte Latin encodings still common in
// older feeds. UTF-8 declarations pass through.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(label) {
	case "utf-8", "utf8", "us-ascii", "ascii":
		return input, nil
	case "iso-8859-1", "latin1", "latin-1", "windows-1252", "cp1252":
		raw, err := io.ReadAll(input)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 0, len(raw)*2)
		for _, b := range raw {
			buf = utf8.AppendRune(buf, rune(b))
		}
		return bytes.NewReader(buf), nil
	default:
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
}

// Items extracts raw entries from an RSS 2.0, Atom or RSS 1.0 document.
// A single entry is returned as a one-element list; non-object entries are
// dropped.
func Items(doc Document) []map[string]any {
	switch {
	case doc["rss"] != nil:
		return objects(collect(doc["rss"], "channel", "item"))
	case doc["feed"] != nil:
		return objects(collect(doc["feed"], "entry"))
	case doc["rdf:RDF"] != nil:
		return objects(collect(doc["rdf:RDF"], "item"))
	default:
		return nil
	}
}

// collect walks path from v, fanning out over repeated elements.
func collect(v any, path ...string) []any {
	if len(path) == 0 {
		if list, ok := v.([]any); ok {
			return list
		}
		return []any{v}
	}

	switch t := v.(type) {
	case map[string]any:
		next, ok := t[path[0]]
		if !ok {
			return nil
		}
		return collect(next, path[1:]...)
	case []any:
		var out []any
		for _, e := range t {
			out = append(out, collect(e, path...)...)
		}
		return out
	default:
		return nil
	}
}

func objects(vals []any) []map[string]any {
	out := make([]map[string]any, 0, len(vals))
	for _, v := range vals {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
