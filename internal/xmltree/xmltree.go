// Package xmltree provides a small typed XML tree with path access.
//
// BCF documents are loosely typed: most leaves are optional, several are
// legacy, and some elements are carried through verbatim without being
// understood. Element keeps document order so that pass-through subtrees
// serialize back the way they were read.
package xmltree

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Attr is a single attribute. Name may carry a prefix ("xmlns:xsi").
type Attr struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Element is one XML element with ordered attributes and children.
type Element struct {
	Name     string     `json:"name" yaml:"name"`
	Attrs    []Attr     `json:"attrs,omitempty" yaml:"attrs,omitempty"`
	Children []*Element `json:"children,omitempty" yaml:"children,omitempty"`
	Text     string     `json:"text,omitempty" yaml:"text,omitempty"`
}

// New creates an element with the given name.
func New(name string) *Element {
	return &Element{Name: name}
}

// Leaf creates an element holding only text.
func Leaf(name, text string) *Element {
	return &Element{Name: name, Text: text}
}

// Attr returns the attribute value and whether it is present.
func (e *Element) Attr(name string) (string, bool) {
	if e == nil {
		return "", false
	}
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// AttrOr returns the attribute value, or def when absent or empty.
func (e *Element) AttrOr(name, def string) string {
	if v, ok := e.Attr(name); ok && v != "" {
		return v
	}
	return def
}

// SetAttr sets or replaces an attribute and returns e for chaining.
func (e *Element) SetAttr(name, value string) *Element {
	for i := range e.Attrs {
		if e.Attrs[i].Name == name {
			e.Attrs[i].Value = value
			return e
		}
	}
	e.Attrs = append(e.Attrs, Attr{Name: name, Value: value})
	return e
}

// Add appends children (nil children are skipped) and returns e.
func (e *Element) Add(children ...*Element) *Element {
	for _, c := range children {
		if c != nil {
			e.Children = append(e.Children, c)
		}
	}
	return e
}

// AddLeaf appends a text-only child and returns the child.
func (e *Element) AddLeaf(name, text string) *Element {
	c := Leaf(name, text)
	e.Children = append(e.Children, c)
	return c
}

// Child returns the first direct child with the given name, or nil.
func (e *Element) Child(name string) *Element {
	if e == nil {
		return nil
	}
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns every direct child with the given name.
func (e *Element) ChildrenNamed(name string) []*Element {
	if e == nil {
		return nil
	}
	var out []*Element
	for _, c := range e.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Path follows a slash separated path of child names, taking the first match
// at every step. An empty path returns e.
func (e *Element) Path(path string) *Element {
	cur := e
	for _, seg := range splitPath(path) {
		cur = cur.Child(seg)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// All returns every element reachable through path, fanning out over
// repeated children at each step.
func (e *Element) All(path string) []*Element {
	if e == nil {
		return nil
	}
	cur := []*Element{e}
	for _, seg := range splitPath(path) {
		var next []*Element
		for _, c := range cur {
			next = append(next, c.ChildrenNamed(seg)...)
		}
		if len(next) == 0 {
			return nil
		}
		cur = next
	}
	return cur
}

// GetPath returns the trimmed text at path and whether the element exists.
// A present element with empty text returns ("", true).
func (e *Element) GetPath(path string) (string, bool) {
	el := e.Path(path)
	if el == nil {
		return "", false
	}
	return strings.TrimSpace(el.Text), true
}

// Remove deletes every direct child with the given name.
func (e *Element) Remove(name string) {
	kept := e.Children[:0]
	for _, c := range e.Children {
		if c.Name != name {
			kept = append(kept, c)
		}
	}
	e.Children = kept
}

// Clone returns a deep copy.
func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}
	out := &Element{Name: e.Name, Text: e.Text}
	if len(e.Attrs) > 0 {
		out.Attrs = append([]Attr(nil), e.Attrs...)
	}
	for _, c := range e.Children {
		out.Children = append(out.Children, c.Clone())
	}
	return out
}

func splitPath(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// Options controls serialization.
type Options struct {
	// Indent is repeated once per depth level. Empty writes a single line.
	Indent string
	// Header writes the <?xml ...?> declaration first.
	Header bool
}

// DefaultOptions are the options used for BCF files.
var DefaultOptions = Options{Indent: "  ", Header: true}

const header = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`

// Marshal serializes doc. It fails when a name, attribute or text value
// cannot be represented in XML 1.0.
func Marshal(doc *Element, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, doc, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes doc to w.
func Encode(w io.Writer, doc *Element, opts Options) error {
	if doc == nil {
		return fmt.Errorf("encode: nil document")
	}
	var buf bytes.Buffer
	if opts.Header {
		buf.WriteString(header)
		if opts.Indent != "" {
			buf.WriteByte('\n')
		}
	}
	if err := encodeElement(&buf, doc, opts.Indent, 0); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func encodeElement(buf *bytes.Buffer, e *Element, indent string, depth int) error {
	if e.Name == "" || strings.ContainsAny(e.Name, " <>&\"'/") {
		return fmt.Errorf("invalid element name %q", e.Name)
	}
	if indent != "" && depth > 0 {
		buf.WriteByte('\n')
		buf.WriteString(strings.Repeat(indent, depth))
	}
	buf.WriteByte('<')
	buf.WriteString(e.Name)
	for _, a := range e.Attrs {
		if err := ValidText(a.Value); err != nil {
			return fmt.Errorf("attribute %s/@%s: %w", e.Name, a.Name, err)
		}
		buf.WriteByte(' ')
		buf.WriteString(a.Name)
		buf.WriteString(`="`)
		escape(buf, a.Value, true)
		buf.WriteByte('"')
	}
	if len(e.Children) == 0 && e.Text == "" {
		buf.WriteString("/>")
		return nil
	}
	buf.WriteByte('>')
	if e.Text != "" {
		if err := ValidText(e.Text); err != nil {
			return fmt.Errorf("element %s: %w", e.Name, err)
		}
		escape(buf, e.Text, false)
	}
	for _, c := range e.Children {
		if err := encodeElement(buf, c, indent, depth+1); err != nil {
			return err
		}
	}
	if indent != "" && len(e.Children) > 0 {
		buf.WriteByte('\n')
		buf.WriteString(strings.Repeat(indent, depth))
	}
	buf.WriteString("</")
	buf.WriteString(e.Name)
	buf.WriteByte('>')
	return nil
}

func escape(buf *bytes.Buffer, s string, attr bool) {
	for _, r := range s {
		switch r {
		case '&':
			buf.WriteString("&amp;")
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '"':
			if attr {
				buf.WriteString("&quot;")
			} else {
				buf.WriteRune(r)
			}
		case '\n', '\r', '\t':
			if attr {
				fmt.Fprintf(buf, "&#x%X;", r)
			} else {
				buf.WriteRune(r)
			}
		default:
			buf.WriteRune(r)
		}
	}
}

// ValidText reports whether s only holds characters allowed by XML 1.0.
func ValidText(s string) error {
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size == 1 {
				return fmt.Errorf("invalid UTF-8 at byte %d", i)
			}
		}
		if !isXMLChar(r) {
			return fmt.Errorf("character %U at byte %d is not allowed in XML", r, i)
		}
	}
	return nil
}

func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		(r >= 0x20 && r <= 0xD7FF) ||
		(r >= 0xE000 && r <= 0xFFFD) ||
		(r >= 0x10000 && r <= 0x10FFFF)
}
