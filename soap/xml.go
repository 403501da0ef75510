package soap

import (
	"encoding/xml"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Node is a schemaless XML element. Results are returned as a Node unless a
// Mapping applies.
type Node struct {
	Name     string            `json:"name" msgpack:"name" cbor:"name"`
	Attrs    map[string]string `json:"attrs,omitempty" msgpack:"attrs,omitempty" cbor:"attrs,omitempty"`
	Text     string            `json:"text,omitempty" msgpack:"text,omitempty" cbor:"text,omitempty"`
	Children []Node            `json:"children,omitempty" msgpack:"children,omitempty" cbor:"children,omitempty"`
}

func (n *Node) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	n.Name = start.Name.Local
	for _, a := range start.Attr {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
			continue
		}
		if n.Attrs == nil {
			n.Attrs = make(map[string]string)
		}
		n.Attrs[a.Name.Local] = a.Value
	}
	var text strings.Builder
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var c Node
			if err := c.UnmarshalXML(d, t); err != nil {
				return err
			}
			n.Children = append(n.Children, c)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			n.Text = strings.TrimSpace(text.String())
			return nil
		}
	}
}

// Value flattens n into plain data: a leaf without attributes becomes its
// text, anything else a map keyed by child name ("@name" for attributes,
// "#text" for mixed content). Repeated children become a list.
func (n Node) Value() any {
	if len(n.Children) == 0 && len(n.Attrs) == 0 {
		return n.Text
	}
	out := make(map[string]any, len(n.Children)+len(n.Attrs))
	for k, v := range n.Attrs {
		out["@"+k] = v
	}
	if n.Text != "" {
		out["#text"] = n.Text
	}
	for _, c := range n.Children {
		v := c.Value()
		switch prev := out[c.Name].(type) {
		case nil:
			out[c.Name] = v
		case []any:
			out[c.Name] = append(prev, v)
		default:
			out[c.Name] = []any{prev, v}
		}
	}
	return out
}

// request is the body element of a call: <method xmlns=ns>args</method>.
type request struct {
	name  string
	ns    string
	value any
}

func (r request) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	return encodeValue(e, xml.StartElement{Name: xml.Name{Space: r.ns, Local: r.name}}, r.value)
}

func encodeMap(e *xml.Encoder, start xml.StartElement, m map[string]any) error {
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := encodeValue(e, xml.StartElement{Name: xml.Name{Local: k}}, m[k]); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

func encodeValue(e *xml.Encoder, start xml.StartElement, v any) error {
	switch t := v.(type) {
	case nil:
		return e.EncodeElement("", start)
	case map[string]any:
		return encodeMap(e, start, t)
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, s := range t {
			m[k] = s
		}
		return encodeMap(e, start, m)
	case []any:
		for _, item := range t {
			if err := encodeValue(e, start, item); err != nil {
				return err
			}
		}
		return nil
	case []string:
		for _, item := range t {
			if err := e.EncodeElement(item, start); err != nil {
				return err
			}
		}
		return nil
	case string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return e.EncodeElement(fmt.Sprint(t), start)
	}
	return e.EncodeElement(v, start)
}

// result captures the body element of a response.
type result struct {
	raw  []byte
	root Node
}

func (r *result) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var body struct {
		Inner []byte `xml:",innerxml"`
	}
	if err := d.DecodeElement(&body, &start); err != nil {
		return err
	}
	name := start.Name.Local
	r.raw = make([]byte, 0, len(body.Inner)+2*len(name)+5)
	r.raw = append(r.raw, "<"+name+">"...)
	r.raw = append(r.raw, body.Inner...)
	r.raw = append(r.raw, "</"+name+">"...)
	return xml.Unmarshal(r.raw, &r.root)
}

// unknownElements lists child elements of n that t has no field for.
func unknownElements(n Node, t reflect.Type, path string) []string {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	fields, open := xmlFields(t)
	if open {
		return nil
	}
	var out []string
	for _, c := range n.Children {
		ft, ok := fields[c.Name]
		if !ok {
			out = append(out, path+"/"+c.Name)
			continue
		}
		out = append(out, unknownElements(c, ft, path+"/"+c.Name)...)
	}
	return out
}

// xmlFields maps element names to field types. open reports a field that
// accepts any element.
func xmlFields(t reflect.Type) (fields map[string]reflect.Type, open bool) {
	fields = make(map[string]reflect.Type)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Name == "XMLName" {
			continue
		}
		tag := f.Tag.Get("xml")
		if tag == "-" {
			continue
		}
		name, rawOpts, _ := strings.Cut(tag, ",")
		opts := make(map[string]bool)
		for _, o := range strings.Split(rawOpts, ",") {
			opts[o] = true
		}
		switch {
		case opts["attr"], opts["chardata"], opts["cdata"], opts["comment"]:
			continue
		case opts["any"], opts["innerxml"]:
			return nil, true
		}
		if f.Anonymous && name == "" {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				inner, innerOpen := xmlFields(ft)
				if innerOpen {
					return nil, true
				}
				for k, v := range inner {
					fields[k] = v
				}
				continue
			}
		}
		if i := strings.LastIndex(name, " "); i >= 0 {
			name = name[i+1:]
		}
		if name == "" {
			name = f.Name
		}
		ft := f.Type
		for ft.Kind() == reflect.Slice && ft.Elem().Kind() != reflect.Uint8 {
			ft = ft.Elem()
		}
		if first, _, nested := strings.Cut(name, ">"); nested {
			fields[first] = nil
			continue
		}
		fields[name] = ft
	}
	return fields, false
}
