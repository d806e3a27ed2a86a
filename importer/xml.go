package importer

import (
	"bytes"
	"encoding/xml"
	"io"
	"math"
	"strconv"
	"strings"
)

// xmlNode is a generic parsed XML element. The import pipelines never bind
// to a fixed schema; they walk this tree with namespace-tolerant local-name
// lookups so documents with and without default namespaces parse alike.
type xmlNode struct {
	local    string
	space    string
	attrs    []xml.Attr
	text     string
	children []*xmlNode
}

// parseXMLDocument decodes a whole document into a node tree. Malformed XML
// is a hard parse failure.
func parseXMLDocument(data []byte) (*xmlNode, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	root := &xmlNode{}
	stack := []*xmlNode{root}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Reason: FailParse, Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			node := &xmlNode{
				local: t.Name.Local,
				space: t.Name.Space,
				attrs: append([]xml.Attr(nil), t.Attr...),
			}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, node)
			stack = append(stack, node)
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			stack[len(stack)-1].text += string(t)
		}
	}
	if len(root.children) == 0 {
		return nil, &ParseError{Reason: FailParse, Err: errEmptyDocument}
	}
	return root, nil
}

// elemsByLocal returns descendants matching the local name, in document
// order. Lookup is an explicit two-step: namespace-qualified elements are
// matched first, then plain (unqualified) tag names — tolerating documents
// that declare a default namespace and documents that don't.
func elemsByLocal(n *xmlNode, local string) []*xmlNode {
	byNS := collectElems(n, func(e *xmlNode) bool {
		return e.space != "" && e.local == local
	})
	if len(byNS) > 0 {
		return byNS
	}
	return collectElems(n, func(e *xmlNode) bool {
		return e.space == "" && e.local == local
	})
}

func collectElems(n *xmlNode, match func(*xmlNode) bool) []*xmlNode {
	var out []*xmlNode
	var walk func(*xmlNode)
	walk = func(node *xmlNode) {
		for _, child := range node.children {
			if match(child) {
				out = append(out, child)
			}
			walk(child)
		}
	}
	walk(n)
	return out
}

func firstElem(n *xmlNode, local string) *xmlNode {
	elems := elemsByLocal(n, local)
	if len(elems) == 0 {
		return nil
	}
	return elems[0]
}

// firstText returns the trimmed text content of the first matching element.
// Empty or whitespace-only content counts as missing.
func firstText(n *xmlNode, local string) (string, bool) {
	el := firstElem(n, local)
	if el == nil {
		return "", false
	}
	text := strings.TrimSpace(el.text)
	if text == "" {
		return "", false
	}
	return text, true
}

// firstNum parses the first matching element's text as a finite float.
func firstNum(n *xmlNode, local string) (float64, bool) {
	text, ok := firstText(n, local)
	if !ok {
		return 0, false
	}
	return parseNumber(text)
}

// nestedNum looks up a child-of-child numeric value, e.g. HeartRateBpm/Value.
func nestedNum(n *xmlNode, parentLocal, childLocal string) (float64, bool) {
	parent := firstElem(n, parentLocal)
	if parent == nil {
		return 0, false
	}
	return firstNum(parent, childLocal)
}

// tpxNum reads a sensor value from the trackpoint extension block: the
// vendor-namespace TPX (or TrackPointExtension) element under Extensions,
// where Speed and Watts live outside the base schema.
func tpxNum(n *xmlNode, local string) (float64, bool) {
	ext := firstElem(n, "Extensions")
	if ext == nil {
		return 0, false
	}
	tpx := firstElem(ext, "TPX")
	if tpx == nil {
		tpx = firstElem(ext, "TrackPointExtension")
	}
	if tpx == nil {
		return 0, false
	}
	return firstNum(tpx, local)
}

// attrValue returns an attribute by case-insensitive name.
func attrValue(n *xmlNode, name string) (string, bool) {
	for _, a := range n.attrs {
		if strings.EqualFold(a.Name.Local, name) {
			return a.Value, true
		}
	}
	return "", false
}

func attrNum(n *xmlNode, name string) (float64, bool) {
	raw, ok := attrValue(n, name)
	if !ok {
		return 0, false
	}
	return parseNumber(strings.TrimSpace(raw))
}

func parseNumber(text string) (float64, bool) {
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// positiveSample keeps a sample only when it is strictly positive. Sensor
// presence flags are derived from positive sample counts, never guessed.
func positiveSample(v float64, ok bool) (float64, bool) {
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}
