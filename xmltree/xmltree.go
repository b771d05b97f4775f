// Package xmltree parses XML documents into a navigable tree of elements.
//
// The parser keeps element names, nesting, and text content. Attributes,
// namespaces, comments, and processing instructions are discarded, which is
// sufficient for AWS-style response bodies where all interesting data lives
// in element text.
//
// Example usage:
//
//	root, err := xmltree.Parse(body)
//	if err != nil {
//	    return err
//	}
//	url, err := root.Text("GetQueueUrlResult", "QueueUrl")
package xmltree

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Sentinel errors for child lookups.
// These can be used with errors.Is() for error checking.
var (
	// ErrChildMissing indicates that no child element with the requested name exists
	ErrChildMissing = errors.New("xmltree: child not found")

	// ErrChildAmbiguous indicates that more than one child element with the requested name exists
	ErrChildAmbiguous = errors.New("xmltree: ambiguous child name")
)

// ParseError indicates that a document could not be parsed as well-formed XML.
type ParseError struct {
	// Err is the underlying tokenizer error describing the malformed markup
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *ParseError) Error() string {
	return fmt.Sprintf("xmltree: parse: %v", e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Element is a single node in a parsed XML document. It carries the element
// name, the element's own text content, and its child elements in document
// order. Children with duplicate names are all retained.
//
// Thread Safety: an Element is immutable after Parse returns and is safe for
// concurrent reads.
type Element struct {
	name     string
	content  string
	children []*Element
}

// Parse parses a complete XML document and returns its root element.
// Malformed markup (unterminated or mismatched tags, missing root element)
// is reported as a *ParseError. Character references and predefined entities
// in text content are decoded; whitespace-only text between elements is
// dropped.
func Parse(data []byte) (*Element, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var root *Element
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &ParseError{Err: err}
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			// Prolog, comments, directives, and stray whitespace around
			// the root are not part of the tree.
			continue
		}
		if root != nil {
			return nil, &ParseError{Err: fmt.Errorf("unexpected second root element <%s>", start.Name.Local)}
		}
		el, err := decodeElement(dec, start)
		if err != nil {
			return nil, err
		}
		root = el
	}

	if root == nil {
		return nil, &ParseError{Err: errors.New("document has no root element")}
	}
	return root, nil
}

// ParseString parses a complete XML document supplied as a string.
func ParseString(s string) (*Element, error) {
	return Parse([]byte(s))
}

// decodeElement consumes tokens for one element, recursing into children,
// until the matching end tag is read.
func decodeElement(dec *xml.Decoder, start xml.StartElement) (*Element, error) {
	el := &Element{name: start.Name.Local}

	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			// EOF here means the element was never closed; the decoder
			// reports it as a syntax error.
			return nil, &ParseError{Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := decodeElement(dec, t)
			if err != nil {
				return nil, err
			}
			el.children = append(el.children, child)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			if s := text.String(); strings.TrimSpace(s) != "" {
				el.content = s
			}
			return el, nil
		}
	}
}

// Name returns the element name with any namespace prefix removed.
func (e *Element) Name() string {
	return e.name
}

// Content returns the element's own text content with entities decoded.
// Elements whose text is entirely whitespace (such as pretty-printed parents)
// report an empty string.
func (e *Element) Content() string {
	return e.content
}

// Children returns all direct child elements in document order.
func (e *Element) Children() []*Element {
	return e.children
}

// ChildrenNamed returns all direct children with the given name in document
// order. The result may be empty.
func (e *Element) ChildrenNamed(name string) []*Element {
	var matched []*Element
	for _, c := range e.children {
		if c.name == name {
			matched = append(matched, c)
		}
	}
	return matched
}

// Child returns the single direct child with the given name.
// It fails with ErrChildMissing when no such child exists and with
// ErrChildAmbiguous when the name matches more than one child, rather than
// silently picking one.
func (e *Element) Child(name string) (*Element, error) {
	matched := e.ChildrenNamed(name)
	switch len(matched) {
	case 0:
		return nil, fmt.Errorf("element <%s> has no child <%s>: %w", e.name, name, ErrChildMissing)
	case 1:
		return matched[0], nil
	default:
		return nil, fmt.Errorf("element <%s> has %d children named <%s>: %w", e.name, len(matched), name, ErrChildAmbiguous)
	}
}

// Path descends through nested single children following the given names and
// returns the final element. Each step has the same absent/ambiguous failure
// modes as Child.
func (e *Element) Path(names ...string) (*Element, error) {
	cur := e
	for _, name := range names {
		next, err := cur.Child(name)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// Text descends like Path and returns the text content of the final element.
func (e *Element) Text(names ...string) (string, error) {
	el, err := e.Path(names...)
	if err != nil {
		return "", err
	}
	return el.content, nil
}
