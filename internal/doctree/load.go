package doctree

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/net/html/charset"
)

var (
	// ErrEmptyDocument is returned when the input holds no root element.
	ErrEmptyDocument = errors.New("doctree: no root element")

	// ErrNotPackageInsert is returned when the root element is outside the
	// package-insert namespace.
	ErrNotPackageInsert = errors.New("doctree: root element is not in the package-insert namespace")
)

// Load parses a package-insert document. The <?enter?> processing
// instruction is kept as a BreakNode so list splitting never has to go
// back to the raw bytes.
func Load(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel
	dec.Strict = false
	dec.Entity = xml.HTMLEntity

	var (
		root  *Node
		stack []*Node
		order int
	)
	appendChild := func(n *Node) {
		parent := stack[len(stack)-1]
		n.Parent = parent
		order++
		n.order = order
		parent.Children = append(parent.Children, n)
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Kind: ElementNode, Name: t.Name, Attr: append([]xml.Attr(nil), t.Attr...)}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("decode xml: multiple root elements")
				}
				root = n
			} else {
				appendChild(n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			parent := stack[len(stack)-1]
			if k := len(parent.Children); k > 0 && parent.Children[k-1].Kind == TextNode {
				parent.Children[k-1].Data += string(t)
				continue
			}
			appendChild(&Node{Kind: TextNode, Data: string(t)})
		case xml.ProcInst:
			if t.Target == BreakTarget && len(stack) > 0 {
				appendChild(&Node{Kind: BreakNode})
			}
		}
	}

	if root == nil {
		return nil, ErrEmptyDocument
	}
	if root.Name.Space != Namespace {
		return nil, fmt.Errorf("%w: got %q", ErrNotPackageInsert, root.Name.Space)
	}
	return &Document{Root: root, Namespace: Namespace}, nil
}

// LoadBytes parses a document held in memory.
func LoadBytes(data []byte) (*Document, error) {
	return Load(bytes.NewReader(data))
}

// LoadFile opens and parses the document at path.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return doc, nil
}
