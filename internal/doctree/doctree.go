// Package doctree models a parsed package-insert XML document as an
// immutable tree of nodes with namespace-qualified lookups.
package doctree

import (
	"encoding/xml"
	"strings"
)

const (
	// Namespace is the package-insert schema namespace every element lives in.
	Namespace = "http://info.pmda.go.jp/namespace/prescription_drugs/package_insert/1.0"

	// XMLNamespace is the namespace of the reserved xml: attribute prefix.
	XMLNamespace = "http://www.w3.org/XML/1998/namespace"

	// BreakTarget is the processing-instruction target used as an in-text
	// line break (<?enter?>).
	BreakTarget = "enter"

	// BreakMarker is the literal form of the line break as it appears when
	// the instruction was escaped into character data.
	BreakMarker = "<?enter?>"

	// LangJA is the only language whose leaf text is ever returned.
	LangJA = "ja"
)

// Kind identifies the type of a Node.
type Kind uint8

const (
	ElementNode Kind = iota
	TextNode
	BreakNode // soft line break recovered from <?enter?>
)

// Node is a single node of the document tree. Nodes are never mutated
// after Load returns.
type Node struct {
	Kind     Kind
	Name     xml.Name   // element name (ElementNode only)
	Attr     []xml.Attr // element attributes (ElementNode only)
	Data     string     // character data (TextNode only)
	Parent   *Node
	Children []*Node

	order int // position in document order
}

// Document is a loaded package insert. It is safe for concurrent reads.
type Document struct {
	Root      *Node
	Namespace string
}

// Local returns the local element name, or "" for non-element nodes.
func (n *Node) Local() string {
	if n == nil || n.Kind != ElementNode {
		return ""
	}
	return n.Name.Local
}

// AttrValue returns the value of the attribute with the given namespace
// and local name.
func (n *Node) AttrValue(space, local string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Name.Local == local && a.Name.Space == space {
			return a.Value
		}
	}
	return ""
}

// ID returns the unprefixed id attribute.
func (n *Node) ID() string {
	return n.AttrValue("", "id")
}

// Lang returns the xml:lang attribute.
func (n *Node) Lang() string {
	return n.AttrValue(XMLNamespace, "lang")
}

// Elements returns the element children of n in document order.
func (n *Node) Elements() []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Kind == ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// Text returns the raw character data of n's subtree with line breaks
// dropped, trimmed. It is meant for code-like leaves (YJCode,
// CompanyIdentifier) that carry no language tag.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	n.walk(func(c *Node) bool {
		if c.Kind == TextNode {
			sb.WriteString(c.Data)
		}
		return true
	})
	return strings.TrimSpace(sb.String())
}

// walk visits n and its descendants in document order. Returning false
// from fn skips the children of the visited node.
func (n *Node) walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.walk(fn)
	}
}

// IsLeaf reports whether n is a Lang element tagged xml:lang="ja".
func (d *Document) IsLeaf(n *Node) bool {
	return d.isElement(n, "Lang") && n.Lang() == LangJA
}

// LeafText returns the raw text of a Japanese Lang leaf. Any other node
// yields "".
func (d *Document) LeafText(n *Node) string {
	if !d.IsLeaf(n) {
		return ""
	}
	return n.Text()
}

// Leaves returns every Japanese Lang leaf under root in document order.
func (d *Document) Leaves(root *Node) []*Node {
	root = d.rootOr(root)
	if root == nil {
		return nil
	}
	var out []*Node
	root.walk(func(c *Node) bool {
		if d.IsLeaf(c) {
			out = append(out, c)
			return false
		}
		return true
	})
	return out
}

// Outermost returns the descendants of root named local that have no
// ancestor of the same name below root. Nested occurrences are reached by
// walking from the returned nodes.
func (d *Document) Outermost(root *Node, local string) []*Node {
	root = d.rootOr(root)
	if root == nil {
		return nil
	}
	var out []*Node
	for _, c := range root.Children {
		c.walk(func(n *Node) bool {
			if d.isElement(n, local) {
				out = append(out, n)
				return false
			}
			return true
		})
	}
	return out
}

// Contains reports whether n lies in the subtree rooted at ancestor.
func Contains(ancestor, n *Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

// Before reports whether a precedes b in document order.
func Before(a, b *Node) bool {
	return a.order < b.order
}

func (d *Document) isElement(n *Node, local string) bool {
	return n != nil && n.Kind == ElementNode && n.Name.Local == local && n.Name.Space == d.Namespace
}

func (d *Document) rootOr(root *Node) *Node {
	if root != nil {
		return root
	}
	if d == nil {
		return nil
	}
	return d.Root
}
