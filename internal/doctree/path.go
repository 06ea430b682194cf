package doctree

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Path is a compiled location path. The supported grammar is the subset
// of XPath the extractors use: child steps (/A), descendant steps (//A),
// the * wildcard and attribute-equality predicates ([@id='x'],
// [@xml:lang='ja']). Element names match by local name within the
// document namespace; a pmda: prefix on a step is accepted and ignored.
type Path struct {
	expr  string
	steps []step
}

type step struct {
	descendant bool
	local      string
	preds      []predicate
}

type predicate struct {
	space string
	local string
	value string
}

// String returns the source expression.
func (p Path) String() string { return p.expr }

var pathCache sync.Map // string -> Path

// MustCompile compiles expr and panics if it is malformed. Paths are
// literals in the extractors, so a bad one is a programming error.
func MustCompile(expr string) Path {
	p, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// Compile parses a location path.
func Compile(expr string) (Path, error) {
	if cached, ok := pathCache.Load(expr); ok {
		return cached.(Path), nil
	}

	s := strings.TrimSpace(expr)
	s = strings.TrimPrefix(s, ".")
	if s == "" {
		return Path{}, fmt.Errorf("doctree: empty path %q", expr)
	}
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}

	var steps []step
	for len(s) > 0 {
		var st step
		switch {
		case strings.HasPrefix(s, "//"):
			st.descendant = true
			s = s[2:]
		case s[0] == '/':
			s = s[1:]
		default:
			return Path{}, fmt.Errorf("doctree: path %q: expected '/' at %q", expr, s)
		}

		end, err := stepEnd(s)
		if err != nil {
			return Path{}, fmt.Errorf("doctree: path %q: %w", expr, err)
		}
		if err := parseStep(s[:end], &st); err != nil {
			return Path{}, fmt.Errorf("doctree: path %q: %w", expr, err)
		}
		steps = append(steps, st)
		s = s[end:]
	}

	p := Path{expr: expr, steps: steps}
	pathCache.Store(expr, p)
	return p, nil
}

// stepEnd returns the index of the '/' that ends the current step,
// ignoring separators inside predicates.
func stepEnd(s string) (int, error) {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '[':
			depth++
		case c == ']':
			depth--
			if depth < 0 {
				return 0, fmt.Errorf("unbalanced ']'")
			}
		case c == '/' && depth == 0:
			return i, nil
		}
	}
	if depth != 0 || quote != 0 {
		return 0, fmt.Errorf("unterminated predicate")
	}
	return len(s), nil
}

func parseStep(tok string, st *step) error {
	name := tok
	if i := strings.IndexByte(tok, '['); i >= 0 {
		name = tok[:i]
		rest := tok[i:]
		for rest != "" {
			if rest[0] != '[' {
				return fmt.Errorf("unexpected %q after predicate", rest)
			}
			j := strings.IndexByte(rest, ']')
			if j < 0 {
				return fmt.Errorf("unterminated predicate in %q", tok)
			}
			pred, err := parsePredicate(rest[1:j])
			if err != nil {
				return err
			}
			st.preds = append(st.preds, pred)
			rest = rest[j+1:]
		}
	}

	if i := strings.IndexByte(name, ':'); i >= 0 {
		name = name[i+1:]
	}
	if name == "" || strings.ContainsAny(name, " \t@'\"=") {
		return fmt.Errorf("invalid step %q", tok)
	}
	st.local = name
	return nil
}

func parsePredicate(body string) (predicate, error) {
	body = strings.TrimSpace(body)
	if !strings.HasPrefix(body, "@") {
		return predicate{}, fmt.Errorf("unsupported predicate [%s]", body)
	}
	attr, value, ok := strings.Cut(body[1:], "=")
	if !ok {
		return predicate{}, fmt.Errorf("predicate [%s] needs a value", body)
	}
	attr = strings.TrimSpace(attr)
	value = strings.TrimSpace(value)
	if len(value) < 2 || (value[0] != '\'' && value[0] != '"') || value[len(value)-1] != value[0] {
		return predicate{}, fmt.Errorf("predicate [%s] value must be quoted", body)
	}

	var p predicate
	p.value = value[1 : len(value)-1]
	prefix, local, hasPrefix := strings.Cut(attr, ":")
	switch {
	case !hasPrefix:
		p.local = attr
	case prefix == "xml":
		p.space = XMLNamespace
		p.local = local
	default:
		return predicate{}, fmt.Errorf("unknown attribute prefix %q", prefix)
	}
	if p.local == "" {
		return predicate{}, fmt.Errorf("empty attribute name in [%s]", body)
	}
	return p, nil
}

// FindAll evaluates expr from root (the document root when nil) and
// returns matching elements in document order without duplicates.
// Absent sections yield an empty slice.
func (d *Document) FindAll(expr string, root *Node) []*Node {
	p := MustCompile(expr)
	root = d.rootOr(root)
	if root == nil {
		return nil
	}

	context := []*Node{root}
	for _, st := range p.steps {
		var next []*Node
		seen := make(map[*Node]struct{})
		add := func(n *Node) {
			if _, ok := seen[n]; ok {
				return
			}
			seen[n] = struct{}{}
			next = append(next, n)
		}
		for _, c := range context {
			if st.descendant {
				for _, child := range c.Children {
					child.walk(func(n *Node) bool {
						if d.matches(n, st) {
							add(n)
						}
						return true
					})
				}
				continue
			}
			for _, child := range c.Children {
				if d.matches(child, st) {
					add(child)
				}
			}
		}
		if len(context) > 1 {
			sort.SliceStable(next, func(i, j int) bool { return next[i].order < next[j].order })
		}
		if len(next) == 0 {
			return nil
		}
		context = next
	}
	return context
}

// FindFirst returns the first match of expr in document order, or nil.
func (d *Document) FindFirst(expr string, root *Node) *Node {
	all := d.FindAll(expr, root)
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

func (d *Document) matches(n *Node, st step) bool {
	if n.Kind != ElementNode || n.Name.Space != d.Namespace {
		return false
	}
	if st.local != "*" && n.Name.Local != st.local {
		return false
	}
	for _, p := range st.preds {
		if n.AttrValue(p.space, p.local) != p.value {
			return false
		}
	}
	return true
}
