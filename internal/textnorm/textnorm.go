// Package textnorm turns package-insert subtrees and raw fragments into
// clean single-line text.
package textnorm

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/dgallion1/pmdaparse/internal/doctree"
)

// BreakMode selects how soft line breaks are rendered while collecting.
type BreakMode int

const (
	// DropBreaks removes soft line breaks entirely.
	DropBreaks BreakMode = iota
	// KeepBreaks renders soft line breaks as "\n" so callers can split on them.
	KeepBreaks
)

// Options controls Collect.
type Options struct {
	Breaks BreakMode
	// SquareSup renders a <Sup>2</Sup> as "²" (m<Sup>2</Sup> -> m²).
	SquareSup bool
}

// inline elements are flattened into the surrounding text.
var inline = map[string]bool{
	"Sub":    true,
	"Sup":    true,
	"Italic": true,
	"Bold":   true,
	"Under":  true,
}

// Collect gathers the character data under n depth-first, appending each
// child's content followed by the text that trails it. With KeepBreaks
// the only newlines in the result are soft line breaks.
func Collect(n *doctree.Node, opts Options) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	collect(&sb, n, opts)
	return sb.String()
}

func collect(sb *strings.Builder, n *doctree.Node, opts Options) {
	switch n.Kind {
	case doctree.TextNode:
		sb.WriteString(resolveMarkers(n.Data, opts.Breaks))
		return
	case doctree.BreakNode:
		if opts.Breaks == KeepBreaks {
			sb.WriteByte('\n')
		}
		return
	}

	switch local := n.Local(); {
	case local == "CommentRef":
		return
	case local == "Sup" && opts.SquareSup && strings.TrimSpace(n.Text()) == "2":
		sb.WriteString("²")
		return
	case inline[local]:
		// Inline markup never carries structure; flatten it without breaks.
		sb.WriteString(resolveMarkers(n.Text(), DropBreaks))
		return
	}

	for _, c := range n.Children {
		collect(sb, c, opts)
	}
}

// resolveMarkers handles the literal <?enter?> form that survives when
// the instruction was escaped into character data.
func resolveMarkers(s string, mode BreakMode) string {
	if mode == KeepBreaks {
		s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
		return strings.ReplaceAll(s, doctree.BreakMarker, "\n")
	}
	return strings.ReplaceAll(s, doctree.BreakMarker, "")
}

// Flatten returns the normalized text of n with soft breaks removed.
func Flatten(n *doctree.Node) string {
	return Clean(Collect(n, Options{}))
}

// FlattenSup is Flatten with squared superscripts rendered as "²".
func FlattenSup(n *doctree.Node) string {
	return Clean(Collect(n, Options{SquareSup: true}))
}

// Lines splits the text of n on soft line breaks and normalizes each
// segment. Empty segments are dropped.
func Lines(n *doctree.Node) []string {
	return SplitLines(Collect(n, Options{Breaks: KeepBreaks}))
}

// SplitLines splits text collected with KeepBreaks into normalized,
// non-empty lines.
func SplitLines(s string) []string {
	var out []string
	for _, part := range strings.Split(s, "\n") {
		if line := Clean(part); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// FirstLine returns the normalized text before the first soft break.
func FirstLine(n *doctree.Node) string {
	raw := Collect(n, Options{Breaks: KeepBreaks})
	first, _, _ := strings.Cut(raw, "\n")
	return Clean(first)
}

// Clean strips leftover markup from a raw fragment, collapses runs of
// whitespace to a single space and trims. It never fails; malformed
// markup is passed through as text.
func Clean(s string) string {
	s = strings.ReplaceAll(s, doctree.BreakMarker, "")
	if strings.ContainsRune(s, '<') {
		s = stripTags(s)
	}
	return strings.Join(strings.Fields(s), " ")
}

// tagSpan matches a complete start, end or self-closing tag with ASCII
// attributes. An unterminated "<" or a comparison such as "ALT<ULN" is
// not a tag.
var tagSpan = regexp.MustCompile(`</?[A-Za-z][A-Za-z0-9:_.-]*(?:\s+[A-Za-z_:][A-Za-z0-9:_.-]*(?:\s*=\s*(?:"[^"]*"|'[^']*'|[^\s"'<>=]+))?)*\s*/?>`)

// stripTags removes well-formed tags and leaves every other "<" as text.
// Each candidate span is confirmed with the HTML tokenizer.
func stripTags(s string) string {
	return tagSpan.ReplaceAllStringFunc(s, func(span string) string {
		z := html.NewTokenizer(strings.NewReader(span))
		switch z.Next() {
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			return ""
		}
		return span
	})
}
