package pdf

import (
	"strings"
	"unicode"

	"github.com/fatih/camelcase"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// BlockKind is the layout class of a Block.
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockListItem
	BlockCode
)

// Block is one printable unit of a rule description.
type Block struct {
	Kind BlockKind
	Text string
}

// ParseHTML flattens rule description HTML into blocks. Whitespace is
// collapsed everywhere except inside <pre>.
func ParseHTML(src string) []Block {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return []Block{{Kind: BlockParagraph, Text: collapse(src)}}
	}
	w := &blockWalker{}
	w.walk(doc)
	w.flush()
	return w.blocks
}

type blockWalker struct {
	blocks []Block
	buf    strings.Builder
	kind   BlockKind
}

func (w *blockWalker) flush() {
	text := collapse(w.buf.String())
	w.buf.Reset()
	if text != "" {
		w.blocks = append(w.blocks, Block{Kind: w.kind, Text: text})
	}
}

func (w *blockWalker) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.buf.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style:
			return
		case atom.Br:
			w.buf.WriteByte(' ')
			return
		case atom.A:
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				w.walk(c)
			}
			if href := attr(n, "href"); href != "" && href != collapse(textOf(n)) && !strings.HasPrefix(href, "#") {
				w.buf.WriteString(" (" + href + ")")
			}
			return
		case atom.Pre:
			w.flush()
			if code := strings.Trim(textOf(n), "\n"); strings.TrimSpace(code) != "" {
				w.blocks = append(w.blocks, Block{Kind: BlockCode, Text: code})
			}
			return
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			w.block(n, BlockHeading)
			return
		case atom.Li:
			w.block(n, BlockListItem)
			return
		case atom.P, atom.Div, atom.Ul, atom.Ol, atom.Blockquote, atom.Table, atom.Tr, atom.Dl, atom.Dd, atom.Dt:
			w.block(n, w.kind)
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

func (w *blockWalker) block(n *html.Node, kind BlockKind) {
	w.flush()
	saved := w.kind
	w.kind = kind
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
	w.flush()
	w.kind = saved
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textOf(c))
	}
	return sb.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// PlainText renders HTML as paragraphs separated by blank lines.
func PlainText(src string) string {
	var parts []string
	for _, b := range ParseHTML(src) {
		switch b.Kind {
		case BlockListItem:
			parts = append(parts, "- "+b.Text)
		default:
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// HumanizeKey turns section keys such as "how_to_fix" or "rootCause" into
// title-cased headings.
func HumanizeKey(key string) string {
	var words []string
	for _, part := range strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' || unicode.IsSpace(r) }) {
		for _, w := range camelcase.Split(part) {
			if strings.TrimSpace(w) == "" {
				continue
			}
			words = append(words, titleWord(w))
		}
	}
	return strings.Join(words, " ")
}

func titleWord(w string) string {
	if strings.ToUpper(w) == w {
		return w
	}
	r := []rune(strings.ToLower(w))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
