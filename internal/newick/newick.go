// Package newick reads and writes phylogenetic trees in Newick format.
//
// Only the subset the placement toolchain produces is modelled: a rooted
// tree of labelled nodes with optional branch lengths. Labels may be bare
// or single-quoted ('' escapes a quote inside a quoted label) and are kept
// verbatim, underscores included, since tip names must match table ids.
// Bracketed comments are skipped.
package newick

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Iron-Ham/picrust2-runner/internal/errors"
)

// Node is one vertex of a tree.
type Node struct {
	Name      string
	Length    float64
	HasLength bool
	Children  []*Node
}

// IsTip reports whether n has no children.
func (n *Node) IsTip() bool {
	return len(n.Children) == 0
}

// Tree is a rooted tree.
type Tree struct {
	Root *Node
}

// Tips returns the tip names in left-to-right order.
func (t *Tree) Tips() []string {
	var tips []string
	var walk func(*Node)
	walk = func(n *Node) {
		if n.IsTip() {
			tips = append(tips, n.Name)
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	if t.Root != nil {
		walk(t.Root)
	}
	return tips
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	count := 0
	var walk func(*Node)
	walk = func(n *Node) {
		count++
		for _, c := range n.Children {
			walk(c)
		}
	}
	if t.Root != nil {
		walk(t.Root)
	}
	return count
}

// ParseString parses a single Newick tree.
func ParseString(s string) (*Tree, error) {
	return Parse(strings.NewReader(s))
}

// Parse reads one Newick tree terminated by ';'. Text after the ';' other
// than whitespace is an error.
func Parse(r io.Reader) (*Tree, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewSerializationError("failed to read tree", err).WithFormat("newick")
	}
	p := &parser{src: string(src)}
	root, err := p.parseTree()
	if err != nil {
		return nil, err
	}
	return &Tree{Root: root}, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) fail(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return errors.NewSerializationError(
		fmt.Sprintf("%s at offset %d", msg, p.pos),
		errors.ErrMalformedInput,
	).WithFormat("newick").WithLine(p.line())
}

func (p *parser) line() int {
	end := min(p.pos, len(p.src))
	return strings.Count(p.src[:end], "\n") + 1
}

// skip consumes whitespace and [comments].
func (p *parser) skip() error {
	for p.pos < len(p.src) {
		switch c := p.src[p.pos]; {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			p.pos++
		case c == '[':
			end := strings.IndexByte(p.src[p.pos:], ']')
			if end < 0 {
				return p.fail("unterminated comment")
			}
			p.pos += end + 1
		default:
			return nil
		}
	}
	return nil
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) parseTree() (*Node, error) {
	if err := p.skip(); err != nil {
		return nil, err
	}
	if p.pos >= len(p.src) {
		return nil, p.fail("empty tree")
	}
	root, err := p.parseNode()
	if err != nil {
		return nil, err
	}
	if err := p.skip(); err != nil {
		return nil, err
	}
	if p.peek() != ';' {
		return nil, p.fail("expected ';'")
	}
	p.pos++
	if err := p.skip(); err != nil {
		return nil, err
	}
	if p.pos != len(p.src) {
		return nil, p.fail("unexpected text after ';'")
	}
	return root, nil
}

func (p *parser) parseNode() (*Node, error) {
	n := &Node{}
	if err := p.skip(); err != nil {
		return nil, err
	}

	if p.peek() == '(' {
		p.pos++
		for {
			child, err := p.parseNode()
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
			if err := p.skip(); err != nil {
				return nil, err
			}
			switch p.peek() {
			case ',':
				p.pos++
				continue
			case ')':
				p.pos++
			default:
				return nil, p.fail("expected ',' or ')'")
			}
			break
		}
	}

	if err := p.skip(); err != nil {
		return nil, err
	}
	name, err := p.parseLabel()
	if err != nil {
		return nil, err
	}
	n.Name = name

	if err := p.skip(); err != nil {
		return nil, err
	}
	if p.peek() == ':' {
		p.pos++
		if err := p.skip(); err != nil {
			return nil, err
		}
		start := p.pos
		for p.pos < len(p.src) && strings.IndexByte("0123456789+-.eE", p.src[p.pos]) >= 0 {
			p.pos++
		}
		length, err := strconv.ParseFloat(p.src[start:p.pos], 64)
		if err != nil {
			p.pos = start
			return nil, p.fail("invalid branch length")
		}
		n.Length = length
		n.HasLength = true
	}
	return n, nil
}

func (p *parser) parseLabel() (string, error) {
	if p.peek() == '\'' {
		p.pos++
		var b strings.Builder
		for {
			if p.pos >= len(p.src) {
				return "", p.fail("unterminated quoted label")
			}
			c := p.src[p.pos]
			p.pos++
			if c != '\'' {
				b.WriteByte(c)
				continue
			}
			if p.peek() == '\'' {
				b.WriteByte('\'')
				p.pos++
				continue
			}
			return b.String(), nil
		}
	}

	start := p.pos
	for p.pos < len(p.src) && !isDelimiter(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos], nil
}

func isDelimiter(c byte) bool {
	return strings.IndexByte("(),:;[] \t\r\n'", c) >= 0
}

// needsQuote reports whether a label must be quoted to survive a round trip.
func needsQuote(s string) bool {
	return strings.ContainsAny(s, "(),:;[]' \t\r\n")
}

// String renders the tree as a single line of Newick text ending in ';'.
func (t *Tree) String() string {
	var b strings.Builder
	if t.Root != nil {
		writeNode(&b, t.Root)
	}
	b.WriteByte(';')
	return b.String()
}

// WriteTo writes the Newick text followed by a newline.
func (t *Tree) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	n, _ := bw.WriteString(t.String())
	m, _ := bw.WriteString("\n")
	if err := bw.Flush(); err != nil {
		return int64(n + m), errors.NewSerializationError("failed to write tree", err).WithFormat("newick")
	}
	return int64(n + m), nil
}

func writeNode(b *strings.Builder, n *Node) {
	if len(n.Children) > 0 {
		b.WriteByte('(')
		for i, c := range n.Children {
			if i > 0 {
				b.WriteByte(',')
			}
			writeNode(b, c)
		}
		b.WriteByte(')')
	}
	writeLabel(b, n.Name)
	if n.HasLength {
		b.WriteByte(':')
		b.WriteString(strconv.FormatFloat(n.Length, 'g', -1, 64))
	}
}

func writeLabel(b *strings.Builder, name string) {
	if !needsQuote(name) {
		b.WriteString(name)
		return
	}
	b.WriteByte('\'')
	b.WriteString(strings.ReplaceAll(name, "'", "''"))
	b.WriteByte('\'')
}

// ReadFile parses the tree stored at path.
func ReadFile(path string) (*Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewSerializationError("failed to open tree", err).WithFormat("newick").WithPath(path)
	}
	defer func() { _ = f.Close() }()

	t, err := Parse(f)
	if err != nil {
		var serr *errors.SerializationError
		if errors.As(err, &serr) {
			serr.Path = path
		}
		return nil, err
	}
	return t, nil
}

// WriteFile writes t to path, replacing any existing file.
func WriteFile(path string, t *Tree) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.NewSerializationError("failed to create tree file", err).WithFormat("newick").WithPath(path)
	}
	if _, err := t.WriteTo(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.NewSerializationError("failed to close tree file", err).WithFormat("newick").WithPath(path)
	}
	return nil
}
