package parser

import (
	"bytes"
	"sort"
	"strings"

	"mpath/internal/engine/model"
	"mpath/internal/engine/syntax"
)

// snippetMarker lines are documentation include markers, never content.
const snippetMarker = "--8<--"

// comments indexes every comment node of a file by position and tracks which
// ones have already been attached to an object.
type comments struct {
	src   []byte
	lines [][]byte
	nodes []*syntax.Node
	used  map[*syntax.Node]bool
}

func collectComments(tree *syntax.Tree) *comments {
	c := &comments{
		src:   tree.Source,
		lines: bytes.Split(tree.Source, []byte("\n")),
		used:  make(map[*syntax.Node]bool),
	}
	syntax.Walk(tree.Root, func(n *syntax.Node) bool {
		if n.Kind == syntax.KindComment {
			c.nodes = append(c.nodes, n)
		}
		return true
	})
	sort.Slice(c.nodes, func(i, j int) bool { return c.nodes[i].StartByte < c.nodes[j].StartByte })
	return c
}

// code reports whether row holds anything other than a comment.
func (c *comments) code(row int) bool {
	if row < 0 || row >= len(c.lines) {
		return false
	}
	line := bytes.TrimSpace(c.lines[row])
	return len(line) > 0 && line[0] != '%'
}

func (c *comments) isBlock(n *syntax.Node) bool {
	return strings.HasPrefix(strings.TrimSpace(n.Text(c.src)), "%{")
}

func (c *comments) first(row int) int {
	return sort.Search(len(c.nodes), func(i int) bool { return c.nodes[i].Start.Row >= row })
}

// after returns the comment run that starts on row, as a trailing comment, or
// on the comment-only row below it. A block comment stands alone; line
// comments extend over consecutive comment-only rows.
func (c *comments) after(row int) []*syntax.Node {
	i := c.first(row)
	if i == len(c.nodes) {
		return nil
	}
	head := c.nodes[i]
	switch {
	case c.used[head]:
		return nil
	case head.Start.Row == row:
	case head.Start.Row == row+1 && !c.code(row+1):
	default:
		return nil
	}
	if c.isBlock(head) {
		return []*syntax.Node{head}
	}
	run := []*syntax.Node{head}
	for _, next := range c.nodes[i+1:] {
		if next.Start.Row != run[len(run)-1].End.Row+1 || c.isBlock(next) || c.code(next.Start.Row) {
			break
		}
		run = append(run, next)
	}
	return run
}

// before returns the contiguous run of comment-only rows ending directly
// above row.
func (c *comments) before(row int) []*syntax.Node {
	i := c.first(row) - 1
	var run []*syntax.Node
	want := row - 1
	for ; i >= 0; i-- {
		n := c.nodes[i]
		if n.End.Row != want || c.used[n] || c.code(n.Start.Row) {
			break
		}
		run = append([]*syntax.Node{n}, run...)
		want = n.Start.Row - 1
	}
	return run
}

// trailing returns the comment on row, when sameRow is set, plus following
// comment-only rows indented further than column.
func (c *comments) trailing(row, column int, sameRow bool) []*syntax.Node {
	var run []*syntax.Node
	last := row
	for _, n := range c.nodes[c.first(row):] {
		switch {
		case c.used[n]:
			return run
		case n.Start.Row == row && sameRow:
		case n.Start.Row == last+1 && n.Start.Column > column && !c.isBlock(n) && !c.code(n.Start.Row):
		default:
			return run
		}
		run = append(run, n)
		last = n.End.Row
	}
	return run
}

func (c *comments) take(run []*syntax.Node) *model.Docstring {
	for _, n := range run {
		c.used[n] = true
	}
	return c.docstring(run)
}

// docstring renders a comment run. Pragmas and snippet markers are dropped,
// section markers keep their title, and common indentation is removed.
func (c *comments) docstring(run []*syntax.Node) *model.Docstring {
	if len(run) == 0 {
		return nil
	}
	var lines []string
	for _, n := range run {
		text := n.Text(c.src)
		if c.isBlock(n) {
			lines = append(lines, blockCommentLines(text)...)
			continue
		}
		if line, ok := lineCommentText(text); ok {
			lines = append(lines, line)
		}
	}
	text := dedent(lines)
	if text == "" {
		return nil
	}
	return &model.Docstring{
		Text:  text,
		Lines: model.LineRange{Start: run[0].Start.Row + 1, End: run[len(run)-1].End.Row + 2},
	}
}

func lineCommentText(raw string) (string, bool) {
	s := strings.TrimRight(strings.TrimSpace(raw), "\r")
	if strings.Contains(s, snippetMarker) || strings.HasPrefix(s, "%#") {
		return "", false
	}
	if strings.HasPrefix(s, "%%") {
		return strings.TrimPrefix(s, "%%"), true
	}
	return strings.TrimPrefix(s, "%"), true
}

func blockCommentLines(raw string) []string {
	lines := strings.Split(raw, "\n")
	if len(lines) <= 2 {
		return nil
	}
	var out []string
	for _, l := range lines[1 : len(lines)-1] {
		l = strings.TrimRight(l, "\r")
		if strings.Contains(l, snippetMarker) || strings.HasPrefix(strings.TrimSpace(l), "%#") {
			continue
		}
		out = append(out, l)
	}
	return out
}

// dedent removes the whitespace prefix shared by all non-blank lines and
// trims surrounding blank lines.
func dedent(lines []string) string {
	prefix := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		indent := len(l) - len(strings.TrimLeft(l, " \t"))
		if prefix < 0 || indent < prefix {
			prefix = indent
		}
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		out[i] = strings.TrimRight(l[prefix:], " \t")
	}
	return strings.Trim(strings.Join(out, "\n"), "\n")
}
