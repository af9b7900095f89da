package segment

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// KindCursorNode is the goldmark node kind of a cursor marker.
var KindCursorNode = ast.NewNodeKind("BlinkingCursor")

// CursorNode marks the live-typing position inside a markdown tree. It takes
// over the line-break flags of the text leaf it replaced when the sentinel
// ended that leaf.
type CursorNode struct {
	ast.BaseInline
	SoftLineBreak bool
	HardLineBreak bool
}

func NewCursorNode() *CursorNode { return &CursorNode{} }

func (n *CursorNode) Kind() ast.NodeKind { return KindCursorNode }

func (n *CursorNode) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, nil, nil)
}

var sentinelBytes = []byte(sentinel)

// SplitTree splits, in place, every text leaf under root that contains the
// sentinel. Siblings and ancestors keep their identity and order; leaves inside
// code spans are left alone.
func SplitTree(root ast.Node, source []byte) {
	var targets []ast.Node
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.CodeSpan, *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			if bytes.Contains(v.Segment.Value(source), sentinelBytes) {
				targets = append(targets, n)
			}
		case *ast.String:
			if !v.IsCode() && bytes.Contains(v.Value, sentinelBytes) {
				targets = append(targets, n)
			}
		}
		return ast.WalkContinue, nil
	})
	for _, n := range targets {
		replaceLeaf(n, source)
	}
}

func replaceLeaf(n ast.Node, source []byte) {
	parent := n.Parent()
	if parent == nil {
		return
	}
	var pieces []ast.Node
	var soft, hard bool
	switch v := n.(type) {
	case *ast.Text:
		soft, hard = v.SoftLineBreak(), v.HardLineBreak()
		start := v.Segment.Start
		for _, s := range Split(string(v.Segment.Value(source))) {
			if s.Kind == KindCursor {
				pieces = append(pieces, NewCursorNode())
				start += len(sentinel)
				continue
			}
			t := ast.NewTextSegment(text.NewSegment(start, start+len(s.Value)))
			t.SetRaw(v.IsRaw())
			pieces = append(pieces, t)
			start += len(s.Value)
		}
	case *ast.String:
		for _, s := range Split(string(v.Value)) {
			if s.Kind == KindCursor {
				pieces = append(pieces, NewCursorNode())
				continue
			}
			str := ast.NewString([]byte(s.Value))
			str.SetRaw(v.IsRaw())
			pieces = append(pieces, str)
		}
	}
	if len(pieces) == 0 {
		return
	}
	switch last := pieces[len(pieces)-1].(type) {
	case *ast.Text:
		last.SetSoftLineBreak(soft)
		last.SetHardLineBreak(hard)
	case *CursorNode:
		last.SoftLineBreak = soft
		last.HardLineBreak = hard
	}
	for _, p := range pieces {
		parent.InsertBefore(parent, n, p)
	}
	parent.RemoveChild(parent, n)
}

type cursorTransformer struct{}

func (cursorTransformer) Transform(doc *ast.Document, reader text.Reader, _ parser.Context) {
	SplitTree(doc, reader.Source())
}

// HTMLCursor is the markup the HTML renderer emits for a cursor marker.
const HTMLCursor = `<span class="blinking-cursor"></span>`

type cursorHTMLRenderer struct{}

func (cursorHTMLRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindCursorNode, renderCursor)
}

func renderCursor(w util.BufWriter, _ []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	c := n.(*CursorNode)
	_, _ = w.WriteString(HTMLCursor)
	switch {
	case c.HardLineBreak:
		_, _ = w.WriteString("<br>\n")
	case c.SoftLineBreak:
		_ = w.WriteByte('\n')
	}
	return ast.WalkContinue, nil
}

type extension struct{}

// Extension registers the cursor transformer and its HTML renderer.
var Extension goldmark.Extender = extension{}

func (extension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithASTTransformers(
		util.Prioritized(cursorTransformer{}, 999),
	))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(cursorHTMLRenderer{}, 500),
	))
}
