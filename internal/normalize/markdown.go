package normalize

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	gtext "github.com/yuin/goldmark/text"

	"doceval/internal/document"
)

// fromMarkdown parses flat markdown/plain text into blocks: headings become
// Title, paragraphs Text, tables Table, fenced math Formula, list items
// ListItem. No bounding boxes; reading order is document order.
func (n *Normalizer) fromMarkdown(sampleID string, source []byte) (document.Document, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	root := md.Parser().Parse(gtext.NewReader(source))

	var blocks []document.Block
	appendBlock := func(kind document.BlockKind, text string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		blocks = append(blocks, document.Block{
			Kind:         kind,
			Text:         text,
			ReadingOrder: len(blocks),
		})
	}

	var walk func(node ast.Node)
	walk = func(node ast.Node) {
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			switch c := child.(type) {
			case *ast.Heading:
				appendBlock(document.KindTitle, nodeText(c, source))
			case *ast.Paragraph:
				appendBlock(document.KindText, nodeText(c, source))
			case *ast.List:
				walk(c)
			case *ast.ListItem:
				appendBlock(document.KindList, nodeText(c, source))
			case *ast.FencedCodeBlock:
				kind := document.KindText
				if lang := string(c.Language(source)); lang == "math" || lang == "latex" || lang == "tex" {
					kind = document.KindFormula
				}
				appendBlock(kind, linesText(c, source))
			case *ast.CodeBlock:
				appendBlock(document.KindText, linesText(c, source))
			case *ast.Blockquote:
				appendBlock(document.KindText, nodeText(c, source))
			case *east.Table:
				appendBlock(document.KindTable, tableText(c, source))
			}
		}
	}
	walk(root)

	if len(blocks) == 0 {
		return document.Document{}, fmt.Errorf("no blocks parsed from %d bytes of markdown", len(source))
	}
	return document.New(sampleID, blocks), nil
}

// nodeText collects the raw text segments under a node.
func nodeText(node ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := n.(*ast.Text); ok {
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}

// linesText reassembles the literal lines of a code block.
func linesText(node ast.Node, source []byte) string {
	var sb strings.Builder
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	return sb.String()
}

// tableText flattens a GFM table into pipe-separated rows, one per line,
// preserving cell order for text comparison.
func tableText(table *east.Table, source []byte) string {
	var rows []string
	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, strings.TrimSpace(nodeText(cell, source)))
		}
		if len(cells) > 0 {
			rows = append(rows, strings.Join(cells, " | "))
		}
	}
	return strings.Join(rows, "\n")
}
