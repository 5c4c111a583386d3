package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"

	"blockext/internal/models"
)

const (
	jsNodeComment             = "comment"
	jsNodeFunctionDeclaration = "function_declaration"
	jsNodeGeneratorDecl       = "generator_function_declaration"
	jsNodeExpressionStatement = "expression_statement"
	jsNodeArray               = "array"
	jsNodeIdentifier          = "identifier"
	jsNodeAsync               = "async"
)

// JavaScriptParser implements SourceParser for JavaScript using tree-sitter.
// It holds no state and is safe for concurrent use.
type JavaScriptParser struct{}

// NewJavaScriptParser creates a new JavaScript parser
func NewJavaScriptParser() *JavaScriptParser {
	return &JavaScriptParser{}
}

// Language returns the language name
func (p *JavaScriptParser) Language() string {
	return string(LanguageJavaScript)
}

// ParseSource parses a whole file and returns its top-level statements and
// every comment, both in source order.
func (p *JavaScriptParser) ParseSource(code []byte) (*models.SourceFile, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, code)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JavaScript code: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	lines := newLineIndex(code)

	if root.HasError() {
		if bad := firstErrorNode(root); bad != nil {
			return nil, hostParseError(bad, code, lines)
		}
	}

	file := &models.SourceFile{}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() == jsNodeComment {
			continue
		}
		file.Statements = append(file.Statements, p.buildStatement(child, code, lines))
	}
	collectComments(root, code, lines, &file.Comments)

	slog.Debug("parsed host source",
		slog.Int("statements", len(file.Statements)),
		slog.Int("comments", len(file.Comments)))
	return file, nil
}

func (p *JavaScriptParser) buildStatement(node *sitter.Node, code []byte, lines *lineIndex) models.Statement {
	start, end := int(node.StartByte()), int(node.EndByte())
	stmt := models.Statement{
		Kind:      models.StatementOther,
		NodeType:  node.Type(),
		Location:  lines.location(start, end),
		StartByte: start,
		EndByte:   end,
		Text:      string(code[start:end]),
	}

	switch node.Type() {
	case jsNodeFunctionDeclaration, jsNodeGeneratorDecl:
		stmt.Kind = models.StatementFunction
		stmt.Generator = node.Type() == jsNodeGeneratorDecl
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			stmt.Name = nameNode.Content(code)
		}
		if paramsNode := node.ChildByFieldName("parameters"); paramsNode != nil {
			stmt.Params = extractParameters(paramsNode, code)
		}
		if bodyNode := node.ChildByFieldName("body"); bodyNode != nil {
			stmt.Body = bodyNode.Content(code)
		}
		if first := node.Child(0); first != nil && first.Type() == jsNodeAsync {
			stmt.Async = true
		}
	case jsNodeExpressionStatement:
		if expr := node.NamedChild(0); expr != nil && expr.Type() == jsNodeArray {
			stmt.Kind = models.StatementArray
		}
	}
	return stmt
}

// extractParameters lists formal parameters. Only bare identifiers are
// simple; anything else keeps its source text as the name.
func extractParameters(node *sitter.Node, code []byte) []models.Param {
	params := []models.Param{}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case jsNodeComment:
			continue
		case jsNodeIdentifier:
			params = append(params, models.Param{Name: child.Content(code), Simple: true})
		default:
			params = append(params, models.Param{Name: child.Content(code), Simple: false})
		}
	}
	return params
}

// collectComments walks the whole tree; comments nested in functions are
// included so that a misplaced annotation is still reported.
func collectComments(node *sitter.Node, code []byte, lines *lineIndex, out *[]models.Comment) {
	if node.Type() == jsNodeComment {
		start, end := int(node.StartByte()), int(node.EndByte())
		text := string(code[start:end])
		c := models.Comment{Location: lines.location(start, end)}
		switch {
		case strings.HasPrefix(text, "//"):
			c.Kind = models.CommentLine
			c.Value = strings.TrimSuffix(text[2:], "\r")
		case strings.HasPrefix(text, "/*"):
			c.Kind = models.CommentBlock
			c.Value = strings.TrimSuffix(strings.TrimPrefix(text, "/*"), "*/")
		default:
			c.Kind = models.CommentBlock
			c.Value = text
		}
		*out = append(*out, c)
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		collectComments(node.Child(i), code, lines, out)
	}
}

// firstErrorNode finds the first ERROR or MISSING node in source order.
func firstErrorNode(node *sitter.Node) *sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}
	if !node.HasError() {
		return nil
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if bad := firstErrorNode(node.Child(i)); bad != nil {
			return bad
		}
	}
	return nil
}

func hostParseError(node *sitter.Node, code []byte, lines *lineIndex) *models.Error {
	start, end := int(node.StartByte()), int(node.EndByte())
	loc := lines.location(start, end)
	if loc.End == loc.Start {
		loc.End.Column++
	}

	if node.IsMissing() {
		return models.NewError(models.ErrHostParse, loc, "Missing %s", node.Type())
	}

	snippet := string(code[start:end])
	if i := strings.IndexByte(snippet, '\n'); i >= 0 {
		snippet = snippet[:i]
	}
	if r := []rune(snippet); len(r) > 20 {
		snippet = string(r[:20])
	}
	if strings.TrimSpace(snippet) == "" {
		return models.NewError(models.ErrHostParse, loc, "Unexpected token")
	}
	return models.NewError(models.ErrHostParse, loc, "Unexpected token %s", strings.TrimSpace(snippet))
}
