package parser

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/python"
)

// languageSpec is implemented once per supported language.
type languageSpec interface {
	Language() *sitter.Language
	Query() string
	Unit(captureName string, node *sitter.Node, source []byte) *Unit
}

type goSpec struct{}

func (g *goSpec) Language() *sitter.Language {
	return golang.GetLanguage()
}

// Only top-level declarations: Go does not nest them, and review units must
// not overlap.
func (g *goSpec) Query() string {
	return `
		(source_file (function_declaration) @function)
		(source_file (method_declaration) @function)
		(source_file (type_declaration) @class)
	`
}

func (g *goSpec) Unit(captureName string, node *sitter.Node, source []byte) *Unit {
	name := ""
	switch node.Type() {
	case "function_declaration", "method_declaration":
		if n := node.ChildByFieldName("name"); n != nil {
			name = n.Content(source)
		}
	case "type_declaration":
		// The name lives on the first type_spec inside the declaration.
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child.Type() == "type_spec" {
				if n := child.ChildByFieldName("name"); n != nil {
					name = n.Content(source)
				}
				break
			}
		}
	}
	if name == "" {
		return nil
	}
	return &Unit{
		Name:      name,
		Kind:      captureName,
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		Source:    node.Content(source),
	}
}

type pythonSpec struct{}

func (p *pythonSpec) Language() *sitter.Language {
	return python.GetLanguage()
}

func (p *pythonSpec) Query() string {
	return `
		(module (function_definition) @function)
		(module (class_definition) @class)
		(module (decorated_definition (function_definition) @function))
		(module (decorated_definition (class_definition) @class))
	`
}

func (p *pythonSpec) Unit(captureName string, node *sitter.Node, source []byte) *Unit {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	// Include decorators so the reviewed text matches what the file shows.
	span := node
	if parent := node.Parent(); parent != nil && parent.Type() == "decorated_definition" {
		span = parent
	}

	return &Unit{
		Name:      nameNode.Content(source),
		Kind:      captureName,
		StartLine: int(span.StartPoint().Row) + 1,
		EndLine:   int(span.EndPoint().Row) + 1,
		Source:    span.Content(source),
	}
}
