package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Unit is a named region of a source file produced by decomposition: a
// top-level function or class, or the module-level remainder outside both.
type Unit struct {
	Name      string
	Kind      string // "module", "function", "class"
	StartLine int
	EndLine   int
	Source    string
}

// SyntaxIssue describes the first structural error found in a source text.
type SyntaxIssue struct {
	Line    int
	Message string
}

// ErrUnsupportedLanguage is returned by ForFile for file types the parser
// cannot decompose.
var ErrUnsupportedLanguage = fmt.Errorf("unsupported language")

// Parser decomposes source text of one language into logical units and
// validates its syntax.
type Parser struct {
	spec languageSpec
	lang string
}

// NewParser creates a parser for a given language ("go" or "python").
func NewParser(lang string) (*Parser, error) {
	var spec languageSpec
	switch lang {
	case "go":
		spec = &goSpec{}
	case "python":
		spec = &pythonSpec{}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}
	return &Parser{spec: spec, lang: lang}, nil
}

// ForFile picks a parser from the filename extension.
func ForFile(filename string) (*Parser, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".go":
		return NewParser("go")
	case ".py":
		return NewParser("python")
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, filename)
	}
}

// Language returns the parser's language name.
func (p *Parser) Language() string {
	return p.lang
}

// Decompose extracts the top-level functions and classes of source as an
// ordered list of non-overlapping units.
func (p *Parser) Decompose(ctx context.Context, source string) ([]Unit, error) {
	tree, err := p.parse(ctx, []byte(source))
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	query, err := sitter.NewQuery([]byte(p.spec.Query()), p.spec.Language())
	if err != nil {
		return nil, fmt.Errorf("failed to create query: %w", err)
	}
	defer query.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, tree.RootNode())

	src := []byte(source)
	var units []Unit
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range m.Captures {
			captureName := query.CaptureNameForId(c.Index)
			if unit := p.spec.Unit(captureName, c.Node, src); unit != nil {
				units = append(units, *unit)
			}
		}
	}

	sort.SliceStable(units, func(i, j int) bool {
		return units[i].StartLine < units[j].StartLine
	})
	return units, nil
}

// Validate checks source for structural validity. A nil issue means the text
// parses cleanly. The returned error covers parser failure, not invalid input.
func (p *Parser) Validate(ctx context.Context, source string) (*SyntaxIssue, error) {
	tree, err := p.parse(ctx, []byte(source))
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return nil, nil
	}

	line := 1
	message := "invalid syntax"
	if node := firstErrorNode(root); node != nil {
		line = int(node.StartPoint().Row) + 1
		if node.IsMissing() {
			message = fmt.Sprintf("missing %s", node.Type())
		}
	}
	return &SyntaxIssue{Line: line, Message: message}, nil
}

// ModuleRemainder returns the module-level code outside all given units:
// every line not covered by a unit range. Returns nil when the units cover
// the whole file or the remainder is trivial.
func ModuleRemainder(source string, units []Unit) *Unit {
	lines := strings.Split(source, "\n")

	if len(units) == 0 {
		return &Unit{
			Name:      "<module>",
			Kind:      "module",
			StartLine: 1,
			EndLine:   len(lines),
			Source:    source,
		}
	}

	covered := make([]bool, len(lines)+1)
	for _, u := range units {
		for i := u.StartLine; i <= u.EndLine && i < len(covered); i++ {
			covered[i] = true
		}
	}

	var (
		remainder  []string
		start, end int
	)
	for i := 1; i <= len(lines); i++ {
		if covered[i] {
			continue
		}
		if start == 0 {
			start = i
		}
		end = i
		remainder = append(remainder, lines[i-1])
	}

	code := strings.Join(remainder, "\n")
	if len(strings.TrimSpace(code)) <= 10 {
		return nil
	}
	return &Unit{
		Name:      "<module>",
		Kind:      "module",
		StartLine: start,
		EndLine:   end,
		Source:    code,
	}
}

func (p *Parser) parse(ctx context.Context, source []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(p.spec.Language())
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source: %w", err)
	}
	return tree, nil
}

func firstErrorNode(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil || !child.HasError() {
			continue
		}
		if found := firstErrorNode(child); found != nil {
			return found
		}
	}
	return nil
}
