//go:build cgo

package treesitter

import (
	"context"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/rohankatakam/changeminer/internal/errors"
	"github.com/rohankatakam/changeminer/internal/models"
)

// Extractor produces method descriptors from C# and Java source text.
// Safe for concurrent use; parses are serialized on one parser.
type Extractor struct {
	mu     sync.Mutex
	parser *sitter.Parser
}

// NewExtractor creates an extractor
func NewExtractor() *Extractor {
	return &Extractor{parser: sitter.NewParser()}
}

// IsAvailable reports whether tree-sitter extraction is compiled in
func IsAvailable() bool { return true }

// Extract returns the methods of source in document order. Long names are
// the enclosing scopes joined with "::" followed by the method name and its
// parameter list. Unsupported file types yield no methods.
func (e *Extractor) Extract(ctx context.Context, path string, source []byte) ([]models.MethodDescriptor, error) {
	lang, ok := DetectLanguage(path)
	if !ok {
		return nil, nil
	}

	root, err := e.parse(ctx, lang, source)
	if err != nil {
		return nil, errors.ExternalError(err, "tree-sitter parse failed").WithContext("path", path)
	}

	w := &walker{nodes: nodesByLanguage[lang], code: source}
	w.walk(root)
	return w.methods, nil
}

func (e *Extractor) parse(ctx context.Context, lang Language, source []byte) (*sitter.Node, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.parser.SetLanguage(grammar(lang))
	tree, err := e.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, err
	}
	return tree.RootNode(), nil
}

func grammar(lang Language) *sitter.Language {
	if lang == LangJava {
		return java.GetLanguage()
	}
	return csharp.GetLanguage()
}

type walker struct {
	nodes   grammarNodes
	code    []byte
	scopes  []string
	methods []models.MethodDescriptor
}

func (w *walker) walk(node *sitter.Node) {
	if node == nil {
		return
	}

	kind := node.Type()
	if w.nodes.methods[kind] {
		w.method(node)
		// local functions and lambdas stay part of their method
		return
	}

	pushed := false
	if w.nodes.scopes[kind] {
		if name := fieldText(node, "name", w.code); name != "" {
			w.scopes = append(w.scopes, collapseSpace(name))
			pushed = true
		}
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		w.walk(node.NamedChild(i))
	}

	if pushed {
		w.scopes = w.scopes[:len(w.scopes)-1]
	}
}

func (w *walker) method(node *sitter.Node) {
	name := fieldText(node, "name", w.code)
	if name == "" || len(w.scopes) == 0 {
		return
	}
	if node.Type() == "destructor_declaration" {
		name = "~" + name
	}

	params := collapseSpace(fieldText(node, "parameters", w.code))
	if params == "" {
		params = "()"
	}

	scope := strings.Join(w.scopes, ScopeSeparator) + ScopeSeparator
	w.methods = append(w.methods, models.MethodDescriptor{
		LongName:     scope + name + params,
		StartLine:    int(node.StartPoint().Row) + 1,
		EndLine:      int(node.EndPoint().Row) + 1,
		NestingLevel: len(w.scopes),
	})
}
