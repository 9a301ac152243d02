package imports

import (
	"path"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// parseScript extracts ES module imports, re-exports, require() calls and
// dynamic import() calls from TypeScript and JavaScript sources.
func parseScript(file string, src []byte) []Import {
	lang := typescript.LanguageTypescript()
	if ext := path.Ext(file); ext != ".ts" {
		// JSX syntax is only accepted by the TSX grammar, which also covers plain JS.
		lang = typescript.LanguageTSX()
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(sitter.NewLanguage(lang))

	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil
	}
	defer tree.Close()

	var out []Import
	walk(tree.RootNode(), func(n *sitter.Node) {
		switch n.Kind() {
		case "import_statement", "export_statement":
			if source := findChildByKind(n, "string"); source != nil {
				out = append(out, Import{Path: stringValue(source, src), Line: int(n.StartPosition().Row) + 1})
			}
		case "call_expression":
			fn := n.Child(0)
			if fn == nil {
				return
			}
			isRequire := fn.Kind() == "identifier" && nodeText(fn, src) == "require"
			if !isRequire && fn.Kind() != "import" {
				return
			}
			args := findChildByKind(n, "arguments")
			if args == nil {
				return
			}
			if source := findChildByKind(args, "string"); source != nil {
				out = append(out, Import{Path: stringValue(source, src), Line: int(n.StartPosition().Row) + 1})
			}
		}
	})
	return out
}

func walk(n *sitter.Node, fn func(*sitter.Node)) {
	fn(n)
	for i := range n.ChildCount() {
		if child := n.Child(i); child != nil {
			walk(child, fn)
		}
	}
}

func findChildByKind(node *sitter.Node, kind string) *sitter.Node {
	for i := range node.ChildCount() {
		child := node.Child(i)
		if child != nil && child.Kind() == kind {
			return child
		}
	}
	return nil
}

func nodeText(node *sitter.Node, src []byte) string {
	return string(src[node.StartByte():node.EndByte()])
}

func stringValue(node *sitter.Node, src []byte) string {
	return strings.Trim(nodeText(node, src), "\"'`")
}
