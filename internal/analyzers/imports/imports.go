// Package imports extracts import/include statements from source files and
// resolves them to repository paths. Parsing is best-effort: Go uses the
// standard parser in imports-only mode, TypeScript and JavaScript use
// tree-sitter, and the remaining languages are matched line by line.
package imports

import (
	"bufio"
	"bytes"
	"go/parser"
	"go/token"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// Import is one import statement found in a file.
type Import struct {
	Path string `json:"path"`
	Line int    `json:"line"`
}

var (
	pyFromRe      = regexp.MustCompile(`^\s*from\s+(\.+[\w.]*|[\w.]+)\s+import\b`)
	pyImportRe    = regexp.MustCompile(`^\s*import\s+([\w.]+(?:\s+as\s+\w+)?(?:\s*,\s*[\w.]+(?:\s+as\s+\w+)?)*)\s*$`)
	rubyRequireRe = regexp.MustCompile(`^\s*(require_relative|require)\s*\(?\s*['"]([^'"]+)['"]`)
	jvmImportRe   = regexp.MustCompile(`^\s*import\s+(?:static\s+)?([\w.]+(?:\.\*)?)\s*;?`)
	rustModRe     = regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?mod\s+(\w+)\s*;`)
	rustUseRe     = regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?use\s+(crate(?:::\w+)+)`)
	cIncludeRe    = regexp.MustCompile(`^\s*#\s*include\s*"([^"]+)"`)
)

// Supported reports whether imports can be extracted from the file.
func Supported(file string) bool {
	switch path.Ext(file) {
	case ".go", ".py", ".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs",
		".rb", ".java", ".kt", ".rs", ".c", ".h", ".cc", ".cpp", ".hpp":
		return true
	}
	return false
}

// Parse returns the imports declared in a source file. Unsupported or
// unparseable files yield nil.
func Parse(file string, src []byte) []Import {
	switch path.Ext(file) {
	case ".go":
		return parseGo(file, src)
	case ".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs":
		return parseScript(file, src)
	case ".py":
		return scanLines(src, parsePythonLine)
	case ".rb":
		return scanLines(src, parseRubyLine)
	case ".java", ".kt":
		return scanLines(src, parseJVMLine)
	case ".rs":
		return scanLines(src, parseRustLine)
	case ".c", ".h", ".cc", ".cpp", ".hpp":
		return scanLines(src, parseCLine)
	}
	return nil
}

func parseGo(file string, src []byte) []Import {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, file, src, parser.ImportsOnly)
	if err != nil {
		return nil
	}
	out := make([]Import, 0, len(f.Imports))
	for _, imp := range f.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		out = append(out, Import{Path: p, Line: fset.Position(imp.Pos()).Line})
	}
	return out
}

func scanLines(src []byte, parse func(string) []string) []Import {
	var out []Import
	sc := bufio.NewScanner(bytes.NewReader(src))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	num := 0
	for sc.Scan() {
		num++
		for _, p := range parse(sc.Text()) {
			out = append(out, Import{Path: p, Line: num})
		}
	}
	return out
}

func parsePythonLine(l string) []string {
	if m := pyFromRe.FindStringSubmatch(l); m != nil {
		return []string{m[1]}
	}
	m := pyImportRe.FindStringSubmatch(l)
	if m == nil {
		return nil
	}
	var out []string
	for _, part := range strings.Split(m[1], ",") {
		fields := strings.Fields(part)
		if len(fields) > 0 {
			out = append(out, fields[0])
		}
	}
	return out
}

// parseRubyLine marks require_relative targets with a "./" prefix.
func parseRubyLine(l string) []string {
	m := rubyRequireRe.FindStringSubmatch(l)
	if m == nil {
		return nil
	}
	if m[1] == "require_relative" && !strings.HasPrefix(m[2], ".") {
		return []string{"./" + m[2]}
	}
	return []string{m[2]}
}

func parseJVMLine(l string) []string {
	if m := jvmImportRe.FindStringSubmatch(l); m != nil {
		return []string{m[1]}
	}
	return nil
}

// parseRustLine reports `mod x;` as "./x" and `use crate::a::b` verbatim.
func parseRustLine(l string) []string {
	if m := rustModRe.FindStringSubmatch(l); m != nil {
		return []string{"./" + m[1]}
	}
	if m := rustUseRe.FindStringSubmatch(l); m != nil {
		return []string{m[1]}
	}
	return nil
}

func parseCLine(l string) []string {
	if m := cIncludeRe.FindStringSubmatch(l); m != nil {
		return []string{m[1]}
	}
	return nil
}
