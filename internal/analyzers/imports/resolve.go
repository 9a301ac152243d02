package imports

import (
	"encoding/json"
	"path"
	"sort"
	"strings"
)

var scriptExts = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}

// Resolver maps imports onto repository paths.
type Resolver struct {
	files    map[string]bool
	dirs     map[string]bool
	goModule string
	aliases  map[string]string // TS path alias prefix -> replacement
	jvm      map[string]string // dotted-path suffix -> file
}

// NewResolver indexes the repository file list. goModule is the module path
// declared in go.mod ("" if none); aliases are TypeScript path aliases.
func NewResolver(paths []string, goModule string, aliases map[string]string) *Resolver {
	r := &Resolver{
		files:    make(map[string]bool, len(paths)),
		dirs:     make(map[string]bool),
		goModule: goModule,
		aliases:  aliases,
		jvm:      make(map[string]string),
	}
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	for _, p := range sorted {
		r.files[p] = true
		for d := path.Dir(p); ; d = path.Dir(d) {
			r.dirs[d] = true
			if d == "." {
				break
			}
		}
		if ext := path.Ext(p); ext == ".java" || ext == ".kt" {
			key := strings.TrimSuffix(p, ext)
			for {
				if _, ok := r.jvm[key]; !ok {
					r.jvm[key] = p
				}
				slash := strings.Index(key, "/")
				if slash < 0 {
					break
				}
				key = key[slash+1:]
			}
		}
	}
	return r
}

// Resolve maps an import found in file from to the repository file it names,
// or to a package directory for Go imports. External imports return false.
func (r *Resolver) Resolve(from string, imp Import) (string, bool) {
	dir := path.Dir(from)
	switch path.Ext(from) {
	case ".go":
		return r.resolveGo(imp.Path)
	case ".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs":
		return r.resolveScript(dir, imp.Path)
	case ".py":
		return r.resolvePython(dir, imp.Path)
	case ".rb":
		return r.resolveRuby(dir, imp.Path)
	case ".java", ".kt":
		return r.resolveJVM(imp.Path)
	case ".rs":
		return r.resolveRust(from, imp.Path)
	case ".c", ".h", ".cc", ".cpp", ".hpp":
		return r.first(path.Join(dir, imp.Path), imp.Path, path.Join("include", imp.Path))
	}
	return "", false
}

func (r *Resolver) first(candidates ...string) (string, bool) {
	for _, c := range candidates {
		if r.files[c] {
			return c, true
		}
	}
	return "", false
}

func (r *Resolver) resolveGo(imp string) (string, bool) {
	if r.goModule == "" {
		return "", false
	}
	if imp != r.goModule && !strings.HasPrefix(imp, r.goModule+"/") {
		return "", false
	}
	rel := strings.TrimPrefix(strings.TrimPrefix(imp, r.goModule), "/")
	if rel == "" {
		rel = "."
	}
	if r.dirs[rel] {
		return rel, true
	}
	return "", false
}

func (r *Resolver) resolveScript(dir, imp string) (string, bool) {
	var base string
	switch {
	case strings.HasPrefix(imp, "."):
		base = path.Join(dir, imp)
	default:
		for prefix, replacement := range r.aliases {
			if strings.HasPrefix(imp, prefix) {
				base = path.Clean(replacement + strings.TrimPrefix(imp, prefix))
				break
			}
		}
		if base == "" {
			return "", false
		}
	}

	candidates := []string{base}
	for _, ext := range scriptExts {
		candidates = append(candidates, base+ext)
	}
	for _, ext := range scriptExts {
		candidates = append(candidates, path.Join(base, "index"+ext))
	}
	return r.first(candidates...)
}

func (r *Resolver) resolvePython(dir, imp string) (string, bool) {
	var base string
	if strings.HasPrefix(imp, ".") {
		rest := strings.TrimLeft(imp, ".")
		up := len(imp) - len(rest) - 1
		base = dir
		for i := 0; i < up; i++ {
			base = path.Dir(base)
		}
		if rest != "" {
			base = path.Join(base, strings.ReplaceAll(rest, ".", "/"))
		}
	} else {
		base = strings.ReplaceAll(imp, ".", "/")
	}

	for _, root := range []string{"", "src"} {
		b := path.Join(root, base)
		if p, ok := r.first(b+".py", path.Join(b, "__init__.py")); ok {
			return p, true
		}
	}
	return "", false
}

func (r *Resolver) resolveRuby(dir, imp string) (string, bool) {
	if !strings.HasSuffix(imp, ".rb") {
		imp += ".rb"
	}
	if strings.HasPrefix(imp, ".") {
		return r.first(path.Join(dir, imp))
	}
	return r.first(path.Join("lib", imp), imp, path.Join("app", imp))
}

func (r *Resolver) resolveJVM(imp string) (string, bool) {
	if strings.HasSuffix(imp, ".*") {
		pkg := strings.ReplaceAll(strings.TrimSuffix(imp, ".*"), ".", "/")
		for _, root := range []string{"", "src/main/java", "src/main/kotlin", "src"} {
			if d := path.Join(root, pkg); r.dirs[d] {
				return d, true
			}
		}
		return "", false
	}
	key := strings.ReplaceAll(imp, ".", "/")
	if p, ok := r.jvm[key]; ok {
		return p, true
	}
	return "", false
}

// resolveRust handles `mod x;` (relative to the declaring file) and
// `use crate::a::b` (relative to the crate's src directory).
func (r *Resolver) resolveRust(from, imp string) (string, bool) {
	if strings.HasPrefix(imp, "./") {
		name := strings.TrimPrefix(imp, "./")
		dir := path.Dir(from)
		switch strings.TrimSuffix(path.Base(from), ".rs") {
		case "main", "lib", "mod":
		default:
			dir = strings.TrimSuffix(from, ".rs")
		}
		return r.first(path.Join(dir, name+".rs"), path.Join(dir, name, "mod.rs"))
	}

	root := "src"
	if idx := strings.LastIndex(from, "src/"); idx >= 0 {
		root = from[:idx+3]
	}
	parts := strings.Split(strings.TrimPrefix(imp, "crate::"), "::")
	for n := len(parts); n > 0; n-- {
		base := path.Join(root, path.Join(parts[:n]...))
		if p, ok := r.first(base+".rs", path.Join(base, "mod.rs")); ok {
			return p, true
		}
	}
	return "", false
}

// TSConfigAliases reads the compilerOptions.paths table of a tsconfig.json.
// A pattern like "@/*" mapped to "./src/*" yields prefix "@/" -> "src/".
func TSConfigAliases(data []byte) map[string]string {
	aliases := make(map[string]string)
	var config struct {
		CompilerOptions struct {
			BaseURL string              `json:"baseUrl"`
			Paths   map[string][]string `json:"paths"`
		} `json:"compilerOptions"`
	}
	if err := json.Unmarshal(data, &config); err != nil {
		return aliases
	}

	base := strings.TrimPrefix(config.CompilerOptions.BaseURL, "./")
	if base == "." {
		base = ""
	}
	for pattern, targets := range config.CompilerOptions.Paths {
		if len(targets) == 0 {
			continue
		}
		if strings.HasSuffix(pattern, "*") && strings.HasSuffix(targets[0], "*") {
			prefix := strings.TrimSuffix(pattern, "*")
			if prefix == "" {
				continue
			}
			replacement := strings.TrimPrefix(strings.TrimSuffix(targets[0], "*"), "./")
			if base != "" {
				replacement = path.Join(base, replacement) + "/"
			}
			aliases[prefix] = replacement
		}
	}
	return aliases
}
