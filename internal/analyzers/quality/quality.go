// Package quality scans source files for maintenance markers, duplicated
// blocks, unreferenced files and structural complexity.
package quality

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"k8s.io/klog/v2"

	"github.com/dejo1307/docdrift/internal/analyzers"
	"github.com/dejo1307/docdrift/internal/analyzers/imports"
	"github.com/dejo1307/docdrift/internal/facts"
	"github.com/dejo1307/docdrift/internal/snapshot"
)

// Thresholds for complexityMetric signals.
const (
	MaxFileLines    = 500
	MaxNestingDepth = 5
)

// Analyzer is the quality sub-analyzer.
type Analyzer struct {
	minDuplicateLines int
}

// New creates a quality Analyzer reporting duplicated blocks of at least
// minDuplicateLines significant lines.
func New(minDuplicateLines int) *Analyzer {
	if minDuplicateLines < 2 {
		minDuplicateLines = 2
	}
	return &Analyzer{minDuplicateLines: minDuplicateLines}
}

func (a *Analyzer) Name() string {
	return analyzers.Quality
}

var markerRe = regexp.MustCompile(`(?:^|\s)(?://|#|/\*|\*|--|;|<!--)\s*(TODO|FIXME|HACK|XXX)\b[:(]?\s*(.*)`)

// Analyze produces todoMarker, duplicateBlock, deadCodeCandidate and
// complexityMetric signals. The context is checked between files.
func (a *Analyzer) Analyze(ctx context.Context, src snapshot.Source) (*analyzers.Partial, error) {
	p := &analyzers.Partial{}
	dups := newDuplicateIndex(a.minDuplicateLines)

	for _, f := range src.Files() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if snapshot.Language(f.Path) == "" {
			continue
		}
		content, err := src.ReadFile(f.Path)
		if err != nil || snapshot.IsBinary(content) {
			continue
		}
		lines := strings.Split(string(content), "\n")

		for i, l := range lines {
			if m := markerRe.FindStringSubmatch(l); m != nil {
				desc := strings.TrimSuffix(strings.TrimSpace(m[2]), "*/")
				p.Signals = append(p.Signals, facts.QualitySignal{
					Kind:        facts.SignalTodoMarker,
					Location:    facts.Location{File: f.Path, Line: i + 1},
					Description: strings.TrimSpace(m[1] + ": " + strings.TrimSpace(desc)),
					Rule:        strings.ToLower(m[1]),
				})
			}
		}
		p.Signals = append(p.Signals, complexity(f.Path, lines)...)
		if !snapshot.IsTestFile(f.Path) {
			dups.add(f.Path, lines)
		}
	}
	p.Signals = append(p.Signals, dups.signals...)

	dead, err := deadCode(ctx, src)
	if err != nil {
		return nil, err
	}
	p.Signals = append(p.Signals, dead...)

	klog.V(2).Infof("[quality] %d signals", len(p.Signals))
	return p, nil
}

// complexity reports overlong files and deep nesting.
func complexity(file string, lines []string) []facts.QualitySignal {
	var out []facts.QualitySignal
	if n := len(lines); n > MaxFileLines {
		out = append(out, facts.QualitySignal{
			Kind:        facts.SignalComplexity,
			Location:    facts.Location{File: file},
			Description: fmt.Sprintf("file has %d lines (threshold %d)", n, MaxFileLines),
			Rule:        "file-length",
			Value:       float64(n),
		})
	}
	depth, line := nesting(file, lines)
	if depth > MaxNestingDepth {
		out = append(out, facts.QualitySignal{
			Kind:        facts.SignalComplexity,
			Location:    facts.Location{File: file, Line: line},
			Description: fmt.Sprintf("nesting depth %d (threshold %d)", depth, MaxNestingDepth),
			Rule:        "nesting-depth",
			Value:       float64(depth),
		})
	}
	return out
}

// nesting returns the maximum block depth and the line where it is reached.
// Indentation-scoped languages use indent width; others count braces.
func nesting(file string, lines []string) (int, int) {
	maxDepth, at := 0, 0
	if path.Ext(file) == ".py" {
		for i, l := range lines {
			trimmed := strings.TrimLeft(l, " \t")
			if trimmed == "" || strings.HasPrefix(trimmed, "#") {
				continue
			}
			indent := strings.Count(l[:len(l)-len(trimmed)], "\t")*4 + strings.Count(l[:len(l)-len(trimmed)], " ")
			if d := indent / 4; d > maxDepth {
				maxDepth, at = d, i+1
			}
		}
		return maxDepth, at
	}

	depth := 0
	for i, l := range lines {
		var quote rune
	scan:
		for j, r := range l {
			if quote != 0 {
				if r == quote && (j == 0 || l[j-1] != '\\') {
					quote = 0
				}
				continue
			}
			switch r {
			case '"', '\'', '`':
				quote = r
			case '{':
				depth++
				if depth > maxDepth {
					maxDepth, at = depth, i+1
				}
			case '}':
				if depth > 0 {
					depth--
				}
			case '/':
				if j+1 < len(l) && l[j+1] == '/' {
					break scan
				}
			}
		}
	}
	return maxDepth, at
}

// deadCodeLanguages have explicit file-level imports, so a file nothing
// imports is a meaningful signal.
var deadCodeLanguages = map[string]bool{
	"Go": true, "Python": true, "TypeScript": true, "JavaScript": true, "Rust": true,
}

var entryBases = map[string]bool{
	"main": true, "index": true, "app": true, "server": true, "manage": true, "__init__": true,
	"__main__": true, "setup": true, "conftest": true, "wsgi": true, "asgi": true, "lib": true, "mod": true,
}

var skipDirs = []string{"bin", "scripts", "examples", "example", "migrations", "docs", "tools"}

func deadCode(ctx context.Context, src snapshot.Source) ([]facts.QualitySignal, error) {
	graph, err := imports.Scan(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("scanning imports: %w", err)
	}
	if len(graph.Targets) == 0 {
		return nil, nil
	}

	var out []facts.QualitySignal
	for _, f := range src.Files() {
		lang := snapshot.Language(f.Path)
		if !deadCodeLanguages[lang] || snapshot.IsTestFile(f.Path) || graph.Inbound[f.Path] > 0 {
			continue
		}
		base := path.Base(f.Path)
		stem := strings.TrimSuffix(base, path.Ext(base))
		if entryBases[stem] || strings.Contains(stem, ".config") || strings.HasSuffix(base, ".d.ts") || inSkippedDir(f.Path) {
			continue
		}
		if lang == "Go" {
			if strings.HasPrefix(f.Path, "cmd/") || isGoMain(src, f.Path) {
				continue
			}
		}
		out = append(out, facts.QualitySignal{
			Kind:        facts.SignalDeadCode,
			Location:    facts.Location{File: f.Path},
			Description: "no file in the repository imports this file",
			Rule:        "no-inbound-references",
		})
	}
	return out, nil
}

func inSkippedDir(p string) bool {
	for _, seg := range strings.Split(path.Dir(p), "/") {
		for _, d := range skipDirs {
			if seg == d {
				return true
			}
		}
	}
	return false
}

var goMainRe = regexp.MustCompile(`(?m)^package main\b`)

func isGoMain(src snapshot.Source, file string) bool {
	content, err := src.ReadFile(file)
	return err == nil && goMainRe.Match(content)
}

// duplicateIndex finds repeated windows of significant lines across files.
type duplicateIndex struct {
	min     int
	seen    map[string]span
	signals []facts.QualitySignal
}

type span struct {
	file       string
	start, end int
}

type sigLine struct {
	text string
	no   int
}

func newDuplicateIndex(min int) *duplicateIndex {
	return &duplicateIndex{min: min, seen: make(map[string]span)}
}

// add indexes one file. Consecutive matching windows against the same
// original are merged into a single duplicateBlock.
func (d *duplicateIndex) add(file string, lines []string) {
	sig := significant(lines)
	active := -1
	for i := 0; i+d.min <= len(sig); i++ {
		key := joinWindow(sig[i : i+d.min])
		cur := span{file: file, start: sig[i].no, end: sig[i+d.min-1].no}
		first, ok := d.seen[key]
		if !ok {
			d.seen[key] = cur
			active = -1
			continue
		}
		if first.file == file && cur.start <= first.end {
			active = -1
			continue
		}
		if active >= 0 && d.signals[active].Related[0].File == first.file {
			s := &d.signals[active]
			s.Location.EndLine = cur.end
			s.Related[0].EndLine = max(s.Related[0].EndLine, first.end)
			s.Description = describeDuplicate(s)
			continue
		}
		d.signals = append(d.signals, facts.QualitySignal{
			Kind:     facts.SignalDuplicateBlock,
			Location: facts.Location{File: file, Line: cur.start, EndLine: cur.end},
			Rule:     "duplicate-lines",
			Related:  []facts.Location{{File: first.file, Line: first.start, EndLine: first.end}},
		})
		active = len(d.signals) - 1
		d.signals[active].Description = describeDuplicate(&d.signals[active])
	}
}

func describeDuplicate(s *facts.QualitySignal) string {
	r := s.Related[0]
	return fmt.Sprintf("lines %d-%d duplicate %s:%d-%d", s.Location.Line, s.Location.EndLine, r.File, r.Line, r.EndLine)
}

var trivialLines = map[string]bool{
	"{": true, "}": true, "};": true, "})": true, "});": true, ")": true, "]": true, "],": true,
	"end": true, "else": true, "} else {": true, "return": true, "pass": true, "break": true,
	"*/": true, "/*": true, "/**": true, `"""`: true, "default:": true, "try:": true, "else:": true,
}

var skipPrefixes = []string{"//", "#", "*", "import ", "from ", "package ", "using ", "require ", "use ", "@"}

// significant drops blank, trivial, comment and import lines.
func significant(lines []string) []sigLine {
	var out []sigLine
	for i, l := range lines {
		t := strings.TrimSpace(l)
		if len(t) < 3 || trivialLines[t] || hasAnyPrefix(t, skipPrefixes) {
			continue
		}
		out = append(out, sigLine{text: t, no: i + 1})
	}
	return out
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func joinWindow(w []sigLine) string {
	parts := make([]string, len(w))
	for i, l := range w {
		parts[i] = l.text
	}
	return strings.Join(parts, "\n")
}
