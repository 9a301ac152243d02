// Package security pattern-matches source and configuration files for
// hard-coded secrets and known-unsafe call patterns.
package security

import (
	"context"
	"fmt"
	"math"
	"path"
	"regexp"
	"strings"

	"k8s.io/klog/v2"

	"github.com/dejo1307/docdrift/internal/analyzers"
	"github.com/dejo1307/docdrift/internal/facts"
	"github.com/dejo1307/docdrift/internal/snapshot"
)

// MinSecretEntropy is the Shannon entropy, in bits per character, above which
// a value assigned to a secret-looking name is reported.
const MinSecretEntropy = 3.5

// Analyzer is the security sub-analyzer.
type Analyzer struct{}

// New creates a new security Analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

func (a *Analyzer) Name() string {
	return analyzers.Security
}

// lineRule matches a single line.
type lineRule struct {
	Name     string
	Severity facts.Severity
	Re       *regexp.Regexp
	Message  string
}

// tokenRules are secret shapes recognisable without a variable name.
var tokenRules = []lineRule{
	{"private-key", facts.SeverityCritical, regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY`), "private key committed to the repository"},
	{"aws-access-key", facts.SeverityCritical, regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`), "AWS access key id"},
	{"github-token", facts.SeverityCritical, regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}\b`), "GitHub token"},
	{"slack-token", facts.SeverityCritical, regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9-]{10,}`), "Slack token"},
}

// unsafeRules are known-unsafe call patterns.
var unsafeRules = []lineRule{
	{"shell-injection", facts.SeverityHigh, regexp.MustCompile(`subprocess\.\w+\([^)]*shell\s*=\s*True`), "subprocess call with shell=True"},
	{"shell-injection", facts.SeverityHigh, regexp.MustCompile(`\bos\.(?:system|popen)\(\s*(?:[^"'\s)]|f["']|["'][^"']*["']\s*(?:\+|%|\.format))`), "shell command built from variables"},
	{"shell-injection", facts.SeverityHigh, regexp.MustCompile("\\bexec(?:Sync)?\\(\\s*(?:`[^`]*\\$\\{|[^),]*\\+)"), "child_process exec with interpolated command"},
	{"shell-injection", facts.SeverityHigh, regexp.MustCompile(`exec\.Command(?:Context)?\((?:ctx,\s*)?"(?:sh|bash|/bin/sh|/bin/bash)",\s*"-c"`), "command run through a shell"},
	{"shell-injection", facts.SeverityHigh, regexp.MustCompile(`\b(?:system|exec|spawn)\(\s*"[^"]*#\{|%x\(|\bshell_exec\(|\bpassthru\(`), "shell command with interpolation"},
	{"dynamic-eval", facts.SeverityMedium, regexp.MustCompile(`(?:^|[^\w.])eval\(\s*[^)'"\s]`), "eval of a non-literal expression"},
	{"insecure-tls", facts.SeverityMedium, regexp.MustCompile(`InsecureSkipVerify:\s*true|verify\s*=\s*False|rejectUnauthorized:\s*false|NODE_TLS_REJECT_UNAUTHORIZED\s*=\s*['"]?0`), "TLS certificate verification disabled"},
}

var (
	assignSecretRe = regexp.MustCompile(`(?i)\b([\w.-]*(?:api_?key|apikey|secret|token|passw(?:or)?d|pwd|credential|private_?key|access_?key)[\w.-]*)["']?\s*(?::=|==|=|:)\s*[bru]?["'` + "`" + `]([^"'` + "`" + `\s]{8,})["'` + "`" + `]`)
	placeholderRe  = regexp.MustCompile(`(?i)example|changeme|change_me|placeholder|your[_-]|dummy|sample|xxxx|\*\*\*|<[^>]+>|\$\{|\{\{|%\(|process\.env|os\.environ|getenv`)

	reInsertInto = regexp.MustCompile(`(?i)INSERT\s+INTO\s+` + "`?" + `"?'?(\w+)`)
	reUpdate     = regexp.MustCompile(`(?i)UPDATE\s+` + "`?" + `"?'?(\w+)\s+SET\b`)
	reDeleteFrom = regexp.MustCompile(`(?i)DELETE\s+FROM\s+` + "`?" + `"?'?(\w+)`)
	reSelectFrom = regexp.MustCompile(`(?i)SELECT\s+.+?\s+FROM\s+` + "`?" + `"?'?(\w+)`)

	// String building next to a SQL literal.
	concatRe = regexp.MustCompile(`["'` + "`" + `]\s*\+\s*[\w(]|[\w)]\s*\+\s*["'` + "`" + `]|\$\{[^}]+\}|\bf["'][^"']*\{|["']\s*%\s*[\w(]|\.format\(|fmt\.Sprintf\(|String\.format\(|#\{[^}]+\}`)
)

var sqlPatterns = []*regexp.Regexp{reSelectFrom, reInsertInto, reUpdate, reDeleteFrom}

// configExts are scanned for secrets only.
var configExts = map[string]bool{
	".env": true, ".yml": true, ".yaml": true, ".json": true, ".properties": true,
	".toml": true, ".ini": true, ".cfg": true, ".conf": true, ".xml": true,
}

// Analyze emits one securityFinding signal per matching line and rule.
func (a *Analyzer) Analyze(ctx context.Context, src snapshot.Source) (*analyzers.Partial, error) {
	p := &analyzers.Partial{}
	for _, f := range src.Files() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		isSource := snapshot.Language(f.Path) != ""
		if (!isSource && !isConfig(f.Path)) || snapshot.IsTestFile(f.Path) || isExampleFile(f.Path) {
			continue
		}
		content, err := src.ReadFile(f.Path)
		if err != nil || snapshot.IsBinary(content) {
			continue
		}
		p.Signals = append(p.Signals, scanFile(f.Path, string(content), isSource)...)
	}
	klog.V(2).Infof("[security] %d findings", len(p.Signals))
	return p, nil
}

func scanFile(file, content string, isSource bool) []facts.QualitySignal {
	var out []facts.QualitySignal
	add := func(line int, rule string, sev facts.Severity, desc string) {
		out = append(out, facts.QualitySignal{
			Kind:        facts.SignalSecurity,
			Location:    facts.Location{File: file, Line: line},
			Description: desc,
			Rule:        rule,
			Severity:    sev,
		})
	}

	for i, line := range strings.Split(content, "\n") {
		n := i + 1
		tokenHit := false
		for _, r := range tokenRules {
			if r.Re.MatchString(line) {
				add(n, r.Name, r.Severity, r.Message)
				tokenHit = true
				break
			}
		}
		if !tokenHit {
			if name, ok := hardcodedSecret(line); ok {
				add(n, "hardcoded-secret", facts.SeverityHigh, fmt.Sprintf("high-entropy value assigned to %q", name))
			}
		}
		if !isSource {
			continue
		}
		for _, r := range unsafeRules {
			if r.Re.MatchString(line) {
				add(n, r.Name, r.Severity, r.Message)
				break
			}
		}
		if table, ok := sqlConcatenation(line); ok {
			add(n, "sql-concatenation", facts.SeverityHigh, fmt.Sprintf("SQL on table %q built by string concatenation or interpolation", table))
		}
	}
	return out
}

// hardcodedSecret reports an assignment of a high-entropy literal to a
// secret-looking name, returning the name.
func hardcodedSecret(line string) (string, bool) {
	m := assignSecretRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	value := m[2]
	if placeholderRe.MatchString(value) || placeholderRe.MatchString(line) {
		return "", false
	}
	if Entropy(value) < MinSecretEntropy {
		return "", false
	}
	return m[1], true
}

// sqlConcatenation reports a SQL statement literal built from variables.
func sqlConcatenation(line string) (string, bool) {
	if !concatRe.MatchString(line) {
		return "", false
	}
	for _, re := range sqlPatterns {
		m := re.FindStringSubmatch(line)
		if m == nil || isSQLNoise(m[1]) {
			continue
		}
		return m[1], true
	}
	return "", false
}

// isSQLNoise returns true for common SQL keywords that are not table names.
func isSQLNoise(name string) bool {
	switch strings.ToLower(name) {
	case "select", "from", "where", "set", "into", "values", "table",
		"index", "view", "trigger", "procedure", "function",
		"dual", "information_schema", "pg_catalog":
		return true
	}
	return false
}

// Entropy returns the Shannon entropy of s in bits per character.
func Entropy(s string) float64 {
	if s == "" {
		return 0
	}
	counts := make(map[rune]int)
	total := 0
	for _, r := range s {
		counts[r]++
		total++
	}
	var h float64
	for _, c := range counts {
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}

func isConfig(p string) bool {
	base := path.Base(p)
	return strings.HasPrefix(base, ".env") || configExts[path.Ext(base)] && !strings.HasSuffix(base, "-lock.json") && base != "composer.lock"
}

func isExampleFile(p string) bool {
	base := strings.ToLower(path.Base(p))
	return strings.Contains(base, "example") || strings.Contains(base, "sample") || strings.HasSuffix(base, ".template") || strings.HasSuffix(base, ".dist")
}
