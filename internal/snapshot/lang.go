package snapshot

import (
	"bytes"
	"path"
	"strings"
)

var languageByExt = map[string]string{
	".py":    "Python",
	".js":    "JavaScript",
	".jsx":   "JavaScript",
	".mjs":   "JavaScript",
	".cjs":   "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript",
	".java":  "Java",
	".cs":    "C#",
	".go":    "Go",
	".rb":    "Ruby",
	".php":   "PHP",
	".rs":    "Rust",
	".cpp":   "C++",
	".cc":    "C++",
	".hpp":   "C++",
	".c":     "C",
	".h":     "C/C++",
	".sh":    "Shell",
	".bash":  "Shell",
	".sql":   "SQL",
	".kt":    "Kotlin",
	".swift": "Swift",
	".m":     "Objective-C",
	".scala": "Scala",
}

// Language returns the source language of a file by extension, or "" if it is not source code.
func Language(p string) string {
	return languageByExt[strings.ToLower(path.Ext(p))]
}

// IsTestFile reports whether the file follows a test naming convention.
func IsTestFile(p string) bool {
	base := strings.ToLower(path.Base(p))
	switch {
	case strings.HasSuffix(base, "_test.go"),
		strings.HasPrefix(base, "test_") && strings.HasSuffix(base, ".py"),
		strings.HasSuffix(base, "_test.py"),
		strings.Contains(base, ".test."),
		strings.Contains(base, ".spec."),
		strings.HasSuffix(base, "_spec.rb"),
		strings.HasSuffix(base, "test.java"),
		strings.HasSuffix(base, "tests.cs"):
		return true
	}
	for _, seg := range strings.Split(strings.ToLower(p), "/") {
		if seg == "test" || seg == "tests" || seg == "__tests__" || seg == "spec" {
			return true
		}
	}
	return false
}

// IsBinary reports whether content looks binary (contains a NUL in the first 8 KiB).
func IsBinary(content []byte) bool {
	head := content
	if len(head) > 8192 {
		head = head[:8192]
	}
	return bytes.IndexByte(head, 0) >= 0
}
