package docs

import (
	"regexp"
	"strings"
)

// line is one markdown source line annotated with its structural context.
type line struct {
	Num     int    // 1-based
	Text    string // raw text
	Heading string // text of the nearest preceding heading
	InFence bool
	Fence   int // index into document.Fences when InFence
}

// fence is a fenced code block.
type fence struct {
	Lang      string
	Heading   string
	StartLine int
	Lines     []string
}

// document is a parsed markdown file.
type document struct {
	Lines  []line
	Fences []fence
}

var headingRe = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*\s*$`)

// parseMarkdown splits content into annotated lines and fenced blocks.
func parseMarkdown(content string) document {
	var doc document
	heading := ""
	inFence := false
	marker := ""

	for i, text := range strings.Split(content, "\n") {
		text = strings.TrimRight(text, "\r")
		trimmed := strings.TrimSpace(text)

		if !inFence && (strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")) {
			inFence = true
			marker = trimmed[:3]
			doc.Fences = append(doc.Fences, fence{
				Lang:      strings.ToLower(strings.TrimSpace(trimmed[3:])),
				Heading:   heading,
				StartLine: i + 1,
			})
			continue
		}
		if inFence {
			if strings.HasPrefix(trimmed, marker) {
				inFence = false
				continue
			}
			idx := len(doc.Fences) - 1
			doc.Fences[idx].Lines = append(doc.Fences[idx].Lines, text)
			doc.Lines = append(doc.Lines, line{Num: i + 1, Text: text, Heading: heading, InFence: true, Fence: idx})
			continue
		}

		if m := headingRe.FindStringSubmatch(trimmed); m != nil {
			heading = m[2]
		}
		doc.Lines = append(doc.Lines, line{Num: i + 1, Text: text, Heading: heading})
	}
	return doc
}

// extractSection returns the body of the first section whose heading contains
// any of the keywords, up to the next heading of the same or higher level.
func extractSection(content string, keywords ...string) string {
	lines := strings.Split(content, "\n")
	start, level := -1, 0
	inFence := false

	for i, l := range lines {
		trimmed := strings.TrimSpace(l)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		m := headingRe.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		if start >= 0 {
			if len(m[1]) <= level {
				return strings.TrimSpace(strings.Join(lines[start:i], "\n"))
			}
			continue
		}
		title := strings.ToLower(m[2])
		for _, kw := range keywords {
			if strings.Contains(title, kw) {
				start, level = i+1, len(m[1])
				break
			}
		}
	}
	if start < 0 {
		return ""
	}
	return strings.TrimSpace(strings.Join(lines[start:], "\n"))
}

var listItemRe = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+(.+)$`)

// extractListItems returns the text of every bullet or numbered list item.
func extractListItems(text string) []string {
	var items []string
	for _, l := range strings.Split(text, "\n") {
		if m := listItemRe.FindStringSubmatch(l); m != nil {
			items = append(items, strings.TrimSpace(m[1]))
		}
	}
	return items
}

// firstParagraph returns the first non-heading, non-list paragraph of text.
func firstParagraph(text string) string {
	var para []string
	for _, l := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(l)
		if trimmed == "" {
			if len(para) > 0 {
				break
			}
			continue
		}
		if strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "```") {
			if len(para) > 0 {
				break
			}
			continue
		}
		para = append(para, trimmed)
	}
	return strings.Join(para, " ")
}

// sentences splits a prose line into sentences at terminal punctuation.
func sentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		if i+1 < len(text) && text[i+1] != ' ' {
			continue // version numbers, file extensions
		}
		if s := strings.TrimSpace(text[start : i+1]); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

var (
	inlineLinkRe = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	emphasisRe   = regexp.MustCompile(`[*_]{1,3}([^*_]+)[*_]{1,3}`)
)

// plainText strips list markers, heading markers, links and emphasis.
func plainText(text string) string {
	text = strings.TrimSpace(text)
	if m := listItemRe.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	text = strings.TrimLeft(text, "#> ")
	text = inlineLinkRe.ReplaceAllString(text, "$1")
	text = emphasisRe.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}
