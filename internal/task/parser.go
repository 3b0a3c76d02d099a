package task

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/nightshift-labs/nightshift/internal/assist"
	"github.com/nightshift-labs/nightshift/internal/logging"
)

var (
	// checklistRe matches one checklist line: leading indent, "- [ ]" or
	// "- [x]" marker, then the task text.
	checklistRe = regexp.MustCompile(`^([ \t]*)- \[([ xX])\]\s+(.+)$`)

	// specLinkRe matches a markdown link to a markdown file.
	specLinkRe = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]+(?i:\.md))\)`)
)

// rewritePrompt asks the assistant to normalize a raw checklist. The output
// is parsed with the same checklist syntax as the fallback path, so a sloppy
// reply degrades cleanly instead of corrupting the task list.
const rewritePrompt = `You are given the raw contents of a markdown task checklist.

Rewrite it under these rules:
- Keep only unchecked items ("- [ ]"). Drop checked ("- [x]") items entirely.
- Rephrase each kept item as one concise imperative instruction.
- Preserve any markdown link of the form [text](path.md) verbatim.
- Keep the hierarchy: indent subtask lines by exactly two spaces per level.
- Output one "- [ ] <text>" line per item and nothing else. No prose, no fences.

Checklist:
%s`

// Parser turns checklist documents into ordered tasks. The primary strategy
// asks the assistant to rephrase items into imperative form; the fallback
// reads the checklist syntax directly and never fails.
type Parser struct {
	assist assist.Client
	logger *logging.Logger
}

// NewParser creates a Parser. A nil client disables the rewrite strategy.
func NewParser(client assist.Client, logger *logging.Logger) *Parser {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Parser{assist: client, logger: logger}
}

// Parse extracts the unchecked tasks from doc. It never returns an error: a
// document with no usable items yields an empty slice, and any assistant
// trouble falls back to the deterministic checklist syntax.
func (p *Parser) Parse(ctx context.Context, doc string) []Task {
	if strings.TrimSpace(doc) == "" {
		return nil
	}
	want := countUnchecked(doc)
	if want == 0 {
		return nil
	}
	if tasks := p.parseWithAssist(ctx, doc, want); tasks != nil {
		return tasks
	}
	return parseChecklist(doc)
}

// parseWithAssist runs the rewrite strategy. A nil return means the caller
// should use the fallback. The rewrite is only trusted when it yields exactly
// as many tasks as the document has unchecked lines; an assistant that
// invents or drops work is ignored.
func (p *Parser) parseWithAssist(ctx context.Context, doc string, want int) []Task {
	if p.assist == nil || !p.assist.Available() {
		return nil
	}
	out, err := p.assist.Complete(ctx, fmt.Sprintf(rewritePrompt, doc))
	if err != nil {
		p.logger.Warn("task rewrite unavailable, reading checklist syntax directly", "error", err.Error())
		return nil
	}
	tasks := parseChecklist(assist.StripFences(out))
	if len(tasks) != want {
		p.logger.Warn("task rewrite changed the task count, reading checklist syntax directly",
			"expected", want, "got", len(tasks))
		return nil
	}
	return tasks
}

// parseChecklist reads `- [ ]` lines from doc, skipping checked items and
// items whose text is blank.
func parseChecklist(doc string) []Task {
	var tasks []Task
	for _, line := range strings.Split(doc, "\n") {
		m := checklistRe.FindStringSubmatch(line)
		if m == nil || m[2] != " " {
			continue
		}
		title, link := extractSpecLink(strings.TrimSpace(m[3]))
		if title == "" {
			continue
		}
		tasks = append(tasks, Task{
			Title:       title,
			SpecLink:    link,
			Depth:       indentDepth(m[1]),
			SourceOrder: len(tasks),
		})
	}
	return tasks
}

// countUnchecked counts the lines parseChecklist would accept.
func countUnchecked(doc string) int {
	return len(parseChecklist(doc))
}

// indentDepth maps leading whitespace to a nesting level. Checklists indent
// two spaces per level; a tab counts as one level.
func indentDepth(indent string) int {
	width := 0
	for _, r := range indent {
		if r == '\t' {
			width += 2
		} else {
			width++
		}
	}
	return width / 2
}

// extractSpecLink pulls the first markdown link to a .md file out of title,
// returning the title with the link collapsed to its display text, plus the
// link target. Interior whitespace is normalized so collapsing an empty link
// text cannot leave doubled spaces.
func extractSpecLink(title string) (string, string) {
	m := specLinkRe.FindStringSubmatchIndex(title)
	if m == nil {
		return title, ""
	}
	text := title[m[2]:m[3]]
	link := title[m[4]:m[5]]
	collapsed := title[:m[0]] + text + title[m[1]:]
	return strings.Join(strings.Fields(collapsed), " "), link
}
