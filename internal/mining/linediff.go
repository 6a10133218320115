package mining

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/rohankatakam/changeminer/internal/models"
)

// LineDiffer counts changed lines between two versions of a method body
type LineDiffer struct {
	dmp             *diffmatchpatch.DiffMatchPatch
	commentPrefixes []string
}

// NewLineDiffer creates a differ that ignores lines starting with any of commentPrefixes
func NewLineDiffer(commentPrefixes []string) *LineDiffer {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	return &LineDiffer{dmp: dmp, commentPrefixes: commentPrefixes}
}

// ChangedLines returns the lines of before that are deleted or replaced in
// after, skipping comment lines and lines of at most one character. Pure
// insertions count nothing.
func (d *LineDiffer) ChangedLines(before, after []string) int {
	if equalStrings(before, after) {
		return 0
	}

	enc := newLineEncoder()
	src := enc.encode(before)
	dst := enc.encode(after)

	changed := 0
	for _, diff := range d.dmp.DiffMainRunes(src, dst, false) {
		if diff.Type != diffmatchpatch.DiffDelete {
			continue
		}
		for _, r := range diff.Text {
			if d.counts(enc.line(r)) {
				changed++
			}
		}
	}
	return changed
}

func (d *LineDiffer) counts(line string) bool {
	if len(line) <= 1 {
		return false
	}
	for _, p := range d.commentPrefixes {
		if p != "" && strings.HasPrefix(line, p) {
			return false
		}
	}
	return true
}

// lineEncoder maps each distinct line to one rune so line diffs can run on
// the character differ.
type lineEncoder struct {
	lines []string
	index map[string]rune
}

func newLineEncoder() *lineEncoder {
	return &lineEncoder{index: make(map[string]rune)}
}

func (e *lineEncoder) encode(lines []string) []rune {
	out := make([]rune, 0, len(lines))
	for _, l := range lines {
		r, ok := e.index[l]
		if !ok {
			r = lineRune(len(e.lines))
			e.index[l] = r
			e.lines = append(e.lines, l)
		}
		out = append(out, r)
	}
	return out
}

func (e *lineEncoder) line(r rune) string {
	i := int(r) - 1
	if r >= surrogateMin {
		i -= surrogateMax - surrogateMin + 1
	}
	if i < 0 || i >= len(e.lines) {
		return ""
	}
	return strings.TrimSpace(e.lines[i])
}

const (
	surrogateMin = 0xD800
	surrogateMax = 0xDFFF
)

// lineRune skips NUL and the surrogate block, which are not valid in strings
func lineRune(i int) rune {
	r := rune(i + 1)
	if r >= surrogateMin {
		r += surrogateMax - surrogateMin + 1
	}
	return r
}

// methodBody returns the trimmed source lines after the declaration line of
// desc, starting at the first line that opens a block. StartLine and EndLine
// are 1-based and inclusive, so the slice begins at index StartLine; out of
// range bounds are clamped.
func methodBody(source string, desc models.MethodDescriptor) []string {
	if source == "" {
		return nil
	}
	all := strings.Split(source, "\n")

	start := desc.StartLine
	if start < 0 {
		start = 0
	}
	end := desc.EndLine
	if end > len(all) {
		end = len(all)
	}
	if start >= end {
		return nil
	}

	lines := make([]string, 0, end-start)
	for _, l := range all[start:end] {
		lines = append(lines, strings.Trim(l, " \t\r\n"))
	}
	for i, l := range lines {
		if strings.Contains(l, "{") {
			return lines[i:]
		}
	}
	return lines
}

// bodyText is the text compared at body level: the signature followed by
// every non-empty body line.
func bodyText(signature string, body []string) string {
	var sb strings.Builder
	sb.WriteString(signature)
	for _, l := range body {
		if l == "" {
			continue
		}
		sb.WriteString("\n")
		sb.WriteString(l)
	}
	return sb.String()
}
