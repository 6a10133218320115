package git

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rohankatakam/changeminer/internal/models"
)

// FileDiff is one file's section of a commit diff
type FileDiff struct {
	OldPath string // "" for added files
	NewPath string // "" for deleted files
	Kind    models.ModificationKind
	Binary  bool
	Hunks   []Hunk
}

// Hunk is one @@ block with its body lines, prefixes included
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Header   string
	Lines    []string
}

// Regex patterns for parsing git diffs
var (
	// Match: diff --git a/path/to/file.cs b/path/to/file.cs
	diffHeaderRegex = regexp.MustCompile(`^diff --git a/(.+?) b/(.+)$`)

	// Match: @@ -42,10 +42,15 @@ method name
	hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)
)

// Path returns the path identifying the file after the change
func (f *FileDiff) Path() string {
	if f.Kind == models.ModificationDelete {
		return f.OldPath
	}
	return f.NewPath
}

// Patch renders the hunks without file headers
func (f *FileDiff) Patch() string {
	var sb strings.Builder
	for _, h := range f.Hunks {
		sb.WriteString(h.Header)
		sb.WriteByte('\n')
		for _, line := range h.Lines {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// AddedLines returns the new-side line numbers of "+" lines
func (f *FileDiff) AddedLines() []int {
	var lines []int
	for _, h := range f.Hunks {
		n := h.NewStart
		for _, line := range h.Lines {
			switch prefix(line) {
			case '+':
				lines = append(lines, n)
				n++
			case ' ':
				n++
			}
		}
	}
	return lines
}

// DeletedLines returns the old-side line numbers of "-" lines
func (f *FileDiff) DeletedLines() []int {
	var lines []int
	for _, h := range f.Hunks {
		n := h.OldStart
		for _, line := range h.Lines {
			switch prefix(line) {
			case '-':
				lines = append(lines, n)
				n++
			case ' ':
				n++
			}
		}
	}
	return lines
}

// prefix classifies a hunk body line; blank lines are context
func prefix(line string) byte {
	if line == "" {
		return ' '
	}
	return line[0]
}

// ParseDiff splits a multi-file unified diff (git show -M output) into file
// sections in the order they appear
func ParseDiff(diff string) []*FileDiff {
	var files []*FileDiff
	var cur *FileDiff
	var hunk *Hunk
	oldLeft, newLeft := 0, 0

	flush := func() {
		if hunk != nil {
			cur.Hunks = append(cur.Hunks, *hunk)
			hunk = nil
		}
	}

	lines := strings.Split(diff, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	for _, line := range lines {
		// Hunk bodies are bounded by their counts, so "--- x" inside a
		// hunk is a deleted line, not a header
		if hunk != nil && (oldLeft > 0 || newLeft > 0) {
			hunk.Lines = append(hunk.Lines, line)
			switch prefix(line) {
			case ' ':
				oldLeft--
				newLeft--
			case '-':
				oldLeft--
			case '+':
				newLeft--
			}
			continue
		}
		if hunk != nil && strings.HasPrefix(line, `\`) {
			hunk.Lines = append(hunk.Lines, line)
			continue
		}

		if m := diffHeaderRegex.FindStringSubmatch(line); m != nil {
			if cur != nil {
				flush()
			}
			cur = &FileDiff{OldPath: m[1], NewPath: m[2], Kind: models.ModificationModify}
			files = append(files, cur)
			continue
		}
		if cur == nil {
			continue
		}

		if m := hunkHeaderRegex.FindStringSubmatch(line); m != nil {
			flush()
			hunk = &Hunk{
				OldStart: atoi(m[1]),
				OldCount: countOrOne(m[2]),
				NewStart: atoi(m[3]),
				NewCount: countOrOne(m[4]),
				Header:   line,
			}
			oldLeft, newLeft = hunk.OldCount, hunk.NewCount
			continue
		}

		switch {
		case strings.HasPrefix(line, "new file mode"):
			cur.Kind = models.ModificationAdd
			cur.OldPath = ""
		case strings.HasPrefix(line, "deleted file mode"):
			cur.Kind = models.ModificationDelete
			cur.NewPath = ""
		case strings.HasPrefix(line, "rename from "):
			cur.Kind = models.ModificationRename
			cur.OldPath = strings.TrimPrefix(line, "rename from ")
		case strings.HasPrefix(line, "rename to "):
			cur.NewPath = strings.TrimPrefix(line, "rename to ")
		case strings.HasPrefix(line, "--- a/"):
			cur.OldPath = strings.TrimPrefix(line, "--- a/")
		case strings.HasPrefix(line, "+++ b/"):
			cur.NewPath = strings.TrimPrefix(line, "+++ b/")
		case strings.HasPrefix(line, "Binary files "), line == "GIT binary patch":
			cur.Binary = true
		}
	}
	if cur != nil {
		flush()
	}
	return files
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func countOrOne(s string) int {
	if s == "" {
		return 1
	}
	return atoi(s)
}
