package output

import (
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/rohankatakam/changeminer/internal/export"
)

// Formatter renders a run summary
type Formatter interface {
	Format(s export.Summary, w io.Writer) error
}

// VerbosityLevel determines output detail
type VerbosityLevel int

const (
	VerbosityQuiet    VerbosityLevel = iota // one-line summary
	VerbosityStandard                       // counts table
	VerbosityVerbose                        // counts, relabels, inconsistencies and outputs
)

// NewFormatter creates appropriate formatter based on level
func NewFormatter(level VerbosityLevel) Formatter {
	switch level {
	case VerbosityQuiet:
		return &QuietFormatter{}
	case VerbosityVerbose:
		return &StandardFormatter{Verbose: true}
	default:
		return &StandardFormatter{}
	}
}

// ParseVerbosity maps the --quiet and --verbose flags to a level; quiet wins
func ParseVerbosity(quiet, verbose bool) VerbosityLevel {
	switch {
	case quiet:
		return VerbosityQuiet
	case verbose:
		return VerbosityVerbose
	default:
		return VerbosityStandard
	}
}

// ConfigureColor enables colours only when w is a terminal and NO_COLOR is unset
func ConfigureColor(w io.Writer) {
	f, ok := w.(*os.File)
	color.NoColor = !ok || !term.IsTerminal(int(f.Fd())) || os.Getenv("NO_COLOR") != ""
}
