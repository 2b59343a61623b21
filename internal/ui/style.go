package ui

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
)

// Sprint color functions for building styled strings.
var (
	Bold        = color.New(color.Bold).SprintFunc()
	Dim         = color.New(color.Faint).SprintFunc()
	Cyan        = color.New(color.FgCyan).SprintFunc()
	Green       = color.New(color.FgGreen).SprintFunc()
	Red         = color.New(color.FgRed).SprintFunc()
	Yellow      = color.New(color.FgYellow).SprintFunc()
	BoldCyan    = color.New(color.Bold, color.FgCyan).SprintFunc()
	BoldGreen   = color.New(color.Bold, color.FgGreen).SprintFunc()
	BoldRed     = color.New(color.Bold, color.FgRed).SprintFunc()
	BoldYellow  = color.New(color.Bold, color.FgYellow).SprintFunc()
	BoldMagenta = color.New(color.Bold, color.FgMagenta).SprintFunc()
	BoldWhite   = color.New(color.Bold, color.FgWhite).SprintFunc()
)

// Activity states as shown in status tables.
const (
	StateDone       = "done"
	StateInProgress = "in-progress"
	StatePlanned    = "planned"
	StateFailed     = "failed"
)

// PrintBanner renders the colored loomplan banner to w.
func PrintBanner(w io.Writer) {
	frame := color.New(color.FgCyan)
	bars := color.New(color.FgYellow)
	brand := color.New(color.Bold, color.FgMagenta)
	tag := color.New(color.Faint)

	fmt.Fprintln(w)
	frame.Fprintln(w, "   +--------------------------+")
	bars.Fprintln(w, "   |  ====                    |")
	bars.Fprintln(w, "   |      ========            |")
	brand.Fprintln(w, "   |  L O O M P L A N         |")
	bars.Fprintln(w, "   |            ==========    |")
	frame.Fprintln(w, "   +--------------------------+")
	tag.Fprintln(w, "   Critical path and resource scheduling")
	fmt.Fprintln(w)
}

// resourceColors is a palette of distinct bold colors for differentiating resources.
var resourceColors = []func(a ...interface{}) string{
	BoldMagenta,
	BoldCyan,
	BoldYellow,
	BoldGreen,
	color.New(color.Bold, color.FgHiBlue).SprintFunc(),
	color.New(color.Bold, color.FgHiRed).SprintFunc(),
}

// ResourceLabel returns a colored [name] label. Each resource id keeps the
// same color across runs.
func ResourceLabel(id int, name string) string {
	if name == "" {
		name = "r" + strconv.Itoa(id)
	}
	c := resourceColors[uint(id)%uint(len(resourceColors))]
	return Dim("[") + c(name) + Dim("]")
}

// StatusIcon returns a colored status icon for compact table display.
func StatusIcon(state string) string {
	switch state {
	case StateDone:
		return Green("✓")
	case StateInProgress:
		return Cyan("●")
	case StateFailed:
		return Red("✗")
	default:
		return Dim("◌")
	}
}

// CriticalMark flags critical activities in tables.
func CriticalMark(critical bool) string {
	if critical {
		return BoldYellow("⚡")
	}
	return " "
}
