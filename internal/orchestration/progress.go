package orchestration

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Glyphs rendered per tracked item, one column per resource.
const (
	glyphUnknown byte = '?'
	glyphPending byte = '.'
	glyphOK      byte = '+'
	glyphError   byte = '!'
)

var (
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
)

type glyphRow []byte

func newGlyphRow(n int) glyphRow {
	row := make(glyphRow, n)
	for i := range row {
		row[i] = glyphUnknown
	}
	return row
}

func (g glyphRow) set(i int, b byte) { g[i] = b }

// Progress renders one live line of convergence glyphs, overwritten in
// place each round. It stays silent on non-terminal output so logs and
// CI runs don't fill up with carriage returns. A nil *Progress is a
// valid no-op receiver.
type Progress struct {
	Out io.Writer
	tty bool
}

// NewProgress returns a Progress writing to out, defaulting to stderr.
func NewProgress(out *os.File) *Progress {
	if out == nil {
		out = os.Stderr
	}
	return &Progress{Out: out, tty: isatty.IsTerminal(out.Fd())}
}

// Render repaints the live line for one polling round.
func (p *Progress) Render(kind string, row glyphRow) {
	if p == nil || !p.tty {
		return
	}
	var b strings.Builder
	for _, g := range row {
		switch g {
		case glyphOK:
			b.WriteString(okStyle.Render(string(g)))
		case glyphError:
			b.WriteString(errStyle.Render(string(g)))
		default:
			b.WriteString(pendingStyle.Render(string(g)))
		}
	}
	fmt.Fprintf(p.Out, "\r%-12s %s", kind, b.String())
}

// Done terminates the live line.
func (p *Progress) Done() {
	if p == nil || !p.tty {
		return
	}
	fmt.Fprintln(p.Out)
}
