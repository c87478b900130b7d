package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/Iron-Ham/picrust2-runner/internal/event"
	"github.com/Iron-Ham/picrust2-runner/internal/util"
)

// progress renders pipeline events as one line each. Styling and
// truncation to the terminal width apply only when w is a terminal.
type progress struct {
	w      io.Writer
	styled bool
	width  int
}

func newProgress(w io.Writer) *progress {
	p := &progress{w: w}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.styled = true
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			p.width = width
		}
	}
	return p
}

func (p *progress) render(style lipgloss.Style, s string) string {
	if !p.styled {
		return s
	}
	return style.Render(s)
}

func (p *progress) println(line string) {
	if p.width > 0 {
		line = util.TruncateANSI(line, p.width)
	}
	fmt.Fprintln(p.w, line)
}

// Handle is an event.Handler.
func (p *progress) Handle(e event.Event) {
	switch ev := e.(type) {
	case event.RunStartedEvent:
		p.println(p.render(titleStyle, "Running "+ev.Method+" pipeline") +
			p.render(mutedStyle, fmt.Sprintf(" (%d stages, run %s)", ev.Stages, shortID(ev.RunID))))

	case event.StageStartedEvent:
		counter := fmt.Sprintf("[%d/%d]", ev.Index, ev.Total)
		if p.styled {
			counter = counterStyle.Render(counter)
		}
		p.println(counter + " " + p.render(stageStyle, ev.Stage) + " " + p.render(mutedStyle, ev.Program))

	case event.StageCompletedEvent:
		if ev.Success {
			p.println(p.render(successStyle, "  ✓ ") + ev.Stage + p.render(mutedStyle, " "+formatDuration(ev.Duration)))
		} else {
			p.println(p.render(errorStyle, "  ✗ ") + ev.Stage + p.render(mutedStyle, fmt.Sprintf(" exit %d", ev.ExitCode)))
		}

	case event.RunCompletedEvent:
		if ev.Success {
			p.println(p.render(successStyle, "Done") + p.render(mutedStyle, " in "+formatDuration(ev.Duration)))
		} else {
			p.println(p.render(errorStyle, "Failed") + p.render(mutedStyle, " after "+formatDuration(ev.Duration)))
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
