package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Reporter shows the progress of a run.
type Reporter interface {
	// Start is called once the number of candidate images is known.
	Start(root string, total int)
	// Report shows the outcome of one file.
	Report(line Line)
	// Finish shows the closing summary and releases the output.
	Finish(summary string) error
}

// PlainReporter writes one line per file, without a progress bar.
type PlainReporter struct {
	out    io.Writer
	styles Styles
}

// NewPlainReporter returns a PlainReporter writing to out.
func NewPlainReporter(out io.Writer) *PlainReporter {
	return &PlainReporter{
		out:    out,
		styles: NewStyles(lipgloss.NewRenderer(out)),
	}
}

func (r *PlainReporter) Start(root string, total int) {
	fmt.Fprintln(r.out, r.styles.Header.Render(Header(root, total)))
}

func (r *PlainReporter) Report(line Line) {
	fmt.Fprintln(r.out, r.styles.Render(line))
}

func (r *PlainReporter) Finish(summary string) error {
	_, err := fmt.Fprintf(r.out, "\n%s\n%s\n", r.styles.Done.Render(DoneMessage), summary)
	return err
}
