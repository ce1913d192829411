package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const maxBarWidth = 60

type resultMsg struct{ line Line }

type finishMsg struct{ summary string }

// printedMsg reports that the last batch of lines reached the renderer.
type printedMsg struct{}

type tickMsg time.Time

// progressModel is the bubbletea model behind ProgressReporter.
type progressModel struct {
	bar     progress.Model
	styles  Styles
	total   int
	done    int
	start   time.Time
	elapsed time.Duration

	// Lines waiting to be printed above the bar. Commands run on their own
	// goroutines, so at most one print is in flight to keep lines in order.
	pending  []string
	printing bool

	summary   string
	finishing bool
	// finished hides the bar so the last frame does not stay on screen.
	finished bool
}

func newProgressModel(styles Styles, total int) progressModel {
	return progressModel{
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		styles: styles,
		total:  total,
		start:  time.Now(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func printed() tea.Msg {
	return printedMsg{}
}

func (m progressModel) Init() tea.Cmd {
	return tick()
}

// flush prints the pending lines, or quits once everything is out and the
// run is over.
func (m progressModel) flush() (progressModel, tea.Cmd) {
	if m.printing {
		return m, nil
	}
	if len(m.pending) > 0 {
		lines := strings.Join(m.pending, "\n")
		m.pending = nil
		m.printing = true
		return m, tea.Sequence(tea.Println(lines), printed)
	}
	if m.finishing && !m.finished {
		m.finished = true
		return m, tea.Sequence(
			tea.Println("\n"+m.styles.Done.Render(DoneMessage)+"\n"+m.summary),
			tea.Quit,
		)
	}
	return m, nil
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case resultMsg:
		m.done++
		m.elapsed = time.Since(m.start)
		m.pending = append(m.pending, m.styles.Render(msg.line))
		return m.flush()

	case printedMsg:
		m.printing = false
		return m.flush()

	case finishMsg:
		m.finishing = true
		m.summary = msg.summary
		return m.flush()

	case tickMsg:
		if m.finished {
			return m, nil
		}
		m.elapsed = time.Since(m.start)
		return m, tick()

	case tea.WindowSizeMsg:
		m.bar.Width = min(maxBarWidth, max(10, msg.Width-30))
		return m, nil
	}
	return m, nil
}

func (m progressModel) percent() float64 {
	if m.total == 0 {
		return 1
	}
	return float64(m.done) / float64(m.total)
}

func (m progressModel) View() string {
	if m.finished {
		return ""
	}
	return fmt.Sprintf("%s  %d/%d  %s\n",
		m.bar.ViewAs(m.percent()), m.done, m.total, m.elapsed.Round(time.Second))
}

// ProgressReporter prints one line per file above a progress bar.
// It is meant for terminals; use PlainReporter otherwise.
type ProgressReporter struct {
	ctx     context.Context
	out     io.Writer
	styles  Styles
	program *tea.Program
	done    chan error
}

// NewProgressReporter returns a ProgressReporter drawing on out. Cancelling
// ctx stops the program and restores the terminal.
func NewProgressReporter(ctx context.Context, out io.Writer) *ProgressReporter {
	return &ProgressReporter{
		ctx:    ctx,
		out:    out,
		styles: NewStyles(lipgloss.NewRenderer(out)),
	}
}

func (r *ProgressReporter) Start(root string, total int) {
	fmt.Fprintln(r.out, r.styles.Header.Render(Header(root, total)))

	r.program = tea.NewProgram(newProgressModel(r.styles, total),
		tea.WithContext(r.ctx),
		tea.WithOutput(r.out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	r.done = make(chan error, 1)
	go func() {
		_, err := r.program.Run()
		r.done <- err
	}()
}

func (r *ProgressReporter) Report(line Line) {
	if r.program == nil {
		return
	}
	r.program.Send(resultMsg{line: line})
}

func (r *ProgressReporter) Finish(summary string) error {
	if r.program == nil {
		_, err := fmt.Fprintf(r.out, "\n%s\n%s\n", r.styles.Done.Render(DoneMessage), summary)
		return err
	}

	r.program.Send(finishMsg{summary: summary})
	err := <-r.done
	r.program = nil
	if errors.Is(err, tea.ErrProgramKilled) {
		// Interrupted: the terminal is restored, the summary is dropped.
		return nil
	}
	return err
}
