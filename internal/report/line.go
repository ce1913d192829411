package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"heavy-image-compressor/internal/compressor"
)

// LabelWidth is the column the size is aligned to.
const LabelWidth = 38

// Tone selects the colour of a status label.
type Tone int

const (
	ToneNeutral Tone = iota
	ToneSuccess
	ToneWarning
	ToneAlert
)

// Line is what gets shown for one processed file.
type Line struct {
	Path   string // relative to the scanned folder
	Label  string
	SizeMB float64
	Tone   Tone
}

// NewLine maps a result to its display record.
func NewLine(root string, res compressor.CompressionResult) Line {
	rel, err := filepath.Rel(root, res.Task.Path)
	if err != nil {
		rel = res.Task.Path
	}
	return Line{
		Path:   rel,
		Label:  res.Label,
		SizeMB: float64(res.FinalSize) / compressor.MiB,
		Tone:   toneFor(res.Status),
	}
}

func toneFor(s compressor.Status) Tone {
	switch s {
	case compressor.StatusCompressed:
		return ToneSuccess
	case compressor.StatusUnfit, compressor.StatusError:
		return ToneAlert
	case compressor.StatusUnsupported:
		return ToneWarning
	default:
		return ToneNeutral
	}
}

// Text returns the line without styling.
func (l Line) Text() string {
	return fmt.Sprintf("%s → %s%s MB", l.Path, padLabel(l.Label), sizeField(l.SizeMB))
}

func padLabel(label string) string {
	return label + strings.Repeat(" ", max(0, LabelWidth-utf8.RuneCountInString(label)))
}

func sizeField(mb float64) string {
	return fmt.Sprintf("%6.2f", mb)
}

// Styles holds the lipgloss styles of one output.
type Styles struct {
	Header  lipgloss.Style
	Done    lipgloss.Style
	Fatal   lipgloss.Style
	Neutral lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Alert   lipgloss.Style
}

// NewStyles builds the styles for a renderer, so colours are dropped when
// its output is not a terminal.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Header: r.NewStyle().Bold(true),
		Done:   r.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "34", Dark: "10"}),
		Fatal:  r.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "160", Dark: "9"}),
		Neutral: r.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "244", Dark: "245"}),
		Success: r.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "34", Dark: "10"}),
		Warning: r.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "136", Dark: "11"}),
		Alert: r.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "160", Dark: "9"}),
	}
}

func (s Styles) tone(t Tone) lipgloss.Style {
	switch t {
	case ToneSuccess:
		return s.Success
	case ToneWarning:
		return s.Warning
	case ToneAlert:
		return s.Alert
	default:
		return s.Neutral
	}
}

// Render formats a line with the label coloured by its tone.
func (s Styles) Render(l Line) string {
	pad := strings.Repeat(" ", max(0, LabelWidth-utf8.RuneCountInString(l.Label)))
	return fmt.Sprintf("%s → %s%s%s MB", l.Path, s.tone(l.Tone).Render(l.Label), pad, sizeField(l.SizeMB))
}

// Render formats a line for standard output.
func Render(l Line) string {
	return NewStyles(lipgloss.DefaultRenderer()).Render(l)
}

// Header is the first line of a run.
func Header(root string, total int) string {
	return fmt.Sprintf("Scanning %s (%d images)", root, total)
}

// DoneMessage is printed once every file has been handled.
const DoneMessage = "✨ All done!"
