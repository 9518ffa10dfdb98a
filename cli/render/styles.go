package render

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	passStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	failStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// StatusLine formats a one-line verdict for human output, e.g.
//
//	PASSED  household-registration (4.21s)
//	FAILED  close-case (120.00s): Test timed out after 120 seconds
//
// Styling is dropped under --no-color.
func (r *Renderer) StatusLine(passed bool, name string, durationSeconds float64, errMsg string) string {
	verdict := "FAILED"
	style := failStyle
	if passed {
		verdict = "PASSED"
		style = passStyle
	}

	detail := fmt.Sprintf("(%.2fs)", durationSeconds)
	if errMsg != "" {
		detail += ": " + errMsg
	}

	if r.noColor {
		return fmt.Sprintf("%s  %s %s", verdict, name, detail)
	}
	return fmt.Sprintf("%s  %s %s", style.Render(verdict), name, detailStyle.Render(detail))
}

// PrintStatusLine writes a verdict line to the renderer's output.
func (r *Renderer) PrintStatusLine(passed bool, name string, durationSeconds float64, errMsg string) {
	fmt.Fprintln(r.out, r.StatusLine(passed, name, durationSeconds, errMsg))
}
