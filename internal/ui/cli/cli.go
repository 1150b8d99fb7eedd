// Package cli renders the tables and messages printed by the eegmodels command-line tool.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("13")).
			Foreground(lipgloss.Color("0")).
			Bold(true).
			Padding(0, 2)
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	CellStyle   = lipgloss.NewStyle().Padding(0, 1)
	BorderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	ErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

// Title renders s as a highlighted title.
func Title(s string) string {
	return TitleStyle.Render(s)
}

// Table renders rows under header with a rounded border.
// Rows shorter than header are padded with empty cells.
func Table(header []string, rows [][]string) string {
	padded := make([][]string, len(rows))
	for ii, row := range rows {
		if len(row) < len(header) {
			row = append(row, make([]string, len(header)-len(row))...)
		}
		padded[ii] = row
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(BorderStyle).
		Headers(header...).
		Rows(padded...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return HeaderStyle
			}
			return CellStyle
		}).
		String()
}

// TerminalWidth returns the width of the terminal of fd, or 0 if fd is not a terminal.
func TerminalWidth(fd int) int {
	if !term.IsTerminal(fd) {
		return 0
	}
	width, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return width
}

// Indent returns the margin needed to center a block of blockWidth columns in a terminal of terminalWidth
// columns. It is never negative.
func Indent(terminalWidth, blockWidth int) int {
	return max((terminalWidth-blockWidth)/2, 0)
}

// PrintCentered prints block to w, each line indented so the block is centered in a terminal of
// terminalWidth columns. A terminalWidth of 0 prints the block as is.
func PrintCentered(w io.Writer, terminalWidth int, block string) error {
	lines := strings.Split(strings.TrimRight(block, "\n"), "\n")
	blockWidth := 0
	for _, line := range lines {
		blockWidth = max(blockWidth, lipgloss.Width(line))
	}
	margin := strings.Repeat(" ", Indent(terminalWidth, blockWidth))
	for _, line := range lines {
		if len(line) == 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "%s%s\n", margin, line); err != nil {
			return err
		}
	}
	return nil
}
