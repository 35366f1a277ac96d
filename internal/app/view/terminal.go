/*
Package view projects chat state into a display tree.

This file draws a Tree for the terminal surface with lipgloss. Images cannot be shown
in a terminal, so an image message is drawn as a labeled link line.
*/
package view

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// minTerminalWidth is the narrowest layout Terminal draws.
const minTerminalWidth = 40

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00D7FF"))

	badgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(lipgloss.Color("#5FD75F")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#AF87FF"))

	onlineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5FD75F"))

	authorStyle = lipgloss.NewStyle().
			Bold(true)

	fallbackAuthorStyle = lipgloss.NewStyle().
				Italic(true).
				Foreground(lipgloss.Color("#8A8A8A"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8A8A8A"))

	imageStyle = lipgloss.NewStyle().
			Underline(true).
			Foreground(lipgloss.Color("#5FAFFF"))

	ruleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#444444"))
)

// Terminal draws tree as terminal text no wider than width columns.
func Terminal(tree Tree, width int) string {
	if width < minTerminalWidth {
		width = minTerminalWidth
	}

	rule := ruleStyle.Render(strings.Repeat("─", width))

	sections := []string{
		TerminalHeader(tree.Header, width),
		rule,
		TerminalRoster(tree.Roster),
		rule,
		TerminalLog(tree.Log, width),
	}
	return strings.Join(sections, "\n")
}

// TerminalHeader draws the title bar.
func TerminalHeader(h Header, width int) string {
	title := titleStyle.Render(h.Title)
	badge := badgeStyle.Render(h.Badge)

	gap := width - lipgloss.Width(title) - lipgloss.Width(badge)
	if gap < 1 {
		gap = 1
	}
	return title + strings.Repeat(" ", gap) + badge
}

// TerminalRoster draws the online users panel.
func TerminalRoster(r Roster) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Online Users"))
	b.WriteString("\n")

	if r.Empty() {
		b.WriteString(mutedStyle.Render(r.Placeholder))
		return b.String()
	}

	for i, e := range r.Entries {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(onlineStyle.Render("●"))
		b.WriteString(" ")
		b.WriteString(authorStyle.Render(e.Name))
		b.WriteString(" ")
		b.WriteString(mutedStyle.Render(e.Status))
	}
	return b.String()
}

// TerminalLog draws the message panel. Long text is wrapped to width.
func TerminalLog(l Log, width int) string {
	if l.Empty() {
		return mutedStyle.Render(l.Placeholder) + "\n" + mutedStyle.Render(l.Hint)
	}

	body := lipgloss.NewStyle().Width(width).PaddingLeft(2)

	lines := make([]string, 0, len(l.Entries)*2)
	for _, e := range l.Entries {
		style := authorStyle
		if e.Fallback {
			style = fallbackAuthorStyle
		}
		lines = append(lines, style.Render(e.Author.Name)+" "+mutedStyle.Render(e.Timestamp))

		switch e.Content.Kind {
		case ContentImage:
			lines = append(lines, body.Render("[image] "+imageStyle.Render(e.Content.Src)))
		default:
			lines = append(lines, body.Render(e.Content.Text))
		}
	}
	return strings.Join(lines, "\n")
}
