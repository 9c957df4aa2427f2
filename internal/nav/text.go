package nav

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/salmonumbrella/wikinav/internal/toc"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63"))

	activeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	groupStyle = lipgloss.NewStyle().
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// RenderText renders forest as an indented terminal tree.
func RenderText(forest []*toc.Entry, current string) string {
	var sb strings.Builder
	renderTextEntries(&sb, forest, current, 0)
	return sb.String()
}

func renderTextEntries(sb *strings.Builder, entries []*toc.Entry, current string, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, e := range entries {
		active := e.Link != "" && e.Link == current
		label := PlainLabel(e.Label)

		var line string
		switch {
		case e.IsPlaceholder():
			line = dimStyle.Render("┆")
		case e.IsLeaf() && active:
			line = activeStyle.Render("● " + label)
		case e.IsLeaf():
			line = "• " + label
		case e.IsCollapsed() && e.Link != "":
			line = dimStyle.Render("▸ " + label + Ellipsis)
		case active:
			line = activeStyle.Render("▾ " + label)
		default:
			line = groupStyle.Render("▾ " + label)
		}

		sb.WriteString(indent)
		sb.WriteString(line)
		sb.WriteString("\n")

		if len(e.Children) > 0 {
			renderTextEntries(sb, e.Children, current, depth+1)
		}
	}
}
