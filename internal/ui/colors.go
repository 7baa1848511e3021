package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var styles = newPalette(paletteColors{
	title:    "#1877F2",
	ok:       "#04B575",
	err:      "#E5484D",
	updating: "#FFA500",
	paused:   "#F76B15",
	help:     "#626262",
})

type paletteColors struct {
	title, ok, err, updating, paused, help string
}

// palette holds the dashboard's named styles.
//
// updating and paused render the two pack indicators; warn is an alias of updating used for in-progress text.
type palette struct {
	title  lipgloss.Style
	ok     lipgloss.Style
	err    lipgloss.Style
	warn   lipgloss.Style
	paused lipgloss.Style
	help   lipgloss.Style
}

func newPalette(c paletteColors) *palette {
	return &palette{
		title:  bold(c.title).MarginBottom(1),
		ok:     bold(c.ok),
		err:    bold(c.err),
		warn:   fg(c.updating),
		paused: bold(c.paused),
		help:   fg(c.help).Italic(true),
	}
}

// badge renders a bracketed pack indicator such as [updating].
func (p *palette) badge(style lipgloss.Style, label string) string {
	return style.Render("[" + label + "]")
}

func fg(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

func bold(color string) lipgloss.Style {
	return fg(color).Bold(true)
}
