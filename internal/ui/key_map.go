package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up         key.Binding
	down       key.Binding
	enter      key.Binding
	back       key.Binding
	refresh    key.Binding
	refreshAll key.Binding
	jobs       key.Binding
	dismiss    key.Binding
	resume     key.Binding
	quit       key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
		back:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		refresh:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		refreshAll: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "refresh all")),
		jobs:       key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "paused jobs")),
		dismiss:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "dismiss")),
		resume:     key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "resume all")),
		quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter},
		{k.refresh, k.refreshAll, k.jobs},
		{k.dismiss, k.resume, k.back, k.quit},
	}
}
