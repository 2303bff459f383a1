package vlist

import (
	"github.com/charmbracelet/bubbles/v2/key"
)

// KeyMap moves through the list by rows, by whole items and by pages. Bottom
// also locks the list to its newest content when following is enabled.
type KeyMap struct {
	LineUp       key.Binding
	LineDown     key.Binding
	PrevItem     key.Binding
	NextItem     key.Binding
	PageUp       key.Binding
	PageDown     key.Binding
	HalfPageUp   key.Binding
	HalfPageDown key.Binding
	Top          key.Binding
	Bottom       key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		LineUp: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		LineDown: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
		PrevItem: key.NewBinding(
			key.WithKeys("shift+up", "K"),
			key.WithHelp("K", "previous item"),
		),
		NextItem: key.NewBinding(
			key.WithKeys("shift+down", "J"),
			key.WithHelp("J", "next item"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "b"),
			key.WithHelp("b/pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "f", "space"),
			key.WithHelp("f/pgdn", "page down"),
		),
		HalfPageUp: key.NewBinding(
			key.WithKeys("u", "ctrl+u"),
			key.WithHelp("u", "half page up"),
		),
		HalfPageDown: key.NewBinding(
			key.WithKeys("d", "ctrl+d"),
			key.WithHelp("d", "half page down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "oldest"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "newest & follow"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextItem, k.PrevItem, k.Bottom}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.LineDown, k.LineUp, k.NextItem, k.PrevItem},
		{k.PageDown, k.PageUp, k.HalfPageDown, k.HalfPageUp},
		{k.Top, k.Bottom},
	}
}
