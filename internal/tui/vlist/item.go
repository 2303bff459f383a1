package vlist

import (
	"strings"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
	"github.com/zeebo/xxh3"
)

// Item is one entry of the list. Render must return the same output for the
// same width until the item changes; the list measures an item by counting
// the lines Render returns.
type Item interface {
	ID() string
	Render(width int) string
}

// Fingerprinter is implemented by items whose content changes in place. The
// render cache re-renders an item when its fingerprint changes.
type Fingerprinter interface {
	Fingerprint() uint64
}

// TextItem is a block of text wrapped to the list width.
type TextItem struct {
	id     string
	text   string
	style  lipgloss.Style
	styled bool
}

func NewTextItem(id, text string) *TextItem {
	return &TextItem{id: id, text: text}
}

// WithStyle renders the wrapped text through s.
func (t *TextItem) WithStyle(s lipgloss.Style) *TextItem {
	t.style = s
	t.styled = true
	return t
}

func (t *TextItem) ID() string {
	return t.id
}

func (t *TextItem) Text() string {
	return t.text
}

// SetText replaces the content. Call UpdateItem on the list afterwards so the
// item is measured again.
func (t *TextItem) SetText(text string) {
	t.text = text
}

// AppendText adds to the content, as a streaming producer would.
func (t *TextItem) AppendText(text string) {
	t.text += text
}

func (t *TextItem) Fingerprint() uint64 {
	return xxh3.HashString(t.text)
}

func (t *TextItem) Render(width int) string {
	text := strings.ReplaceAll(t.text, "\r\n", "\n")
	if t.styled {
		width -= t.style.GetHorizontalFrameSize()
	}
	if width > 0 {
		text = ansi.Wrap(text, width, "")
	}
	if t.styled {
		return t.style.Render(text)
	}
	return text
}
