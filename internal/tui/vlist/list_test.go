package vlist

import (
	"fmt"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/v2/key"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/vlist/internal/anchor"
	"github.com/charmbracelet/x/exp/golden"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createItems returns n items; every odd item carries a second line.
func createItems(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		id := fmt.Sprintf("item %d", i)
		text := id
		if i%2 == 1 {
			text += "\ndetail"
		}
		items[i] = NewTextItem(id, text)
	}
	return items
}

func flatItems(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		id := fmt.Sprintf("item %d", i)
		items[i] = NewTextItem(id, id)
	}
	return items
}

var rowFollow = anchor.FollowConfig{
	Enabled:           true,
	Threshold:         1,
	DetachThreshold:   1,
	ReattachThreshold: 3,
}

// flush runs frame ticks until no measurement is pending.
func flush(t *testing.T, m *Model) {
	t.Helper()
	for range 10 {
		if !m.Pending() {
			return
		}
		m.Update(flushMsg{id: m.id})
	}
	t.Fatal("measurements did not settle")
}

func viewLines(m *Model) []string {
	return strings.Split(m.View(), "\n")
}

func TestView(t *testing.T) {
	t.Parallel()

	t.Run("initial", func(t *testing.T) {
		t.Parallel()
		m := New(createItems(10), WithSize(20, 5))
		require.NotNil(t, m.Init())
		assert.True(t, m.Pending())
		flush(t, m)

		assert.Equal(t, 0, m.Offset())
		assert.Equal(t, 0, m.Range().Start)
		assert.Equal(t, 3, m.Range().End)
		golden.RequireEqual(t, []byte(m.View()))
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		m := New(nil, WithSize(20, 3))
		assert.Nil(t, m.Init())
		assert.Equal(t, "\n\n", m.View())
	})

	t.Run("no size", func(t *testing.T) {
		t.Parallel()
		m := New(createItems(3))
		assert.Nil(t, m.Init())
		assert.Empty(t, m.View())
	})
}

func TestScroll(t *testing.T) {
	t.Parallel()

	t.Run("by rows", func(t *testing.T) {
		t.Parallel()
		m := New(createItems(10), WithSize(20, 5))
		m.Init()
		flush(t, m)

		m.ScrollBy(3)
		assert.Equal(t, 3, m.Offset())
		assert.Equal(t, 2, m.Range().Start)
		assert.Equal(t, []string{"item 2", "item 3", "detail", "item 4", "item 5"}, viewLines(m))
	})

	t.Run("clamped", func(t *testing.T) {
		t.Parallel()
		m := New(flatItems(10), WithSize(20, 5))
		m.Init()
		flush(t, m)

		assert.Nil(t, m.ScrollBy(-1), "already at the top")
		m.ScrollBy(100)
		assert.Equal(t, 5, m.Offset())
		m.GoToTop()
		assert.Equal(t, 0, m.Offset())
	})

	t.Run("by item", func(t *testing.T) {
		t.Parallel()
		m := New(createItems(10), WithSize(20, 5))
		m.Init()
		flush(t, m)

		m.NextItem()
		assert.Equal(t, 1, m.Offset())
		m.NextItem()
		assert.Equal(t, 3, m.Offset())
		m.ScrollBy(2)
		m.PrevItem()
		assert.Equal(t, 4, m.Offset(), "back to the top of the current item")
		m.PrevItem()
		assert.Equal(t, 3, m.Offset())
	})

	t.Run("keys", func(t *testing.T) {
		t.Parallel()
		m := New(flatItems(20), WithSize(20, 4))
		m.Init()
		flush(t, m)

		m.Update(tea.KeyPressMsg{Code: 'j', Text: "j"})
		assert.Equal(t, 1, m.Offset())
		m.Update(tea.KeyPressMsg{Code: tea.KeyEnd})
		flush(t, m)
		assert.Equal(t, 16, m.Offset())
		m.Update(tea.KeyPressMsg{Code: 'g', Text: "g"})
		assert.Equal(t, 0, m.Offset())
	})

	t.Run("item keys", func(t *testing.T) {
		t.Parallel()
		m := New(createItems(10), WithSize(20, 5))
		m.Init()
		flush(t, m)

		m.Update(tea.KeyPressMsg{Code: tea.KeyDown, Mod: tea.ModShift})
		assert.Equal(t, 1, m.Offset())
		m.Update(tea.KeyPressMsg{Code: 'J', Text: "J"})
		assert.Equal(t, 3, m.Offset())
		m.Update(tea.KeyPressMsg{Code: tea.KeyUp, Mod: tea.ModShift})
		assert.Equal(t, 1, m.Offset())
	})

	t.Run("help", func(t *testing.T) {
		t.Parallel()
		keys := New(nil).KeyMap()
		assert.Equal(t, []key.Binding{keys.NextItem, keys.PrevItem, keys.Bottom}, keys.ShortHelp())
		assert.Len(t, keys.FullHelp(), 3)
		assert.Equal(t, "newest & follow", keys.Bottom.Help().Desc)
	})

	t.Run("mouse", func(t *testing.T) {
		t.Parallel()
		m := New(flatItems(20), WithSize(20, 4), WithEnableMouse())
		m.Init()
		flush(t, m)

		m.Update(tea.MouseWheelMsg{Button: tea.MouseWheelDown})
		assert.Equal(t, ViewportDefaultScrollSize, m.Offset())
		m.Update(tea.MouseWheelMsg{Button: tea.MouseWheelUp})
		assert.Equal(t, 0, m.Offset())

		m.Update(tea.MouseClickMsg{})
		assert.True(t, m.proto.Gesturing())
		m.Update(tea.MouseReleaseMsg{})
		assert.False(t, m.proto.Gesturing())
	})

	t.Run("mouse disabled", func(t *testing.T) {
		t.Parallel()
		m := New(flatItems(20), WithSize(20, 4))
		m.Init()
		flush(t, m)

		m.Update(tea.MouseWheelMsg{Button: tea.MouseWheelDown})
		assert.Equal(t, 0, m.Offset())
	})
}

func TestPrependKeepsContentInPlace(t *testing.T) {
	t.Parallel()
	m := New(createItems(10), WithSize(20, 5))
	m.Init()
	flush(t, m)
	m.ScrollBy(3)

	m.PrependItems(NewTextItem("new a", "new a\nmore"), NewTextItem("new b", "new b"))

	assert.Equal(t, 12, m.Len())
	assert.Equal(t, 6, m.Offset())
	assert.Equal(t, "item 2", viewLines(m)[0])
	assert.Equal(t, 1, m.Stats().Prepends)
	assert.Equal(t, 2, m.IndexOf("item 0"))
	assert.Equal(t, ItemNotFound, m.IndexOf("missing"))
}

func TestFollowBottom(t *testing.T) {
	t.Parallel()
	m := New(flatItems(10), WithSize(20, 5), WithFollow(rowFollow))
	m.Init()
	flush(t, m)

	m.GoToBottom()
	flush(t, m)
	assert.Equal(t, 5, m.Offset())
	assert.True(t, m.Following())

	m.AppendItem(NewTextItem("item 10", "item 10"))
	flush(t, m)
	assert.Equal(t, 6, m.Offset())
	assert.Equal(t, "item 10", viewLines(m)[4])

	m.ScrollBy(-3)
	assert.False(t, m.Following())
	m.AppendItem(NewTextItem("item 11", "item 11"))
	flush(t, m)
	assert.Equal(t, 3, m.Offset(), "a detached list stays where the user left it")

	m.GoToBottom()
	flush(t, m)
	assert.Equal(t, 7, m.Offset())
	assert.True(t, m.Following())

	m.UpdateItem("item 11", NewTextItem("item 11", "item 11\nmore\nmore"))
	flush(t, m)
	assert.Equal(t, 9, m.Offset())
	assert.Equal(t, []string{"item 9", "item 10", "item 11", "more", "more"}, viewLines(m))
}

func TestWidthChangeRemeasures(t *testing.T) {
	t.Parallel()
	m := New([]Item{NewTextItem("a", "aaaa bbbb"), NewTextItem("b", "cccc")}, WithSize(20, 5))
	m.Init()
	flush(t, m)
	assert.Equal(t, 1.0, m.ledger.Height(0))

	m.SetSize(5, 5)
	flush(t, m)
	assert.Equal(t, 2.0, m.ledger.Height(0))
	assert.Equal(t, []string{"aaaa", "bbbb", "cccc", "", ""}, viewLines(m))

	w, h := m.GetSize()
	assert.Equal(t, 5, w)
	assert.Equal(t, 5, h)
}

func TestHeightChangeFollows(t *testing.T) {
	t.Parallel()
	m := New(flatItems(10), WithSize(20, 5), WithFollow(rowFollow))
	m.Init()
	flush(t, m)
	m.GoToBottom()
	flush(t, m)

	m.SetSize(20, 3)
	flush(t, m)
	assert.Equal(t, 7, m.Offset())
	assert.Equal(t, []string{"item 7", "item 8", "item 9"}, viewLines(m))
}

func TestDeleteItem(t *testing.T) {
	t.Parallel()
	m := New(flatItems(5), WithSize(20, 5))
	m.Init()
	flush(t, m)

	assert.Nil(t, m.DeleteItem("missing"))
	m.DeleteItem("item 1")
	flush(t, m)
	assert.Equal(t, 4, m.Len())
	assert.Equal(t, []string{"item 0", "item 2", "item 3", "item 4", ""}, viewLines(m))
}

func TestUpdateItemOffscreen(t *testing.T) {
	t.Parallel()
	m := New(flatItems(20), WithSize(20, 4))
	m.Init()
	flush(t, m)
	m.ScrollBy(10)
	flush(t, m)
	require.True(t, m.ledger.Measured(2))

	m.UpdateItem("item 2", NewTextItem("item 2", "item 2\nlonger"))
	assert.False(t, m.ledger.Measured(2), "off screen items fall back to the estimate")
	assert.Equal(t, 10, m.Offset())
}

func TestForeignFlushIgnored(t *testing.T) {
	t.Parallel()
	a := New(flatItems(3), WithSize(20, 3))
	b := New(flatItems(3), WithSize(20, 3))
	a.Init()
	b.Init()

	a.Update(flushMsg{id: b.id})
	assert.True(t, a.Pending())
	b.Close()
	b.Update(flushMsg{id: b.id})
	assert.Nil(t, b.sync())
}

func TestRenderCache(t *testing.T) {
	t.Parallel()
	c := newRenderCache()
	item := NewTextItem("a", "hello")

	assert.Equal(t, "hello", c.render(item, 10))
	assert.Equal(t, "hello", c.render(item, 10))
	assert.Equal(t, 1, c.hits)

	item.AppendText(" world")
	assert.Equal(t, "hello\nworld", c.render(item, 5))
	assert.Equal(t, "hello world", c.render(item, 20))
	assert.Equal(t, 3, c.len())

	c.drop("a")
	assert.Equal(t, 0, c.len())
}

func TestZeroHeights(t *testing.T) {
	t.Parallel()
	items := func() []Item {
		return []Item{NewTextItem("a", "a"), NewTextItem("gap", ""), NewTextItem("b", "b")}
	}

	t.Run("empty items take a row by default", func(t *testing.T) {
		t.Parallel()
		m := New(items(), WithSize(10, 3))
		m.Init()
		flush(t, m)
		assert.Equal(t, []string{"a", "", "b"}, viewLines(m))
	})

	t.Run("empty items collapse", func(t *testing.T) {
		t.Parallel()
		m := New(items(), WithSize(10, 3), WithZeroHeights())
		m.Init()
		flush(t, m)
		assert.Equal(t, []string{"a", "b", ""}, viewLines(m))
		assert.Equal(t, 0.0, m.ledger.Height(1))
		assert.True(t, m.ledger.Measured(1))
	})
}
