package vlist

type cacheKey struct {
	id    string
	width int
}

type cacheEntry struct {
	sum  uint64
	view string
}

// renderCache keeps rendered items by id and width. Items implementing
// Fingerprinter are re-rendered when their fingerprint changes, other items
// stay cached until dropped.
type renderCache struct {
	entries map[cacheKey]cacheEntry
	hits    int
	misses  int
}

func newRenderCache() *renderCache {
	return &renderCache{entries: make(map[cacheKey]cacheEntry)}
}

func (c *renderCache) render(item Item, width int) string {
	key := cacheKey{id: item.ID(), width: width}
	var sum uint64
	if f, ok := item.(Fingerprinter); ok {
		sum = f.Fingerprint()
	}
	if e, ok := c.entries[key]; ok && e.sum == sum {
		c.hits++
		return e.view
	}
	c.misses++
	view := item.Render(width)
	c.entries[key] = cacheEntry{sum: sum, view: view}
	return view
}

func (c *renderCache) drop(id string) {
	for key := range c.entries {
		if key.id == id {
			delete(c.entries, key)
		}
	}
}

func (c *renderCache) clear() {
	clear(c.entries)
}

func (c *renderCache) len() int {
	return len(c.entries)
}
