package cache

import (
	"container/list"
	"time"
)

// #region lru
// memEntry is an Entry plus its memory-tier deadline.
type memEntry struct {
	entry   Entry
	expires time.Time
}

// lru is a fixed-capacity least-recently-used map. It is not safe for
// concurrent use; Cache serializes access.
type lru struct {
	capacity int
	items    map[string]*list.Element
	order    *list.List // front = most recent
}

func newLRU(capacity int) *lru {
	if capacity <= 0 {
		capacity = 1024
	}
	return &lru{
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

func (c *lru) get(key string) (*memEntry, bool) {
	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*memEntry), true
}

// set inserts or replaces key and reports whether an entry was evicted.
func (c *lru) set(key string, e *memEntry) bool {
	if elem, ok := c.items[key]; ok {
		elem.Value = e
		c.order.MoveToFront(elem)
		return false
	}
	evicted := false
	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.remove(oldest)
			evicted = true
		}
	}
	c.items[key] = c.order.PushFront(e)
	return evicted
}

func (c *lru) delete(key string) {
	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
}

func (c *lru) remove(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*memEntry).entry.Key)
}

func (c *lru) len() int {
	return c.order.Len()
}

// #endregion lru
