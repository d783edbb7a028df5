// Package cache holds an LRU byte cache for served image blobs, keyed by
// stored filename. Entries expire so a long-lived process does not pin stale
// bytes; deletes must invalidate explicitly via Remove.
package cache

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	key     string
	data    []byte
	expires time.Time
}

type ImageCache struct {
	capacity int
	ttl      time.Duration

	mu      sync.Mutex
	items   map[string]*list.Element
	lruList *list.List

	hitCount      int64
	missCount     int64
	evictionCount int64
}

func New(capacity int, ttl time.Duration) *ImageCache {
	return &ImageCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element),
		lruList:  list.New(),
	}
}

func (c *ImageCache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.lruList.MoveToFront(elem)
		e := elem.Value.(*entry)
		e.data = data
		e.expires = time.Now().Add(c.ttl)
		return
	}

	elem := c.lruList.PushFront(&entry{
		key:     key,
		data:    data,
		expires: time.Now().Add(c.ttl),
	})
	c.items[key] = elem

	if c.lruList.Len() > c.capacity {
		if back := c.lruList.Back(); back != nil {
			c.removeElement(back)
			c.evictionCount++
		}
	}
}

func (c *ImageCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.missCount++
		return nil, false
	}
	e := elem.Value.(*entry)
	if time.Now().After(e.expires) {
		c.removeElement(elem)
		c.missCount++
		return nil, false
	}
	c.lruList.MoveToFront(elem)
	c.hitCount++
	return e.data, true
}

// Remove drops a key. Called when the backing record or file is deleted so a
// dead image can never be served from memory.
func (c *ImageCache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

func (c *ImageCache) removeElement(elem *list.Element) {
	c.lruList.Remove(elem)
	delete(c.items, elem.Value.(*entry).key)
}

func (c *ImageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lruList.Len()
}

type Stats struct {
	Size          int     `json:"size"`
	Capacity      int     `json:"capacity"`
	HitCount      int64   `json:"hit_count"`
	MissCount     int64   `json:"miss_count"`
	HitRate       float64 `json:"hit_rate"`
	EvictionCount int64   `json:"eviction_count"`
}

func (c *ImageCache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hitCount + c.missCount
	rate := 0.0
	if total > 0 {
		rate = float64(c.hitCount) / float64(total) * 100
	}
	return Stats{
		Size:          c.lruList.Len(),
		Capacity:      c.capacity,
		HitCount:      c.hitCount,
		MissCount:     c.missCount,
		HitRate:       rate,
		EvictionCount: c.evictionCount,
	}
}
