package util

import "sync"

// Cache is a data store for the latest parameter values
type Cache struct {
	sync.Mutex
	val map[string]Param
}

// NewCache creates cache
func NewCache() *Cache {
	return &Cache{val: make(map[string]Param)}
}

// Run adds input channel's values to cache
func (c *Cache) Run(in <-chan Param) {
	log := NewLogger("cache")

	for p := range in {
		log.TRACE.Printf("%s: %v", p.UniqueID(), p.Val)
		c.Add(p.UniqueID(), p)
	}
}

// State provides a structured copy of the cached values, keyed by meter
func (c *Cache) State() map[string]map[string]interface{} {
	c.Lock()
	defer c.Unlock()

	res := make(map[string]map[string]interface{})
	for _, p := range c.val {
		meter := p.Meter
		if meter == "" {
			meter = "site"
		}
		if _, ok := res[meter]; !ok {
			res[meter] = make(map[string]interface{})
		}
		res[meter][p.Key] = p.Val
	}
	return res
}

// All provides a copy of the cached values
func (c *Cache) All() []Param {
	c.Lock()
	defer c.Unlock()

	res := make([]Param, 0, len(c.val))
	for _, p := range c.val {
		res = append(res, p)
	}
	return res
}

// Add entry to cache
func (c *Cache) Add(key string, p Param) {
	c.Lock()
	defer c.Unlock()
	c.val[key] = p
}

// Get entry from cache
func (c *Cache) Get(key string) Param {
	c.Lock()
	defer c.Unlock()

	if p, ok := c.val[key]; ok {
		return p
	}
	return Param{}
}
