package conversation

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is a bounded, TTL'd, process-local view of active conversations. It is
// a best-effort accelerator over the Store and never authoritative.
type Cache struct {
	lru *expirable.LRU[string, *Conversation]
}

// NewCache builds a cache holding at most size conversations, each expiring
// after ttl without a write.
func NewCache(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = 1024
	}
	return &Cache{
		lru: expirable.NewLRU[string, *Conversation](size, nil, ttl),
	}
}

// Get returns the cached conversation for a phone number, if present.
func (c *Cache) Get(phoneNumber string) (*Conversation, bool) {
	if c == nil {
		return nil, false
	}
	return c.lru.Get(phoneNumber)
}

// Put stores the conversation, refreshing its TTL.
func (c *Cache) Put(conv *Conversation) {
	if c == nil || conv == nil {
		return
	}
	c.lru.Add(conv.PhoneNumber, conv)
}

// Remove drops the conversation so the next contact reloads from the Store.
func (c *Cache) Remove(phoneNumber string) {
	if c == nil {
		return
	}
	c.lru.Remove(phoneNumber)
}

// Len reports the number of cached conversations.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
