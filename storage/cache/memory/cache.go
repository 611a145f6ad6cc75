// Package memcache is an in-process progress.Cache, used by the API server and tests.
package memcache

import (
	"context"
	"sync"

	"github.com/trezcool/siku/core/progress"
)

type Cache struct {
	mutex sync.RWMutex
	items map[string]string

	// errors returned by the matching calls when set, to simulate an unreachable cache
	GetErr, SetErr, RemoveErr error
}

var _ progress.Cache = (*Cache)(nil)

func New() *Cache {
	return &Cache{items: make(map[string]string)}
}

func (c *Cache) Get(_ context.Context, key string) (string, bool, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if c.GetErr != nil {
		return "", false, c.GetErr
	}
	v, ok := c.items[key]
	return v, ok, nil
}

func (c *Cache) Set(_ context.Context, key, value string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.SetErr != nil {
		return c.SetErr
	}
	c.items[key] = value
	return nil
}

func (c *Cache) Remove(_ context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.RemoveErr != nil {
		return c.RemoveErr
	}
	delete(c.items, key)
	return nil
}
