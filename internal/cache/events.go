package cache

import (
	"sync"

	"github.com/dialdesk/acd/internal/types"
)

// UpdateCache stores device-state updates in memory between snapshot
// broadcast cycles
type UpdateCache struct {
	updates []types.DeviceStateUpdate
	mu      sync.RWMutex
}

// NewUpdateCache creates a new update cache
func NewUpdateCache() *UpdateCache {
	return &UpdateCache{
		updates: make([]types.DeviceStateUpdate, 0, 2000),
	}
}

// Add appends an update to the cache
func (c *UpdateCache) Add(update types.DeviceStateUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, update)
}

// GetAndClear returns all updates and clears the cache
func (c *UpdateCache) GetAndClear() []types.DeviceStateUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()

	updates := c.updates
	c.updates = make([]types.DeviceStateUpdate, 0, 2000) // pre-allocate for next cycle
	return updates
}

// Size returns the current number of cached updates
func (c *UpdateCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.updates)
}
