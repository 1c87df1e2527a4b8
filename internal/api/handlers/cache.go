package handlers

import (
	"sync"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/dataset"
)

// FetchState is the outcome of the most recent sheet fetch.
type FetchState struct {
	// Dataset is the last successfully fetched dataset, nil before the
	// first successful fetch.
	Dataset *dataset.Dataset

	// Err is the latest fetch error, nil after a successful fetch.
	Err error

	// RefreshedAt is when the last fetch finished.
	RefreshedAt time.Time
}

// Cache holds the latest fetch state. Refresh jobs write it, request
// handlers read it. A failed fetch clears the dataset: the page shows an
// error state rather than data that no longer reflects the sheet.
type Cache struct {
	mu    sync.RWMutex
	state FetchState
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// SetSuccess records a successful fetch and clears any previous error.
func (c *Cache) SetSuccess(ds *dataset.Dataset, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Dataset = ds
	c.state.Err = nil
	c.state.RefreshedAt = at
}

// SetFailure records a failed fetch and drops the previous dataset.
func (c *Cache) SetFailure(err error, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Dataset = nil
	c.state.Err = err
	c.state.RefreshedAt = at
}

// State returns the latest fetch state.
func (c *Cache) State() FetchState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}
