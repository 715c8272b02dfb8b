package areafake

import (
	"context"
	"sync"

	"github.com/jrsteele09/lms-session/credentials"
)

var _ credentials.Area = (*InMemoryArea)(nil)

// InMemoryArea is a process-local storage area. It backs the ephemeral area in
// production and either area in tests.
type InMemoryArea struct {
	items map[string]string
	lock  sync.RWMutex
	err   error // Returned by every call when set, to simulate a broken backend
}

func NewInMemoryArea() *InMemoryArea {
	return &InMemoryArea{
		items: make(map[string]string),
	}
}

func (a *InMemoryArea) Get(_ context.Context, key string) (string, bool, error) {
	a.lock.RLock()
	defer a.lock.RUnlock()
	if a.err != nil {
		return "", false, a.err
	}
	v, ok := a.items[key]
	return v, ok, nil
}

func (a *InMemoryArea) Set(_ context.Context, items map[string]string) error {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.err != nil {
		return a.err
	}
	for k := range items {
		if k == "" {
			return credentials.ErrEmptyItemName
		}
	}
	for k, v := range items {
		a.items[k] = v
	}
	return nil
}

func (a *InMemoryArea) Delete(_ context.Context, keys ...string) error {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.err != nil {
		return a.err
	}
	for _, k := range keys {
		delete(a.items, k)
	}
	return nil
}

// Len returns the number of stored items.
func (a *InMemoryArea) Len() int {
	a.lock.RLock()
	defer a.lock.RUnlock()
	return len(a.items)
}

// Snapshot returns a copy of the stored items.
func (a *InMemoryArea) Snapshot() map[string]string {
	a.lock.RLock()
	defer a.lock.RUnlock()
	out := make(map[string]string, len(a.items))
	for k, v := range a.items {
		out[k] = v
	}
	return out
}

// Reset drops every item, the way a host discards session storage when a tab closes.
func (a *InMemoryArea) Reset() {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.items = make(map[string]string)
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (a *InMemoryArea) FailWith(err error) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.err = err
}
