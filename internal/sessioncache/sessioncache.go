// Package sessioncache stores a participant's place across page reloads: a
// pointer to the queue and member they last joined, plus a list of queues
// they organize. It is a convenience cache with no authority; the server's
// session-resolve endpoint decides whether a pointer is still live.
package sessioncache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

type Pointer struct {
	QueueID  string `json:"queue_id"`
	MemberID string `json:"member_id"`
}

type OwnedQueue struct {
	QueueID        string `json:"queue_id"`
	Name           string `json:"name"`
	AdminSecretKey string `json:"admin_secret_key"`
}

type state struct {
	Session *Pointer     `json:"session,omitempty"`
	Owned   []OwnedQueue `json:"owned,omitempty"`
}

type Cache struct {
	mu   sync.Mutex
	path string
}

func New(path string) *Cache {
	return &Cache{path: path}
}

// Get returns the stored session pointer, or false when none is stored.
func (c *Cache) Get() (Pointer, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := c.load()
	if err != nil {
		return Pointer{}, false, err
	}
	if data.Session == nil {
		return Pointer{}, false, nil
	}
	return *data.Session, true, nil
}

func (c *Cache) Set(pointer Pointer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := c.load()
	if err != nil {
		return err
	}
	data.Session = &pointer
	return c.save(data)
}

// Clear drops the session pointer but keeps the owned-queue list.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := c.load()
	if err != nil {
		return err
	}
	data.Session = nil
	return c.save(data)
}

// AddOwned records a queue the user created so its admin URL survives a
// reload. Re-adding the same queue updates the stored entry.
func (c *Cache) AddOwned(queue OwnedQueue) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := c.load()
	if err != nil {
		return err
	}
	for i, existing := range data.Owned {
		if existing.QueueID == queue.QueueID {
			data.Owned[i] = queue
			return c.save(data)
		}
	}
	data.Owned = append(data.Owned, queue)
	return c.save(data)
}

func (c *Cache) RemoveOwned(queueID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := c.load()
	if err != nil {
		return err
	}
	kept := data.Owned[:0]
	for _, existing := range data.Owned {
		if existing.QueueID != queueID {
			kept = append(kept, existing)
		}
	}
	data.Owned = kept
	return c.save(data)
}

func (c *Cache) ListOwned() ([]OwnedQueue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := c.load()
	if err != nil {
		return nil, err
	}
	return data.Owned, nil
}

func (c *Cache) load() (state, error) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return state{}, nil
		}
		return state{}, err
	}
	var data state
	if err := json.Unmarshal(raw, &data); err != nil {
		// A corrupt cache file is discarded rather than surfaced; the user
		// re-joins and the cache rebuilds.
		return state{}, nil
	}
	return data, nil
}

func (c *Cache) save(data state) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}
