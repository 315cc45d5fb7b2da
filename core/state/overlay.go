package state

import (
	"errors"
	"sync"

	"openstay/storage"
)

// overlay buffers writes on top of a base database. Reads observe buffered
// writes first, so a transition sees its own mutations; nothing reaches the
// base until flush.
type overlay struct {
	base storage.Database

	mu     sync.Mutex
	writes map[string][]byte
	order  []string
}

func newOverlay(base storage.Database) *overlay {
	return &overlay{base: base, writes: make(map[string][]byte)}
}

func (o *overlay) Put(key, value []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	k := string(key)
	if _, seen := o.writes[k]; !seen {
		o.order = append(o.order, k)
	}
	buf := make([]byte, len(value))
	copy(buf, value)
	o.writes[k] = buf
	return nil
}

func (o *overlay) Get(key []byte) ([]byte, error) {
	o.mu.Lock()
	value, ok := o.writes[string(key)]
	o.mu.Unlock()
	if ok {
		buf := make([]byte, len(value))
		copy(buf, value)
		return buf, nil
	}
	return o.base.Get(key)
}

func (o *overlay) Has(key []byte) (bool, error) {
	o.mu.Lock()
	_, ok := o.writes[string(key)]
	o.mu.Unlock()
	if ok {
		return true, nil
	}
	has, err := o.base.Has(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	return has, err
}

// WriteBatch buffers all entries like individual Puts.
func (o *overlay) WriteBatch(entries []storage.BatchEntry) error {
	for _, entry := range entries {
		if err := o.Put(entry.Key, entry.Value); err != nil {
			return err
		}
	}
	return nil
}

func (o *overlay) Close() {}

// flush applies the buffered mutations to the base database as one batch, in
// the order they were first issued. The base either sees the whole
// transition or none of it.
func (o *overlay) flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	entries := make([]storage.BatchEntry, 0, len(o.order))
	for _, k := range o.order {
		entries = append(entries, storage.BatchEntry{Key: []byte(k), Value: o.writes[k]})
	}
	if err := o.base.WriteBatch(entries); err != nil {
		return err
	}
	o.writes = make(map[string][]byte)
	o.order = nil
	return nil
}
