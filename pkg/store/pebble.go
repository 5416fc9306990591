package store

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"chatsync/pkg/logger"
)

// KV is the durable key/value surface the engine needs. Reads happen at
// startup/rehydration; writes are whole-snapshot, last-writer-wins.
type KV interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	ListPrefix(prefix string) ([]string, error)
	IsNotFound(err error) bool
}

// Pebble is the pebble-backed KV used outside tests.
type Pebble struct {
	db   *pebble.DB
	path string
}

// Open opens/creates the pebble DB at path.
func Open(path string) (*Pebble, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, err
	}
	return &Pebble{db: db, path: path}, nil
}

// Close closes the opened pebble DB.
func (p *Pebble) Close() error {
	if p.db == nil {
		return nil
	}
	if err := p.db.Close(); err != nil {
		return err
	}
	p.db = nil
	return nil
}

// Get returns the raw value for key.
func (p *Pebble) Get(key string) ([]byte, error) {
	if p.db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := p.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			logger.Debug("get_key_missing", "key", key)
		} else {
			logger.Error("get_key_failed", "key", key, "error", err)
		}
		return nil, err
	}
	out := append([]byte(nil), v...)
	if closer != nil {
		_ = closer.Close()
	}
	return out, nil
}

// Set stores a key/value pair with a synced write.
func (p *Pebble) Set(key string, value []byte) error {
	if p.db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	if err := p.db.Set([]byte(key), value, pebble.Sync); err != nil {
		logger.Error("save_key_failed", "key", key, "error", err)
		return err
	}
	logger.Debug("save_key_ok", "key", key, "len", len(value))
	return nil
}

// Delete removes a key.
func (p *Pebble) Delete(key string) error {
	if p.db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	if err := p.db.Delete([]byte(key), pebble.Sync); err != nil {
		logger.Error("delete_key_failed", "key", key, "error", err)
		return err
	}
	logger.Debug("delete_key_ok", "key", key)
	return nil
}

// ListPrefix returns all keys under prefix in lexicographic order.
func (p *Pebble) ListPrefix(prefix string) ([]string, error) {
	if p.db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	iter, err := p.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	pfx := []byte(prefix)
	var out []string
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		k := append([]byte(nil), iter.Key()...)
		out = append(out, string(k))
	}
	return out, iter.Error()
}

// IsNotFound reports whether err is pebble.ErrNotFound.
func (p *Pebble) IsNotFound(err error) bool {
	return errors.Is(err, pebble.ErrNotFound)
}
