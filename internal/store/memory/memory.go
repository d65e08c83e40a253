// Package memory is an in-process store backend for local runs and tests.
package memory

import (
	"context"
	"strings"
	"sync"

	apperrors "github.com/Noobiez16/SubliGraphic/pkg/errors"

	"github.com/Noobiez16/SubliGraphic/internal/store"
)

// Scoper keeps every owner's key space in one mutex-guarded map.
type Scoper struct {
	mu     sync.RWMutex
	limits store.Limits
	owners map[string]map[string][]byte
}

// New creates an empty memory backend.
func New(limits store.Limits) *Scoper {
	return &Scoper{limits: limits, owners: make(map[string]map[string][]byte)}
}

// Scope returns the store for owner.
func (s *Scoper) Scope(owner string) store.Store {
	return &ownerStore{parent: s, owner: owner}
}

// Ping always succeeds.
func (s *Scoper) Ping(context.Context) error { return nil }

type ownerStore struct {
	parent *Scoper
	owner  string
}

func (o *ownerStore) Get(_ context.Context, key string) ([]byte, error) {
	o.parent.mu.RLock()
	defer o.parent.mu.RUnlock()

	v, ok := o.parent.owners[o.owner][key]
	if !ok {
		return nil, apperrors.NotFound("storage key", key)
	}
	return append([]byte(nil), v...), nil
}

func (o *ownerStore) Set(_ context.Context, key string, value []byte) error {
	o.parent.mu.Lock()
	defer o.parent.mu.Unlock()

	kv := o.parent.owners[o.owner]
	var others int64
	for k, v := range kv {
		if k != key {
			others += store.EntrySize(k, v)
		}
	}
	if err := o.parent.limits.Check(key, value, others); err != nil {
		return err
	}

	if kv == nil {
		kv = make(map[string][]byte)
		o.parent.owners[o.owner] = kv
	}
	kv[key] = append([]byte(nil), value...)
	return nil
}

func (o *ownerStore) Remove(_ context.Context, key string) error {
	o.parent.mu.Lock()
	defer o.parent.mu.Unlock()

	delete(o.parent.owners[o.owner], key)
	return nil
}

func (o *ownerStore) ListKeys(_ context.Context, prefix string) ([]string, error) {
	o.parent.mu.RLock()
	defer o.parent.mu.RUnlock()

	var keys []string
	for k := range o.parent.owners[o.owner] {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
