// Package store is the durable key/value medium behind the cart. Every
// shopper gets an isolated key space with its own capacity budget.
package store

import (
	"context"

	apperrors "github.com/Noobiez16/SubliGraphic/pkg/errors"
)

// Store is one shopper's key space. Get returns apperrors.ErrNotFound for an
// absent key; Set returns apperrors.ErrStorageQuotaExceeded when the medium
// rejects the write, leaving the previous value untouched. Remove of an
// absent key is not an error. ListKeys makes no ordering guarantee.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}

// Scoper hands out per-owner stores.
type Scoper interface {
	Scope(owner string) Store
	Ping(ctx context.Context) error
}

const (
	DefaultCapacity     int64 = 5 << 20
	DefaultMaxValueSize int64 = 2 << 20
)

// Limits bounds what one owner may store. Sizes count key and value bytes.
type Limits struct {
	Capacity     int64
	MaxValueSize int64
}

// DefaultLimits mirrors the few megabytes a browser grants one origin.
func DefaultLimits() Limits {
	return Limits{Capacity: DefaultCapacity, MaxValueSize: DefaultMaxValueSize}
}

// EntrySize is the number of bytes a key/value pair counts against capacity.
func EntrySize(key string, value []byte) int64 {
	return int64(len(key) + len(value))
}

// Check validates a write of value under key when the owner's other entries
// already use `others` bytes.
func (l Limits) Check(key string, value []byte, others int64) error {
	size := EntrySize(key, value)
	if l.MaxValueSize > 0 && int64(len(value)) > l.MaxValueSize {
		return apperrors.StorageQuotaExceeded(key, int64(len(value)), l.MaxValueSize)
	}
	if l.Capacity > 0 && others+size > l.Capacity {
		return apperrors.StorageQuotaExceeded(key, others+size, l.Capacity)
	}
	return nil
}
