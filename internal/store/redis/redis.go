// Package redis stores shopper key spaces in Redis. Each owner's values live
// under one hash tag so a value and its size ledger always share a slot.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/Noobiez16/SubliGraphic/pkg/errors"

	"github.com/Noobiez16/SubliGraphic/internal/store"
)

const maxTxRetries = 5

// Config holds the backend settings.
type Config struct {
	KeyPrefix string
	// TTL expires an owner's keys after inactivity; 0 keeps them forever.
	TTL    time.Duration
	Limits store.Limits
}

// Scoper is the Redis backend.
type Scoper struct {
	client redis.UniversalClient
	cfg    Config
}

// New creates a Redis backend on top of an existing client.
func New(client redis.UniversalClient, cfg Config) *Scoper {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "storefront:"
	}
	return &Scoper{client: client, cfg: cfg}
}

// Scope returns the store for owner.
func (s *Scoper) Scope(owner string) store.Store {
	base := s.cfg.KeyPrefix + "{" + owner + "}:"
	return &ownerStore{
		client:   s.client,
		cfg:      s.cfg,
		dataKey:  base + "kv:",
		sizesKey: base + "sizes",
	}
}

// Ping checks connectivity.
func (s *Scoper) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

type ownerStore struct {
	client   redis.UniversalClient
	cfg      Config
	dataKey  string
	sizesKey string
}

func (o *ownerStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := o.client.Get(ctx, o.dataKey+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("storage key", key)
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// Set checks the owner's size ledger and writes value in one optimistic
// transaction, retrying when a concurrent write touched the ledger.
func (o *ownerStore) Set(ctx context.Context, key string, value []byte) error {
	txf := func(tx *redis.Tx) error {
		sizes, err := tx.HGetAll(ctx, o.sizesKey).Result()
		if err != nil {
			return err
		}
		var others int64
		for k, v := range sizes {
			if k == key {
				continue
			}
			n, _ := strconv.ParseInt(v, 10, 64)
			others += n
		}
		if err := o.cfg.Limits.Check(key, value, others); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, o.dataKey+key, value, o.cfg.TTL)
			p.HSet(ctx, o.sizesKey, key, store.EntrySize(key, value))
			if o.cfg.TTL > 0 {
				// Every key of the owner shares one expiry. Slots written
				// once, like design payloads, must not lapse while the
				// ledger still lists them.
				for k := range sizes {
					if k != key {
						p.Expire(ctx, o.dataKey+k, o.cfg.TTL)
					}
				}
				p.Expire(ctx, o.sizesKey, o.cfg.TTL)
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := o.client.Watch(ctx, txf, o.sizesKey)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, apperrors.ErrStorageQuotaExceeded):
			return err
		case isOOM(err):
			return apperrors.StorageQuotaExceeded(key, int64(len(value)), 0)
		default:
			return fmt.Errorf("redis set %s: %w", key, err)
		}
	}
	return apperrors.Conflict(fmt.Sprintf("concurrent writes to storage key %s", key))
}

func (o *ownerStore) Remove(ctx context.Context, key string) error {
	_, err := o.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, o.dataKey+key)
		p.HDel(ctx, o.sizesKey, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// ListKeys reads the size ledger rather than scanning the keyspace.
func (o *ownerStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	all, err := o.client.HKeys(ctx, o.sizesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list keys: %w", err)
	}
	keys := all[:0]
	for _, k := range all {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// isOOM reports a write refused because Redis hit maxmemory.
func isOOM(err error) bool {
	return strings.HasPrefix(err.Error(), "OOM ")
}
