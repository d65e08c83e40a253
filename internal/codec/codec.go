// Package codec persists the cart, moving inline design images out of the
// cart record into their own storage slots.
//
// Layout of one shopper's key space:
//
//	cart                      JSON array of entries, images replaced by ref:<identity>
//	custom_design_<identity>  raw inline image payload of one custom entry
package codec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	apperrors "github.com/Noobiez16/SubliGraphic/pkg/errors"

	"github.com/Noobiez16/SubliGraphic/internal/domain"
	"github.com/Noobiez16/SubliGraphic/internal/store"
)

const (
	CartKey         = "cart"
	DesignKeyPrefix = "custom_design_"
	RefPrefix       = "ref:"
)

// ErrCorruptCart is returned by Load when the stored cart cannot be parsed.
var ErrCorruptCart = errors.New("stored cart is corrupt")

// IsInlinePayload reports whether s carries an inline base64 payload rather
// than a link.
func IsInlinePayload(s string) bool {
	return strings.HasPrefix(s, "data:") && strings.Contains(s, ";base64,")
}

// RefToken is the back-reference stored in place of an identity's payload.
func RefToken(identity string) string { return RefPrefix + identity }

// DesignKey is the storage slot of an identity's payload.
func DesignKey(identity string) string { return DesignKeyPrefix + identity }

// Codec reads and writes one shopper's cart.
type Codec struct {
	store  store.Store
	logger *slog.Logger
}

// New creates a codec over a scoped store.
func New(s store.Store, logger *slog.Logger) *Codec {
	return &Codec{store: s, logger: logger}
}

// Save persists entries. Payloads are written before the cart so the cart
// never references a slot that does not exist; orphaned slots are collected
// after the cart write succeeded. An empty cart removes the cart key.
//
// When a payload write hits the quota, orphaned slots are collected first
// and the write is retried once, so removing custom entries always frees
// room. If the retry fails too, apperrors.ErrStorageQuotaExceeded is
// returned and the previously persisted cart is left as it was.
func (c *Codec) Save(ctx context.Context, entries []domain.CartEntry) error {
	slots, err := c.store.ListKeys(ctx, DesignKeyPrefix)
	if err != nil {
		return fmt.Errorf("list design slots: %w", err)
	}
	existing := make(map[string]struct{}, len(slots))
	for _, k := range slots {
		existing[k] = struct{}{}
	}

	live := make(map[string]struct{})
	for _, e := range entries {
		if e.IsCustom() {
			live[DesignKey(e.Identity)] = struct{}{}
		}
	}
	orphans := make([]string, 0, len(slots))
	for _, k := range slots {
		if _, ok := live[k]; !ok {
			orphans = append(orphans, k)
		}
	}

	encoded := make([]domain.CartEntry, len(entries))
	for i, e := range entries {
		encoded[i] = e
		if !e.IsCustom() || !IsInlinePayload(e.CustomDesignRef) {
			continue
		}

		key := DesignKey(e.Identity)
		// A custom identity's payload never changes, so an existing slot is current.
		if _, ok := existing[key]; !ok {
			err := c.store.Set(ctx, key, []byte(e.CustomDesignRef))
			if errors.Is(err, apperrors.ErrStorageQuotaExceeded) && len(orphans) > 0 {
				c.collect(ctx, orphans)
				orphans = nil
				err = c.store.Set(ctx, key, []byte(e.CustomDesignRef))
			}
			if err != nil {
				return fmt.Errorf("write design %s: %w", e.Identity, err)
			}
		}
		token := RefToken(e.Identity)
		if e.ImageURL == e.CustomDesignRef || IsInlinePayload(e.ImageURL) {
			encoded[i].ImageURL = token
		}
		encoded[i].CustomDesignRef = token
	}

	if len(encoded) == 0 {
		if err := c.store.Remove(ctx, CartKey); err != nil {
			return fmt.Errorf("remove cart: %w", err)
		}
	} else {
		data, err := json.Marshal(encoded)
		if err != nil {
			return fmt.Errorf("marshal cart: %w", err)
		}
		if err := c.store.Set(ctx, CartKey, data); err != nil {
			return fmt.Errorf("write cart: %w", err)
		}
	}

	c.collect(ctx, orphans)
	return nil
}

// collect removes design slots no live entry references. Failures are left
// for the next save.
func (c *Codec) collect(ctx context.Context, keys []string) {
	for _, k := range keys {
		if err := c.store.Remove(ctx, k); err != nil {
			c.logger.WarnContext(ctx, "failed to collect orphaned design",
				slog.String("key", k),
				slog.String("error", err.Error()),
			)
		}
	}
}

// LoadResult is a decoded cart. Missing lists the identities whose design
// payload could not be found; those entries keep their back-reference token.
type LoadResult struct {
	Entries []domain.CartEntry
	Missing []string
}

// Load reads the persisted cart. An absent cart is an empty cart.
func (c *Codec) Load(ctx context.Context) (*LoadResult, error) {
	data, err := c.store.Get(ctx, CartKey)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return &LoadResult{}, nil
		}
		return nil, fmt.Errorf("read cart: %w", err)
	}

	var entries []domain.CartEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCart, err)
	}

	res := &LoadResult{Entries: entries}
	for i := range entries {
		ref := entries[i].CustomDesignRef
		if !strings.HasPrefix(ref, RefPrefix) {
			continue
		}
		identity := strings.TrimPrefix(ref, RefPrefix)

		payload, err := c.store.Get(ctx, DesignKey(identity))
		if err != nil {
			if !errors.Is(err, apperrors.ErrNotFound) {
				return nil, fmt.Errorf("read design %s: %w", identity, err)
			}
			res.Missing = append(res.Missing, entries[i].Identity)
			c.logger.WarnContext(ctx, "custom design missing, entry degraded",
				slog.String("identity", entries[i].Identity),
				slog.String("error", apperrors.MissingAssetReference(identity).Error()),
			)
			continue
		}

		if entries[i].ImageURL == ref {
			entries[i].ImageURL = string(payload)
		}
		entries[i].CustomDesignRef = string(payload)
	}
	return res, nil
}
