// Package storetest holds the behaviour every store backend must share.
package storetest

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Noobiez16/SubliGraphic/pkg/errors"

	"github.com/Noobiez16/SubliGraphic/internal/store"
)

// Run exercises a backend created with capacity 1024 and max value size 512.
func Run(t *testing.T, newScoper func(t *testing.T, limits store.Limits) store.Scoper) {
	limits := store.Limits{Capacity: 1024, MaxValueSize: 512}
	ctx := context.Background()

	t.Run("get absent", func(t *testing.T) {
		s := newScoper(t, limits).Scope("alice")
		_, err := s.Get(ctx, "cart")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("set get overwrite", func(t *testing.T) {
		s := newScoper(t, limits).Scope("alice")
		require.NoError(t, s.Set(ctx, "cart", []byte(`[1]`)))
		require.NoError(t, s.Set(ctx, "cart", []byte(`[1,2]`)))
		v, err := s.Get(ctx, "cart")
		require.NoError(t, err)
		assert.Equal(t, []byte(`[1,2]`), v)
	})

	t.Run("remove", func(t *testing.T) {
		s := newScoper(t, limits).Scope("alice")
		require.NoError(t, s.Set(ctx, "cart", []byte(`[]`)))
		require.NoError(t, s.Remove(ctx, "cart"))
		require.NoError(t, s.Remove(ctx, "cart"))
		_, err := s.Get(ctx, "cart")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("list keys by prefix", func(t *testing.T) {
		s := newScoper(t, limits).Scope("alice")
		require.NoError(t, s.Set(ctx, "cart", []byte(`[]`)))
		require.NoError(t, s.Set(ctx, "custom_design_a", []byte("A")))
		require.NoError(t, s.Set(ctx, "custom_design_b", []byte("B")))

		keys, err := s.ListKeys(ctx, "custom_design_")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"custom_design_a", "custom_design_b"}, keys)
	})

	t.Run("owners are isolated", func(t *testing.T) {
		sc := newScoper(t, limits)
		require.NoError(t, sc.Scope("alice").Set(ctx, "cart", []byte("alice")))

		_, err := sc.Scope("bob").Get(ctx, "cart")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		keys, err := sc.Scope("bob").ListKeys(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("value too large", func(t *testing.T) {
		s := newScoper(t, limits).Scope("alice")
		err := s.Set(ctx, "custom_design_x", bytes.Repeat([]byte("x"), 600))
		assert.ErrorIs(t, err, apperrors.ErrStorageQuotaExceeded)
	})

	t.Run("capacity exhausted keeps previous value", func(t *testing.T) {
		s := newScoper(t, limits).Scope("alice")
		require.NoError(t, s.Set(ctx, "custom_design_a", bytes.Repeat([]byte("a"), 500)))
		require.NoError(t, s.Set(ctx, "cart", []byte("old")))

		err := s.Set(ctx, "custom_design_b", bytes.Repeat([]byte("b"), 500))
		assert.ErrorIs(t, err, apperrors.ErrStorageQuotaExceeded)
		_, err = s.Get(ctx, "custom_design_b")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)

		v, err := s.Get(ctx, "cart")
		require.NoError(t, err)
		assert.Equal(t, []byte("old"), v)
	})

	t.Run("overwrite does not double count", func(t *testing.T) {
		s := newScoper(t, limits).Scope("alice")
		for i := 0; i < 5; i++ {
			require.NoError(t, s.Set(ctx, "custom_design_a", bytes.Repeat([]byte("a"), 500)))
		}
	})

	t.Run("remove frees capacity", func(t *testing.T) {
		s := newScoper(t, limits).Scope("alice")
		require.NoError(t, s.Set(ctx, "custom_design_a", bytes.Repeat([]byte("a"), 490)))
		require.NoError(t, s.Remove(ctx, "custom_design_a"))
		require.NoError(t, s.Set(ctx, "custom_design_b", bytes.Repeat([]byte("b"), 490)))
		require.NoError(t, s.Set(ctx, "custom_design_c", bytes.Repeat([]byte("c"), 490)))
	})
}
