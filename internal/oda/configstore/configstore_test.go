package configstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onedragon-agent/oda-agent/internal/oda/configstore"
	"github.com/onedragon-agent/oda-agent/internal/oda/errkind"
)

type record struct {
	Name  string
	Value int
}

func storeSuite(t *testing.T, store configstore.Store[record]) {
	ctx := context.Background()
	key := configstore.Key{AppName: "app1", InnerID: "rec1"}

	_, err := store.Get(ctx, key)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errkind.ErrNotFound))

	require.NoError(t, store.Create(ctx, key, record{Name: "one", Value: 1}))

	err = store.Create(ctx, key, record{Name: "dup", Value: 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errkind.ErrAlreadyExists))

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "one", got.Name)

	require.NoError(t, store.Update(ctx, key, record{Name: "updated", Value: 2}))
	got, err = store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Name)

	missing := configstore.Key{AppName: "app1", InnerID: "missing"}
	err = store.Update(ctx, missing, record{Name: "nope"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errkind.ErrNotFound))

	require.NoError(t, store.Create(ctx, configstore.Key{AppName: "app1", InnerID: "rec2"}, record{Name: "two", Value: 2}))
	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key)) // idempotent
	all, err = store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMemoryStore(t *testing.T) {
	storeSuite(t, configstore.NewMemoryStore[record]())
}

func TestSQLStore(t *testing.T) {
	store, err := configstore.OpenSQLiteStore[record](":memory:", "records")
	require.NoError(t, err)
	defer store.Close()
	storeSuite(t, store)
}
