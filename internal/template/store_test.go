package template

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantpipe/internal/pipeline"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "templates.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleConfig(t *testing.T, window int) pipeline.Value {
	t.Helper()
	return pipeline.Object(map[string]pipeline.Value{
		"label_calculation": pipeline.Object(map[string]pipeline.Value{
			"window": pipeline.Int(window),
		}),
	})
}

func TestStoreCreateAndGet(t *testing.T) {
	store := newTestStore(t)

	created, err := store.Create("intraday", sampleConfig(t, 29), false)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "intraday", created.Name)
	assert.False(t, created.IsDefault)

	got, ok, err := store.Get(created.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Config.Equal(sampleConfig(t, 29)))

	byName, ok, err := store.GetByName(" intraday ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, created.ID, byName.ID)

	_, ok, err = store.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreCreateValidation(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Create("  ", sampleConfig(t, 29), false)
	assert.Error(t, err)

	// 重名违反唯一索引。
	_, err = store.Create("dup", sampleConfig(t, 29), false)
	require.NoError(t, err)
	_, err = store.Create("dup", sampleConfig(t, 30), false)
	assert.Error(t, err)
}

func TestStoreDefaultHandling(t *testing.T) {
	store := newTestStore(t)

	first, err := store.Create("first", sampleConfig(t, 29), true)
	require.NoError(t, err)

	// 第二个默认模板会顶掉第一个。
	second, err := store.Create("second", sampleConfig(t, 30), true)
	require.NoError(t, err)

	def, ok, err := store.Default()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second.ID, def.ID)

	reloaded, ok, err := store.Get(first.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, reloaded.IsDefault)

	require.NoError(t, store.SetDefault(first.ID))
	def, ok, err = store.Default()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.ID, def.ID)

	assert.ErrorIs(t, store.SetDefault("missing"), ErrNotFound)
}

func TestStoreUpdate(t *testing.T) {
	store := newTestStore(t)

	created, err := store.Create("before", sampleConfig(t, 29), false)
	require.NoError(t, err)

	name := "after"
	cfg := sampleConfig(t, 40)
	isDefault := true
	updated, err := store.Update(created.ID, &name, &cfg, &isDefault)
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Name)
	assert.True(t, updated.IsDefault)
	assert.True(t, updated.Config.Equal(cfg))

	// nil 字段保持原值。
	updated, err = store.Update(created.ID, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Name)
	assert.True(t, updated.IsDefault)

	empty := "  "
	_, err = store.Update(created.ID, &empty, nil, nil)
	assert.Error(t, err)

	_, err = store.Update("missing", &name, nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreDeleteAndList(t *testing.T) {
	store := newTestStore(t)

	a, err := store.Create("a", sampleConfig(t, 29), false)
	require.NoError(t, err)
	_, err = store.Create("b", sampleConfig(t, 30), false)
	require.NoError(t, err)

	list, err := store.List(0, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, store.Delete(a.ID))
	assert.ErrorIs(t, store.Delete(a.ID), ErrNotFound)

	list, err = store.List(10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].Name)
}
