package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-permsync/internal/core/storage/engine"
	"github.com/dep2p/go-permsync/internal/core/storage/engine/badger"
)

// testEngine 创建内存引擎
func testEngine(t *testing.T) engine.Engine {
	t.Helper()
	eng, err := badger.New(engine.MemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func TestStore_PrefixIsolation(t *testing.T) {
	eng := testEngine(t)
	users := New(eng, []byte("u/"))
	other := New(eng, []byte("x/"))

	require.NoError(t, users.Put([]byte("k"), []byte("user")))
	require.NoError(t, other.Put([]byte("k"), []byte("other")))

	got, err := users.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("user"), got)

	raw, err := eng.Get([]byte("u/k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("user"), raw)

	require.NoError(t, users.Delete([]byte("k")))
	ok, err := other.Has([]byte("k"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_JSON(t *testing.T) {
	s := New(testEngine(t), []byte("u/"))

	type record struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	require.NoError(t, s.PutJSON([]byte("a"), record{Name: "a", Count: 1}))
	require.NoError(t, s.PutJSON([]byte("b"), record{Name: "b", Count: 2}))

	var got record
	require.NoError(t, s.GetJSON([]byte("a"), &got))
	assert.Equal(t, record{Name: "a", Count: 1}, got)

	var keys []string
	require.NoError(t, s.ForEach(func(k, _ []byte) error {
		keys = append(keys, string(k))
		return nil
	}))
	assert.Equal(t, []string{"a", "b"}, keys)

	err := s.GetJSON([]byte("missing"), &got)
	assert.True(t, engine.IsNotFound(err))
}
