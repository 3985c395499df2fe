package store

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/heysubinoy/quotakv/pkg/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStore(t *testing.T) {
	t.Run("insert then list", func(t *testing.T) {
		s := NewMemStore(DefaultCapacity)

		got, err := s.Insert("k1", "v1")
		require.NoError(t, err)
		assert.Equal(t, kv.Entry{Key: "k1", Value: "v1"}, got)
		assert.Equal(t, []kv.Entry{{Key: "k1", Value: "v1"}}, s.List())
	})

	t.Run("duplicate insert leaves store unchanged", func(t *testing.T) {
		s := NewMemStore(DefaultCapacity)
		_, err := s.Insert("k1", "v1")
		require.NoError(t, err)

		_, err = s.Insert("k1", "v2")
		assert.ErrorIs(t, err, kv.ErrDuplicateKey)
		assert.Equal(t, []kv.Entry{{Key: "k1", Value: "v1"}}, s.List())
	})

	t.Run("shared values across keys", func(t *testing.T) {
		s := NewMemStore(DefaultCapacity)
		_, err := s.Insert("k1", "same")
		require.NoError(t, err)
		_, err = s.Insert("k2", "same")
		require.NoError(t, err)
		assert.Equal(t, 2, s.Len())
	})

	t.Run("upsert overwrites existing key", func(t *testing.T) {
		s := NewMemStore(DefaultCapacity)
		_, err := s.Insert("k1", "v1")
		require.NoError(t, err)

		got, err := s.Upsert("k1", "v2")
		require.NoError(t, err)
		assert.Equal(t, "v2", got.Value)

		entry, err := s.Get("k1")
		require.NoError(t, err)
		assert.Equal(t, "v2", entry.Value)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("upsert creates absent key", func(t *testing.T) {
		s := NewMemStore(DefaultCapacity)
		got, err := s.Upsert("k1", "v1")
		require.NoError(t, err)
		assert.Equal(t, kv.Entry{Key: "k1", Value: "v1"}, got)
	})

	t.Run("remove succeeds exactly once", func(t *testing.T) {
		s := NewMemStore(DefaultCapacity)
		_, err := s.Insert("k1", "v1")
		require.NoError(t, err)

		require.NoError(t, s.Remove("k1"))
		assert.Empty(t, s.List())
		assert.ErrorIs(t, s.Remove("k1"), kv.ErrNotFound)
	})

	t.Run("get missing key", func(t *testing.T) {
		s := NewMemStore(DefaultCapacity)
		_, err := s.Get("nope")
		assert.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("list on empty store", func(t *testing.T) {
		s := NewMemStore(DefaultCapacity)
		assert.NotNil(t, s.List())
		assert.Empty(t, s.List())
	})
}

func TestMemStore_Quota(t *testing.T) {
	growing := map[string]func(s *MemStore, key, value string) (kv.Entry, error){
		"insert": (*MemStore).Insert,
		"upsert": (*MemStore).Upsert,
	}
	for name, op := range growing {
		t.Run(name, func(t *testing.T) {
			s := NewMemStore(DefaultCapacity)
			for i := 1; i <= DefaultCapacity; i++ {
				key := fmt.Sprintf("k%d", i)
				_, err := op(s, key, key)
				require.NoError(t, err)
			}

			_, err := op(s, "k11", "v11")
			assert.ErrorIs(t, err, kv.ErrQuotaExceeded)
			assert.Equal(t, DefaultCapacity, s.Len())

			// updating an existing key at capacity is not growth
			got, err := s.Upsert("k1", "updated")
			require.NoError(t, err)
			assert.Equal(t, "updated", got.Value)

			// removing frees a slot
			require.NoError(t, s.Remove("k1"))
			_, err = op(s, "k11", "v11")
			assert.NoError(t, err)
		})
	}
}

func TestMemStore_ConcurrentInsertsRespectQuota(t *testing.T) {
	s := NewMemStore(DefaultCapacity)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		rejected  atomic.Int32
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Insert(fmt.Sprintf("key-%d", i), "v")
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, kv.ErrQuotaExceeded):
				rejected.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(DefaultCapacity), succeeded.Load())
	assert.Equal(t, int32(100-DefaultCapacity), rejected.Load())
	assert.Len(t, s.List(), DefaultCapacity)
}

func TestMemStore_ConcurrentInsertsSameKey(t *testing.T) {
	s := NewMemStore(DefaultCapacity)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.Insert("shared", fmt.Sprintf("v%d", i)); err == nil {
				succeeded.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, 1, s.Len())
}

func TestQuota(t *testing.T) {
	q := NewQuota(2)
	assert.Equal(t, 2, q.Capacity())
	assert.NoError(t, q.Admit(0))
	assert.NoError(t, q.Admit(1))
	assert.ErrorIs(t, q.Admit(2), kv.ErrQuotaExceeded)

	assert.Equal(t, DefaultCapacity, NewQuota(0).Capacity())
}
