package client_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/heysubinoy/quotakv/internal/api"
	"github.com/heysubinoy/quotakv/internal/logr"
	"github.com/heysubinoy/quotakv/internal/store"
	"github.com/heysubinoy/quotakv/pkg/client"
	"github.com/heysubinoy/quotakv/pkg/kv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *client.Client {
	t.Helper()

	srv := api.NewServer(store.NewMemStore(store.DefaultCapacity), "/entries", logr.Discard())
	router := api.NewRouter(logr.Discard(), srv, api.RouterConfig{Gatherer: prometheus.NewRegistry()})
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	c, err := client.New(client.Config{URL: ts.URL + "/entries"})
	require.NoError(t, err)
	return c
}

func TestClient(t *testing.T) {
	ctx := context.Background()

	t.Run("create and list", func(t *testing.T) {
		c := newTestClient(t)

		created, err := c.Create(ctx, "k1", "v1")
		require.NoError(t, err)
		assert.Equal(t, kv.Entry{Key: "k1", Value: "v1"}, created)

		entries, err := c.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []kv.Entry{{Key: "k1", Value: "v1"}}, entries)

		got, err := c.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, created, got)
	})

	t.Run("duplicate create", func(t *testing.T) {
		c := newTestClient(t)
		_, err := c.Create(ctx, "k1", "v1")
		require.NoError(t, err)

		_, err = c.Create(ctx, "k1", "v2")
		assert.ErrorIs(t, err, kv.ErrDuplicateKey)

		var apiErr *client.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	})

	t.Run("put overwrites", func(t *testing.T) {
		c := newTestClient(t)
		_, err := c.Put(ctx, "k1", "v1")
		require.NoError(t, err)

		got, err := c.Put(ctx, "k1", "v2")
		require.NoError(t, err)
		assert.Equal(t, "v2", got.Value)
	})

	t.Run("quota", func(t *testing.T) {
		c := newTestClient(t)
		for i := 1; i <= store.DefaultCapacity; i++ {
			_, err := c.Create(ctx, fmt.Sprintf("k%d", i), "v")
			require.NoError(t, err)
		}

		_, err := c.Create(ctx, "k11", "v11")
		assert.ErrorIs(t, err, kv.ErrQuotaExceeded)
		_, err = c.Put(ctx, "k11", "v11")
		assert.ErrorIs(t, err, kv.ErrQuotaExceeded)
	})

	t.Run("delete twice", func(t *testing.T) {
		c := newTestClient(t)
		_, err := c.Create(ctx, "k1", "v1")
		require.NoError(t, err)

		require.NoError(t, c.Delete(ctx, "k1"))
		assert.ErrorIs(t, c.Delete(ctx, "k1"), kv.ErrNotFound)
	})

	t.Run("empty key", func(t *testing.T) {
		c := newTestClient(t)

		_, err := c.Create(ctx, "", "v")
		assert.ErrorIs(t, err, kv.ErrInvalidEntry)
		_, err = c.Get(ctx, "")
		assert.ErrorIs(t, err, kv.ErrInvalidEntry)
	})

	t.Run("get keys needing escapes", func(t *testing.T) {
		c := newTestClient(t)
		for _, key := range []string{"a/b", "/lead", "..", "with space", "100%", "q?x#y"} {
			_, err := c.Create(ctx, key, "v:"+key)
			require.NoError(t, err)

			got, err := c.Get(ctx, key)
			require.NoError(t, err, key)
			assert.Equal(t, kv.Entry{Key: key, Value: "v:" + key}, got)
		}

		_, err := c.Get(ctx, "a/missing")
		assert.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("clear", func(t *testing.T) {
		c := newTestClient(t)
		for i := 1; i <= 3; i++ {
			_, err := c.Put(ctx, fmt.Sprintf("k%d", i), "v")
			require.NoError(t, err)
		}

		require.NoError(t, c.Clear(ctx))
		entries, err := c.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestClient_Retries(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	t.Cleanup(ts.Close)

	t.Run("enabled", func(t *testing.T) {
		calls.Store(0)
		c, err := client.New(client.Config{URL: ts.URL, RetryRequests: true, RetryMax: 5})
		require.NoError(t, err)

		entries, err := c.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, entries)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("disabled", func(t *testing.T) {
		calls.Store(0)
		c, err := client.New(client.Config{URL: ts.URL})
		require.NoError(t, err)

		_, err = c.List(context.Background())
		var apiErr *client.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestClient_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"store quota exceeded","kind":"quota_exceeded"}`))
	}))
	t.Cleanup(ts.Close)

	c, err := client.New(client.Config{URL: ts.URL, RetryRequests: true})
	require.NoError(t, err)

	_, err = c.Put(context.Background(), "k", "v")
	assert.ErrorIs(t, err, kv.ErrQuotaExceeded)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := client.New(client.Config{URL: "ftp://example.com/entries"})
	assert.Error(t, err)
}

type fakeStore struct {
	entries []kv.Entry
	failOn  string
	deleted []string
}

func (f *fakeStore) List(context.Context) ([]kv.Entry, error) { return f.entries, nil }

func (f *fakeStore) Delete(_ context.Context, key string) error {
	if key == f.failOn {
		return kv.ErrNotFound
	}
	f.deleted = append(f.deleted, key)
	return nil
}

func TestClearAll(t *testing.T) {
	entries := []kv.Entry{{Key: "a"}, {Key: "b"}, {Key: "c"}}

	t.Run("deletes everything", func(t *testing.T) {
		f := &fakeStore{entries: entries}
		n, err := client.ClearAll(context.Background(), f)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, []string{"a", "b", "c"}, f.deleted)
	})

	t.Run("stops at first failure", func(t *testing.T) {
		f := &fakeStore{entries: entries, failOn: "b"}
		n, err := client.ClearAll(context.Background(), f)
		assert.ErrorIs(t, err, kv.ErrNotFound)
		assert.Equal(t, 1, n)
		assert.Equal(t, []string{"a"}, f.deleted)
	})
}
