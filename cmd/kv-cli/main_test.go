package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"

	"github.com/heysubinoy/quotakv/internal/api"
	"github.com/heysubinoy/quotakv/internal/logr"
	"github.com/heysubinoy/quotakv/internal/store"
	"github.com/heysubinoy/quotakv/pkg/kv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEndpoint(t *testing.T) string {
	t.Helper()

	srv := api.NewServer(store.NewMemStore(2), "/entries", logr.Discard())
	ts := httptest.NewServer(api.NewRouter(logr.Discard(), srv, api.RouterConfig{Gatherer: prometheus.NewRegistry()}))
	t.Cleanup(ts.Close)
	return ts.URL + "/entries"
}

func TestCLI(t *testing.T) {
	url := newTestEndpoint(t)
	ctx := context.Background()

	exec := func(args ...string) (string, error) {
		var out bytes.Buffer
		err := run(ctx, append([]string{"--url", url}, args...), &out)
		return out.String(), err
	}

	got, err := exec("create", "k1", "v1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"main_key":"k1","value":"v1"}`, got)

	_, err = exec("create", "k1", "v2")
	assert.ErrorIs(t, err, kv.ErrDuplicateKey)

	got, err = exec("put", "k1", "v2")
	require.NoError(t, err)
	assert.JSONEq(t, `{"main_key":"k1","value":"v2"}`, got)

	_, err = exec("put", "k2", "v2")
	require.NoError(t, err)
	_, err = exec("put", "k3", "v3")
	assert.ErrorIs(t, err, kv.ErrQuotaExceeded)

	got, err = exec("list")
	require.NoError(t, err)
	assert.Equal(t, "k1\tv2\nk2\tv2\n", got)

	got, err = exec("get", "k2")
	require.NoError(t, err)
	assert.JSONEq(t, `{"main_key":"k2","value":"v2"}`, got)

	got, err = exec("delete", "k1")
	require.NoError(t, err)
	assert.Equal(t, "Deleted 'k1'\n", got)

	_, err = exec("delete", "k1")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	got, err = exec("clear")
	require.NoError(t, err)
	assert.Equal(t, "Deleted 1 entries\n", got)

	got, err = exec("list")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCLI_URLFromEnv(t *testing.T) {
	t.Setenv("BASE_URL", newTestEndpoint(t))

	var out bytes.Buffer
	err := run(context.Background(), []string{"list"}, &out)
	require.NoError(t, err)
	assert.Empty(t, out.String())
}

func TestCLI_WrongArgs(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"create", "only-key"}, &out)
	assert.Error(t, err)
}
