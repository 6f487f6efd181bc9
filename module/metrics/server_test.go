package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/flow-tss/utils/unittest"
)

func TestServer(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewTSSCollector(registry)
	collector.ExecutionFinished("keygen", time.Second, nil)

	server := NewServer(unittest.Logger(), "127.0.0.1:0", registry)
	require.NoError(t, server.Start())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), unittest.DefaultTimeout)
		defer cancel()
		assert.NoError(t, server.Shutdown(ctx))
	}()

	resp, err := http.Get("http://" + server.Addr() + Endpoint)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `tss_roundbased_executions_total{outcome="success",protocol="keygen"} 1`)
}

func TestServer_AddressInUse(t *testing.T) {
	first := NewServer(unittest.Logger(), "127.0.0.1:0", prometheus.NewRegistry())
	require.NoError(t, first.Start())
	defer first.Shutdown(context.Background())

	second := NewServer(unittest.Logger(), first.Addr(), prometheus.NewRegistry())
	assert.Error(t, second.Start())
	assert.NoError(t, second.Shutdown(context.Background()))
}
