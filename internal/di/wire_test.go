package di

import (
	"testing"

	"github.com/cyclus-sim/cyclus/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestWireProducesRunnableContainer(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	cfg.Duration = 3

	c, err := Wire(cfg, Options{
		Markets:  []MarketSpec{{Commodity: "enriched-uranium"}},
		Registry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	defer c.Close()

	require.NotNil(t, c.Ctx)
	require.NotNil(t, c.Tree)
	require.NotNil(t, c.Timer)
	require.NotNil(t, c.Hub)
	require.NotNil(t, c.Transactions)
	require.Contains(t, c.Markets, "enriched-uranium")
}

func TestWireFailsOnInvalidDataDir(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	cfg.DataDir = "/nonexistent/does-not-exist/at-all"

	_, err = Wire(cfg, Options{Registry: prometheus.NewRegistry()})
	require.Error(t, err)
}
