package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hireloop/jobradar/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Ledger.Path = filepath.Join(t.TempDir(), "usage.json")
	return cfg
}

func TestNewAssemblesServiceGraph(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Orchestrator())
	require.NotNil(t, a.Ledger())

	names := make(map[string]bool)
	for _, e := range a.Registry().Entries() {
		names[e.Descriptor.Name] = true
	}
	require.True(t, names["adzuna"])
	require.True(t, names["jsearch"])
	require.True(t, names["arbeitnow"])
	require.True(t, names["web3career"])
	require.False(t, names["linkedin"], "linkedin is opt-in")
}

func TestMeteredLimitsFlowIntoLedger(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Backends.Adzuna.MonthlyLimit = 7

	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	remaining, err := a.Ledger().Remaining("adzuna")
	require.NoError(t, err)
	require.Equal(t, 7, remaining)
}

func TestDisabledBackendsAreNotRegistered(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Backends.JSearch.Enabled = false
	cfg.Backends.Web3Career.Enabled = false

	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	_, ok := a.Registry().Lookup("jsearch")
	require.False(t, ok)
	_, ok = a.Registry().Lookup("web3career")
	require.False(t, ok)
	_, ok = a.Registry().Lookup("adzuna")
	require.True(t, ok)
}

func TestNewRejectsEmptyRegistry(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Backends.Adzuna.Enabled = false
	cfg.Backends.JSearch.Enabled = false
	cfg.Backends.ArbeitNow.Enabled = false
	cfg.Backends.Web3Career.Enabled = false

	_, err := New(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
}
