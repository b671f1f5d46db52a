package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hireloop/jobradar/internal/app"
	"github.com/hireloop/jobradar/internal/config"
)

// stubAppFactory swaps newApp for one that builds a real App against a
// throwaway ledger file, and restores the original on cleanup.
func stubAppFactory(t *testing.T) {
	t.Helper()
	orig := newApp
	newApp = func(ctx context.Context) (*app.App, error) {
		cfg, err := config.Load("")
		if err != nil {
			return nil, err
		}
		cfg.Ledger.Path = filepath.Join(t.TempDir(), "usage.json")
		return app.New(ctx, cfg, zap.NewNop())
	}
	t.Cleanup(func() { newApp = orig })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestSourcesCommandListsCatalog(t *testing.T) {
	stubAppFactory(t)

	out, err := execute(t, "sources")
	require.NoError(t, err)
	require.Contains(t, out, "adzuna")
	require.Contains(t, out, "arbeitnow")
	require.Contains(t, out, "web3career")
	require.Contains(t, out, "metered-api")
}

func TestQuotaCommandShowsMeteredBackends(t *testing.T) {
	stubAppFactory(t)

	out, err := execute(t, "quota")
	require.NoError(t, err)
	require.Contains(t, out, "adzuna")
	require.Contains(t, out, "jsearch")
	require.NotContains(t, out, "arbeitnow", "free sources carry no quota")
}

func TestSearchCommandRequiresTerms(t *testing.T) {
	stubAppFactory(t)

	_, err := execute(t, "search")
	require.Error(t, err)
}

func TestSearchCommandRejectsConflictingKindFlags(t *testing.T) {
	stubAppFactory(t)

	_, err := execute(t, "search", "golang", "--apis-only", "--scrapers-only")
	require.Error(t, err)
}
