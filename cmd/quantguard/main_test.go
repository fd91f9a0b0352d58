package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantguard/internal/ledger"
	"quantguard/internal/pkg/fsutil"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`ledger:
  path: %s
watchlist:
  path: %s
livecache:
  path: %s
journal:
  enabled: false
advisory:
  api_key: sk-abcdef123456
`, filepath.Join(dir, "positions.json"), filepath.Join(dir, "watchlist.json"), filepath.Join(dir, "cache.json"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path, dir
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestWatchlistCommands(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	out := execute(t, "watchlist", "add", "01810.HK", "02015", "-c", cfgPath)
	assert.Contains(t, out, "01810, 02015")

	out = execute(t, "watchlist", "remove", "02015", "-c", cfgPath)
	assert.Contains(t, out, "watchlist: 01810")

	out = execute(t, "watchlist", "list", "-c", cfgPath)
	assert.Contains(t, out, "targets:   00700, 03690, 09988, 01810")
}

func TestPositionsCommand(t *testing.T) {
	cfgPath, dir := writeConfig(t)
	out := execute(t, "positions", "-c", cfgPath)
	assert.Contains(t, out, "(no positions)")

	require.NoError(t, ledger.NewFileStore(filepath.Join(dir, "positions.json")).Save(map[string]ledger.Position{
		"00700": {CostPrice: 280, Volume: 35, HighestPrice: 310},
	}))
	require.NoError(t, fsutil.WriteJSONAtomic(filepath.Join(dir, "cache.json"), map[string]any{
		"00700": map[string]float64{"price": 294, "pct_change": -1.1},
	}, fsutil.WriteOptions{}))

	out = execute(t, "positions", "-c", cfgPath)
	assert.Contains(t, out, "00700")
	assert.Contains(t, out, "294.000")
	assert.Contains(t, out, "+5.00")
}

func TestConfigShowMasksSecrets(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	out := execute(t, "config", "show", "-c", cfgPath)
	assert.Contains(t, out, "api_key: sk-******56")
	assert.NotContains(t, out, "sk-abcdef123456")
	assert.Contains(t, out, "total_capital: 100000")
}
