package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPurgeCmd(t *testing.T) {
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "cache", "quake-search.db"))
	t.Setenv("LOG_LEVEL", "error")

	out, err := execute(t, "purge")
	require.NoError(t, err)
	assert.Equal(t, "purged 0 expired rows\n", out)
}

func TestSearchCmd_RejectsBadDate(t *testing.T) {
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "quake-search.db"))

	_, err := execute(t, "search", "--lat", "37.5", "--lng", "137.3", "--start", "01/01/2024", "--end", "2024-01-02")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --start")
}

func TestStationsCmd_UnknownEvent(t *testing.T) {
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "quake-search.db"))

	_, err := execute(t, "stations", "no-such-event")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestConfigErrorsSurface(t *testing.T) {
	t.Setenv("SERVER_PORT", "0")

	_, err := execute(t, "purge")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestStationsCmd_UnknownRanking(t *testing.T) {
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "quake-search.db"))

	_, err := execute(t, "stations", "no-such-event", "--channel", "HHZ", "--stations", "3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stations for no-such-event")
}
