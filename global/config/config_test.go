package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AirChat/module/chat/store"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, StoreMemory, c.Store.Kind)
	assert.Equal(t, store.DemoFaults(), c.Faults.FaultConfig)
	assert.Equal(t, "Chat with Bahadir", c.Store.ChannelName)
}

func TestLoadLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "airchat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
store:
  kind: redis
faults:
  enabled: false
  send_failure_rate: 0.5
  write_latency: 10ms
presence:
  typing_for: {min: 1s, max: 2s}
nats:
  servers: ["nats://a:4222"]
`), 0o644))
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("AIRCHAT_ME=Ann\n"), 0o644))

	t.Setenv("AIRCHAT_STORE", "postgres")
	t.Setenv("AIRCHAT_ALLOWED_ORIGINS", "a.com, b.com,")
	t.Cleanup(func() { os.Unsetenv("AIRCHAT_ME") })

	c, err := Load(path, envFile, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":9000", c.Server.Addr)
	assert.Equal(t, StorePostgres, c.Store.Kind, "env wins over file")
	assert.Equal(t, "Ann", c.Me)
	assert.Equal(t, []string{"a.com", "b.com"}, c.Server.AllowedOrigins)
	assert.False(t, c.Faults.Enabled)
	assert.Equal(t, 0.5, c.Faults.SendFailureRate)
	assert.Equal(t, 10*time.Millisecond, c.Faults.WriteLatency)
	assert.Equal(t, time.Second, c.Presence.Simulator().TypingFor.Min)
	assert.Equal(t, []string{"nats://a:4222"}, c.NATS.Servers)
	assert.Equal(t, "Chat with Bahadir", c.Store.ChannelName, "untouched defaults survive")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	t.Setenv("AIRCHAT_STORE", "sqlite")
	_, err = Load("")
	assert.Error(t, err)

	t.Setenv("AIRCHAT_STORE", "memory")
	t.Setenv("AIRCHAT_FAULTS", "maybe")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidateRates(t *testing.T) {
	c := Default()
	c.Faults.DeleteFailureRate = 1.5
	assert.Error(t, c.Validate())
}

func TestParseFaults(t *testing.T) {
	base := store.DemoFaults()
	fc, err := ParseFaults("faults:\n  send_failure_rate: 0.1\n  load_latency: 1s\n", base)
	require.NoError(t, err)
	assert.Equal(t, 0.1, fc.SendFailureRate)
	assert.Equal(t, time.Second, fc.LoadLatency)
	assert.Equal(t, base.DeleteFailureRate, fc.DeleteFailureRate)

	fc, err = ParseFaults("delete_failure_rate: 0\n", base)
	require.NoError(t, err)
	assert.Zero(t, fc.DeleteFailureRate)

	fc, err = ParseFaults("[broken", base)
	assert.Error(t, err)
	assert.Equal(t, base, fc)
}
