package decode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Rate    float64        `mapstructure:"rate"`
	Latency time.Duration  `mapstructure:"latency"`
	Count   int            `mapstructure:"count"`
	Tags    []string       `mapstructure:"tags"`
	Extra   map[string]any `mapstructure:"extra"`
	Keep    string         `mapstructure:"keep"`
}

func TestIntoKeepsDefaults(t *testing.T) {
	m, err := YAML([]byte(`
rate: 0.5
latency: 1500ms
count: "7"
tags: [a, 2]
extra: '{"k": 1}'
`))
	require.NoError(t, err)

	out := sample{Keep: "default"}
	require.NoError(t, Into(m, &out))
	assert.Equal(t, 0.5, out.Rate)
	assert.Equal(t, 1500*time.Millisecond, out.Latency)
	assert.Equal(t, 7, out.Count)
	assert.Equal(t, []string{"a", "2"}, out.Tags)
	assert.Equal(t, float64(1), out.Extra["k"])
	assert.Equal(t, "default", out.Keep)
}

func TestMapAndReaders(t *testing.T) {
	s, err := Map[sample](map[string]any{"count": 3.0})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Count)

	_, err = Map[sample](map[string]any{"count": "x"}, WithWeaklyTypedInput(false))
	assert.Error(t, err)
	assert.Error(t, Into(nil, &sample{}))

	m := map[string]any{"s": "v", "n": "12", "f": 3.0, "b": true}
	v, err := ReadString(m, "s")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	_, err = ReadString(m, "n2")
	assert.Error(t, err)
	n, err := ReadInt64(m, "n")
	require.NoError(t, err)
	assert.EqualValues(t, 12, n)
	n, err = ReadInt64(m, "f")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	_, err = ReadInt64(m, "b")
	assert.Error(t, err)

	_, err = YAML([]byte("[unclosed"))
	assert.Error(t, err)
}
