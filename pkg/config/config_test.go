package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xtaci/smux"

	"github.com/rawbytedev/segwire"
)

func TestDefaults(t *testing.T) {
	c := Default()
	require.NoError(t, c.validate())
	require.Equal(t, segwire.DefaultReaderOptions(), c.ReaderOptions())
	require.Equal(t, segwire.DefaultBuilderOptions(), c.BuilderOptions())
	require.NoError(t, smux.VerifyConfig(c.SmuxConfig()))
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segwire.yaml")
	data := []byte(`
log:
  level: debug
reader:
  traversal_limit_words: 4096
builder:
  first_segment_words: 16
  allocation: fixed
compression:
  enabled: true
  level: 9
transport:
  keepalive_sec: 5
  keepalive_timeout_sec: 15
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	c, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, "debug", c.Log.Level)
	require.Equal(t, uint64(4096), c.ReaderOptions().TraversalLimitInWords)
	require.Equal(t, segwire.DefaultNestingLimit, c.ReaderOptions().NestingLimit)
	require.Equal(t, segwire.BuilderOptions{FirstSegmentWords: 16, Allocation: segwire.FixedSize}, c.BuilderOptions())
	require.True(t, c.Compression.Enabled)
	require.Equal(t, 9, c.ZframeOptions().Level)

	sc := c.SmuxConfig()
	require.Equal(t, 5*time.Second, sc.KeepAliveInterval)
	require.Equal(t, 15*time.Second, sc.KeepAliveTimeout)
}

func TestValidationCollectsEveryError(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		count   int
	}{
		{name: "empty file", yaml: "", wantErr: false},
		{name: "bad level", yaml: "log:\n  level: loud\n", wantErr: true, count: 1},
		{
			name:    "several",
			yaml:    "builder:\n  allocation: random\ncompression:\n  level: 40\nreader:\n  nesting_limit: -1\n",
			wantErr: true,
			count:   3,
		},
		{name: "keepalive order", yaml: "transport:\n  keepalive_sec: 20\n  keepalive_timeout_sec: 10\n", wantErr: true, count: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), "error")
			require.Equal(t, tt.count, countErrors(err))
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func countErrors(err error) int {
	type wrapped interface{ WrappedErrors() []error }
	if w, ok := err.(wrapped); ok {
		return len(w.WrappedErrors())
	}
	return 1
}
