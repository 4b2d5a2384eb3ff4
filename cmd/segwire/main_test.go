package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/segwire"
)

// run executes the root command with fresh flag values and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	reset := func(f *pflag.Flag) {
		require.NoError(t, f.Value.Set(f.DefValue))
		f.Changed = false
	}
	rootCmd.PersistentFlags().VisitAll(reset)
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(reset)
	}

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeInputs(t *testing.T, dir string) (a, b string) {
	t.Helper()
	a = filepath.Join(dir, "a.txt")
	b = filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("seventeen bytes!!"), 0o644))
	return a, b
}

func TestPackInspectUnpack(t *testing.T) {
	for _, compressed := range []bool{false, true} {
		dir := t.TempDir()
		a, b := writeInputs(t, dir)
		packed := filepath.Join(dir, "msg.bin")

		args := []string{"pack", "-o", packed, a, b}
		if compressed {
			args = append(args, "--zstd")
		}
		_, err := run(t, args...)
		require.NoError(t, err)

		if !compressed {
			raw, err := os.ReadFile(packed)
			require.NoError(t, err)
			assert.Len(t, raw, 16+4*segwire.BytesPerWord)
		}

		args = []string{"inspect", packed}
		if compressed {
			args = append(args, "--zstd")
		}
		out, err := run(t, args...)
		require.NoError(t, err)
		assert.Contains(t, out, "message 0: 2 segments, 4 words (6 framed)")
		assert.Contains(t, out, "segment 0: offset 0, 1 words")
		assert.Contains(t, out, "segment 1: offset 1, 3 words")

		outDir := filepath.Join(dir, "out")
		args = []string{"unpack", packed, "-d", outDir}
		if compressed {
			args = append(args, "--zstd")
		}
		_, err = run(t, args...)
		require.NoError(t, err)

		got, err := os.ReadFile(filepath.Join(outDir, "0-0.bin"))
		require.NoError(t, err)
		assert.Equal(t, append([]byte("hello"), 0, 0, 0), got)
		got, err = os.ReadFile(filepath.Join(outDir, "0-1.bin"))
		require.NoError(t, err)
		assert.Equal(t, append([]byte("seventeen bytes!!"), make([]byte, 7)...), got)
	}
}

func TestInspectDump(t *testing.T) {
	dir := t.TempDir()
	a, _ := writeInputs(t, dir)
	packed := filepath.Join(dir, "msg.bin")
	_, err := run(t, "pack", "-o", packed, a)
	require.NoError(t, err)

	out, err := run(t, "inspect", "--dump", packed)
	require.NoError(t, err)
	// "hello" read as a little-endian word.
	assert.Contains(t, out, "0000006f6c6c6568")
}

func TestInspectRespectsTraversalLimit(t *testing.T) {
	dir := t.TempDir()
	_, b := writeInputs(t, dir)
	packed := filepath.Join(dir, "msg.bin")
	_, err := run(t, "pack", "-o", packed, b)
	require.NoError(t, err)

	_, err = run(t, "inspect", "--traversal-limit", "2", packed)
	assert.ErrorIs(t, err, segwire.ErrTraversalLimitExceeded)
}

func TestInspectEmptyFile(t *testing.T) {
	empty := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err := run(t, "inspect", empty)
	assert.ErrorIs(t, err, segwire.ErrReadTruncated)
}

func TestConfigFileApplies(t *testing.T) {
	dir := t.TempDir()
	_, b := writeInputs(t, dir)
	packed := filepath.Join(dir, "msg.bin")
	conf := filepath.Join(dir, "segwire.yaml")
	require.NoError(t, os.WriteFile(conf, []byte("reader:\n  traversal_limit_words: 1\n"), 0o644))

	_, err := run(t, "pack", "-o", packed, b)
	require.NoError(t, err)
	_, err = run(t, "inspect", "-c", conf, packed)
	assert.ErrorIs(t, err, segwire.ErrTraversalLimitExceeded)
}
